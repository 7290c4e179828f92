package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/order"
)

type lockEntry struct {
	token     uint64
	expiresAt time.Time
}

// InMemoryOrderLocker implements order.Locker with a process-local map.
// Suitable for single-instance deployments and testing.
type InMemoryOrderLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]lockEntry
	next  uint64
	now   func() time.Time
}

// NewInMemoryOrderLocker creates a new in-memory order locker
func NewInMemoryOrderLocker() *InMemoryOrderLocker {
	return &InMemoryOrderLocker{
		locks: make(map[uuid.UUID]lockEntry),
		now:   time.Now,
	}
}

// Acquire takes the lock for orderID for at most ttl.
// An expired lock is taken over; its late release is a no-op.
func (l *InMemoryOrderLocker) Acquire(ctx context.Context, orderID uuid.UUID, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[orderID]; ok && now.Before(held.expiresAt) {
		return nil, order.ErrLockNotAcquired
	}
	l.sweepLocked(now)

	l.next++
	token := l.next
	l.locks[orderID] = lockEntry{token: token, expiresAt: now.Add(ttl)}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if held, ok := l.locks[orderID]; ok && held.token == token {
				delete(l.locks, orderID)
			}
		})
	}
	return release, nil
}

// sweepLocked drops expired locks. Caller holds l.mu.
func (l *InMemoryOrderLocker) sweepLocked(now time.Time) {
	for id, held := range l.locks {
		if !now.Before(held.expiresAt) {
			delete(l.locks, id)
		}
	}
}

// Size returns the number of held locks (for testing/monitoring)
func (l *InMemoryOrderLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// Ensure InMemoryOrderLocker implements order.Locker
var _ order.Locker = (*InMemoryOrderLocker)(nil)
