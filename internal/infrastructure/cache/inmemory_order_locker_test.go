package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryOrderLocker_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails while held", func(t *testing.T) {
		locker := NewInMemoryOrderLocker()
		id := uuid.New()

		release, err := locker.Acquire(ctx, id, time.Minute)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, id, time.Minute)
		assert.ErrorIs(t, err, order.ErrLockNotAcquired)

		release()
		release2, err := locker.Acquire(ctx, id, time.Minute)
		require.NoError(t, err)
		release2()
		assert.Equal(t, 0, locker.Size())
	})

	t.Run("different orders do not contend", func(t *testing.T) {
		locker := NewInMemoryOrderLocker()

		r1, err := locker.Acquire(ctx, uuid.New(), time.Minute)
		require.NoError(t, err)
		r2, err := locker.Acquire(ctx, uuid.New(), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 2, locker.Size())
		r1()
		r2()
	})

	t.Run("expired lock is taken over and late release keeps the new holder", func(t *testing.T) {
		locker := NewInMemoryOrderLocker()
		now := time.Now()
		locker.now = func() time.Time { return now }
		id := uuid.New()

		staleRelease, err := locker.Acquire(ctx, id, time.Second)
		require.NoError(t, err)

		now = now.Add(2 * time.Second)
		_, err = locker.Acquire(ctx, id, time.Minute)
		require.NoError(t, err)

		staleRelease()
		_, err = locker.Acquire(ctx, id, time.Minute)
		assert.ErrorIs(t, err, order.ErrLockNotAcquired)
	})

	t.Run("release is idempotent", func(t *testing.T) {
		locker := NewInMemoryOrderLocker()
		id := uuid.New()

		release, err := locker.Acquire(ctx, id, time.Minute)
		require.NoError(t, err)
		release()
		release()

		_, err = locker.Acquire(ctx, id, time.Minute)
		assert.NoError(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		locker := NewInMemoryOrderLocker()
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := locker.Acquire(cancelled, uuid.New(), time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestInMemoryOrderLocker_Concurrent(t *testing.T) {
	locker := NewInMemoryOrderLocker()
	id := uuid.New()

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.Acquire(context.Background(), id, time.Minute); err == nil {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
}
