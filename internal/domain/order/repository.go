package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/integration"
)

// Repository persists internal orders
type Repository interface {
	// FindByID returns ErrOrderNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindByProviderOrderID returns ErrOrderNotFound when absent
	FindByProviderOrderID(ctx context.Context, integrationID uuid.UUID, providerOrderID string) (*Order, error)
	// FindUpdatedSince lists delivery orders of an organization in the given statuses
	// updated at or after since
	FindUpdatedSince(ctx context.Context, organizationID uuid.UUID, statuses []Status, since time.Time) ([]*Order, error)
	// Create inserts a new order; ErrDuplicateOrder when the provider order is already recorded
	Create(ctx context.Context, o *Order) error
	// UpdateStatusIfCurrent moves the order to next only while its status is one of expected.
	// ErrStatusConflict when no row matched.
	UpdateStatusIfCurrent(ctx context.Context, id uuid.UUID, expected []Status, next Status, rejectionReason string) error
}

// Locker serializes decision-making (accept/reject) on a single order across instances
type Locker interface {
	// Acquire returns a release function, or ErrLockNotAcquired when the order is locked
	Acquire(ctx context.Context, orderID uuid.UUID, ttl time.Duration) (release func(), err error)
}

// Drift describes a disagreement between the internal status and the provider's
type Drift struct {
	OrderID         uuid.UUID               `json:"order_id"`
	Provider        integration.Provider    `json:"provider"`
	ProviderOrderID string                  `json:"provider_order_id"`
	InternalStatus  Status                  `json:"internal_status"`
	ProviderStatus  integration.OrderStatus `json:"provider_status"`
}
