// Package order holds the restaurant's internal order record for orders that arrive
// through delivery platforms.
package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound     = errors.New("order: order not found")
	ErrNotADeliveryOrder = errors.New("order: order was not placed through a delivery platform")
	ErrInvalidStatus     = errors.New("order: invalid status")
	ErrInvalidTransition = errors.New("order: invalid status transition")
	ErrStatusConflict    = errors.New("order: status changed concurrently")
	ErrDuplicateOrder    = errors.New("order: provider order already recorded")
	ErrLockNotAcquired   = errors.New("order: another operation is in progress for this order")
)

// Status is the internal order status
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// rank orders the forward lifecycle; cancelled is handled separately
var rank = map[Status]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusPreparing: 2,
	StatusReady:     3,
	StatusCompleted: 4,
}

// IsValid returns true if the status is known
func (s Status) IsValid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := rank[s]
	return ok
}

// IsFinal returns true for statuses that cannot change any more
func (s Status) IsFinal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus parses an internal status
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// CanAdvanceTo returns true if moving from s to next keeps the lifecycle monotonic.
// Cancellation is reachable from any non-final status; re-applying the same status is not an advance.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.IsFinal() || s == next || !next.IsValid() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return rank[next] > rank[s]
}

// FromPlatformStatus bridges the normalized platform vocabulary to the internal one
func FromPlatformStatus(s integration.OrderStatus) Status {
	switch s {
	case integration.OrderStatusAccepted:
		return StatusConfirmed
	case integration.OrderStatusPreparing:
		return StatusPreparing
	case integration.OrderStatusReady:
		return StatusReady
	case integration.OrderStatusCompleted:
		return StatusCompleted
	case integration.OrderStatusCancelled:
		return StatusCancelled
	default:
		return StatusPending
	}
}

// ToPlatformStatus bridges the internal vocabulary to the normalized platform one
func (s Status) ToPlatformStatus() integration.OrderStatus {
	switch s {
	case StatusConfirmed:
		return integration.OrderStatusAccepted
	case StatusPreparing:
		return integration.OrderStatusPreparing
	case StatusReady:
		return integration.OrderStatusReady
	case StatusCompleted:
		return integration.OrderStatusCompleted
	case StatusCancelled:
		return integration.OrderStatusCancelled
	default:
		return integration.OrderStatusPending
	}
}

// Order is the internal order record. IntegrationID is nil for orders that did not
// arrive through a delivery platform.
type Order struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	IntegrationID   *uuid.UUID
	Provider        integration.Provider
	ProviderOrderID string
	DisplayID       string
	Status          Status
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	Items           []integration.OrderItem
	DeliveryAddress *integration.Address
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	DeliveryFee     decimal.Decimal
	ServiceFee      decimal.Decimal
	Tip             decimal.Decimal
	Total           decimal.Decimal
	Currency        string
	Instructions    string
	RawPayload      string
	RejectionReason string
	PlacedAt        time.Time
	ScheduledFor    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewFromPlatform creates an internal order from a normalized platform order
func NewFromPlatform(organizationID, integrationID uuid.UUID, po *integration.NormalizedOrder) *Order {
	now := time.Now()
	placedAt := po.PlacedAt
	if placedAt.IsZero() {
		placedAt = now
	}
	intID := integrationID
	return &Order{
		ID:              uuid.New(),
		OrganizationID:  organizationID,
		IntegrationID:   &intID,
		Provider:        po.Provider,
		ProviderOrderID: po.ProviderOrderID,
		DisplayID:       po.DisplayID,
		Status:          FromPlatformStatus(po.Status),
		CustomerName:    po.Customer.Name,
		CustomerPhone:   po.Customer.Phone,
		CustomerEmail:   po.Customer.Email,
		Items:           po.Items,
		DeliveryAddress: po.DeliveryAddress,
		Subtotal:        po.Subtotal,
		Tax:             po.Tax,
		DeliveryFee:     po.DeliveryFee,
		ServiceFee:      po.ServiceFee,
		Tip:             po.Tip,
		Total:           po.Total,
		Currency:        po.Currency,
		Instructions:    po.Instructions,
		RawPayload:      po.RawData,
		PlacedAt:        placedAt,
		ScheduledFor:    po.ScheduledFor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsDeliveryOrder returns true if the order is linked to an integration
func (o *Order) IsDeliveryOrder() bool {
	return o.IntegrationID != nil && *o.IntegrationID != uuid.Nil
}

// ItemsJSON serializes the order lines
func (o *Order) ItemsJSON() (string, error) {
	if len(o.Items) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(o.Items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order items: %w", err)
	}
	return string(b), nil
}
