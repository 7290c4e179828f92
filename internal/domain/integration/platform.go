package integration

import (
	"context"
	"time"
)

// DeliveryPlatform is the port every marketplace client implements.
//
// Expected failures (network, HTTP error, auth) are returned as *PlatformError and never panic.
// A nil error means the provider confirmed the operation.
type DeliveryPlatform interface {
	// Provider returns the marketplace this client talks to
	Provider() Provider

	// Authenticate obtains or verifies credentials. Idempotent; a successful call clears
	// a previous authentication failure.
	Authenticate(ctx context.Context) error

	// GetOrders lists orders. Fetch failures are logged and yield an empty slice.
	GetOrders(ctx context.Context, filter OrderFilter) []NormalizedOrder

	// GetOrder fetches one order; ErrPlatformOrderNotFound when the provider does not know it
	GetOrder(ctx context.Context, providerOrderID string) (*NormalizedOrder, error)

	// UpdateOrderStatus pushes a status change. Transitions the provider has no endpoint for
	// fail with ErrUnsupportedTransition without any network call.
	UpdateOrderStatus(ctx context.Context, providerOrderID string, status OrderStatus) error

	// SyncMenu replaces the provider's menu with the given one
	SyncMenu(ctx context.Context, menu *Menu) (*MenuSyncResult, error)

	// SetStoreAvailability opens or closes the store on the marketplace
	SetStoreAvailability(ctx context.Context, isOpen bool) error

	// AcceptOrder confirms an order with the provider
	AcceptOrder(ctx context.Context, providerOrderID string, opts AcceptOptions) error

	// DenyOrder rejects an order with the provider
	DenyOrder(ctx context.Context, providerOrderID string, reason DenyReason, explanation string) error

	// AcceptanceDeadline returns how long the restaurant has to accept the order
	AcceptanceDeadline(order *NormalizedOrder) AcceptanceDeadline

	// ParseWebhook decodes a raw webhook payload into an event
	ParseWebhook(headers map[string]string, payload []byte) (*WebhookEvent, error)
}

// AcceptOptions carries the optional hints sent with an acceptance
type AcceptOptions struct {
	EstimatedPrepMinutes int
	PickupAt             *time.Time
	Notes                string
}

// ---------------------------------------------------------------------------
// DenyReason is the closed set of rejection reasons
// ---------------------------------------------------------------------------

// DenyReason is a provider-agnostic rejection reason code
type DenyReason string

const (
	DenyReasonStoreClosed     DenyReason = "STORE_CLOSED"
	DenyReasonStoreBusy       DenyReason = "STORE_BUSY"
	DenyReasonItemUnavailable DenyReason = "ITEM_UNAVAILABLE"
	DenyReasonMissingInfo     DenyReason = "MISSING_INFO"
	DenyReasonAddressIssue    DenyReason = "ADDRESS_ISSUE"
	DenyReasonPricingIssue    DenyReason = "PRICING_ISSUE"
	DenyReasonOther           DenyReason = "OTHER"
)

// IsValid returns true if the reason is part of the closed set
func (r DenyReason) IsValid() bool {
	switch r {
	case DenyReasonStoreClosed, DenyReasonStoreBusy, DenyReasonItemUnavailable,
		DenyReasonMissingInfo, DenyReasonAddressIssue, DenyReasonPricingIssue, DenyReasonOther:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// AcceptanceDeadline
// ---------------------------------------------------------------------------

// DeadlineUnit is the unit of an acceptance deadline
type DeadlineUnit string

const (
	DeadlineUnitSeconds DeadlineUnit = "seconds"
	DeadlineUnitMinutes DeadlineUnit = "minutes"
	DeadlineUnitHours   DeadlineUnit = "hours"
)

// AcceptanceDeadline is how long the restaurant has to accept before the provider
// cancels the order. It is informational and not enforced by this system.
type AcceptanceDeadline struct {
	Timeout int          `json:"timeout"`
	Unit    DeadlineUnit `json:"unit"`
}

// Duration converts the deadline to a time.Duration
func (d AcceptanceDeadline) Duration() time.Duration {
	switch d.Unit {
	case DeadlineUnitHours:
		return time.Duration(d.Timeout) * time.Hour
	case DeadlineUnitMinutes:
		return time.Duration(d.Timeout) * time.Minute
	default:
		return time.Duration(d.Timeout) * time.Second
	}
}

// ---------------------------------------------------------------------------
// WebhookEvent
// ---------------------------------------------------------------------------

// WebhookEventType classifies an inbound webhook
type WebhookEventType string

const (
	WebhookEventOrderCreated   WebhookEventType = "order.created"
	WebhookEventOrderUpdated   WebhookEventType = "order.updated"
	WebhookEventOrderCancelled WebhookEventType = "order.cancelled"
	WebhookEventUnknown        WebhookEventType = "unknown"
)

// WebhookEvent is a decoded provider webhook.
// Order is nil when the provider only sends a notification; the full order must then be
// fetched with GetOrder.
type WebhookEvent struct {
	Type            WebhookEventType
	ProviderOrderID string
	StoreID         string
	ProviderStatus  string
	Status          OrderStatus
	Order           *NormalizedOrder
}
