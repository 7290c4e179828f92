package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// OrderStatus is the normalized order status vocabulary
// ---------------------------------------------------------------------------

// OrderStatus represents the provider-agnostic order status
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// AllOrderStatuses returns every normalized status in lifecycle order
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusAccepted,
		OrderStatusPreparing,
		OrderStatusReady,
		OrderStatusCompleted,
		OrderStatusCancelled,
	}
}

// IsValid returns true if the status is part of the normalized vocabulary
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusPreparing,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s OrderStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// NormalizedOrder value object
// ---------------------------------------------------------------------------

// NormalizedOrder is the provider-agnostic representation of an inbound order.
// ScheduledFor is the requested delivery or pickup time, nil for ASAP orders.
// Every monetary field is in major currency units regardless of the provider's wire format.
type NormalizedOrder struct {
	ProviderOrderID string
	DisplayID       string
	Provider        Provider
	StoreID         string
	Status          OrderStatus
	ProviderStatus  string
	Customer        Customer
	Items           []OrderItem
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	DeliveryFee     decimal.Decimal
	ServiceFee      decimal.Decimal
	Tip             decimal.Decimal
	Total           decimal.Decimal
	Currency        string
	Instructions    string
	DeliveryAddress *Address
	PlacedAt        time.Time
	ScheduledFor    *time.Time
	RawData         string
}

// Customer holds the customer contact details exposed by the provider
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// OrderItem represents one line of a normalized order
type OrderItem struct {
	ExternalID   string          `json:"external_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Instructions string          `json:"instructions,omitempty"`
	Modifiers    []OrderModifier `json:"modifiers,omitempty"`
}

// OrderModifier is a selected modifier option on an order line
type OrderModifier struct {
	ExternalID string          `json:"external_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// Address is a delivery address
type Address struct {
	Street     string  `json:"street"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
}

// ItemCount returns the total quantity across all lines
func (o *NormalizedOrder) ItemCount() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// OrderFilter narrows GetOrders results.
// ProviderStatus matches the provider's own token (case-insensitive), which tells apart
// aliases that normalize to the same Status, e.g. Uber Eats DENIED and CANCELED.
type OrderFilter struct {
	Status         OrderStatus
	ProviderStatus string
	Since          time.Time
	Limit          int
}
