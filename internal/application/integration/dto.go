package integration

import (
	"time"

	"github.com/google/uuid"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/domain/order"
)

// redacted replaces secret setting values in responses
const redacted = "********"

// ---------------------------------------------------------------------------
// Integration DTOs
// ---------------------------------------------------------------------------

// IntegrationResponse represents an integration in API responses.
// Credentials are never returned.
type IntegrationResponse struct {
	ID               uuid.UUID            `json:"id"`
	OrganizationID   uuid.UUID            `json:"organization_id"`
	Provider         integration.Provider `json:"provider"`
	ProviderName     string               `json:"provider_name"`
	StoreID          string               `json:"store_id"`
	Settings         map[string]any       `json:"settings"`
	WebhookURL       string               `json:"webhook_url"`
	IsActive         bool                 `json:"is_active"`
	HasCredentials   bool                 `json:"has_credentials"`
	LastSyncAt       *time.Time           `json:"last_sync_at,omitempty"`
	LastConnectionAt *time.Time           `json:"last_connection_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ToIntegrationResponse converts a domain Integration to its response DTO
func ToIntegrationResponse(i *integration.Integration) IntegrationResponse {
	settings := make(map[string]any, len(i.Settings))
	for k, v := range i.Settings {
		settings[k] = v
	}
	if _, ok := settings[integration.SettingWebhookSecret]; ok {
		settings[integration.SettingWebhookSecret] = redacted
	}

	return IntegrationResponse{
		ID:               i.ID,
		OrganizationID:   i.OrganizationID,
		Provider:         i.Provider,
		ProviderName:     i.Provider.DisplayName(),
		StoreID:          i.StoreID,
		Settings:         settings,
		WebhookURL:       i.WebhookURL,
		IsActive:         i.IsActive,
		HasCredentials:   len(i.Credentials) > 0,
		LastSyncAt:       i.LastSyncAt,
		LastConnectionAt: i.LastConnectionAt,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}
}

// ConnectionTestResult is the outcome of a connectivity test
type ConnectionTestResult struct {
	Connected bool           `json:"connected"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	TestedAt  time.Time      `json:"tested_at"`
}

// ProviderSyncResult is the menu-sync outcome for one integration
type ProviderSyncResult struct {
	IntegrationID uuid.UUID            `json:"integration_id"`
	Provider      integration.Provider `json:"provider"`
	Success       bool                 `json:"success"`
	Message       string               `json:"message,omitempty"`
}

// MenuSyncSummary aggregates per-provider menu-sync results
type MenuSyncSummary struct {
	Results   []ProviderSyncResult `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Message   string               `json:"message,omitempty"`
}

// MenuPushResult is the outcome of pushing a built menu through a provider client
type MenuPushResult struct {
	IntegrationID uuid.UUID            `json:"integration_id"`
	Provider      integration.Provider `json:"provider"`
	ItemCount     int                  `json:"item_count"`
	ItemMappings  map[string]string    `json:"item_mappings"`
	SyncedAt      time.Time            `json:"synced_at"`
}

// AvailabilityResult is the store state pushed to a provider
type AvailabilityResult struct {
	IntegrationID uuid.UUID            `json:"integration_id"`
	Provider      integration.Provider `json:"provider"`
	IsOpen        bool                 `json:"is_open"`
}

// ---------------------------------------------------------------------------
// Order DTOs
// ---------------------------------------------------------------------------

// OrderResponse is the part of an internal order the delivery workflow exposes
type OrderResponse struct {
	ID              uuid.UUID            `json:"id"`
	OrganizationID  uuid.UUID            `json:"organization_id"`
	IntegrationID   *uuid.UUID           `json:"integration_id,omitempty"`
	Provider        integration.Provider `json:"provider"`
	ProviderOrderID string               `json:"provider_order_id"`
	DisplayID       string               `json:"display_id,omitempty"`
	Status          order.Status         `json:"status"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
	Total           string               `json:"total"`
	Currency        string               `json:"currency"`
	PlacedAt        time.Time            `json:"placed_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// ToOrderResponse converts a domain Order to its response DTO
func ToOrderResponse(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		OrganizationID:  o.OrganizationID,
		IntegrationID:   o.IntegrationID,
		Provider:        o.Provider,
		ProviderOrderID: o.ProviderOrderID,
		DisplayID:       o.DisplayID,
		Status:          o.Status,
		RejectionReason: o.RejectionReason,
		Total:           o.Total.StringFixed(2),
		Currency:        o.Currency,
		PlacedAt:        o.PlacedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// StatusUpdateResult is the outcome of an internal status change.
// ProviderSynced is false when the best-effort provider notification failed.
type StatusUpdateResult struct {
	Order          OrderResponse `json:"order"`
	Changed        bool          `json:"changed"`
	ProviderSynced bool          `json:"provider_synced"`
	ProviderError  string        `json:"provider_error,omitempty"`
}

// DeadlineResponse is the acceptance window of an order
type DeadlineResponse struct {
	OrderID          uuid.UUID                `json:"order_id"`
	Provider         integration.Provider     `json:"provider"`
	Timeout          int                      `json:"timeout"`
	Unit             integration.DeadlineUnit `json:"unit"`
	AcceptBy         time.Time                `json:"accept_by"`
	RemainingSeconds int64                    `json:"remaining_seconds"`
	Expired          bool                     `json:"expired"`
}

// ReconcileReport lists orders whose provider status disagrees with the internal one
type ReconcileReport struct {
	OrganizationID uuid.UUID     `json:"organization_id"`
	Since          time.Time     `json:"since"`
	Checked        int           `json:"checked"`
	Drift          []order.Drift `json:"drift"`
	Errors         []string      `json:"errors,omitempty"`
}

// WebhookResult describes what a processed webhook did to the internal order
type WebhookResult struct {
	Event           integration.WebhookEventType `json:"event"`
	ProviderOrderID string                       `json:"provider_order_id"`
	OrderID         uuid.UUID                    `json:"order_id,omitempty"`
	Action          string                       `json:"action"`
}

// Webhook result actions
const (
	WebhookActionCreated   = "created"
	WebhookActionUpdated   = "updated"
	WebhookActionUnchanged = "unchanged"
	WebhookActionIgnored   = "ignored"
)

// ---------------------------------------------------------------------------
// Inputs
// ---------------------------------------------------------------------------

// UpsertIntegrationInput is the input of Upsert
type UpsertIntegrationInput struct {
	OrganizationID uuid.UUID      `json:"organization_id" validate:"required"`
	Provider       string         `json:"provider" validate:"required"`
	StoreID        string         `json:"store_id" validate:"required,max=100"`
	Credentials    map[string]any `json:"credentials" validate:"required"`
	Settings       map[string]any `json:"settings"`
}

// AcceptOrderInput carries the optional hints sent with an acceptance
type AcceptOrderInput struct {
	EstimatedPrepMinutes int        `json:"estimated_prep_minutes" validate:"omitempty,min=1,max=240"`
	PickupAt             *time.Time `json:"pickup_at"`
	Notes                string     `json:"notes" validate:"max=500"`
}

// RejectOrderInput is the input of RejectOrder
type RejectOrderInput struct {
	Reason      string `json:"reason" validate:"required,oneof=STORE_CLOSED STORE_BUSY ITEM_UNAVAILABLE MISSING_INFO ADDRESS_ISSUE PRICING_ISSUE OTHER"`
	Explanation string `json:"explanation" validate:"max=500"`
}
