package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToProviderStatus(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		status   OrderStatus
		expected string
	}{
		{"ubereats pending", ProviderUberEats, OrderStatusPending, "CREATED"},
		{"ubereats ready", ProviderUberEats, OrderStatusReady, "READY_FOR_PICKUP"},
		{"deliveroo preparing", ProviderDeliveroo, OrderStatusPreparing, "IN_KITCHEN"},
		{"deliveroo completed", ProviderDeliveroo, OrderStatusCompleted, "COLLECTED"},
		{"justeat accepted", ProviderJustEat, OrderStatusAccepted, "Accepted"},
		{"justeat cancelled", ProviderJustEat, OrderStatusCancelled, "Cancelled"},
		{"unknown status falls back to internal token", ProviderUberEats, OrderStatus("on_hold"), "on_hold"},
		{"unknown provider falls back to internal token", Provider("other"), OrderStatusReady, "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToProviderStatus(tt.provider, tt.status))
		})
	}
}

func TestFromProviderStatus(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		token    string
		expected OrderStatus
	}{
		{"ubereats created", ProviderUberEats, "CREATED", OrderStatusPending},
		{"ubereats denied alias", ProviderUberEats, "DENIED", OrderStatusCancelled},
		{"deliveroo case-insensitive", ProviderDeliveroo, "in_kitchen", OrderStatusPreparing},
		{"deliveroo rejected alias", ProviderDeliveroo, "REJECTED", OrderStatusCancelled},
		{"justeat acknowledged alias", ProviderJustEat, "Acknowledged", OrderStatusAccepted},
		{"justeat delivered", ProviderJustEat, "Delivered", OrderStatusCompleted},
		{"unknown token falls back to pending", ProviderJustEat, "SomethingNew", OrderStatusPending},
		{"empty token falls back to pending", ProviderUberEats, "  ", OrderStatusPending},
		{"token of another provider is unknown", ProviderUberEats, "IN_KITCHEN", OrderStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FromProviderStatus(tt.provider, tt.token))
		})
	}
}

func TestStatusTable_RoundTrip(t *testing.T) {
	for _, provider := range AllProviders() {
		for _, status := range AllOrderStatuses() {
			token := ToProviderStatus(provider, status)
			assert.Equal(t, status, FromProviderStatus(provider, token),
				"provider %s status %s token %s", provider, status, token)
		}
	}
}
