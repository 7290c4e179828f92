package handler

import (
	"context"
	"time"

	"github.com/google/uuid"

	integrationapp "github.com/pos/backend/internal/application/integration"
	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/webhook"
)

// IntegrationService is the registry surface behind /integrations
type IntegrationService interface {
	Upsert(ctx context.Context, in integrationapp.UpsertIntegrationInput) integrationapp.ServiceResponse[integrationapp.IntegrationResponse]
	Get(ctx context.Context, id uuid.UUID) integrationapp.ServiceResponse[integrationapp.IntegrationResponse]
	ListForOrganization(ctx context.Context, organizationID uuid.UUID) integrationapp.ServiceResponse[[]integrationapp.IntegrationResponse]
	ToggleActive(ctx context.Context, id uuid.UUID, active bool) integrationapp.ServiceResponse[integrationapp.IntegrationResponse]
	Delete(ctx context.Context, id uuid.UUID) integrationapp.ServiceResponse[struct{}]
	TestConnection(ctx context.Context, id uuid.UUID) integrationapp.ServiceResponse[integrationapp.ConnectionTestResult]
	SyncMenuToAllPlatforms(ctx context.Context, organizationID uuid.UUID) integrationapp.ServiceResponse[integrationapp.MenuSyncSummary]
	SyncMenuToPlatform(ctx context.Context, id uuid.UUID) integrationapp.ServiceResponse[integrationapp.MenuSyncSummary]
	PushMenu(ctx context.Context, id uuid.UUID, menu *integration.Menu) integrationapp.ServiceResponse[integrationapp.MenuPushResult]
	SetStoreAvailability(ctx context.Context, id uuid.UUID, isOpen bool) integrationapp.ServiceResponse[integrationapp.AvailabilityResult]
	ReconcileOrders(ctx context.Context, organizationID uuid.UUID, since time.Time) integrationapp.ServiceResponse[integrationapp.ReconcileReport]
}

// OrderService is the order decision surface behind /orders
type OrderService interface {
	AcceptOrder(ctx context.Context, orderID uuid.UUID, in integrationapp.AcceptOrderInput) integrationapp.ServiceResponse[integrationapp.OrderResponse]
	RejectOrder(ctx context.Context, orderID uuid.UUID, in integrationapp.RejectOrderInput) integrationapp.ServiceResponse[integrationapp.OrderResponse]
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) integrationapp.ServiceResponse[integrationapp.StatusUpdateResult]
	OrderDeadline(ctx context.Context, orderID uuid.UUID) integrationapp.ServiceResponse[integrationapp.DeadlineResponse]
}

// WebhookQueue stores inbound webhooks and manages exhausted entries
type WebhookQueue interface {
	Enqueue(ctx context.Context, provider integration.Provider, organizationID string, headers map[string]string, payload []byte) (*integration.WebhookEntry, error)
	ListExhausted(ctx context.Context, page, pageSize int) ([]*integration.WebhookEntry, int64, error)
	Requeue(ctx context.Context, id uuid.UUID) (*integration.WebhookEntry, error)
}

// BatchRunner processes one batch of due webhooks
type BatchRunner interface {
	ProcessDue(ctx context.Context) (webhook.BatchResult, error)
}
