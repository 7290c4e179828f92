package integration

import (
	"context"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/integration"
)

// ClientProvider hands out provider clients for stored integration records
type ClientProvider interface {
	ClientFor(ctx context.Context, i *integration.Integration) (integration.DeliveryPlatform, error)
	// Evict drops a cached client after its credentials changed or the record was removed
	Evict(organizationID uuid.UUID, provider integration.Provider)
}

// JobResult is the reply of an externally deployed job
type JobResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ConnectivityChecker runs the external connectivity test for one integration
type ConnectivityChecker interface {
	CheckConnection(ctx context.Context, i *integration.Integration) (*JobResult, error)
}

// MenuSyncRequest identifies the menus the batch job should push.
// An empty Provider means every active integration of the organization.
type MenuSyncRequest struct {
	OrganizationID uuid.UUID            `json:"organization_id"`
	IntegrationID  *uuid.UUID           `json:"integration_id,omitempty"`
	Provider       integration.Provider `json:"provider,omitempty"`
}

// MenuSyncInvoker triggers the external batch menu-sync job
type MenuSyncInvoker interface {
	SyncMenu(ctx context.Context, req MenuSyncRequest) (*JobResult, error)
}

// SignatureVerifier checks a webhook signature against the integration's shared secret
type SignatureVerifier interface {
	Verify(provider integration.Provider, headers map[string]string, payload []byte, secret string) error
}
