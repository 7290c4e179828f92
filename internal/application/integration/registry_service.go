// Package integration orchestrates delivery-platform integrations: the stored records,
// the provider clients built from them, and the orders that flow through them.
package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/domain/order"
)

const defaultLockTTL = 45 * time.Second

// maxLockMargin caps the time kept back between a decision's deadline and lock expiry
const maxLockMargin = 5 * time.Second

// RegistryConfig holds the settings of the registry service
type RegistryConfig struct {
	PublicBaseURL string        // base of the webhook callback URLs
	LockTTL       time.Duration // upper bound on one accept/reject decision
}

// RegistryService owns the integration records and is the only writer of them.
// Every public method returns a ServiceResponse; business failures are never Go errors.
type RegistryService struct {
	integrations integration.IntegrationRepository
	orders       order.Repository
	clients      ClientProvider
	locker       order.Locker
	connectivity ConnectivityChecker
	menuSync     MenuSyncInvoker
	verifier     SignatureVerifier
	validate     *validator.Validate
	config       RegistryConfig
	logger       *zap.Logger
	now          func() time.Time
}

// RegistryOption is a functional option for configuring the service
type RegistryOption func(*RegistryService)

// WithConnectivityChecker sets the external connectivity test
func WithConnectivityChecker(c ConnectivityChecker) RegistryOption {
	return func(s *RegistryService) {
		s.connectivity = c
	}
}

// WithMenuSyncInvoker sets the external menu-sync job
func WithMenuSyncInvoker(m MenuSyncInvoker) RegistryOption {
	return func(s *RegistryService) {
		s.menuSync = m
	}
}

// WithSignatureVerifier enables webhook signature checks for integrations with a secret
func WithSignatureVerifier(v SignatureVerifier) RegistryOption {
	return func(s *RegistryService) {
		s.verifier = v
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) RegistryOption {
	return func(s *RegistryService) {
		s.now = now
	}
}

// NewRegistryService creates a new RegistryService
func NewRegistryService(
	integrations integration.IntegrationRepository,
	orders order.Repository,
	clients ClientProvider,
	locker order.Locker,
	config RegistryConfig,
	logger *zap.Logger,
	opts ...RegistryOption,
) *RegistryService {
	if config.LockTTL <= 0 {
		config.LockTTL = defaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RegistryService{
		integrations: integrations,
		orders:       orders,
		clients:      clients,
		locker:       locker,
		validate:     validator.New(),
		config:       config,
		logger:       logger.Named("integration.registry"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Integration records
// ---------------------------------------------------------------------------

// Upsert creates or updates the integration of an organization with a provider.
// The record is always left inactive until a connectivity test succeeds.
func (s *RegistryService) Upsert(ctx context.Context, in UpsertIntegrationInput) ServiceResponse[IntegrationResponse] {
	if err := s.validate.Struct(in); err != nil {
		return FailFrom[IntegrationResponse](err)
	}
	provider, err := integration.ParseProvider(in.Provider)
	if err != nil {
		return FailFrom[IntegrationResponse](err)
	}

	record, err := s.integrations.FindByOrganizationAndProvider(ctx, in.OrganizationID, provider)
	switch {
	case errors.Is(err, integration.ErrIntegrationNotFound):
		record, err = integration.NewIntegration(in.OrganizationID, provider, in.StoreID,
			in.Credentials, in.Settings, s.config.PublicBaseURL)
	case err == nil:
		err = record.UpdateConnection(in.StoreID, in.Credentials, in.Settings, s.config.PublicBaseURL)
	}
	if err != nil {
		return FailFrom[IntegrationResponse](err)
	}

	if err := s.integrations.Save(ctx, record); err != nil {
		return FailFrom[IntegrationResponse](err)
	}
	s.clients.Evict(record.OrganizationID, record.Provider)

	s.logger.Info("integration saved",
		zap.String("integration_id", record.ID.String()),
		zap.String("organization_id", record.OrganizationID.String()),
		zap.String("provider", string(record.Provider)))
	return OK(ToIntegrationResponse(record))
}

// Get returns one integration
func (s *RegistryService) Get(ctx context.Context, id uuid.UUID) ServiceResponse[IntegrationResponse] {
	record, err := s.integrations.FindByID(ctx, id)
	if err != nil {
		return FailFrom[IntegrationResponse](err)
	}
	return OK(ToIntegrationResponse(record))
}

// ListForOrganization returns every integration of an organization
func (s *RegistryService) ListForOrganization(ctx context.Context, organizationID uuid.UUID) ServiceResponse[[]IntegrationResponse] {
	records, err := s.integrations.FindByOrganization(ctx, organizationID)
	if err != nil {
		return FailFrom[[]IntegrationResponse](err)
	}
	out := make([]IntegrationResponse, 0, len(records))
	for _, r := range records {
		out = append(out, ToIntegrationResponse(r))
	}
	return OK(out)
}

// ToggleActive sets the active flag of an integration
func (s *RegistryService) ToggleActive(ctx context.Context, id uuid.UUID, active bool) ServiceResponse[IntegrationResponse] {
	record, err := s.integrations.FindByID(ctx, id)
	if err != nil {
		return FailFrom[IntegrationResponse](err)
	}
	record.SetActive(active)
	if err := s.integrations.Save(ctx, record); err != nil {
		return FailFrom[IntegrationResponse](err)
	}
	if !active {
		s.clients.Evict(record.OrganizationID, record.Provider)
	}

	s.logger.Info("integration active flag changed",
		zap.String("integration_id", record.ID.String()),
		zap.Bool("active", active))
	return OK(ToIntegrationResponse(record))
}

// Delete removes an integration
func (s *RegistryService) Delete(ctx context.Context, id uuid.UUID) ServiceResponse[struct{}] {
	record, err := s.integrations.FindByID(ctx, id)
	if err != nil {
		return FailFrom[struct{}](err)
	}
	if err := s.integrations.Delete(ctx, id); err != nil {
		return FailFrom[struct{}](err)
	}
	s.clients.Evict(record.OrganizationID, record.Provider)

	s.logger.Info("integration deleted",
		zap.String("integration_id", id.String()),
		zap.String("provider", string(record.Provider)))
	return OK(struct{}{})
}

// TestConnection runs the external connectivity test. A successful test activates the record;
// the test time is stamped either way.
func (s *RegistryService) TestConnection(ctx context.Context, id uuid.UUID) ServiceResponse[ConnectionTestResult] {
	if s.connectivity == nil {
		return Fail[ConnectionTestResult](CodeJobFailed, "connectivity checker is not configured", nil)
	}
	record, err := s.integrations.FindByID(ctx, id)
	if err != nil {
		return FailFrom[ConnectionTestResult](err)
	}

	result, err := s.connectivity.CheckConnection(ctx, record)
	if err != nil {
		s.logger.Warn("connectivity test invocation failed",
			zap.String("integration_id", id.String()),
			zap.Error(err))
		return Fail[ConnectionTestResult](CodeJobFailed, err.Error(), nil)
	}

	testedAt := s.now()
	record.RecordConnectionTest(result.Success, testedAt)
	if err := s.integrations.Save(ctx, record); err != nil {
		return FailFrom[ConnectionTestResult](err)
	}
	if result.Success {
		s.clients.Evict(record.OrganizationID, record.Provider)
	}

	s.logger.Info("connectivity test finished",
		zap.String("integration_id", id.String()),
		zap.String("provider", string(record.Provider)),
		zap.Bool("connected", result.Success),
		zap.String("message", result.Message))
	return OK(ConnectionTestResult{
		Connected: result.Success,
		Message:   result.Message,
		Details:   result.Details,
		TestedAt:  testedAt,
	})
}

// ---------------------------------------------------------------------------
// Menus and store state
// ---------------------------------------------------------------------------

// SyncMenuToAllPlatforms runs the menu-sync job for every active integration of an organization
func (s *RegistryService) SyncMenuToAllPlatforms(ctx context.Context, organizationID uuid.UUID) ServiceResponse[MenuSyncSummary] {
	records, err := s.integrations.FindActiveByOrganization(ctx, organizationID)
	if err != nil {
		return FailFrom[MenuSyncSummary](err)
	}
	if len(records) == 0 {
		return Fail[MenuSyncSummary](CodeIntegrationInactive, "organization has no active delivery integrations", nil)
	}
	return s.syncMenus(ctx, MenuSyncRequest{OrganizationID: organizationID}, records)
}

// SyncMenuToPlatform runs the menu-sync job for one integration
func (s *RegistryService) SyncMenuToPlatform(ctx context.Context, id uuid.UUID) ServiceResponse[MenuSyncSummary] {
	record, err := s.integrations.FindByID(ctx, id)
	if err != nil {
		return FailFrom[MenuSyncSummary](err)
	}
	if !record.IsActive {
		return FailFrom[MenuSyncSummary](integration.ErrIntegrationInactive)
	}
	return s.syncMenus(ctx, MenuSyncRequest{
		OrganizationID: record.OrganizationID,
		IntegrationID:  &record.ID,
		Provider:       record.Provider,
	}, []*integration.Integration{record})
}

// syncMenus invokes the job and folds its per-provider details into a summary.
// The job reports each provider under details[<provider>] as {success, message};
// providers it does not mention take the overall result.
func (s *RegistryService) syncMenus(ctx context.Context, req MenuSyncRequest, records []*integration.Integration) ServiceResponse[MenuSyncSummary] {
	if s.menuSync == nil {
		return Fail[MenuSyncSummary](CodeJobFailed, "menu sync job is not configured", nil)
	}
	result, err := s.menuSync.SyncMenu(ctx, req)
	if err != nil {
		s.logger.Warn("menu sync invocation failed",
			zap.String("organization_id", req.OrganizationID.String()),
			zap.Error(err))
		return Fail[MenuSyncSummary](CodeJobFailed, err.Error(), nil)
	}

	summary := MenuSyncSummary{Message: result.Message}
	syncedAt := s.now()
	for _, record := range records {
		ok, message := providerOutcome(result, record.Provider)
		summary.Results = append(summary.Results, ProviderSyncResult{
			IntegrationID: record.ID,
			Provider:      record.Provider,
			Success:       ok,
			Message:       message,
		})
		if !ok {
			summary.Failed++
			continue
		}
		summary.Succeeded++
		record.RecordMenuSync(syncedAt)
		if err := s.integrations.Save(ctx, record); err != nil {
			s.logger.Warn("failed to stamp menu sync time",
				zap.String("integration_id", record.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("menu sync finished",
		zap.String("organization_id", req.OrganizationID.String()),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))

	if summary.Succeeded == 0 {
		message := result.Message
		if message == "" {
			message = "menu sync failed for every provider"
		}
		return ServiceResponse[MenuSyncSummary]{
			Data:      summary,
			Error:     message,
			ErrorCode: CodeJobFailed,
		}
	}
	return OK(summary)
}

func providerOutcome(result *JobResult, provider integration.Provider) (bool, string) {
	entry, ok := result.Details[string(provider)].(map[string]any)
	if !ok {
		return result.Success, result.Message
	}
	success, ok := entry["success"].(bool)
	if !ok {
		success = result.Success
	}
	message, _ := entry["message"].(string)
	if message == "" {
		if e, ok := entry["error"].(string); ok {
			message = e
		}
	}
	return success, message
}

// PushMenu sends a built menu through the provider client, replacing the provider's menu
func (s *RegistryService) PushMenu(ctx context.Context, id uuid.UUID, menu *integration.Menu) ServiceResponse[MenuPushResult] {
	if err := menu.Validate(); err != nil {
		return FailFrom[MenuPushResult](err)
	}
	record, client, err := s.activeClient(ctx, id)
	if err != nil {
		return FailFrom[MenuPushResult](err)
	}

	result, err := client.SyncMenu(ctx, menu)
	if err != nil {
		return FailFrom[MenuPushResult](err)
	}

	syncedAt := s.now()
	record.RecordMenuSync(syncedAt)
	if err := s.integrations.Save(ctx, record); err != nil {
		s.logger.Warn("failed to stamp menu sync time",
			zap.String("integration_id", record.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("menu pushed",
		zap.String("integration_id", record.ID.String()),
		zap.String("provider", string(record.Provider)),
		zap.Int("items", result.ItemCount))
	return OK(MenuPushResult{
		IntegrationID: record.ID,
		Provider:      record.Provider,
		ItemCount:     result.ItemCount,
		ItemMappings:  result.ItemMappings,
		SyncedAt:      syncedAt,
	})
}

// SetStoreAvailability opens or closes the store on one marketplace
func (s *RegistryService) SetStoreAvailability(ctx context.Context, id uuid.UUID, isOpen bool) ServiceResponse[AvailabilityResult] {
	record, client, err := s.activeClient(ctx, id)
	if err != nil {
		return FailFrom[AvailabilityResult](err)
	}
	if err := client.SetStoreAvailability(ctx, isOpen); err != nil {
		return FailFrom[AvailabilityResult](err)
	}

	s.logger.Info("store availability changed",
		zap.String("integration_id", record.ID.String()),
		zap.String("provider", string(record.Provider)),
		zap.Bool("open", isOpen))
	return OK(AvailabilityResult{IntegrationID: record.ID, Provider: record.Provider, IsOpen: isOpen})
}

// activeClient loads an active integration and its provider client
func (s *RegistryService) activeClient(ctx context.Context, id uuid.UUID) (*integration.Integration, integration.DeliveryPlatform, error) {
	record, err := s.integrations.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !record.IsActive {
		return nil, nil, fmt.Errorf("%w: %s", integration.ErrIntegrationInactive, record.Provider)
	}
	client, err := s.clients.ClientFor(ctx, record)
	if err != nil {
		return nil, nil, err
	}
	return record, client, nil
}
