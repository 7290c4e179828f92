package delivery

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/metrics"
)

// Factory builds provider clients from stored integration data
type Factory struct {
	cfg  Config
	deps clientDeps
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithClock overrides the clock used for token expiry and timestamps
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) {
		f.deps.now = now
	}
}

// WithMetrics records provider calls on m
func WithMetrics(m *metrics.Metrics) FactoryOption {
	return func(f *Factory) {
		f.deps.metrics = m
	}
}

// NewFactory creates a client factory
func NewFactory(cfg Config, logger *zap.Logger, opts ...FactoryOption) *Factory {
	f := &Factory{
		cfg: cfg,
		deps: clientDeps{
			timeout: cfg.Timeout(),
			logger:  logger,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.deps = f.deps.withDefaults()
	return f
}

// Create returns a new client for provider. Missing credential fields are read as empty
// strings, so an incomplete integration yields a client that fails authentication.
// An unknown provider is a programming or configuration error and fails immediately.
func (f *Factory) Create(provider integration.Provider, storeID string, credentials integration.Credentials) (integration.DeliveryPlatform, error) {
	ep := f.cfg.Endpoints(provider)
	switch provider {
	case integration.ProviderUberEats:
		return newUberEatsClient(storeID, credentials, ep, f.deps), nil
	case integration.ProviderDeliveroo:
		return newDeliverooClient(storeID, credentials, ep, f.deps), nil
	case integration.ProviderJustEat:
		return newJustEatClient(storeID, credentials, ep, f.deps), nil
	default:
		return nil, fmt.Errorf("%w: %q", integration.ErrUnsupportedProvider, provider)
	}
}

// CreateFor builds a client from an integration record
func (f *Factory) CreateFor(i *integration.Integration) (integration.DeliveryPlatform, error) {
	return f.Create(i.Provider, i.StoreID, i.Credentials)
}
