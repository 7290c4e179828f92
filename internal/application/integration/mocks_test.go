package integration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/domain/order"
)

// MockIntegrationRepository is a mock implementation of integration.IntegrationRepository
type MockIntegrationRepository struct {
	mock.Mock
}

func (m *MockIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindByOrganizationAndProvider(ctx context.Context, organizationID uuid.UUID, provider integration.Provider) (*integration.Integration, error) {
	args := m.Called(ctx, organizationID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*integration.Integration, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) FindActiveByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*integration.Integration, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.Integration), args.Error(1)
}

func (m *MockIntegrationRepository) ListActiveOrganizations(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockIntegrationRepository) Save(ctx context.Context, i *integration.Integration) error {
	args := m.Called(ctx, i)
	return args.Error(0)
}

func (m *MockIntegrationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockOrderRepository is a mock implementation of order.Repository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByProviderOrderID(ctx context.Context, integrationID uuid.UUID, providerOrderID string) (*order.Order, error) {
	args := m.Called(ctx, integrationID, providerOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindUpdatedSince(ctx context.Context, organizationID uuid.UUID, statuses []order.Status, since time.Time) ([]*order.Order, error) {
	args := m.Called(ctx, organizationID, statuses, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateStatusIfCurrent(ctx context.Context, id uuid.UUID, expected []order.Status, next order.Status, rejectionReason string) error {
	args := m.Called(ctx, id, expected, next, rejectionReason)
	return args.Error(0)
}

// MockPlatform is a mock implementation of integration.DeliveryPlatform
type MockPlatform struct {
	mock.Mock
	provider integration.Provider
}

func (m *MockPlatform) Provider() integration.Provider {
	return m.provider
}

func (m *MockPlatform) Authenticate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPlatform) GetOrders(ctx context.Context, filter integration.OrderFilter) []integration.NormalizedOrder {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]integration.NormalizedOrder)
}

func (m *MockPlatform) GetOrder(ctx context.Context, providerOrderID string) (*integration.NormalizedOrder, error) {
	args := m.Called(ctx, providerOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.NormalizedOrder), args.Error(1)
}

func (m *MockPlatform) UpdateOrderStatus(ctx context.Context, providerOrderID string, status integration.OrderStatus) error {
	args := m.Called(ctx, providerOrderID, status)
	return args.Error(0)
}

func (m *MockPlatform) SyncMenu(ctx context.Context, menu *integration.Menu) (*integration.MenuSyncResult, error) {
	args := m.Called(ctx, menu)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.MenuSyncResult), args.Error(1)
}

func (m *MockPlatform) SetStoreAvailability(ctx context.Context, isOpen bool) error {
	args := m.Called(ctx, isOpen)
	return args.Error(0)
}

func (m *MockPlatform) AcceptOrder(ctx context.Context, providerOrderID string, opts integration.AcceptOptions) error {
	args := m.Called(ctx, providerOrderID, opts)
	return args.Error(0)
}

func (m *MockPlatform) DenyOrder(ctx context.Context, providerOrderID string, reason integration.DenyReason, explanation string) error {
	args := m.Called(ctx, providerOrderID, reason, explanation)
	return args.Error(0)
}

func (m *MockPlatform) AcceptanceDeadline(o *integration.NormalizedOrder) integration.AcceptanceDeadline {
	args := m.Called(o)
	return args.Get(0).(integration.AcceptanceDeadline)
}

func (m *MockPlatform) ParseWebhook(headers map[string]string, payload []byte) (*integration.WebhookEvent, error) {
	args := m.Called(headers, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.WebhookEvent), args.Error(1)
}

// stubClients hands out one platform for every integration and records evictions
type stubClients struct {
	mu       sync.Mutex
	platform integration.DeliveryPlatform
	err      error
	evicted  []integration.Provider
}

func (c *stubClients) ClientFor(_ context.Context, _ *integration.Integration) (integration.DeliveryPlatform, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.platform, nil
}

func (c *stubClients) Evict(_ uuid.UUID, provider integration.Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evicted = append(c.evicted, provider)
}

// MockJobs is a mock implementation of ConnectivityChecker and MenuSyncInvoker
type MockJobs struct {
	mock.Mock
}

func (m *MockJobs) CheckConnection(ctx context.Context, i *integration.Integration) (*JobResult, error) {
	args := m.Called(ctx, i)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*JobResult), args.Error(1)
}

func (m *MockJobs) SyncMenu(ctx context.Context, req MenuSyncRequest) (*JobResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*JobResult), args.Error(1)
}

// fakeLocker is a process-local order.Locker
type fakeLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[uuid.UUID]bool)}
}

func (l *fakeLocker) Acquire(_ context.Context, orderID uuid.UUID, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[orderID] {
		return nil, order.ErrLockNotAcquired
	}
	l.held[orderID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, orderID)
	}, nil
}

// Ensure mocks implement interfaces
var (
	_ integration.IntegrationRepository = (*MockIntegrationRepository)(nil)
	_ order.Repository                  = (*MockOrderRepository)(nil)
	_ integration.DeliveryPlatform      = (*MockPlatform)(nil)
	_ ClientProvider                    = (*stubClients)(nil)
	_ ConnectivityChecker               = (*MockJobs)(nil)
	_ MenuSyncInvoker                   = (*MockJobs)(nil)
	_ order.Locker                      = (*fakeLocker)(nil)
)
