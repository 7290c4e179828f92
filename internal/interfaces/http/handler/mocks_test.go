package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	integrationapp "github.com/pos/backend/internal/application/integration"
	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/webhook"
	"github.com/pos/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockIntegrationService struct {
	mock.Mock
}

func (m *mockIntegrationService) Upsert(ctx context.Context, in integrationapp.UpsertIntegrationInput) integrationapp.ServiceResponse[integrationapp.IntegrationResponse] {
	return m.Called(ctx, in).Get(0).(integrationapp.ServiceResponse[integrationapp.IntegrationResponse])
}

func (m *mockIntegrationService) Get(ctx context.Context, id uuid.UUID) integrationapp.ServiceResponse[integrationapp.IntegrationResponse] {
	return m.Called(ctx, id).Get(0).(integrationapp.ServiceResponse[integrationapp.IntegrationResponse])
}

func (m *mockIntegrationService) ListForOrganization(ctx context.Context, organizationID uuid.UUID) integrationapp.ServiceResponse[[]integrationapp.IntegrationResponse] {
	return m.Called(ctx, organizationID).Get(0).(integrationapp.ServiceResponse[[]integrationapp.IntegrationResponse])
}

func (m *mockIntegrationService) ToggleActive(ctx context.Context, id uuid.UUID, active bool) integrationapp.ServiceResponse[integrationapp.IntegrationResponse] {
	return m.Called(ctx, id, active).Get(0).(integrationapp.ServiceResponse[integrationapp.IntegrationResponse])
}

func (m *mockIntegrationService) Delete(ctx context.Context, id uuid.UUID) integrationapp.ServiceResponse[struct{}] {
	return m.Called(ctx, id).Get(0).(integrationapp.ServiceResponse[struct{}])
}

func (m *mockIntegrationService) TestConnection(ctx context.Context, id uuid.UUID) integrationapp.ServiceResponse[integrationapp.ConnectionTestResult] {
	return m.Called(ctx, id).Get(0).(integrationapp.ServiceResponse[integrationapp.ConnectionTestResult])
}

func (m *mockIntegrationService) SyncMenuToAllPlatforms(ctx context.Context, organizationID uuid.UUID) integrationapp.ServiceResponse[integrationapp.MenuSyncSummary] {
	return m.Called(ctx, organizationID).Get(0).(integrationapp.ServiceResponse[integrationapp.MenuSyncSummary])
}

func (m *mockIntegrationService) SyncMenuToPlatform(ctx context.Context, id uuid.UUID) integrationapp.ServiceResponse[integrationapp.MenuSyncSummary] {
	return m.Called(ctx, id).Get(0).(integrationapp.ServiceResponse[integrationapp.MenuSyncSummary])
}

func (m *mockIntegrationService) PushMenu(ctx context.Context, id uuid.UUID, menu *integration.Menu) integrationapp.ServiceResponse[integrationapp.MenuPushResult] {
	return m.Called(ctx, id, menu).Get(0).(integrationapp.ServiceResponse[integrationapp.MenuPushResult])
}

func (m *mockIntegrationService) SetStoreAvailability(ctx context.Context, id uuid.UUID, isOpen bool) integrationapp.ServiceResponse[integrationapp.AvailabilityResult] {
	return m.Called(ctx, id, isOpen).Get(0).(integrationapp.ServiceResponse[integrationapp.AvailabilityResult])
}

func (m *mockIntegrationService) ReconcileOrders(ctx context.Context, organizationID uuid.UUID, since time.Time) integrationapp.ServiceResponse[integrationapp.ReconcileReport] {
	return m.Called(ctx, organizationID, since).Get(0).(integrationapp.ServiceResponse[integrationapp.ReconcileReport])
}

type mockOrderService struct {
	mock.Mock
}

func (m *mockOrderService) AcceptOrder(ctx context.Context, orderID uuid.UUID, in integrationapp.AcceptOrderInput) integrationapp.ServiceResponse[integrationapp.OrderResponse] {
	return m.Called(ctx, orderID, in).Get(0).(integrationapp.ServiceResponse[integrationapp.OrderResponse])
}

func (m *mockOrderService) RejectOrder(ctx context.Context, orderID uuid.UUID, in integrationapp.RejectOrderInput) integrationapp.ServiceResponse[integrationapp.OrderResponse] {
	return m.Called(ctx, orderID, in).Get(0).(integrationapp.ServiceResponse[integrationapp.OrderResponse])
}

func (m *mockOrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) integrationapp.ServiceResponse[integrationapp.StatusUpdateResult] {
	return m.Called(ctx, orderID, status).Get(0).(integrationapp.ServiceResponse[integrationapp.StatusUpdateResult])
}

func (m *mockOrderService) OrderDeadline(ctx context.Context, orderID uuid.UUID) integrationapp.ServiceResponse[integrationapp.DeadlineResponse] {
	return m.Called(ctx, orderID).Get(0).(integrationapp.ServiceResponse[integrationapp.DeadlineResponse])
}

type mockWebhookQueue struct {
	mock.Mock
}

func (m *mockWebhookQueue) Enqueue(ctx context.Context, provider integration.Provider, organizationID string, headers map[string]string, payload []byte) (*integration.WebhookEntry, error) {
	args := m.Called(ctx, provider, organizationID, headers, payload)
	entry, _ := args.Get(0).(*integration.WebhookEntry)
	return entry, args.Error(1)
}

func (m *mockWebhookQueue) ListExhausted(ctx context.Context, page, pageSize int) ([]*integration.WebhookEntry, int64, error) {
	args := m.Called(ctx, page, pageSize)
	entries, _ := args.Get(0).([]*integration.WebhookEntry)
	return entries, args.Get(1).(int64), args.Error(2)
}

func (m *mockWebhookQueue) Requeue(ctx context.Context, id uuid.UUID) (*integration.WebhookEntry, error) {
	args := m.Called(ctx, id)
	entry, _ := args.Get(0).(*integration.WebhookEntry)
	return entry, args.Error(1)
}

type mockBatchRunner struct {
	mock.Mock
}

func (m *mockBatchRunner) ProcessDue(ctx context.Context) (webhook.BatchResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(webhook.BatchResult), args.Error(1)
}

// routes is implemented by every handler mounted under the API group
type routes interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

func newTestEngine(h routes) *gin.Engine {
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}
