package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/domain/order"
)

func newTestOrder(record *integration.Integration, status order.Status) *order.Order {
	intID := record.ID
	return &order.Order{
		ID:              uuid.New(),
		OrganizationID:  record.OrganizationID,
		IntegrationID:   &intID,
		Provider:        record.Provider,
		ProviderOrderID: "po-" + uuid.NewString()[:8],
		Status:          status,
		Total:           decimal.RequireFromString("23.40"),
		Currency:        "GBP",
		PlacedAt:        testNow.Add(-2 * time.Minute),
		CreatedAt:       testNow.Add(-2 * time.Minute),
		UpdatedAt:       testNow.Add(-2 * time.Minute),
	}
}

// ---------------------------------------------------------------------------
// AcceptOrder / RejectOrder
// ---------------------------------------------------------------------------

func TestAcceptOrder_Success(t *testing.T) {
	f := newRegistryFixture(integration.ProviderUberEats)
	ctx := context.Background()
	record := newTestRecord(integration.ProviderUberEats, true)
	record.Settings[integration.SettingDefaultPrepMinutes] = float64(15)
	o := newTestOrder(record, order.StatusPending)

	f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
	f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)
	f.platform.On("AcceptOrder", mock.Anything, o.ProviderOrderID, integration.AcceptOptions{EstimatedPrepMinutes: 15}).Return(nil)
	f.orders.On("UpdateStatusIfCurrent", ctx, o.ID, []order.Status{order.StatusPending}, order.StatusConfirmed, "").Return(nil)

	resp := f.service.AcceptOrder(ctx, o.ID, AcceptOrderInput{})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, order.StatusConfirmed, resp.Data.Status)
	assert.Equal(t, "23.40", resp.Data.Total)
	f.platform.AssertExpectations(t)
	f.orders.AssertExpectations(t)
}

func TestAcceptOrder_ProviderFailureLeavesOrderUnchanged(t *testing.T) {
	f := newRegistryFixture(integration.ProviderDeliveroo)
	ctx := context.Background()
	record := newTestRecord(integration.ProviderDeliveroo, true)
	o := newTestOrder(record, order.StatusPending)

	f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
	f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)
	f.platform.On("AcceptOrder", mock.Anything, o.ProviderOrderID, mock.Anything).Return(
		integration.NewPlatformError(integration.ProviderDeliveroo, integration.CodeSyncStatusFailed,
			"Order already cancelled by customer"))

	resp := f.service.AcceptOrder(ctx, o.ID, AcceptOrderInput{EstimatedPrepMinutes: 20})

	assert.False(t, resp.Success)
	assert.Equal(t, CodePlatformError, resp.ErrorCode)
	assert.Equal(t, "Order already cancelled by customer", resp.Error)
	assert.Equal(t, integration.CodeSyncStatusFailed, resp.Details[DetailPlatformCode])
	assert.Equal(t, order.StatusPending, o.Status)
	f.orders.AssertNotCalled(t, "UpdateStatusIfCurrent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAcceptOrder_Refusals(t *testing.T) {
	ctx := context.Background()

	t.Run("not a delivery order", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		o := &order.Order{ID: uuid.New(), Status: order.StatusPending}
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)

		resp := f.service.AcceptOrder(ctx, o.ID, AcceptOrderInput{})
		assert.Equal(t, CodeNotADeliveryOrder, resp.ErrorCode)
	})

	t.Run("integration removed", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		record := newTestRecord(integration.ProviderUberEats, true)
		o := newTestOrder(record, order.StatusPending)
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
		f.integrations.On("FindByID", ctx, record.ID).Return(nil, integration.ErrIntegrationNotFound)

		resp := f.service.AcceptOrder(ctx, o.ID, AcceptOrderInput{})
		assert.Equal(t, CodeNotADeliveryOrder, resp.ErrorCode)
	})

	t.Run("not pending", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		record := newTestRecord(integration.ProviderUberEats, true)
		o := newTestOrder(record, order.StatusConfirmed)
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
		f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)

		resp := f.service.AcceptOrder(ctx, o.ID, AcceptOrderInput{})
		assert.Equal(t, CodeInvalidState, resp.ErrorCode)
		assert.Contains(t, resp.Error, "confirmed")
		f.platform.AssertNotCalled(t, "AcceptOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("order locked", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		locker := newFakeLocker()
		f.service.locker = locker
		orderID := uuid.New()
		release, err := locker.Acquire(ctx, orderID, time.Second)
		require.NoError(t, err)
		defer release()

		resp := f.service.AcceptOrder(ctx, orderID, AcceptOrderInput{})
		assert.Equal(t, CodeOrderLocked, resp.ErrorCode)
		f.orders.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("invalid prep time", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		resp := f.service.AcceptOrder(ctx, uuid.New(), AcceptOrderInput{EstimatedPrepMinutes: 500})
		assert.Equal(t, CodeValidation, resp.ErrorCode)
	})

	t.Run("concurrent status change after provider accepted", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		record := newTestRecord(integration.ProviderUberEats, true)
		o := newTestOrder(record, order.StatusPending)
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
		f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)
		f.platform.On("AcceptOrder", mock.Anything, o.ProviderOrderID, mock.Anything).Return(nil)
		f.orders.On("UpdateStatusIfCurrent", ctx, o.ID, mock.Anything, order.StatusConfirmed, "").
			Return(order.ErrStatusConflict)

		resp := f.service.AcceptOrder(ctx, o.ID, AcceptOrderInput{})
		assert.Equal(t, CodeConcurrencyConflict, resp.ErrorCode)
	})
}

func TestAcceptOrder_ReleasesLock(t *testing.T) {
	f := newRegistryFixture(integration.ProviderUberEats)
	ctx := context.Background()
	record := newTestRecord(integration.ProviderUberEats, true)
	o := newTestOrder(record, order.StatusConfirmed)
	f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
	f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)

	f.service.AcceptOrder(ctx, o.ID, AcceptOrderInput{})

	release, err := f.service.locker.Acquire(ctx, o.ID, time.Second)
	require.NoError(t, err)
	release()
}

func TestAcceptOrder_ProviderCallsEndBeforeLockExpires(t *testing.T) {
	f := newRegistryFixture(integration.ProviderDeliveroo)
	ctx := context.Background()
	record := newTestRecord(integration.ProviderDeliveroo, true)
	o := newTestOrder(record, order.StatusPending)

	var deadline time.Time
	var hasDeadline bool
	f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
	f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)
	f.platform.On("AcceptOrder", mock.Anything, o.ProviderOrderID, mock.Anything).
		Run(func(args mock.Arguments) {
			deadline, hasDeadline = args.Get(0).(context.Context).Deadline()
		}).
		Return(nil)
	f.orders.On("UpdateStatusIfCurrent", ctx, o.ID, []order.Status{order.StatusPending}, order.StatusConfirmed, "").Return(nil)

	start := time.Now()
	resp := f.service.AcceptOrder(ctx, o.ID, AcceptOrderInput{})

	require.True(t, resp.Success, resp.Error)
	require.True(t, hasDeadline, "provider call must carry a deadline")
	assert.True(t, deadline.Before(start.Add(f.service.config.LockTTL)),
		"deadline %s is not before lock expiry", deadline.Sub(start))
}

func TestRegistryService_DecisionTimeout(t *testing.T) {
	tests := []struct {
		lockTTL time.Duration
		want    time.Duration
	}{
		{time.Second, 900 * time.Millisecond},
		{45 * time.Second, 40500 * time.Millisecond},
		{2 * time.Minute, 115 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.lockTTL.String(), func(t *testing.T) {
			s := NewRegistryService(nil, nil, nil, newFakeLocker(), RegistryConfig{PublicBaseURL: testBaseURL, LockTTL: tt.lockTTL}, nil)
			assert.Equal(t, tt.want, s.decisionTimeout())
		})
	}
}

func TestRejectOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("records the reason", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderJustEat)
		record := newTestRecord(integration.ProviderJustEat, true)
		o := newTestOrder(record, order.StatusPending)
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
		f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)
		f.platform.On("DenyOrder", mock.Anything, o.ProviderOrderID, integration.DenyReasonStoreBusy, "kitchen full").Return(nil)
		f.orders.On("UpdateStatusIfCurrent", ctx, o.ID, []order.Status{order.StatusPending},
			order.StatusCancelled, "STORE_BUSY").Return(nil)

		resp := f.service.RejectOrder(ctx, o.ID, RejectOrderInput{Reason: "STORE_BUSY", Explanation: "kitchen full"})
		require.True(t, resp.Success, resp.Error)
		assert.Equal(t, order.StatusCancelled, resp.Data.Status)
		assert.Equal(t, "STORE_BUSY", resp.Data.RejectionReason)
		f.orders.AssertExpectations(t)
	})

	t.Run("unknown reason", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderJustEat)
		resp := f.service.RejectOrder(ctx, uuid.New(), RejectOrderInput{Reason: "TOO_LATE"})
		assert.Equal(t, CodeValidation, resp.ErrorCode)
		f.orders.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

// ---------------------------------------------------------------------------
// UpdateOrderStatus
// ---------------------------------------------------------------------------

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("provider notified", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		record := newTestRecord(integration.ProviderUberEats, true)
		o := newTestOrder(record, order.StatusConfirmed)
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
		f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)
		f.orders.On("UpdateStatusIfCurrent", ctx, o.ID, []order.Status{order.StatusConfirmed}, order.StatusReady, "").Return(nil)
		f.platform.On("UpdateOrderStatus", ctx, o.ProviderOrderID, integration.OrderStatusReady).Return(nil)

		resp := f.service.UpdateOrderStatus(ctx, o.ID, "ready")
		require.True(t, resp.Success)
		assert.True(t, resp.Data.Changed)
		assert.True(t, resp.Data.ProviderSynced)
		assert.Equal(t, order.StatusReady, resp.Data.Order.Status)
	})

	t.Run("provider failure keeps internal change", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		record := newTestRecord(integration.ProviderUberEats, true)
		o := newTestOrder(record, order.StatusConfirmed)
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
		f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)
		f.orders.On("UpdateStatusIfCurrent", ctx, o.ID, mock.Anything, order.StatusPreparing, "").Return(nil)
		f.platform.On("UpdateOrderStatus", ctx, o.ProviderOrderID, integration.OrderStatusPreparing).
			Return(integration.NewPlatformError(integration.ProviderUberEats, integration.CodeNetworkError, "timeout"))

		resp := f.service.UpdateOrderStatus(ctx, o.ID, "preparing")
		require.True(t, resp.Success)
		assert.True(t, resp.Data.Changed)
		assert.False(t, resp.Data.ProviderSynced)
		assert.Equal(t, "timeout", resp.Data.ProviderError)
		assert.Equal(t, order.StatusPreparing, resp.Data.Order.Status)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		record := newTestRecord(integration.ProviderUberEats, true)
		o := newTestOrder(record, order.StatusReady)
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
		f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)

		resp := f.service.UpdateOrderStatus(ctx, o.ID, "ready")
		require.True(t, resp.Success)
		assert.False(t, resp.Data.Changed)
		f.orders.AssertNotCalled(t, "UpdateStatusIfCurrent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.platform.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("backward transition", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		record := newTestRecord(integration.ProviderUberEats, true)
		o := newTestOrder(record, order.StatusReady)
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
		f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)

		resp := f.service.UpdateOrderStatus(ctx, o.ID, "preparing")
		assert.Equal(t, CodeInvalidState, resp.ErrorCode)
	})

	t.Run("pending orders need accept or reject", func(t *testing.T) {
		for _, target := range []string{"confirmed", "cancelled", "preparing"} {
			t.Run(target, func(t *testing.T) {
				f := newRegistryFixture(integration.ProviderDeliveroo)
				record := newTestRecord(integration.ProviderDeliveroo, true)
				o := newTestOrder(record, order.StatusPending)
				f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
				f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)

				resp := f.service.UpdateOrderStatus(ctx, o.ID, target)

				assert.False(t, resp.Success)
				assert.Equal(t, CodeInvalidState, resp.ErrorCode)
				assert.Contains(t, resp.Error, "accept or reject")
				assert.Equal(t, order.StatusPending, o.Status)
				f.orders.AssertNotCalled(t, "UpdateStatusIfCurrent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				f.platform.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
				f.platform.AssertNotCalled(t, "AcceptOrder", mock.Anything, mock.Anything, mock.Anything)
				f.platform.AssertNotCalled(t, "DenyOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("order locked by a decision", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		orderID := uuid.New()
		release, err := f.service.locker.Acquire(ctx, orderID, time.Second)
		require.NoError(t, err)
		defer release()

		resp := f.service.UpdateOrderStatus(ctx, orderID, "ready")
		assert.Equal(t, CodeOrderLocked, resp.ErrorCode)
		f.orders.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("unknown status", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		resp := f.service.UpdateOrderStatus(ctx, uuid.New(), "shipped")
		assert.Equal(t, CodeInvalidInput, resp.ErrorCode)
	})
}

// ---------------------------------------------------------------------------
// OrderDeadline
// ---------------------------------------------------------------------------

func TestOrderDeadline(t *testing.T) {
	ctx := context.Background()

	t.Run("remaining window", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderUberEats)
		record := newTestRecord(integration.ProviderUberEats, true)
		o := newTestOrder(record, order.StatusPending)
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
		f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)
		f.platform.On("AcceptanceDeadline", mock.AnythingOfType("*integration.NormalizedOrder")).
			Return(integration.AcceptanceDeadline{Timeout: 11, Unit: integration.DeadlineUnitMinutes})

		resp := f.service.OrderDeadline(ctx, o.ID)
		require.True(t, resp.Success)
		assert.Equal(t, o.PlacedAt.Add(11*time.Minute), resp.Data.AcceptBy)
		assert.Equal(t, int64(9*60), resp.Data.RemainingSeconds)
		assert.False(t, resp.Data.Expired)
	})

	t.Run("expired window clamps to zero", func(t *testing.T) {
		f := newRegistryFixture(integration.ProviderJustEat)
		record := newTestRecord(integration.ProviderJustEat, true)
		o := newTestOrder(record, order.StatusPending)
		f.orders.On("FindByID", ctx, o.ID).Return(o, nil)
		f.integrations.On("FindByID", ctx, record.ID).Return(record, nil)
		f.platform.On("AcceptanceDeadline", mock.Anything).
			Return(integration.AcceptanceDeadline{Timeout: 60, Unit: integration.DeadlineUnitSeconds})

		resp := f.service.OrderDeadline(ctx, o.ID)
		require.True(t, resp.Success)
		assert.Zero(t, resp.Data.RemainingSeconds)
		assert.True(t, resp.Data.Expired)
	})
}

// ---------------------------------------------------------------------------
// ReconcileOrders
// ---------------------------------------------------------------------------

func TestReconcileOrders_ReportsDriftOnly(t *testing.T) {
	f := newRegistryFixture(integration.ProviderDeliveroo)
	ctx := context.Background()
	record := newTestRecord(integration.ProviderDeliveroo, true)
	inSync := newTestOrder(record, order.StatusConfirmed)
	drifted := newTestOrder(record, order.StatusConfirmed)
	unreachable := newTestOrder(record, order.StatusCancelled)
	since := testNow.Add(-time.Hour)

	f.integrations.On("FindActiveByOrganization", ctx, record.OrganizationID).
		Return([]*integration.Integration{record}, nil)
	f.orders.On("FindUpdatedSince", ctx, record.OrganizationID,
		[]order.Status{order.StatusConfirmed, order.StatusCancelled}, since).
		Return([]*order.Order{inSync, drifted, unreachable}, nil)
	f.platform.On("GetOrder", ctx, inSync.ProviderOrderID).
		Return(&integration.NormalizedOrder{Status: integration.OrderStatusAccepted}, nil)
	f.platform.On("GetOrder", ctx, drifted.ProviderOrderID).
		Return(&integration.NormalizedOrder{Status: integration.OrderStatusCancelled, ProviderStatus: "REJECTED"}, nil)
	f.platform.On("GetOrder", ctx, unreachable.ProviderOrderID).
		Return(nil, errors.New("connection reset"))

	resp := f.service.ReconcileOrders(ctx, record.OrganizationID, since)

	require.True(t, resp.Success)
	assert.Equal(t, 2, resp.Data.Checked)
	require.Len(t, resp.Data.Drift, 1)
	assert.Equal(t, drifted.ID, resp.Data.Drift[0].OrderID)
	assert.Equal(t, order.StatusConfirmed, resp.Data.Drift[0].InternalStatus)
	assert.Equal(t, integration.OrderStatusCancelled, resp.Data.Drift[0].ProviderStatus)
	assert.Len(t, resp.Data.Errors, 1)
	f.orders.AssertNotCalled(t, "UpdateStatusIfCurrent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
