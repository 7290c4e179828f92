package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/domain/order"
	"github.com/pos/backend/internal/domain/shared"
)

// orderCall performs the provider side of an order decision
type orderCall func(ctx context.Context, client integration.DeliveryPlatform, record *integration.Integration, o *order.Order) error

// AcceptOrder confirms a pending order with its provider, then marks it confirmed.
// A provider failure leaves the order untouched and surfaces the provider's message.
func (s *RegistryService) AcceptOrder(ctx context.Context, orderID uuid.UUID, in AcceptOrderInput) ServiceResponse[OrderResponse] {
	if err := s.validate.Struct(in); err != nil {
		return FailFrom[OrderResponse](err)
	}
	return s.decide(ctx, orderID, "accept", order.StatusConfirmed, "",
		func(ctx context.Context, client integration.DeliveryPlatform, record *integration.Integration, o *order.Order) error {
			opts := integration.AcceptOptions{
				EstimatedPrepMinutes: in.EstimatedPrepMinutes,
				PickupAt:             in.PickupAt,
				Notes:                in.Notes,
			}
			if opts.EstimatedPrepMinutes == 0 {
				opts.EstimatedPrepMinutes = record.DefaultPrepMinutes()
			}
			return client.AcceptOrder(ctx, o.ProviderOrderID, opts)
		})
}

// RejectOrder denies a pending order with its provider, then marks it cancelled with the reason.
// A provider failure leaves the order untouched and surfaces the provider's message.
func (s *RegistryService) RejectOrder(ctx context.Context, orderID uuid.UUID, in RejectOrderInput) ServiceResponse[OrderResponse] {
	if err := s.validate.Struct(in); err != nil {
		return FailFrom[OrderResponse](err)
	}
	reason := integration.DenyReason(in.Reason)
	if !reason.IsValid() {
		return FailFrom[OrderResponse](integration.ErrInvalidDenyReason)
	}
	return s.decide(ctx, orderID, "reject", order.StatusCancelled, string(reason),
		func(ctx context.Context, client integration.DeliveryPlatform, _ *integration.Integration, o *order.Order) error {
			return client.DenyOrder(ctx, o.ProviderOrderID, reason, in.Explanation)
		})
}

// decide runs one accept/reject under the per-order lock.
// The internal status only moves after the provider confirmed, and only from pending.
// Provider calls share a deadline that ends before the lock expires.
func (s *RegistryService) decide(ctx context.Context, orderID uuid.UUID, action string, next order.Status, rejectionReason string, call orderCall) ServiceResponse[OrderResponse] {
	release, err := s.locker.Acquire(ctx, orderID, s.config.LockTTL)
	if err != nil {
		return FailFrom[OrderResponse](err)
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, s.decisionTimeout())
	defer cancel()

	o, record, err := s.loadDeliveryOrder(ctx, orderID)
	if err != nil {
		return FailFrom[OrderResponse](err)
	}
	if o.Status != order.StatusPending {
		return FailFrom[OrderResponse](shared.NewDomainError(CodeInvalidState,
			fmt.Sprintf("cannot %s an order that is %s", action, o.Status)))
	}

	client, err := s.clients.ClientFor(callCtx, record)
	if err != nil {
		return FailFrom[OrderResponse](err)
	}

	if err := call(callCtx, client, record, o); err != nil {
		s.logger.Warn("provider refused order decision",
			zap.String("action", action),
			zap.String("order_id", o.ID.String()),
			zap.String("provider", string(record.Provider)),
			zap.String("provider_order_id", o.ProviderOrderID),
			zap.String("message", integration.ErrorMessage(err)))
		return FailFrom[OrderResponse](err)
	}

	if err := s.orders.UpdateStatusIfCurrent(ctx, o.ID, []order.Status{order.StatusPending}, next, rejectionReason); err != nil {
		// the provider already holds the decision; reconciliation reports the mismatch
		s.logger.Error("provider confirmed order decision but internal update failed",
			zap.String("action", action),
			zap.String("order_id", o.ID.String()),
			zap.String("provider", string(record.Provider)),
			zap.String("provider_order_id", o.ProviderOrderID),
			zap.Error(err))
		return FailFrom[OrderResponse](err)
	}

	o.Status = next
	o.RejectionReason = rejectionReason
	o.UpdatedAt = s.now()

	s.logger.Info("order decision applied",
		zap.String("action", action),
		zap.String("order_id", o.ID.String()),
		zap.String("provider", string(record.Provider)),
		zap.String("status", string(next)))
	return OK(ToOrderResponse(o))
}

// decisionTimeout bounds the provider calls of one accept/reject so they finish while the lock is held
func (s *RegistryService) decisionTimeout() time.Duration {
	margin := s.config.LockTTL / 10
	if margin > maxLockMargin {
		margin = maxLockMargin
	}
	return s.config.LockTTL - margin
}

// UpdateOrderStatus moves the internal order first, then notifies the provider best-effort.
// A provider failure is reported in the result but never rolls the internal change back.
// Re-applying the current status is a no-op. Pending orders only leave pending through
// AcceptOrder or RejectOrder.
func (s *RegistryService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) ServiceResponse[StatusUpdateResult] {
	next, err := order.ParseStatus(status)
	if err != nil {
		return FailFrom[StatusUpdateResult](err)
	}

	release, err := s.locker.Acquire(ctx, orderID, s.config.LockTTL)
	if err != nil {
		return FailFrom[StatusUpdateResult](err)
	}
	defer release()

	o, record, err := s.loadDeliveryOrder(ctx, orderID)
	if err != nil {
		return FailFrom[StatusUpdateResult](err)
	}

	if o.Status == next {
		return OK(StatusUpdateResult{Order: ToOrderResponse(o)})
	}
	if o.Status == order.StatusPending {
		return FailFrom[StatusUpdateResult](shared.NewDomainError(CodeInvalidState,
			fmt.Sprintf("order is pending; accept or reject it before moving it to %s", next)))
	}
	if !o.Status.CanAdvanceTo(next) {
		return FailFrom[StatusUpdateResult](fmt.Errorf("%w: %s to %s", order.ErrInvalidTransition, o.Status, next))
	}

	if err := s.orders.UpdateStatusIfCurrent(ctx, o.ID, []order.Status{o.Status}, next, ""); err != nil {
		return FailFrom[StatusUpdateResult](err)
	}
	o.Status = next
	o.UpdatedAt = s.now()
	result := StatusUpdateResult{Order: ToOrderResponse(o), Changed: true}

	if err := s.notifyProvider(ctx, record, o); err != nil {
		s.logger.Warn("provider status sync failed; internal status kept",
			zap.String("order_id", o.ID.String()),
			zap.String("provider", string(record.Provider)),
			zap.String("provider_order_id", o.ProviderOrderID),
			zap.String("status", string(next)),
			zap.String("message", integration.ErrorMessage(err)))
		result.ProviderError = integration.ErrorMessage(err)
		return OK(result)
	}
	result.ProviderSynced = true
	return OK(result)
}

func (s *RegistryService) notifyProvider(ctx context.Context, record *integration.Integration, o *order.Order) error {
	client, err := s.clients.ClientFor(ctx, record)
	if err != nil {
		return err
	}
	return client.UpdateOrderStatus(ctx, o.ProviderOrderID, o.Status.ToPlatformStatus())
}

// OrderDeadline returns how long the restaurant has left to accept an order
func (s *RegistryService) OrderDeadline(ctx context.Context, orderID uuid.UUID) ServiceResponse[DeadlineResponse] {
	o, record, err := s.loadDeliveryOrder(ctx, orderID)
	if err != nil {
		return FailFrom[DeadlineResponse](err)
	}
	client, err := s.clients.ClientFor(ctx, record)
	if err != nil {
		return FailFrom[DeadlineResponse](err)
	}

	deadline := client.AcceptanceDeadline(&integration.NormalizedOrder{
		ProviderOrderID: o.ProviderOrderID,
		Provider:        o.Provider,
		PlacedAt:        o.PlacedAt,
		ScheduledFor:    o.ScheduledFor,
	})
	acceptBy := o.PlacedAt.Add(deadline.Duration())
	remaining := acceptBy.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}

	return OK(DeadlineResponse{
		OrderID:          o.ID,
		Provider:         o.Provider,
		Timeout:          deadline.Timeout,
		Unit:             deadline.Unit,
		AcceptBy:         acceptBy,
		RemainingSeconds: int64(remaining / time.Second),
		Expired:          remaining == 0,
	})
}

// ReconcileOrders compares confirmed and cancelled orders updated since the given time with
// what their providers report. It only reports drift; nothing is changed.
func (s *RegistryService) ReconcileOrders(ctx context.Context, organizationID uuid.UUID, since time.Time) ServiceResponse[ReconcileReport] {
	records, err := s.integrations.FindActiveByOrganization(ctx, organizationID)
	if err != nil {
		return FailFrom[ReconcileReport](err)
	}
	byID := make(map[uuid.UUID]*integration.Integration, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	orders, err := s.orders.FindUpdatedSince(ctx, organizationID,
		[]order.Status{order.StatusConfirmed, order.StatusCancelled}, since)
	if err != nil {
		return FailFrom[ReconcileReport](err)
	}

	report := ReconcileReport{OrganizationID: organizationID, Since: since, Drift: []order.Drift{}}
	for _, o := range orders {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, ctx.Err().Error())
			break
		}
		record, ok := byID[*o.IntegrationID]
		if !ok {
			continue
		}
		client, err := s.clients.ClientFor(ctx, record)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", o.ID, err))
			continue
		}
		remote, err := client.GetOrder(ctx, o.ProviderOrderID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", o.ID, integration.ErrorMessage(err)))
			continue
		}
		report.Checked++

		if order.FromPlatformStatus(remote.Status) == o.Status {
			continue
		}
		drift := order.Drift{
			OrderID:         o.ID,
			Provider:        o.Provider,
			ProviderOrderID: o.ProviderOrderID,
			InternalStatus:  o.Status,
			ProviderStatus:  remote.Status,
		}
		report.Drift = append(report.Drift, drift)
		s.logger.Warn("order status drift detected",
			zap.String("order_id", o.ID.String()),
			zap.String("provider", string(o.Provider)),
			zap.String("provider_order_id", o.ProviderOrderID),
			zap.String("internal_status", string(o.Status)),
			zap.String("provider_status", remote.ProviderStatus))
	}

	s.logger.Info("order reconciliation finished",
		zap.String("organization_id", organizationID.String()),
		zap.Int("checked", report.Checked),
		zap.Int("drift", len(report.Drift)),
		zap.Int("errors", len(report.Errors)))
	return OK(report)
}

// loadDeliveryOrder loads an order and the integration it arrived through.
// Orders without a live integration are not delivery orders.
func (s *RegistryService) loadDeliveryOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, *integration.Integration, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.IsDeliveryOrder() {
		return nil, nil, order.ErrNotADeliveryOrder
	}
	record, err := s.integrations.FindByID(ctx, *o.IntegrationID)
	if errors.Is(err, integration.ErrIntegrationNotFound) {
		return nil, nil, order.ErrNotADeliveryOrder
	}
	if err != nil {
		return nil, nil, err
	}
	return o, record, nil
}
