package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/domain/order"
)

// permanent marks err as not worth retrying
func permanent(err error) error {
	return fmt.Errorf("%w: %w", integration.ErrPermanentFailure, err)
}

// HandleWebhook processes one queued webhook: resolve the integration from provider and
// organization, verify the signature when a secret is configured, decode through the provider
// client, and apply the event to the internal order.
// Errors wrapping integration.ErrPermanentFailure must not be retried.
func (s *RegistryService) HandleWebhook(ctx context.Context, entry *integration.WebhookEntry) error {
	organizationID, err := uuid.Parse(entry.OrganizationID)
	if err != nil {
		return permanent(fmt.Errorf("%w: %q", integration.ErrInvalidOrganizationID, entry.OrganizationID))
	}

	record, err := s.integrations.FindByOrganizationAndProvider(ctx, organizationID, entry.Provider)
	if errors.Is(err, integration.ErrIntegrationNotFound) {
		return permanent(err)
	}
	if err != nil {
		return err
	}
	if !record.IsActive {
		return permanent(integration.ErrIntegrationInactive)
	}

	if secret := record.WebhookSecret(); secret != "" && s.verifier != nil {
		if err := s.verifier.Verify(entry.Provider, entry.Headers, entry.Payload, secret); err != nil {
			return permanent(err)
		}
	}

	client, err := s.clients.ClientFor(ctx, record)
	if err != nil {
		return err
	}
	event, err := client.ParseWebhook(entry.Headers, entry.Payload)
	if err != nil {
		return permanent(err)
	}

	result, err := s.applyEvent(ctx, record, client, event)
	if err != nil {
		return err
	}
	s.logger.Debug("webhook applied",
		zap.String("entry_id", entry.ID.String()),
		zap.String("provider", string(entry.Provider)),
		zap.String("event", string(result.Event)),
		zap.String("provider_order_id", result.ProviderOrderID),
		zap.String("action", result.Action))
	return nil
}

// ApplyWebhookEvent applies a decoded webhook event to the internal order of an integration.
// Applying the same event twice leaves the order as applying it once.
func (s *RegistryService) ApplyWebhookEvent(ctx context.Context, integrationID uuid.UUID, event *integration.WebhookEvent) ServiceResponse[WebhookResult] {
	record, err := s.integrations.FindByID(ctx, integrationID)
	if err != nil {
		return FailFrom[WebhookResult](err)
	}
	client, err := s.clients.ClientFor(ctx, record)
	if err != nil {
		return FailFrom[WebhookResult](err)
	}
	result, err := s.applyEvent(ctx, record, client, event)
	if err != nil {
		return FailFrom[WebhookResult](err)
	}
	return OK(result)
}

func (s *RegistryService) applyEvent(ctx context.Context, record *integration.Integration, client integration.DeliveryPlatform, event *integration.WebhookEvent) (WebhookResult, error) {
	result := WebhookResult{Event: event.Type, ProviderOrderID: event.ProviderOrderID}
	if event.ProviderOrderID == "" {
		result.Action = WebhookActionIgnored
		return result, nil
	}

	existing, err := s.orders.FindByProviderOrderID(ctx, record.ID, event.ProviderOrderID)
	if errors.Is(err, order.ErrOrderNotFound) {
		return s.recordNewOrder(ctx, record, client, event, result)
	}
	if err != nil {
		return result, err
	}
	return s.advanceOrder(ctx, existing, event, result)
}

// recordNewOrder stores the order an event refers to, fetching it when the event carries
// only a notification
func (s *RegistryService) recordNewOrder(ctx context.Context, record *integration.Integration, client integration.DeliveryPlatform, event *integration.WebhookEvent, result WebhookResult) (WebhookResult, error) {
	placed := event.Order
	if placed == nil {
		fetched, err := client.GetOrder(ctx, event.ProviderOrderID)
		if errors.Is(err, integration.ErrPlatformOrderNotFound) {
			return result, permanent(err)
		}
		if err != nil {
			return result, err
		}
		placed = fetched
	}
	if placed.Provider == "" {
		placed.Provider = record.Provider
	}
	if event.Type == integration.WebhookEventOrderCancelled {
		placed.Status = integration.OrderStatusCancelled
	}

	o := order.NewFromPlatform(record.OrganizationID, record.ID, placed)
	o.CreatedAt = s.now()
	o.UpdatedAt = o.CreatedAt
	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, order.ErrDuplicateOrder) {
			// a concurrent delivery of the same order won the insert
			existing, findErr := s.orders.FindByProviderOrderID(ctx, record.ID, event.ProviderOrderID)
			if findErr != nil {
				return result, findErr
			}
			return s.advanceOrder(ctx, existing, event, result)
		}
		return result, err
	}

	result.OrderID = o.ID
	result.Action = WebhookActionCreated
	s.logger.Info("delivery order recorded",
		zap.String("order_id", o.ID.String()),
		zap.String("provider", string(o.Provider)),
		zap.String("provider_order_id", o.ProviderOrderID),
		zap.String("status", string(o.Status)))

	if record.AutoAccept() && o.Status == order.StatusPending {
		resp := s.AcceptOrder(ctx, o.ID, AcceptOrderInput{})
		if !resp.Success {
			s.logger.Warn("auto-accept failed; order left pending",
				zap.String("order_id", o.ID.String()),
				zap.String("error_code", resp.ErrorCode),
				zap.String("message", resp.Error))
		}
	}
	return result, nil
}

// advanceOrder moves an existing order forward to the event's status.
// Stale, repeated, and backward events leave the order unchanged.
func (s *RegistryService) advanceOrder(ctx context.Context, existing *order.Order, event *integration.WebhookEvent, result WebhookResult) (WebhookResult, error) {
	result.OrderID = existing.ID

	next, ok := eventStatus(event)
	if !ok || !existing.Status.CanAdvanceTo(next) {
		result.Action = WebhookActionUnchanged
		return result, nil
	}

	if err := s.orders.UpdateStatusIfCurrent(ctx, existing.ID, []order.Status{existing.Status}, next, ""); err != nil {
		// ErrStatusConflict: the order moved meanwhile; the retry re-reads it
		return result, err
	}

	result.Action = WebhookActionUpdated
	s.logger.Info("delivery order updated from webhook",
		zap.String("order_id", existing.ID.String()),
		zap.String("provider_order_id", existing.ProviderOrderID),
		zap.String("from", string(existing.Status)),
		zap.String("to", string(next)),
		zap.String("provider_status", event.ProviderStatus))
	return result, nil
}

// eventStatus returns the internal status an event asks for
func eventStatus(event *integration.WebhookEvent) (order.Status, bool) {
	switch {
	case event.Type == integration.WebhookEventOrderCancelled:
		return order.StatusCancelled, true
	case event.Status != "":
		return order.FromPlatformStatus(event.Status), true
	case event.Order != nil && event.Order.Status != "":
		return order.FromPlatformStatus(event.Order.Status), true
	}
	return "", false
}
