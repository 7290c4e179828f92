// Package webhook persists inbound provider webhooks and processes them with retries.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/metrics"
)

// ErrPermanent marks a processing failure that retrying cannot fix.
// Entries failing with an error wrapping it are exhausted at once.
var ErrPermanent = integration.ErrPermanentFailure

// Permanent wraps err so the processor exhausts the entry instead of retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Handler processes one queued webhook
type Handler interface {
	HandleWebhook(ctx context.Context, entry *integration.WebhookEntry) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, entry *integration.WebhookEntry) error

// HandleWebhook calls f
func (f HandlerFunc) HandleWebhook(ctx context.Context, entry *integration.WebhookEntry) error {
	return f(ctx, entry)
}

// Queue is the write side: it stores a webhook exactly as received, before any parsing
type Queue struct {
	repo       integration.WebhookRepository
	maxRetries int
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewQueue creates a queue; maxRetries <= 0 uses the default
func NewQueue(repo integration.WebhookRepository, maxRetries int, m *metrics.Metrics, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		repo:       repo,
		maxRetries: maxRetries,
		metrics:    m,
		logger:     logger.Named("webhook.queue"),
		now:        time.Now,
	}
}

// Enqueue persists the raw webhook and returns the stored entry.
// organizationID is stored verbatim; a missing or malformed value fails at processing time.
func (q *Queue) Enqueue(ctx context.Context, provider integration.Provider, organizationID string, headers map[string]string, payload []byte) (*integration.WebhookEntry, error) {
	entry := integration.NewWebhookEntry(provider, organizationID, headers, payload, q.maxRetries, q.now().UTC())
	if err := q.repo.Save(ctx, entry); err != nil {
		q.logger.Error("failed to persist webhook",
			zap.String("provider", string(provider)),
			zap.String("organization_id", organizationID),
			zap.Int("payload_bytes", len(payload)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to enqueue webhook: %w", err)
	}

	q.metrics.WebhookReceived(string(provider))
	q.logger.Debug("webhook enqueued",
		zap.String("entry_id", entry.ID.String()),
		zap.String("provider", string(provider)),
		zap.String("organization_id", organizationID))
	return entry, nil
}

// ListExhausted lists entries that ran out of retries, newest first
func (q *Queue) ListExhausted(ctx context.Context, page, pageSize int) ([]*integration.WebhookEntry, int64, error) {
	return q.repo.FindExhausted(ctx, page, pageSize)
}

// Requeue re-arms an exhausted entry so the next batch picks it up
func (q *Queue) Requeue(ctx context.Context, id uuid.UUID) (*integration.WebhookEntry, error) {
	entry, err := q.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.Requeue(q.now().UTC()); err != nil {
		return nil, err
	}
	if err := q.repo.Update(ctx, entry); err != nil {
		return nil, err
	}

	q.logger.Info("webhook entry requeued",
		zap.String("entry_id", entry.ID.String()),
		zap.String("provider", string(entry.Provider)),
		zap.String("last_error", entry.ErrorMessage))
	return entry, nil
}
