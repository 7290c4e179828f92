package webhook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/metrics"
	"github.com/pos/backend/internal/infrastructure/telemetry"
)

// ProcessorConfig holds configuration for the webhook processor
type ProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	Lease        time.Duration
	RetryPolicy  integration.RetryPolicy
}

// DefaultProcessorConfig returns default configuration
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		BatchSize:    50,
		PollInterval: 5 * time.Second,
		Lease:        2 * time.Minute,
		RetryPolicy:  integration.DefaultRetryPolicy(),
	}
}

// BatchResult summarizes one ProcessDue run
type BatchResult struct {
	Claimed   int `json:"claimed"`
	Processed int `json:"processed"`
	Retried   int `json:"retried"`
	Exhausted int `json:"exhausted"`
}

// Processor drains due webhook entries through a Handler.
// Several processors may run against the same table; each entry is leased before handling.
type Processor struct {
	repo    integration.WebhookRepository
	handler Handler
	config  ProcessorConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates a new webhook processor
func NewProcessor(
	repo integration.WebhookRepository,
	handler Handler,
	config ProcessorConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Processor {
	defaults := DefaultProcessorConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Lease <= 0 {
		config.Lease = defaults.Lease
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		repo:    repo,
		handler: handler,
		config:  config,
		metrics: m,
		logger:  logger.Named("webhook.processor"),
		now:     time.Now,
	}
}

// Start starts the background poll loop
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("webhook processor already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.processLoop(ctx)

	p.logger.Info("webhook processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Duration("lease", p.config.Lease),
	)
	return nil
}

// Stop gracefully stops the processor, waiting for the in-flight batch
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("webhook processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) processLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessDue(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("failed to process webhook batch", zap.Error(err))
			}
		}
	}
}

// ProcessDue handles one batch of due entries. Handler failures are recorded on the entries
// and never returned; only storage errors are.
func (p *Processor) ProcessDue(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	now := p.now().UTC()
	entries, err := p.repo.FindDue(ctx, now, p.config.BatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to find due webhooks: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		claimed, err := p.repo.Claim(ctx, entry.ID, now, now.Add(p.config.Lease))
		if err != nil {
			p.logger.Error("failed to claim webhook entry",
				zap.String("entry_id", entry.ID.String()),
				zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		result.Claimed++

		switch p.processEntry(ctx, entry) {
		case metrics.OutcomeSuccess:
			result.Processed++
		case metrics.OutcomeExhausted:
			result.Exhausted++
		default:
			result.Retried++
		}
	}

	if result.Claimed > 0 {
		p.logger.Info("webhook batch processed",
			zap.Int("claimed", result.Claimed),
			zap.Int("processed", result.Processed),
			zap.Int("retried", result.Retried),
			zap.Int("exhausted", result.Exhausted))
	}
	return result, nil
}

// processEntry runs the handler on a claimed entry and stores the outcome
func (p *Processor) processEntry(ctx context.Context, entry *integration.WebhookEntry) string {
	ctx, span := telemetry.StartSpan(ctx, "webhook.process",
		telemetry.WithAttribute(telemetry.AttrWebhookEntryID, entry.ID.String()),
		telemetry.WithAttribute(telemetry.AttrProvider, string(entry.Provider)),
		telemetry.WithAttribute(telemetry.AttrOrganizationID, entry.OrganizationID),
		telemetry.WithAttribute("pos.retry_count", entry.RetryCount),
	)
	defer span.End()

	err := p.safeHandle(ctx, entry)
	telemetry.RecordError(span, err)
	now := p.now().UTC()

	var outcome string
	switch {
	case err == nil:
		entry.MarkProcessed(now)
		outcome = metrics.OutcomeSuccess
		p.logger.Debug("webhook processed",
			zap.String("entry_id", entry.ID.String()),
			zap.String("provider", string(entry.Provider)))
	case errors.Is(err, ErrPermanent):
		entry.MarkExhausted(err.Error())
		outcome = metrics.OutcomeExhausted
	default:
		entry.MarkFailed(err.Error(), now, p.config.RetryPolicy)
		outcome = metrics.OutcomeRetry
		if entry.IsExhausted() {
			outcome = metrics.OutcomeExhausted
		} else {
			p.logger.Warn("webhook processing failed, will retry",
				zap.String("entry_id", entry.ID.String()),
				zap.String("provider", string(entry.Provider)),
				zap.Int("retry_count", entry.RetryCount),
				zap.Time("next_attempt_at", entry.NextAttemptAt),
				zap.Error(err))
		}
	}

	if outcome == metrics.OutcomeExhausted {
		p.logger.Warn("webhook moved to dead letter",
			zap.String("entry_id", entry.ID.String()),
			zap.String("provider", string(entry.Provider)),
			zap.String("organization_id", entry.OrganizationID),
			zap.Int("retry_count", entry.RetryCount),
			zap.String("last_error", entry.ErrorMessage))
	}

	// the lease protects the entry if this write fails; it becomes due again when it expires
	if err := p.repo.Update(context.WithoutCancel(ctx), entry); err != nil {
		p.logger.Error("failed to update webhook entry",
			zap.String("entry_id", entry.ID.String()),
			zap.Error(err))
	}
	telemetry.SetAttributes(span, "pos.outcome", outcome)
	p.metrics.WebhookProcessed(string(entry.Provider), outcome)
	return outcome
}

// safeHandle turns a handler panic into an ordinary failure
func (p *Processor) safeHandle(ctx context.Context, entry *integration.WebhookEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("webhook handler panicked",
				zap.String("entry_id", entry.ID.String()),
				zap.Any("panic", r))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.handler.HandleWebhook(ctx, entry)
}

// Purge deletes processed entries older than retention and returns how many were removed
func (p *Processor) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = integration.DefaultWebhookRetention
	}
	cutoff := p.now().UTC().Add(-retention)
	deleted, err := p.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge webhooks: %w", err)
	}

	p.metrics.WebhooksPurgedAdd(deleted)
	p.logger.Info("purged processed webhooks",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff))
	return deleted, nil
}
