package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Default retry configuration for webhook processing
const (
	DefaultWebhookMaxRetries  = 5
	DefaultWebhookBaseBackoff = 30 * time.Second
	DefaultWebhookMaxBackoff  = time.Hour
	DefaultWebhookRetention   = 7 * 24 * time.Hour
)

// RetryPolicy controls the backoff between webhook processing attempts
type RetryPolicy struct {
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy returns the default exponential backoff policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseBackoff: DefaultWebhookBaseBackoff,
		MaxBackoff:  DefaultWebhookMaxBackoff,
	}
}

// Backoff returns the delay before the attempt following the given failure count.
// base, 2·base, 4·base, ... capped at MaxBackoff.
func (p RetryPolicy) Backoff(retryCount int) time.Duration {
	base := p.BaseBackoff
	if base <= 0 {
		base = DefaultWebhookBaseBackoff
	}
	if retryCount < 1 {
		retryCount = 1
	}
	backoff := base
	for i := 1; i < retryCount; i++ {
		backoff *= 2
		if p.MaxBackoff > 0 && backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

// WebhookEntry is one inbound webhook persisted before any processing.
// An entry is exhausted when it is unprocessed and RetryCount has reached MaxRetries;
// exhausted entries are never selected for processing again.
type WebhookEntry struct {
	ID             uuid.UUID
	Provider       Provider
	OrganizationID string
	Headers        map[string]string
	Payload        []byte
	Processed      bool
	RetryCount     int
	MaxRetries     int
	NextAttemptAt  time.Time
	ErrorMessage   string
	CreatedAt      time.Time
	ProcessedAt    *time.Time
}

// NewWebhookEntry creates an entry that is immediately due for processing.
// organizationID is kept verbatim from the callback URL; it is validated at processing time.
func NewWebhookEntry(provider Provider, organizationID string, headers map[string]string, payload []byte, maxRetries int, now time.Time) *WebhookEntry {
	if maxRetries <= 0 {
		maxRetries = DefaultWebhookMaxRetries
	}
	if headers == nil {
		headers = map[string]string{}
	}
	return &WebhookEntry{
		ID:             uuid.New(),
		Provider:       provider,
		OrganizationID: organizationID,
		Headers:        headers,
		Payload:        payload,
		MaxRetries:     maxRetries,
		NextAttemptAt:  now,
		CreatedAt:      now,
	}
}

// IsExhausted returns true if the entry will never be processed again without operator action
func (e *WebhookEntry) IsExhausted() bool {
	return !e.Processed && e.RetryCount >= e.MaxRetries
}

// IsDue returns true if the entry is eligible for processing at now
func (e *WebhookEntry) IsDue(now time.Time) bool {
	return !e.Processed && e.RetryCount < e.MaxRetries && !e.NextAttemptAt.After(now)
}

// MarkProcessed records a successful processing attempt
func (e *WebhookEntry) MarkProcessed(now time.Time) {
	e.Processed = true
	e.ProcessedAt = &now
	e.ErrorMessage = ""
}

// MarkFailed records a failed attempt and schedules the next one
func (e *WebhookEntry) MarkFailed(errMsg string, now time.Time, policy RetryPolicy) {
	e.RetryCount++
	e.ErrorMessage = errMsg
	if e.RetryCount < e.MaxRetries {
		e.NextAttemptAt = now.Add(policy.Backoff(e.RetryCount))
	}
}

// MarkExhausted records a failure that retrying cannot fix
func (e *WebhookEntry) MarkExhausted(errMsg string) {
	e.ErrorMessage = errMsg
	if e.RetryCount < e.MaxRetries {
		e.RetryCount = e.MaxRetries
	}
}

// Requeue re-arms an exhausted entry for processing at now
func (e *WebhookEntry) Requeue(now time.Time) error {
	if e.Processed {
		return ErrWebhookEntryAlreadyComplete
	}
	if !e.IsExhausted() {
		return ErrWebhookEntryNotExhausted
	}
	e.RetryCount = 0
	e.NextAttemptAt = now
	return nil
}

// WebhookRepository persists webhook queue entries
type WebhookRepository interface {
	// Save inserts a new entry
	Save(ctx context.Context, entry *WebhookEntry) error
	// FindByID returns ErrWebhookEntryNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*WebhookEntry, error)
	// FindDue returns unprocessed, non-exhausted entries whose next attempt is at or before now,
	// oldest first
	FindDue(ctx context.Context, now time.Time, limit int) ([]*WebhookEntry, error)
	// Claim leases an entry by moving its next attempt to leaseUntil, only if it is still due.
	// Returns false when another worker claimed it first.
	Claim(ctx context.Context, id uuid.UUID, now, leaseUntil time.Time) (bool, error)
	// Update persists the processing outcome of an entry
	Update(ctx context.Context, entry *WebhookEntry) error
	// FindExhausted lists exhausted entries with pagination
	FindExhausted(ctx context.Context, page, pageSize int) ([]*WebhookEntry, int64, error)
	// DeleteProcessedBefore removes processed entries whose processed_at is before cutoff
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
