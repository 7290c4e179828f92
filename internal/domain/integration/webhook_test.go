package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := RetryPolicy{BaseBackoff: 30 * time.Second, MaxBackoff: 5 * time.Minute}

	tests := []struct {
		retryCount int
		expected   time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{5, 5 * time.Minute},
		{10, 5 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, policy.Backoff(tt.retryCount), "retry %d", tt.retryCount)
	}
}

func TestWebhookEntry_RetryUntilExhausted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := NewWebhookEntry(ProviderJustEat, "org", nil, []byte(`{}`), 3, now)

	assert.True(t, entry.IsDue(now))
	assert.NotNil(t, entry.Headers)

	policy := RetryPolicy{BaseBackoff: time.Second, MaxBackoff: time.Hour}

	entry.MarkFailed("boom", now, policy)
	assert.Equal(t, 1, entry.RetryCount)
	assert.Equal(t, now.Add(time.Second), entry.NextAttemptAt)
	assert.False(t, entry.IsDue(now))
	assert.True(t, entry.IsDue(now.Add(time.Second)))

	entry.MarkFailed("boom", now, policy)
	assert.Equal(t, now.Add(2*time.Second), entry.NextAttemptAt)

	entry.MarkFailed("still broken", now, policy)
	assert.True(t, entry.IsExhausted())
	assert.False(t, entry.IsDue(now.Add(24*time.Hour)))
	assert.Equal(t, "still broken", entry.ErrorMessage)
}

func TestWebhookEntry_DefaultMaxRetries(t *testing.T) {
	entry := NewWebhookEntry(ProviderUberEats, "org", nil, nil, 0, time.Now())
	assert.Equal(t, DefaultWebhookMaxRetries, entry.MaxRetries)
}

func TestWebhookEntry_MarkProcessed(t *testing.T) {
	now := time.Now()
	entry := NewWebhookEntry(ProviderUberEats, "org", nil, nil, 5, now)
	entry.MarkFailed("first", now, DefaultRetryPolicy())
	entry.MarkProcessed(now)

	assert.True(t, entry.Processed)
	assert.Empty(t, entry.ErrorMessage)
	assert.False(t, entry.IsDue(now.Add(time.Hour)))
	assert.False(t, entry.IsExhausted())
}

func TestWebhookEntry_MarkExhaustedAndRequeue(t *testing.T) {
	now := time.Now()
	entry := NewWebhookEntry(ProviderDeliveroo, "org", nil, nil, 5, now)

	assert.ErrorIs(t, entry.Requeue(now), ErrWebhookEntryNotExhausted)

	entry.MarkExhausted("bad signature")
	assert.True(t, entry.IsExhausted())

	require.NoError(t, entry.Requeue(now))
	assert.Equal(t, 0, entry.RetryCount)
	assert.True(t, entry.IsDue(now))

	entry.MarkProcessed(now)
	assert.ErrorIs(t, entry.Requeue(now), ErrWebhookEntryAlreadyComplete)
}
