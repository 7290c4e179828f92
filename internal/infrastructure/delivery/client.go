package delivery

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/metrics"
)

// Credential keys read from the stored integration record
const (
	CredentialClientID     = "client_id"
	CredentialClientSecret = "client_secret"
	CredentialBrandID      = "brand_id"
	CredentialAPIToken     = "api_token"
)

// clientDeps carries the collaborators shared by every provider client
type clientDeps struct {
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func (d clientDeps) withDefaults() clientDeps {
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeoutSeconds * time.Second
	}
	return d
}

// resultError returns the failure carried by env, nil on success
func resultError(env envelope) error {
	if env.Success {
		return nil
	}
	return env.Err
}

// fetchError converts a failed single-entity fetch, mapping 404 onto NOT_FOUND
func fetchError(env envelope) error {
	if env.Success {
		return nil
	}
	if env.StatusCode == http.StatusNotFound {
		pe := *env.Err
		pe.Code = integration.CodeNotFound
		return &pe
	}
	return env.Err
}

// unsupportedTransition is returned without any network call
func unsupportedTransition(provider integration.Provider, status integration.OrderStatus) error {
	return integration.NewPlatformError(provider, integration.CodeUnsupportedTransition,
		fmt.Sprintf("no endpoint for status %q", status))
}

// invalidPayload wraps a webhook decoding failure
func invalidPayload(provider integration.Provider, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", integration.ErrInvalidWebhookPayload, provider, fmt.Sprintf(format, args...))
}

// applyFilter narrows orders client-side by status, placement time and count
func applyFilter(orders []integration.NormalizedOrder, filter integration.OrderFilter) []integration.NormalizedOrder {
	result := make([]integration.NormalizedOrder, 0, len(orders))
	for _, o := range orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.ProviderStatus != "" && !strings.EqualFold(o.ProviderStatus, filter.ProviderStatus) {
			continue
		}
		if !filter.Since.IsZero() && o.PlacedAt.Before(filter.Since) {
			continue
		}
		result = append(result, o)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result
}

// parseTimestamp parses an RFC 3339 timestamp, returning the zero time when absent or malformed
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// minutes converts a minute count to a duration
func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// escape escapes a provider identifier for use as a path segment
func escape(id string) string {
	return url.PathEscape(id)
}

// identityMappings maps every menu item to itself
func identityMappings(menu *integration.Menu) map[string]string {
	mappings := make(map[string]string)
	for _, item := range menu.Items() {
		mappings[item.ID] = item.ID
	}
	return mappings
}
