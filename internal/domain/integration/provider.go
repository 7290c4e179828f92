package integration

import "strings"

// Provider identifies a delivery marketplace. The set is closed.
type Provider string

const (
	// ProviderUberEats authenticates with OAuth client credentials and accepts/denies in one call
	ProviderUberEats Provider = "ubereats"
	// ProviderDeliveroo authenticates with OAuth client credentials and requires an action call
	// followed by a sync-status call for every accept/reject
	ProviderDeliveroo Provider = "deliveroo"
	// ProviderJustEat authenticates with a static API token
	ProviderJustEat Provider = "justeat"
)

// AllProviders returns the supported providers in display order
func AllProviders() []Provider {
	return []Provider{ProviderUberEats, ProviderDeliveroo, ProviderJustEat}
}

// IsValid returns true if the provider is supported
func (p Provider) IsValid() bool {
	switch p {
	case ProviderUberEats, ProviderDeliveroo, ProviderJustEat:
		return true
	}
	return false
}

// String returns the string representation
func (p Provider) String() string {
	return string(p)
}

// DisplayName returns the marketplace name shown to staff
func (p Provider) DisplayName() string {
	switch p {
	case ProviderUberEats:
		return "Uber Eats"
	case ProviderDeliveroo:
		return "Deliveroo"
	case ProviderJustEat:
		return "Just Eat"
	default:
		return string(p)
	}
}

// ParseProvider parses a provider identifier case-insensitively.
// Hyphens and underscores are ignored so "uber-eats" and "UBER_EATS" both resolve.
func ParseProvider(s string) (Provider, error) {
	normalized := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	p := Provider(normalized)
	if !p.IsValid() {
		return "", ErrUnsupportedProvider
	}
	return p, nil
}
