package delivery

import (
	"errors"
	"net/url"
	"time"

	"github.com/pos/backend/internal/domain/integration"
)

// Production endpoints
const (
	UberEatsAuthURL = "https://auth.uber.com/oauth/v2/token"
	UberEatsAPIURL  = "https://api.uber.com"
	UberEatsScope   = "eats.store eats.order eats.store.orders.read eats.store.status.write"

	DeliverooAuthURL = "https://auth.developers.deliveroo.com/oauth2/token"
	DeliverooAPIURL  = "https://api.developers.deliveroo.com"

	JustEatAPIURL = "https://uk-partnerapi.just-eat.io"

	// DefaultTimeoutSeconds bounds every outbound provider request
	DefaultTimeoutSeconds = 30
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024
)

// Errors for delivery configuration
var (
	ErrConfigMissingAPIURL  = errors.New("delivery: API URL is required")
	ErrConfigMissingAuthURL = errors.New("delivery: auth URL is required")
	ErrConfigInvalidURL     = errors.New("delivery: invalid URL")
)

// Endpoints holds the base URLs of one provider
type Endpoints struct {
	// AuthURL is the OAuth token endpoint; empty for static-token providers
	AuthURL string
	// APIURL is the REST API base URL
	APIURL string
	// Scope is the OAuth scope requested with client credentials
	Scope string
}

// Config holds the outbound configuration shared by every provider client
type Config struct {
	UberEats  Endpoints
	Deliveroo Endpoints
	JustEat   Endpoints
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// DefaultConfig returns the production configuration
func DefaultConfig() Config {
	return Config{
		UberEats: Endpoints{
			AuthURL: UberEatsAuthURL,
			APIURL:  UberEatsAPIURL,
			Scope:   UberEatsScope,
		},
		Deliveroo: Endpoints{
			AuthURL: DeliverooAuthURL,
			APIURL:  DeliverooAPIURL,
		},
		JustEat: Endpoints{
			APIURL: JustEatAPIURL,
		},
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// Endpoints returns the endpoints of the given provider
func (c Config) Endpoints(p integration.Provider) Endpoints {
	switch p {
	case integration.ProviderUberEats:
		return c.UberEats
	case integration.ProviderDeliveroo:
		return c.Deliveroo
	case integration.ProviderJustEat:
		return c.JustEat
	default:
		return Endpoints{}
	}
}

// Timeout returns the request timeout, defaulting to 30s
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate validates the configuration
func (c Config) Validate() error {
	for _, p := range integration.AllProviders() {
		ep := c.Endpoints(p)
		if ep.APIURL == "" {
			return ErrConfigMissingAPIURL
		}
		if _, err := url.ParseRequestURI(ep.APIURL); err != nil {
			return ErrConfigInvalidURL
		}
		if p != integration.ProviderJustEat {
			if ep.AuthURL == "" {
				return ErrConfigMissingAuthURL
			}
			if _, err := url.ParseRequestURI(ep.AuthURL); err != nil {
				return ErrConfigInvalidURL
			}
		}
	}
	return nil
}
