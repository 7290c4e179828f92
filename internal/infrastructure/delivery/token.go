package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/metrics"
)

// defaultTokenTTL applies when the token endpoint omits expires_in
const defaultTokenTTL = time.Hour

// defaultTokenFetchTimeout bounds a token request when no transport timeout is configured
const defaultTokenFetchTimeout = 30 * time.Second

// tokenSource supplies the credentials attached to every provider request
type tokenSource interface {
	// Token returns a valid token, authenticating first when none is cached or it has expired
	Token(ctx context.Context) (*oauth2.Token, error)
	// Authenticate verifies credentials and clears a previous authentication failure
	Authenticate(ctx context.Context) error
	// Invalidate drops a cached token the provider rejected
	Invalidate()
}

// ---------------------------------------------------------------------------
// Static token (API key) source
// ---------------------------------------------------------------------------

// staticTokenSource serves a long-lived API token
type staticTokenSource struct {
	provider integration.Provider
	token    string
}

func newStaticTokenSource(provider integration.Provider, token string) *staticTokenSource {
	return &staticTokenSource{provider: provider, token: token}
}

func (s *staticTokenSource) Token(_ context.Context) (*oauth2.Token, error) {
	if s.token == "" {
		return nil, integration.NewPlatformError(s.provider, integration.CodeAuthFailed, "missing API token")
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

func (s *staticTokenSource) Authenticate(ctx context.Context) error {
	_, err := s.Token(ctx)
	return err
}

func (s *staticTokenSource) Invalidate() {}

// ---------------------------------------------------------------------------
// OAuth client-credentials source
// ---------------------------------------------------------------------------

// tokenResponse is the OAuth token endpoint response
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// tokenErrorResponse is the OAuth error body
type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// authFailure carries an authentication error and whether retrying may succeed
type authFailure struct {
	err       *integration.PlatformError
	transient bool
}

func (f *authFailure) Error() string { return f.err.Error() }

type fetchTokenFunc func(ctx context.Context) (*tokenResponse, error)

// oauthTokenSource caches one access token in memory.
// A token is valid while now < expiry. Concurrent callers that find it expired share a
// single token request, which outlives any one caller's cancellation. A credential rejection
// latches the source: every call fails with AUTH_FAILED until Authenticate succeeds.
type oauthTokenSource struct {
	provider integration.Provider
	fetch    fetchTokenFunc
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	token   *oauth2.Token
	authErr *integration.PlatformError
	group   singleflight.Group
}

func newOAuthTokenSource(provider integration.Provider, fetch fetchTokenFunc, timeout time.Duration, now func() time.Time, logger *zap.Logger, m *metrics.Metrics) *oauthTokenSource {
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = defaultTokenFetchTimeout
	}
	return &oauthTokenSource{
		provider: provider,
		fetch:    fetch,
		timeout:  timeout,
		now:      now,
		logger:   logger,
		metrics:  m,
	}
}

func (s *oauthTokenSource) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	if s.authErr != nil {
		err := s.authErr
		s.mu.Unlock()
		return nil, err
	}
	if tok := s.validLocked(); tok != nil {
		s.mu.Unlock()
		return tok, nil
	}
	s.mu.Unlock()
	return s.refresh(ctx)
}

func (s *oauthTokenSource) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	if s.authErr == nil && s.validLocked() != nil {
		s.mu.Unlock()
		return nil
	}
	s.authErr = nil
	s.mu.Unlock()

	_, err := s.refresh(ctx)
	return err
}

func (s *oauthTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
}

// validLocked returns the cached token if it has not expired. Caller holds s.mu.
func (s *oauthTokenSource) validLocked() *oauth2.Token {
	if s.token == nil || s.token.AccessToken == "" {
		return nil
	}
	if !s.now().Before(s.token.Expiry) {
		return nil
	}
	return s.token
}

func (s *oauthTokenSource) refresh(ctx context.Context) (*oauth2.Token, error) {
	v, err, _ := s.group.Do("token", func() (any, error) {
		s.mu.Lock()
		if tok := s.validLocked(); tok != nil {
			s.mu.Unlock()
			return tok, nil
		}
		s.mu.Unlock()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		resp, err := s.fetch(fetchCtx)

		s.mu.Lock()
		defer s.mu.Unlock()

		if err != nil {
			s.token = nil
			pe, latch := classifyAuthError(s.provider, err)
			if latch {
				s.authErr = pe
			}
			s.metrics.ObserveTokenRefresh(string(s.provider), metrics.OutcomeFailure)
			s.logger.Error("provider authentication failed",
				zap.String("provider", string(s.provider)),
				zap.Bool("latched", latch),
				zap.String("message", pe.Message),
			)
			return nil, pe
		}

		ttl := time.Duration(resp.ExpiresIn) * time.Second
		if resp.ExpiresIn <= 0 {
			ttl = defaultTokenTTL
		}
		tokenType := resp.TokenType
		if tokenType == "" {
			tokenType = "Bearer"
		}
		tok := &oauth2.Token{
			AccessToken: resp.AccessToken,
			TokenType:   tokenType,
			Expiry:      s.now().Add(ttl),
		}
		s.token = tok
		s.authErr = nil
		s.metrics.ObserveTokenRefresh(string(s.provider), metrics.OutcomeSuccess)
		s.logger.Debug("provider token refreshed",
			zap.String("provider", string(s.provider)),
			zap.Time("expires_at", tok.Expiry),
		)
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

// classifyAuthError converts a fetch error into AUTH_FAILED and reports whether it should latch
func classifyAuthError(provider integration.Provider, err error) (*integration.PlatformError, bool) {
	var af *authFailure
	if errors.As(err, &af) {
		return af.err, !af.transient
	}
	return integration.NewPlatformError(provider, integration.CodeAuthFailed, err.Error()), true
}

// ---------------------------------------------------------------------------
// Client-credentials token request
// ---------------------------------------------------------------------------

// clientCredentials describes one OAuth client-credentials grant
type clientCredentials struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
	Scope        string
	// BasicAuth sends the client credentials in the Authorization header instead of the form
	BasicAuth bool
}

// newClientCredentialsFetcher returns a fetchTokenFunc that performs the grant with client
func newClientCredentialsFetcher(provider integration.Provider, client *resty.Client, cc clientCredentials) fetchTokenFunc {
	return func(ctx context.Context) (*tokenResponse, error) {
		if cc.ClientID == "" || cc.ClientSecret == "" {
			return nil, &authFailure{
				err: integration.NewPlatformError(provider, integration.CodeAuthFailed, "missing client credentials"),
			}
		}

		form := map[string]string{"grant_type": "client_credentials"}
		if cc.Scope != "" {
			form["scope"] = cc.Scope
		}

		req := client.R().
			SetContext(ctx).
			SetResult(&tokenResponse{}).
			SetError(&tokenErrorResponse{})
		if cc.BasicAuth {
			req.SetBasicAuth(cc.ClientID, cc.ClientSecret)
		} else {
			form["client_id"] = cc.ClientID
			form["client_secret"] = cc.ClientSecret
		}

		resp, err := req.SetFormData(form).Post(cc.AuthURL)
		if err != nil {
			return nil, &authFailure{
				err:       integration.NewPlatformError(provider, integration.CodeAuthFailed, fmt.Sprintf("token request failed: %v", err)),
				transient: true,
			}
		}

		if resp.IsError() {
			message := fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode())
			if body, ok := resp.Error().(*tokenErrorResponse); ok && body != nil {
				if body.ErrorDescription != "" {
					message = body.ErrorDescription
				} else if body.Error != "" {
					message = body.Error
				}
			}
			pe := integration.NewPlatformError(provider, integration.CodeAuthFailed, message)
			pe.StatusCode = resp.StatusCode()
			pe.Body = truncateBody(resp.Body())
			return nil, &authFailure{
				err:       pe,
				transient: resp.StatusCode() >= 500 || resp.StatusCode() == 429,
			}
		}

		tr, ok := resp.Result().(*tokenResponse)
		if !ok || tr == nil || tr.AccessToken == "" {
			return nil, &authFailure{
				err:       integration.NewPlatformError(provider, integration.CodeAuthFailed, "token response has no access_token"),
				transient: true,
			}
		}
		return tr, nil
	}
}
