package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/metrics"
	"github.com/pos/backend/internal/infrastructure/telemetry"
)

// maxErrorBodyLog bounds the raw body kept on a PlatformError
const maxErrorBodyLog = 2048

// envelope is the tagged result of every provider request
type envelope struct {
	Success    bool
	Data       []byte
	StatusCode int
	Err        *integration.PlatformError
}

// decode unmarshals the response body into v
func (e envelope) decode(provider integration.Provider, v any) error {
	if len(e.Data) == 0 {
		return integration.NewPlatformError(provider, integration.CodeInvalidResponse, "empty response body")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return integration.NewPlatformError(provider, integration.CodeInvalidResponse, fmt.Sprintf("failed to decode response: %v", err))
	}
	return nil
}

// errorDecoder extracts the provider's error code and message from an error body
type errorDecoder func(body []byte) (code, message string)

// transport performs authenticated JSON requests against one provider API
type transport struct {
	provider    integration.Provider
	client      *resty.Client
	tokens      tokenSource
	decodeError errorDecoder
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func newTransport(provider integration.Provider, client *resty.Client, tokens tokenSource, decodeError errorDecoder, logger *zap.Logger, m *metrics.Metrics) *transport {
	return &transport{
		provider:    provider,
		client:      client,
		tokens:      tokens,
		decodeError: decodeError,
		logger:      logger,
		metrics:     m,
	}
}

// newRestyClient builds the HTTP client for one provider API
func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
}

// makeRequest ensures authentication is fresh, performs the request, and wraps the outcome.
// It never panics or returns a Go error: failures are carried in the envelope.
func (t *transport) makeRequest(ctx context.Context, operation, method, path string, body any) envelope {
	ctx, span := telemetry.StartSpan(ctx, "delivery."+operation,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.AttrProvider, string(t.provider)),
		telemetry.WithAttribute(telemetry.AttrOperation, operation),
		telemetry.WithAttribute("http.request.method", method),
		telemetry.WithAttribute("url.path", path),
	)
	defer span.End()

	start := time.Now()
	env := t.do(ctx, method, path, body)

	if env.StatusCode != 0 {
		telemetry.SetAttributes(span, "http.response.status_code", env.StatusCode)
	}
	outcome := metrics.OutcomeSuccess
	if !env.Success {
		outcome = metrics.OutcomeFailure
		telemetry.SetAttributes(span, telemetry.AttrErrorCode, env.Err.Code)
		span.SetStatus(codes.Error, env.Err.Message)
		t.logger.Warn("provider request failed",
			zap.String("provider", string(t.provider)),
			zap.String("operation", operation),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("code", env.Err.Code),
			zap.Int("status", env.StatusCode),
			zap.String("message", env.Err.Message),
		)
	}
	t.metrics.ObserveProviderCall(string(t.provider), operation, outcome, time.Since(start).Seconds())
	return env
}

func (t *transport) do(ctx context.Context, method, path string, body any) envelope {
	tok, err := t.tokens.Token(ctx)
	if err != nil {
		var pe *integration.PlatformError
		if !errors.As(err, &pe) {
			pe = integration.NewPlatformError(t.provider, integration.CodeAuthFailed, err.Error())
		}
		return envelope{Err: pe}
	}

	req := t.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Authorization", tok.Type()+" "+tok.AccessToken)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return envelope{Err: integration.NewPlatformError(t.provider, integration.CodeNetworkError, err.Error())}
	}
	raw := resp.RawBody()
	defer raw.Close()

	data, err := io.ReadAll(io.LimitReader(raw, maxResponseSize))
	if err != nil {
		return envelope{
			StatusCode: resp.StatusCode(),
			Err:        integration.NewPlatformError(t.provider, integration.CodeNetworkError, fmt.Sprintf("failed to read response: %v", err)),
		}
	}

	status := resp.StatusCode()
	if status >= http.StatusBadRequest {
		if status == http.StatusUnauthorized {
			t.tokens.Invalidate()
		}
		code, message := "", ""
		if t.decodeError != nil {
			code, message = t.decodeError(data)
		}
		if code == "" {
			code = integration.HTTPErrorCode(status)
		}
		if message == "" {
			message = http.StatusText(status)
		}
		pe := integration.NewPlatformError(t.provider, code, message)
		pe.StatusCode = status
		pe.Body = truncateBody(data)
		return envelope{StatusCode: status, Data: data, Err: pe}
	}

	return envelope{Success: true, StatusCode: status, Data: data}
}

// truncateBody keeps at most maxErrorBodyLog bytes of a response body
func truncateBody(b []byte) string {
	if len(b) > maxErrorBodyLog {
		return string(b[:maxErrorBodyLog])
	}
	return string(b)
}
