package delivery

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/telemetry"
)

// stubTokens serves a fixed token and counts invalidations
type stubTokens struct {
	token       string
	invalidated int32
}

func (s *stubTokens) Token(context.Context) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

func (s *stubTokens) Authenticate(context.Context) error { return nil }

func (s *stubTokens) Invalidate() { atomic.AddInt32(&s.invalidated, 1) }

func newTestTransport(srv *providerServer, tokens tokenSource) *transport {
	return newTransport(integration.ProviderUberEats, newRestyClient(srv.URL, time.Second), tokens, decodeUberEatsError, zap.NewNop(), nil)
}

func TestTransport_Success(t *testing.T) {
	srv := newProviderServer(t)
	srv.handle("POST /things", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "t-1"})
	})
	tr := newTestTransport(srv, &stubTokens{token: "abc"})

	env := tr.makeRequest(context.Background(), "create", http.MethodPost, "/things", map[string]string{"name": "x"})
	require.True(t, env.Success)
	assert.Equal(t, http.StatusOK, env.StatusCode)

	var out map[string]string
	require.NoError(t, env.decode(integration.ProviderUberEats, &out))
	assert.Equal(t, "t-1", out["id"])

	req := srv.requestsTo("/things")[0]
	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"name":"x"}`, string(req.Body))
}

func TestTransport_ProviderErrorBody(t *testing.T) {
	srv := newProviderServer(t)
	srv.handle("POST /orders/1/accept", func(w http.ResponseWriter, r *http.Request) {
		writeRaw(w, http.StatusConflict, `{"code":"order_expired","message":"Order can no longer be accepted"}`)
	})
	tr := newTestTransport(srv, &stubTokens{token: "abc"})

	env := tr.makeRequest(context.Background(), "accept", http.MethodPost, "/orders/1/accept", nil)
	require.False(t, env.Success)
	assert.Equal(t, "order_expired", env.Err.Code)
	assert.Equal(t, "Order can no longer be accepted", env.Err.Message)
	assert.Equal(t, http.StatusConflict, env.Err.StatusCode)
	assert.Contains(t, env.Err.Body, "order_expired")
	assert.ErrorIs(t, env.Err, integration.ErrPlatformRequestFailed)
}

func TestTransport_HTTPStatusCodeWithoutBody(t *testing.T) {
	srv := newProviderServer(t)
	srv.handle("GET /boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	tr := newTestTransport(srv, &stubTokens{token: "abc"})

	env := tr.makeRequest(context.Background(), "boom", http.MethodGet, "/boom", nil)
	require.False(t, env.Success)
	assert.Equal(t, "HTTP_500", env.Err.Code)
	assert.Equal(t, "Internal Server Error", env.Err.Message)
}

func TestTransport_UnauthorizedInvalidatesToken(t *testing.T) {
	srv := newProviderServer(t)
	srv.handle("GET /private", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	tokens := &stubTokens{token: "stale"}
	tr := newTestTransport(srv, tokens)

	env := tr.makeRequest(context.Background(), "private", http.MethodGet, "/private", nil)
	require.False(t, env.Success)
	assert.Equal(t, "HTTP_401", env.Err.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokens.invalidated))
}

func TestTransport_NetworkError(t *testing.T) {
	srv := newProviderServer(t)
	tr := newTestTransport(srv, &stubTokens{token: "abc"})
	srv.Close()

	env := tr.makeRequest(context.Background(), "down", http.MethodGet, "/anything", nil)
	require.False(t, env.Success)
	assert.Equal(t, integration.CodeNetworkError, env.Err.Code)
}

func TestTransport_AuthFailureSkipsRequest(t *testing.T) {
	srv := newProviderServer(t)
	tr := newTransport(integration.ProviderJustEat, newRestyClient(srv.URL, time.Second),
		newStaticTokenSource(integration.ProviderJustEat, ""), decodeJustEatError, zap.NewNop(), nil)

	env := tr.makeRequest(context.Background(), "orders", http.MethodGet, "/orders", nil)
	require.False(t, env.Success)
	assert.Equal(t, integration.CodeAuthFailed, env.Err.Code)
	assert.Empty(t, srv.paths())
}

func TestEnvelope_DecodeInvalidJSON(t *testing.T) {
	env := envelope{Success: true, Data: []byte("not json")}
	var v map[string]any
	err := env.decode(integration.ProviderDeliveroo, &v)
	assert.ErrorIs(t, err, integration.ErrPlatformInvalidResponse)

	err = envelope{Success: true}.decode(integration.ProviderDeliveroo, &v)
	assert.ErrorIs(t, err, integration.ErrPlatformInvalidResponse)
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("a", maxErrorBodyLog+10)
	assert.Len(t, truncateBody([]byte(long)), maxErrorBodyLog)
	assert.Equal(t, "short", truncateBody([]byte("short")))
}

func TestTransport_RecordsClientSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	srv := newProviderServer(t)
	srv.handle("GET /orders/ok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "ok"})
	})
	srv.handle("POST /orders/late/accept", func(w http.ResponseWriter, r *http.Request) {
		writeRaw(w, http.StatusConflict, `{"code":"order_expired","message":"Order can no longer be accepted"}`)
	})
	tr := newTestTransport(srv, &stubTokens{token: "abc"})

	tr.makeRequest(context.Background(), "get_order", http.MethodGet, "/orders/ok", nil)
	tr.makeRequest(context.Background(), "accept_order", http.MethodPost, "/orders/late/accept", nil)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "delivery.get_order", ok.Name())
	assert.Equal(t, trace.SpanKindClient, ok.SpanKind())
	assert.NotEqual(t, codes.Error, ok.Status().Code)

	failed := spans[1]
	assert.Equal(t, "delivery.accept_order", failed.Name())
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Equal(t, "Order can no longer be accepted", failed.Status().Description)
	attrs := make(map[string]string)
	for _, kv := range failed.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "ubereats", attrs[telemetry.AttrProvider])
	assert.Equal(t, "order_expired", attrs[telemetry.AttrErrorCode])
	assert.Equal(t, "409", attrs["http.response.status_code"])
}
