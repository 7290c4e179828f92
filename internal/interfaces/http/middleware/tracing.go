package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pos/backend/internal/infrastructure/telemetry"
)

// maxTraceAttrLength bounds header and query values copied onto spans
const maxTraceAttrLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	// TracerProvider overrides the global provider when set
	TracerProvider trace.TracerProvider
	// Skip lists paths that never get a server span
	Skip []string
}

// Tracing starts a server span per request with otelgin. Disabled config yields a pass-through.
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	var opts []otelgin.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	base := otelgin.Middleware(cfg.ServiceName, opts...)

	skipped := make(map[string]struct{}, len(cfg.Skip))
	for _, p := range cfg.Skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		base(c)
	}
}

// SpanEnricher annotates the request span once the handler has run: request ID,
// organization of a webhook delivery, and error status for 4xx/5xx responses.
// It must run after Tracing so the span is still open.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if id := c.GetString("request_id"); id != "" {
			span.SetAttributes(attribute.String("request_id", truncate(id)))
		}
		if org := c.Query("org"); org != "" {
			span.SetAttributes(attribute.String(telemetry.AttrOrganizationID, truncate(org)))
		}

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
}

func truncate(s string) string {
	if len(s) > maxTraceAttrLength {
		return s[:maxTraceAttrLength]
	}
	return s
}
