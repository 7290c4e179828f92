// Package router assembles the gin engine serving the delivery integration API.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pos/backend/internal/infrastructure/logger"
	"github.com/pos/backend/internal/infrastructure/metrics"
	"github.com/pos/backend/internal/interfaces/http/handler"
	"github.com/pos/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar mounts a handler's routes on the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config holds router configuration
type Config struct {
	APIVersion       string
	MaxBodySize      int64
	WebhookRateLimit int // per minute per organization and provider, 0 disables
	TrustedProxies   []string
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler // served at /metrics when set
	Tracing          middleware.TracingConfig
	Logger           *zap.Logger
}

// Handlers are the HTTP handlers the router mounts
type Handlers struct {
	Health       *handler.HealthHandler
	Webhooks     *handler.WebhookHandler
	Integrations *handler.IntegrationHandler
	Orders       *handler.OrderHandler
}

// Router owns the engine and the background resources of its middleware
type Router struct {
	engine  *gin.Engine
	limiter *middleware.RateLimiter
}

// New builds the engine: tracing, request logging and recovery on every route,
// provider webhook ingestion at the root and the operator API under /api/<version>.
func New(cfg Config, h Handlers) (*Router, error) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	if len(cfg.Tracing.Skip) == 0 {
		cfg.Tracing.Skip = []string{"/metrics", "/health", "/health/live"}
	}
	engine.Use(
		middleware.Tracing(cfg.Tracing),
		logger.GinMiddleware(cfg.Logger),
		logger.Recovery(cfg.Logger),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(cfg.Metrics, "/metrics", "/health", "/health/live"),
		middleware.BodyLimit(cfg.MaxBodySize),
	)

	r := &Router{engine: engine}

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
		engine.GET("/health/live", h.Health.Live)
	}
	if cfg.MetricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	if h.Webhooks != nil {
		var pre []gin.HandlerFunc
		if cfg.WebhookRateLimit > 0 {
			r.limiter = middleware.NewRateLimiter(cfg.WebhookRateLimit, time.Minute)
			pre = append(pre, middleware.RateLimitByKey(r.limiter, middleware.WebhookKey))
		}
		h.Webhooks.RegisterIngest(engine, pre...)
	}

	var registrars []RouteRegistrar
	if h.Integrations != nil {
		registrars = append(registrars, h.Integrations)
	}
	if h.Orders != nil {
		registrars = append(registrars, h.Orders)
	}
	if h.Webhooks != nil {
		registrars = append(registrars, h.Webhooks)
	}

	api := engine.Group("/api/" + cfg.APIVersion)
	for _, registrar := range registrars {
		registrar.RegisterRoutes(api)
	}
	return r, nil
}

// Engine returns the gin engine to serve
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Close stops background work started by middleware
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
}
