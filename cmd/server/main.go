package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	integrationapp "github.com/pos/backend/internal/application/integration"
	"github.com/pos/backend/internal/domain/integration"
	"github.com/pos/backend/internal/infrastructure/cache"
	"github.com/pos/backend/internal/infrastructure/config"
	"github.com/pos/backend/internal/infrastructure/delivery"
	"github.com/pos/backend/internal/infrastructure/jobs"
	"github.com/pos/backend/internal/infrastructure/logger"
	"github.com/pos/backend/internal/infrastructure/metrics"
	"github.com/pos/backend/internal/infrastructure/persistence"
	"github.com/pos/backend/internal/infrastructure/scheduler"
	"github.com/pos/backend/internal/infrastructure/telemetry"
	"github.com/pos/backend/internal/infrastructure/webhook"
	"github.com/pos/backend/internal/interfaces/http/handler"
	"github.com/pos/backend/internal/interfaces/http/middleware"
	"github.com/pos/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting POS delivery backend",
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
	)
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.Registry("pos")

	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 0)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		DBName:             cfg.Database.DBName,
	}, log); err != nil {
		return fmt.Errorf("register database tracing: %w", err)
	}

	integrationRepo := persistence.NewGormIntegrationRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	webhookRepo := persistence.NewGormWebhookRepository(db.DB)

	locker, err := cache.NewOrderLockerFactory(cfg.Redis, cache.WithLogger(log)).CreateLocker()
	if err != nil {
		return fmt.Errorf("create order locker: %w", err)
	}
	checks := map[string]handler.HealthCheck{"database": db.PingContext}
	if redisLocker, ok := locker.(*cache.RedisOrderLocker); ok {
		checks["redis"] = redisLocker.Ping
		defer func() { _ = redisLocker.Close() }()
	}

	deliveryCfg := deliveryConfig(cfg.Delivery)
	if err := deliveryCfg.Validate(); err != nil {
		return fmt.Errorf("delivery configuration: %w", err)
	}
	factory := delivery.NewFactory(deliveryCfg, log, delivery.WithMetrics(m))
	clients := delivery.NewClientCache(factory, cfg.Delivery.ClientCacheTTL)
	invoker := jobs.NewInvoker(cfg.Jobs, log)

	registryService := integrationapp.NewRegistryService(
		integrationRepo,
		orderRepo,
		clients,
		locker,
		integrationapp.RegistryConfig{
			PublicBaseURL: cfg.Delivery.PublicBaseURL,
			LockTTL:       cfg.Orders.LockTTL,
		},
		log,
		integrationapp.WithConnectivityChecker(invoker),
		integrationapp.WithMenuSyncInvoker(invoker),
		integrationapp.WithSignatureVerifier(delivery.NewSignatureVerifier()),
	)

	queue := webhook.NewQueue(webhookRepo, cfg.Webhook.MaxRetries, m, log)
	processor := webhook.NewProcessor(webhookRepo, registryService, webhook.ProcessorConfig{
		BatchSize:    cfg.Webhook.BatchSize,
		PollInterval: cfg.Webhook.PollInterval,
		Lease:        cfg.Webhook.Lease,
		RetryPolicy: integration.RetryPolicy{
			BaseBackoff: cfg.Webhook.BaseBackoff,
			MaxBackoff:  cfg.Webhook.MaxBackoff,
		},
	}, m, log)

	maintenance := scheduler.NewMaintenance(scheduler.MaintenanceConfig{
		PurgeCron:       cfg.Scheduler.PurgeCron,
		ReconcileCron:   cfg.Scheduler.ReconcileCron,
		Retention:       cfg.Webhook.Retention,
		ReconcileWindow: cfg.Scheduler.ReconcileWindow,
		JobTimeout:      cfg.Scheduler.JobTimeout,
	}, processor, registryService, integrationRepo, log)

	rt, err := router.New(router.Config{
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		WebhookRateLimit: cfg.HTTP.WebhookRateLimit,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		Metrics:          m,
		MetricsHandler:   promhttp.Handler(),
		Tracing: middleware.TracingConfig{
			Enabled:     tp.IsEnabled(),
			ServiceName: cfg.Telemetry.ServiceName,
		},
		Logger: log,
	}, router.Handlers{
		Health:       handler.NewHealthHandler(cfg.App.Name, version, checks),
		Webhooks:     handler.NewWebhookHandler(queue, processor),
		Integrations: handler.NewIntegrationHandler(registryService),
		Orders:       handler.NewOrderHandler(registryService),
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Webhook.ProcessorEnabled {
		if err := processor.Start(ctx); err != nil {
			return fmt.Errorf("start webhook processor: %w", err)
		}
	}
	if cfg.Scheduler.Enabled {
		if err := maintenance.Start(ctx); err != nil {
			return fmt.Errorf("start maintenance scheduler: %w", err)
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        rt.Engine(),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := maintenance.Stop(shutdownCtx); err != nil {
		log.Error("Maintenance scheduler did not stop cleanly", zap.Error(err))
	}
	if err := processor.Stop(shutdownCtx); err != nil {
		log.Error("Webhook processor did not stop cleanly", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	return nil
}

func deliveryConfig(cfg config.DeliveryConfig) delivery.Config {
	endpoints := func(ep config.ProviderEndpoints) delivery.Endpoints {
		return delivery.Endpoints{AuthURL: ep.AuthURL, APIURL: ep.APIURL, Scope: ep.Scope}
	}
	return delivery.Config{
		UberEats:       endpoints(cfg.UberEats),
		Deliveroo:      endpoints(cfg.Deliveroo),
		JustEat:        endpoints(cfg.JustEat),
		TimeoutSeconds: int(cfg.Timeout / time.Second),
	}
}
