package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const queryStartKey = "pos:trace:start"

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled            bool
	LogFullSQL         bool          // keep query variables in spans; never in production
	SlowQueryThreshold time.Duration // queries slower than this are flagged on their span
	DBName             string
}

// callbackRegistrar is satisfied by gorm's callback builders
type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// RegisterDBTracing installs the otelgorm plugin on db plus callbacks that annotate each
// query span with the affected table, row count, errors and slow-query flags.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Debug("database tracing disabled")
		return nil
	}

	// annotations must run before otelgorm ends the span, so they are registered first
	cb := db.Callback()
	hooks := []struct {
		registrar callbackRegistrar
		name      string
		fn        func(*gorm.DB)
	}{
		{cb.Create().Before("gorm:create"), "pos:trace:before:create", markQueryStart},
		{cb.Query().Before("gorm:query"), "pos:trace:before:query", markQueryStart},
		{cb.Update().Before("gorm:update"), "pos:trace:before:update", markQueryStart},
		{cb.Delete().Before("gorm:delete"), "pos:trace:before:delete", markQueryStart},
		{cb.Row().Before("gorm:row"), "pos:trace:before:row", markQueryStart},
		{cb.Raw().Before("gorm:raw"), "pos:trace:before:raw", markQueryStart},
		{cb.Create().After("gorm:create").Before("otel:after:create"), "pos:trace:after:create", annotate(cfg.SlowQueryThreshold)},
		{cb.Query().After("gorm:query").Before("otel:after:query"), "pos:trace:after:query", annotate(cfg.SlowQueryThreshold)},
		{cb.Update().After("gorm:update").Before("otel:after:update"), "pos:trace:after:update", annotate(cfg.SlowQueryThreshold)},
		{cb.Delete().After("gorm:delete").Before("otel:after:delete"), "pos:trace:after:delete", annotate(cfg.SlowQueryThreshold)},
		{cb.Row().After("gorm:row").Before("otel:after:row"), "pos:trace:after:row", annotate(cfg.SlowQueryThreshold)},
		{cb.Raw().After("gorm:raw").Before("otel:after:raw"), "pos:trace:after:raw", annotate(cfg.SlowQueryThreshold)},
	}
	for _, h := range hooks {
		if err := h.registrar.Register(h.name, h.fn); err != nil {
			return err
		}
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Info("database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
		zap.String("db_name", cfg.DBName))
	return nil
}

func markQueryStart(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func annotate(slowThreshold time.Duration) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Statement.Context == nil {
			return
		}
		span := trace.SpanFromContext(db.Statement.Context)
		if !span.IsRecording() {
			return
		}

		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.RecordError(db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
		}

		v, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		if elapsed := time.Since(start); elapsed > slowThreshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
