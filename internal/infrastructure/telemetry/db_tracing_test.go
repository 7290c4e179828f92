package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pos/backend/internal/infrastructure/telemetry"
)

type tracedRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	sr := setupTestTracer(t)
	db := openTestDB(t)

	require.NoError(t, telemetry.RegisterDBTracing(db, telemetry.DBTracingConfig{Enabled: false}, zap.NewNop()))
	require.NoError(t, db.WithContext(context.Background()).Create(&tracedRow{Name: "a"}).Error)

	assert.Empty(t, sr.Ended())
}

func TestRegisterDBTracing_AnnotatesQuerySpans(t *testing.T) {
	sr := setupTestTracer(t)
	db := openTestDB(t)

	require.NoError(t, telemetry.RegisterDBTracing(db, telemetry.DBTracingConfig{
		Enabled: true,
		DBName:  "pos",
		// every query counts as slow
		SlowQueryThreshold: 0,
	}, nil))

	ctx, parent := telemetry.StartSpan(context.Background(), "test.parent")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{Name: "a"}).Error)
	var rows []tracedRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	parent.End()

	var dbSpans int
	for _, s := range sr.Ended() {
		if s.Name() == "test.parent" {
			continue
		}
		dbSpans++
		assert.Equal(t, parent.SpanContext().TraceID(), s.SpanContext().TraceID())

		attrs := attrMap(s.Attributes())
		assert.Equal(t, "traced_rows", attrs["db.sql.table"].AsString(), s.Name())
		assert.True(t, attrs["db.slow_query"].AsBool(), s.Name())
	}
	assert.Equal(t, 2, dbSpans)
}
