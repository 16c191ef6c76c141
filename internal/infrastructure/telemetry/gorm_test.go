package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type gadget struct {
	ID   uint
	Code string
}

func setupInstrumentedDB(t *testing.T, cfg DBConfig) (*gorm.DB, *DBInstrumentation, *sdkmetric.ManualReader) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&gadget{}))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	inst, err := InstrumentDB(db, mp.Meter("db.client"), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(inst.Stop)
	return db, inst, reader
}

func queryCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "db_query_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				op, _ := dp.Attributes.Value(AttrDBOperation)
				counts[op.AsString()] = dp.Value
			}
		}
	}
	return counts
}

func TestInstrumentDB_RecordsQueries(t *testing.T) {
	db, _, reader := setupInstrumentedDB(t, DBConfig{})
	ctx := context.Background()

	require.NoError(t, db.WithContext(ctx).Create(&gadget{Code: "A"}).Error)
	var got []gadget
	require.NoError(t, db.WithContext(ctx).Find(&got).Error)
	require.NoError(t, db.WithContext(ctx).Model(&gadget{}).Where("code = ?", "A").Update("code", "B").Error)
	require.NoError(t, db.WithContext(ctx).Exec("DELETE FROM gadgets").Error)

	counts := queryCounts(t, reader)
	assert.Equal(t, int64(1), counts["INSERT"])
	assert.Equal(t, int64(1), counts["SELECT"])
	assert.Equal(t, int64(1), counts["UPDATE"])
	assert.Equal(t, int64(1), counts["DELETE"])
}

func TestInstrumentDB_AnnotatesActiveSpan(t *testing.T) {
	db, _, _ := setupInstrumentedDB(t, DBConfig{SlowQueryThreshold: time.Nanosecond})

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "document.create")
	require.NoError(t, db.WithContext(ctx).Create(&gadget{Code: "A"}).Error)
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range ended[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(1), attrs["db.rows_affected"].AsInt64())
	assert.Equal(t, "gadgets", attrs["db.sql.table"].AsString())
	assert.True(t, attrs["db.slow_query"].AsBool())

	require.NotEmpty(t, ended[0].Events())
	assert.Equal(t, "slow_query_warning", ended[0].Events()[0].Name)
}

func TestInstrumentDB_PoolStats(t *testing.T) {
	_, inst, reader := setupInstrumentedDB(t, DBConfig{PoolStatsInterval: time.Hour})

	inst.StartPoolStatsCollection(context.Background())
	inst.Stop()
	inst.Stop()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["db_pool_connections"])
	assert.True(t, names["db_pool_connections_max"])
}

func TestDBConfigFrom(t *testing.T) {
	cfg := config.TelemetryConfig{Enabled: true, DBTraceEnabled: true, DBSlowQueryThresh: time.Second}

	pg := DBConfigFrom(cfg, config.DriverPostgres)
	assert.True(t, pg.TraceEnabled)
	assert.Equal(t, "postgresql", pg.DBSystem)
	assert.Equal(t, time.Second, pg.SlowQueryThreshold)

	cfg.Enabled = false
	lite := DBConfigFrom(cfg, config.DriverSQLite)
	assert.False(t, lite.TraceEnabled, "db tracing needs telemetry enabled")
	assert.Equal(t, "sqlite", lite.DBSystem)
}

func TestDetectOperationType(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM sales_documents":             "SELECT",
		"  insert into items values (1)":            "INSERT",
		"UPDATE item_warehouse_availability SET x=1": "UPDATE",
		"delete from free_item_rules":               "DELETE",
		"SET LOCAL lock_timeout = '5000ms'":          "OTHER",
		"":                                          "OTHER",
	}
	for sql, want := range tests {
		assert.Equal(t, want, detectOperationType(sql), sql)
	}
}
