package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls GORM instrumentation
type DBConfig struct {
	TraceEnabled       bool          // register otelgorm spans
	LogFullSQL         bool          // keep bound variables in span statements
	SlowQueryThreshold time.Duration // default 200ms
	PoolStatsInterval  time.Duration // default 15s
	DBSystem           string
}

// DBConfigFrom derives the instrumentation settings for a database driver
func DBConfigFrom(cfg config.TelemetryConfig, driver string) DBConfig {
	system := "postgresql"
	if driver == config.DriverSQLite {
		system = "sqlite"
	}
	return DBConfig{
		TraceEnabled:       cfg.Enabled && cfg.DBTraceEnabled,
		LogFullSQL:         cfg.DBLogFullSQL,
		SlowQueryThreshold: cfg.DBSlowQueryThresh,
		DBSystem:           system,
	}
}

// DBInstrumentation records query counts, latencies, slow queries and pool
// usage of a GORM database, and annotates the active span of each query
type DBInstrumentation struct {
	cfg    DBConfig
	logger *zap.Logger

	queryTotal         *Counter
	queryDuration      *Histogram
	slowQueryTotal     *Counter
	poolConnections    *Gauge
	poolConnectionsMax *Gauge

	sqlDB    *sql.DB
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type queryStartKey struct{}

// InstrumentDB registers tracing and metric callbacks on db
func InstrumentDB(db *gorm.DB, meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval <= 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	d := &DBInstrumentation{cfg: cfg, logger: logger, stopCh: make(chan struct{})}

	var err error
	if d.queryTotal, err = NewCounter(meter, "db_query_total", "Database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if d.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if d.slowQueryTotal, err = NewCounter(meter, "db_slow_query_total", "Queries slower than the slow query threshold", "{query}"); err != nil {
		return nil, err
	}
	if d.poolConnections, err = NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}"); err != nil {
		return nil, err
	}
	if d.poolConnectionsMax, err = NewGauge(meter, "db_pool_connections_max", "Maximum open connections", "{connection}"); err != nil {
		return nil, err
	}

	if cfg.TraceEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, err
		}
	}
	if err := db.Use(d); err != nil {
		return nil, err
	}
	if d.sqlDB, err = db.DB(); err != nil {
		return nil, err
	}

	logger.Info("Database instrumentation registered",
		zap.Bool("tracing", cfg.TraceEnabled),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return d, nil
}

// Name implements gorm.Plugin
func (d *DBInstrumentation) Name() string {
	return "fulfillment:db_instrumentation"
}

// Initialize implements gorm.Plugin
func (d *DBInstrumentation) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("instrumentation:before_create", d.before),
		cb.Create().After("gorm:create").Register("instrumentation:after_create", d.after("INSERT")),
		cb.Query().Before("gorm:query").Register("instrumentation:before_query", d.before),
		cb.Query().After("gorm:query").Register("instrumentation:after_query", d.after("SELECT")),
		cb.Update().Before("gorm:update").Register("instrumentation:before_update", d.before),
		cb.Update().After("gorm:update").Register("instrumentation:after_update", d.after("UPDATE")),
		cb.Delete().Before("gorm:delete").Register("instrumentation:before_delete", d.before),
		cb.Delete().After("gorm:delete").Register("instrumentation:after_delete", d.after("DELETE")),
		cb.Row().Before("gorm:row").Register("instrumentation:before_row", d.before),
		cb.Row().After("gorm:row").Register("instrumentation:after_row", d.after("")),
		cb.Raw().Before("gorm:raw").Register("instrumentation:before_raw", d.before),
		cb.Raw().After("gorm:raw").Register("instrumentation:after_raw", d.after("")),
	)
}

func (d *DBInstrumentation) before(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
}

// after records the query. An empty operation is read from the SQL text.
func (d *DBInstrumentation) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		op := operation
		if op == "" {
			op = detectOperationType(db.Statement.SQL.String())
		}

		var elapsed time.Duration
		if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
			elapsed = time.Since(start)
		}
		slow := elapsed > d.cfg.SlowQueryThreshold

		d.RecordQuery(ctx, op, db.Statement.Table, elapsed)
		d.annotateSpan(trace.SpanFromContext(ctx), db, elapsed, slow)
	}
}

// RecordQuery records one finished query
func (d *DBInstrumentation) RecordQuery(ctx context.Context, operation, table string, elapsed time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}
	d.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	d.queryDuration.RecordDuration(ctx, elapsed, AttrDBOperation.String(operation))

	if elapsed > d.cfg.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		d.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

func (d *DBInstrumentation) annotateSpan(span trace.Span, db *gorm.DB, elapsed time.Duration, slow bool) {
	if !span.IsRecording() {
		return
	}
	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
	if slow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", d.cfg.SlowQueryThreshold.Milliseconds()),
		))
	}
}

// StartPoolStatsCollection samples the connection pool until ctx ends or
// Stop is called
func (d *DBInstrumentation) StartPoolStatsCollection(ctx context.Context) {
	if d.sqlDB == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(d.cfg.PoolStatsInterval)
		defer ticker.Stop()

		d.collectPoolStats(ctx)
		for {
			select {
			case <-ticker.C:
				d.collectPoolStats(ctx)
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (d *DBInstrumentation) collectPoolStats(ctx context.Context) {
	stats := d.sqlDB.Stats()
	d.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	d.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	d.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	d.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool stats collection. Safe to call multiple times.
func (d *DBInstrumentation) Stop() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.wg.Wait()
	})
}

func detectOperationType(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}
