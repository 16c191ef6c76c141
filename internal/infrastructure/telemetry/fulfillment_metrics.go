package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// FulfillmentMetrics provides business metrics for the fulfillment pipeline.
// It tracks document creation, conversions, ledger contention and stock health.
//
// All Record methods are safe to call on a nil receiver so services can run
// without metrics wired.
type FulfillmentMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	documentCreatedTotal   *Counter
	conversionTotal        *Counter
	ledgerRetryTotal       *Counter
	insufficientStockTotal *Counter

	// Gauge metrics (point-in-time values)
	committedQuantity *Gauge
	reorderCount      *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	stockProvider StockMetricsProvider
}

// StockMetricsProvider provides ledger data for periodic metrics collection.
// This interface allows the telemetry layer to query ledger state without
// depending on the inventory domain directly.
type StockMetricsProvider interface {
	// GetCommittedQuantityByWarehouse returns total committed quantity per warehouse
	GetCommittedQuantityByWarehouse(ctx context.Context) (map[string]int64, error)

	// GetReorderCount returns the number of ledger rows at or below their reorder level
	GetReorderCount(ctx context.Context) (int64, error)
}

// FulfillmentMetricsConfig holds configuration for fulfillment metrics.
type FulfillmentMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	StockProvider   StockMetricsProvider
}

// NewFulfillmentMetrics creates a new FulfillmentMetrics instance.
func NewFulfillmentMetrics(cfg FulfillmentMetricsConfig) (*FulfillmentMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fm := &FulfillmentMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		stockProvider: cfg.StockProvider,
	}

	var err error

	fm.documentCreatedTotal, err = NewCounter(
		cfg.Meter,
		"erp_document_created_total",
		"Total number of sales documents created",
		"{documents}",
	)
	if err != nil {
		return nil, err
	}

	fm.conversionTotal, err = NewCounter(
		cfg.Meter,
		"erp_document_conversion_total",
		"Total number of committed document conversions",
		"{conversions}",
	)
	if err != nil {
		return nil, err
	}

	fm.ledgerRetryTotal, err = NewCounter(
		cfg.Meter,
		"erp_ledger_retry_total",
		"Total number of units of work retried after a concurrency conflict",
		"{retries}",
	)
	if err != nil {
		return nil, err
	}

	fm.insufficientStockTotal, err = NewCounter(
		cfg.Meter,
		"erp_ledger_insufficient_stock_total",
		"Total number of commitments rejected for insufficient stock",
		"{rejections}",
	)
	if err != nil {
		return nil, err
	}

	fm.committedQuantity, err = NewGauge(
		cfg.Meter,
		"erp_inventory_committed_quantity",
		"Current committed quantity per warehouse",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	fm.reorderCount, err = NewGauge(
		cfg.Meter,
		"erp_inventory_reorder_count",
		"Number of ledger rows at or below their reorder level",
		"{rows}",
	)
	if err != nil {
		return nil, err
	}

	return fm, nil
}

// =============================================================================
// Document Metrics
// =============================================================================

// RecordDocumentCreated records a document creation.
func (fm *FulfillmentMetrics) RecordDocumentCreated(ctx context.Context, docType string) {
	if fm == nil {
		return
	}
	fm.documentCreatedTotal.Inc(ctx, AttrDocumentType.String(docType))
}

// RecordConversion records a committed conversion from sourceType to targetType.
func (fm *FulfillmentMetrics) RecordConversion(ctx context.Context, sourceType, targetType string) {
	if fm == nil {
		return
	}
	fm.conversionTotal.Inc(ctx,
		AttrSourceType.String(sourceType),
		AttrDocumentType.String(targetType),
	)
}

// =============================================================================
// Ledger Metrics
// =============================================================================

// RecordLedgerRetry records a retried unit of work.
func (fm *FulfillmentMetrics) RecordLedgerRetry(ctx context.Context, operation string) {
	if fm == nil {
		return
	}
	fm.ledgerRetryTotal.Inc(ctx, AttrOperation.String(operation))
}

// RecordInsufficientStock records a rejected commitment.
func (fm *FulfillmentMetrics) RecordInsufficientStock(ctx context.Context, itemCode, warehouse string) {
	if fm == nil {
		return
	}
	fm.insufficientStockTotal.Inc(ctx,
		AttrItemCode.String(itemCode),
		AttrWarehouse.String(warehouse),
	)
}

// RecordCommittedQuantity records the committed quantity of a warehouse.
func (fm *FulfillmentMetrics) RecordCommittedQuantity(ctx context.Context, warehouse string, quantity int64) {
	if fm == nil {
		return
	}
	fm.committedQuantity.Record(ctx, quantity, AttrWarehouse.String(warehouse))
}

// RecordReorderCount records the number of rows needing reorder.
func (fm *FulfillmentMetrics) RecordReorderCount(ctx context.Context, count int64) {
	if fm == nil {
		return
	}
	fm.reorderCount.Record(ctx, count)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts collecting the stock gauges every interval.
// It runs at most once per instance; Stop ends it.
func (fm *FulfillmentMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if fm == nil || fm.stockProvider == nil {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	fm.collectOnce.Do(func() {
		go fm.runPeriodicCollection(ctx, interval)
	})
}

func (fm *FulfillmentMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fm.collectStockMetrics(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-fm.stopChan:
			return
		case <-ticker.C:
			fm.collectStockMetrics(ctx)
		}
	}
}

func (fm *FulfillmentMetrics) collectStockMetrics(ctx context.Context) {
	committed, err := fm.stockProvider.GetCommittedQuantityByWarehouse(ctx)
	if err != nil {
		fm.logger.Warn("Failed to collect committed quantity metrics", zap.Error(err))
	} else {
		for warehouse, qty := range committed {
			fm.RecordCommittedQuantity(ctx, warehouse, qty)
		}
	}

	count, err := fm.stockProvider.GetReorderCount(ctx)
	if err != nil {
		fm.logger.Warn("Failed to collect reorder metrics", zap.Error(err))
		return
	}
	fm.RecordReorderCount(ctx, count)
}

// Stop stops the periodic collection.
func (fm *FulfillmentMetrics) Stop() {
	if fm == nil {
		return
	}
	fm.stopOnce.Do(func() {
		close(fm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewFulfillmentMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
