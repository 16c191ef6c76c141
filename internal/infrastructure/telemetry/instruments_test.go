package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collect reads every metric recorded on reader by name
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

func TestCounter(t *testing.T) {
	reader, mp := newTestMeter(t)
	ctx := context.Background()

	c, err := telemetry.NewCounter(mp.Meter("test"), "conversions", "Conversions", "{conversion}")
	require.NoError(t, err)

	c.Add(ctx, 2, telemetry.AttrDocumentType.String("DELIVERY"))
	c.Inc(ctx, telemetry.AttrDocumentType.String("DELIVERY"))
	c.Inc(ctx, telemetry.AttrDocumentType.String("INVOICE"))

	sum := collect(t, reader)["conversions"].Data.(metricdata.Sum[int64])
	totals := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(telemetry.AttrDocumentType)
		totals[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"DELIVERY": 3, "INVOICE": 1}, totals)
}

func TestHistogram(t *testing.T) {
	reader, mp := newTestMeter(t)
	ctx := context.Background()

	h, err := telemetry.NewHistogram(mp.Meter("test"), telemetry.HistogramOpts{
		Name:       "latency",
		Unit:       "s",
		Boundaries: telemetry.SmallDurationBuckets,
	})
	require.NoError(t, err)

	h.Record(ctx, 0.002)
	h.RecordDuration(ctx, 50*time.Millisecond)

	hist := collect(t, reader)["latency"].Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
	assert.Equal(t, telemetry.SmallDurationBuckets, hist.DataPoints[0].Bounds)
	assert.InDelta(t, 0.052, hist.DataPoints[0].Sum, 1e-9)
}

func TestGauge(t *testing.T) {
	reader, mp := newTestMeter(t)

	g, err := telemetry.NewGauge(mp.Meter("test"), "committed", "Committed", "{unit}")
	require.NoError(t, err)

	g.Record(context.Background(), 30, telemetry.AttrWarehouse.String("WH-MAIN"))
	g.Record(context.Background(), 70, telemetry.AttrWarehouse.String("WH-MAIN"))

	gauge := collect(t, reader)["committed"].Data.(metricdata.Gauge[int64])
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(70), gauge.DataPoints[0].Value)
}

func TestDefaultBuckets(t *testing.T) {
	for _, buckets := range [][]float64{
		telemetry.HTTPDurationBuckets,
		telemetry.DBDurationBuckets,
		telemetry.SmallDurationBuckets,
	} {
		assert.IsIncreasing(t, buckets)
	}
}
