package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_Default(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	ctx, l := WithRequestID(context.Background(), zap.New(core), "req-42")
	assert.Equal(t, "req-42", GetRequestID(ctx))
	assert.Same(t, l, FromContext(ctx))

	L(ctx).Info("converted")
	entry := logs.All()[0]
	assert.Equal(t, "req-42", entry.ContextMap()["request_id"])
	assert.NotContains(t, entry.ContextMap(), "trace_id")
}

func TestL_AddsTraceContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(WithContext(context.Background(), zap.New(core)), "op")
	defer span.End()

	L(ctx).Info("committed")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}
