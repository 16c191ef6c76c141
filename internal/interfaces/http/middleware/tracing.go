package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing starts a server span per request through otelgin
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAnnotator must be registered after Tracing. It enriches the span
// otelgin created and marks error responses.
func SpanAnnotator() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if id := GetRequestID(c); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
			span.SetAttributes(attribute.String("idempotency_key", truncate(key, MaxIdempotencyKeyLength)))
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if code, ok := c.Get(ErrorCodeKey); ok {
			span.SetAttributes(attribute.String("error.code", code.(string)))
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// ErrorCodeKey is set by handlers to the error code of a failed request
const ErrorCodeKey = "error_code"

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
