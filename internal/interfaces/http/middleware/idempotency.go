package middleware

import (
	"net/http"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader is the request header carrying the client's key
const IdempotencyKeyHeader = "Idempotency-Key"

// MaxIdempotencyKeyLength bounds accepted keys
const MaxIdempotencyKeyLength = 128

const idempotencyKeyPrefix = "http:"

// Idempotency guards POST requests that carry an Idempotency-Key header. The
// first request with a key runs; repeats within ttl get 409
// DUPLICATE_REQUEST. A request that fails releases its key so the client
// can retry it. Requests without the header pass through.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	if store == nil {
		return passThrough
	}

	return func(c *gin.Context) {
		header := c.GetHeader(IdempotencyKeyHeader)
		if c.Request.Method != http.MethodPost || header == "" {
			c.Next()
			return
		}
		if len(header) > MaxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
				"Invalid Idempotency-Key header",
				GetRequestID(c),
				[]dto.ValidationDetail{{Field: IdempotencyKeyHeader, Message: "Must be at most 128 characters"}},
			))
			return
		}

		// the route pattern scopes keys so one key may be reused across endpoints
		key := idempotencyKeyPrefix + c.FullPath() + ":" + header
		log := logger.GetGinLogger(c)
		ctx := c.Request.Context()

		isNew, err := store.MarkProcessed(ctx, key, ttl)
		if err != nil {
			log.Warn("Idempotency check failed, processing anyway",
				zap.String("idempotency_key", header),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !isNew {
			c.Set(ErrorCodeKey, dto.ErrCodeDuplicateRequest)
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicateRequest,
				"A request with this Idempotency-Key was already accepted",
				GetRequestID(c),
			))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Release(ctx, key); err != nil {
				log.Warn("Failed to release idempotency key",
					zap.String("idempotency_key", header),
					zap.Error(err),
				)
			}
		}
	}
}
