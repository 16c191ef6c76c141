package sales

import (
	"context"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RetryConfig bounds the retries of a unit of work that lost a lock or
// version race
type RetryConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		RetryBackoff: 50 * time.Millisecond,
	}
}

// unitOfWork runs a transactional function and re-runs it from scratch after
// a concurrency conflict, waiting attempt*RetryBackoff between tries
type unitOfWork struct {
	txScope TransactionScope
	cfg     RetryConfig
	logger  *zap.Logger
	metrics *telemetry.FulfillmentMetrics
}

func (u *unitOfWork) run(ctx context.Context, operation string, fn func(repos TransactionalRepositories) error) error {
	for attempt := 1; ; attempt++ {
		err := u.txScope.Execute(ctx, fn)
		if err == nil || !shared.IsConcurrency(err) || attempt > u.cfg.MaxRetries {
			return err
		}

		u.logger.Warn("Retrying after concurrency conflict",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		u.metrics.RecordLedgerRetry(ctx, operation)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(u.cfg.RetryBackoff * time.Duration(attempt)):
		}
	}
}
