package persistence

import (
	"errors"
	"strings"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// postgres SQLSTATE codes that mean "try the transaction again"
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// translateError maps driver errors to domain errors. Lock timeouts,
// deadlocks, serialization failures and duplicate document numbers become
// CONCURRENCY_CONFLICT so the caller's unit of work can retry.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewConcurrencyError("Duplicate key: %v", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return shared.NewConcurrencyError("Database contention (%s): %s", pgErr.Code, pgErr.Message)
		}
		return err
	}

	// sqlite reports writer contention only through the message text
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return shared.NewConcurrencyError("Database contention: %s", msg)
	}
	return err
}
