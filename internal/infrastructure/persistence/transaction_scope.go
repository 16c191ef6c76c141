package persistence

import (
	"context"
	"fmt"
	"time"

	appsales "github.com/erp/fulfillment/internal/application/sales"
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxWriter hands out an event saver bound to a transaction
type OutboxWriter interface {
	Saver(tx *gorm.DB) shared.EventSaver
}

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db          *gorm.DB
	outbox      OutboxWriter
	lockTimeout time.Duration
}

// TransactionScopeOption configures a GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithLockTimeout bounds how long a statement waits for a row lock on postgres
func WithLockTimeout(d time.Duration) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.lockTimeout = d
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, outbox OutboxWriter, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db, outbox: outbox}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed. Lock and
// serialization failures surface as CONCURRENCY_CONFLICT errors.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appsales.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&gormTransactionalRepositories{tx: tx, outbox: s.outbox})
	})
	return translateError(err)
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx     *gorm.DB
	outbox OutboxWriter
}

// DocumentRepo returns the document repository scoped to the current transaction.
func (r *gormTransactionalRepositories) DocumentRepo() sales.DocumentRepository {
	return NewGormDocumentRepository(r.tx)
}

// RuleRepo returns the free item rule repository scoped to the current transaction.
func (r *gormTransactionalRepositories) RuleRepo() sales.FreeItemRuleRepository {
	return NewGormFreeItemRuleRepository(r.tx)
}

// AvailabilityRepo returns the ledger repository scoped to the current transaction.
func (r *gormTransactionalRepositories) AvailabilityRepo() inventory.AvailabilityRepository {
	return NewGormAvailabilityRepository(r.tx)
}

// ItemRepo returns the item repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ItemRepo() inventory.ItemRepository {
	return NewGormItemRepository(r.tx)
}

// TransactionRepo returns the inventory transaction repository scoped to the current transaction.
func (r *gormTransactionalRepositories) TransactionRepo() inventory.InventoryTransactionRepository {
	return NewGormInventoryTransactionRepository(r.tx)
}

// EventSaver returns an outbox writer scoped to the current transaction.
func (r *gormTransactionalRepositories) EventSaver() shared.EventSaver {
	return r.outbox.Saver(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appsales.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appsales.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
