package sales

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
)

// TransactionScope provides transactional access to the fulfillment repositories.
// Every repository handed to fn shares one database transaction that is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
//
//   - DocumentRepo: documents with their lines
//   - AvailabilityRepo: ledger rows, locked through FindForUpdate
//   - TransactionRepo: append-only stock journal
//   - EventSaver: outbox writes in the same transaction
type TransactionalRepositories interface {
	DocumentRepo() sales.DocumentRepository
	RuleRepo() sales.FreeItemRuleRepository
	AvailabilityRepo() inventory.AvailabilityRepository
	ItemRepo() inventory.ItemRepository
	TransactionRepo() inventory.InventoryTransactionRepository
	EventSaver() shared.EventSaver
}
