package inventory

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/shared"
)

// AvailabilityRepository defines the interface for ledger row persistence
type AvailabilityRepository interface {
	// Find finds the row for an item in a warehouse
	Find(ctx context.Context, key StockKey) (*ItemWarehouseAvailability, error)

	// FindForUpdate returns the row locked for the rest of the transaction,
	// creating an empty row first when none exists
	FindForUpdate(ctx context.Context, key StockKey) (*ItemWarehouseAvailability, error)

	// FindByItem finds the rows of an item across warehouses
	FindByItem(ctx context.Context, itemCode string) ([]*ItemWarehouseAvailability, error)

	// FindBelowReorderLevel finds rows whose available quantity is at or below their reorder level
	FindBelowReorderLevel(ctx context.Context, filter shared.Filter) ([]*ItemWarehouseAvailability, error)

	// SaveWithLock updates the row with optimistic locking (version check)
	SaveWithLock(ctx context.Context, row *ItemWarehouseAvailability) error
}

// ItemRepository defines the interface for item master lookups
type ItemRepository interface {
	// FindByCode finds an item by its code
	FindByCode(ctx context.Context, code string) (*Item, error)

	// FindByCodes finds items by code, keyed by code. Unknown codes are absent.
	FindByCodes(ctx context.Context, codes []string) (map[string]*Item, error)

	// Save creates or updates an item
	Save(ctx context.Context, item *Item) error
}

// InventoryTransactionRepository defines the interface for the stock journal
type InventoryTransactionRepository interface {
	// Create appends journal rows
	Create(ctx context.Context, txs ...*InventoryTransaction) error

	// FindByReference finds journal rows whose reference starts with prefix
	FindByReference(ctx context.Context, prefix string) ([]*InventoryTransaction, error)

	// FindByItem finds journal rows of an item in a warehouse, newest first
	FindByItem(ctx context.Context, key StockKey, filter shared.Filter) ([]*InventoryTransaction, error)
}
