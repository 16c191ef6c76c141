package inventory

import (
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ItemWarehouseAvailability is the ledger row for one item in one warehouse.
// Available is always InStock - Committed and is rewritten by every mutation.
type ItemWarehouseAvailability struct {
	shared.BaseAggregateRoot
	ItemCode     string
	Warehouse    string
	InStock      decimal.Decimal
	Committed    decimal.Decimal
	Ordered      decimal.Decimal
	Available    decimal.Decimal
	MinStock     decimal.Decimal
	MaxStock     decimal.Decimal
	ReorderLevel decimal.Decimal
}

// NewItemWarehouseAvailability creates an empty ledger row
func NewItemWarehouseAvailability(itemCode, warehouse string) (*ItemWarehouseAvailability, error) {
	itemCode = strings.TrimSpace(itemCode)
	warehouse = strings.TrimSpace(warehouse)
	if itemCode == "" {
		return nil, shared.NewValidationError("Item code cannot be empty",
			shared.FieldError{Field: "item_code", Message: "This field is required"})
	}
	if warehouse == "" {
		return nil, shared.NewValidationError("Warehouse cannot be empty",
			shared.FieldError{Field: "warehouse", Message: "This field is required"})
	}

	return &ItemWarehouseAvailability{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ItemCode:          itemCode,
		Warehouse:         warehouse,
		InStock:           decimal.Zero,
		Committed:         decimal.Zero,
		Ordered:           decimal.Zero,
		Available:         decimal.Zero,
		MinStock:          decimal.Zero,
		MaxStock:          decimal.Zero,
		ReorderLevel:      decimal.Zero,
	}, nil
}

// Key returns the (item, warehouse) identity of the row
func (a *ItemWarehouseAvailability) Key() StockKey {
	return StockKey{ItemCode: a.ItemCode, Warehouse: a.Warehouse}
}

// CanCommit fails with an InsufficientStockError when a positive delta
// exceeds what is available. Non-positive deltas always pass.
func (a *ItemWarehouseAvailability) CanCommit(delta decimal.Decimal) error {
	if !delta.IsPositive() {
		return nil
	}
	if a.Available.LessThan(delta) {
		return shared.NewInsufficientStockError(a.ItemCode, a.Warehouse, a.Available, delta)
	}
	return nil
}

// Commit adds delta to the committed quantity, clamped at zero, and returns
// the change actually applied
func (a *ItemWarehouseAvailability) Commit(delta decimal.Decimal) decimal.Decimal {
	before := a.Committed
	a.Committed = clampZero(a.Committed.Add(delta))
	a.refresh()
	applied := a.Committed.Sub(before)
	if !applied.IsZero() {
		a.AddDomainEvent(NewCommitmentChangedEvent(a, applied))
	}
	return applied
}

// Issue moves qty out of stock, clamped at zero. A negative qty reverses an
// earlier issue. Commitments are settled separately with Commit.
func (a *ItemWarehouseAvailability) Issue(qty decimal.Decimal) {
	a.InStock = clampZero(a.InStock.Sub(qty))
	a.refresh()
	a.AddDomainEvent(NewStockMovedEvent(a, EventTypeStockIssued, qty))
}

// Receive puts qty back into stock. A negative qty reverses an earlier receipt.
func (a *ItemWarehouseAvailability) Receive(qty decimal.Decimal) {
	a.InStock = clampZero(a.InStock.Add(qty))
	a.refresh()
	a.AddDomainEvent(NewStockMovedEvent(a, EventTypeStockReceived, qty))
}

// AdjustStock sets the on-hand quantity to the counted value
func (a *ItemWarehouseAvailability) AdjustStock(actual decimal.Decimal) error {
	if actual.IsNegative() {
		return shared.NewValidationError("Actual quantity cannot be negative",
			shared.FieldError{Field: "in_stock", Message: "Must be greater than or equal to 0"})
	}
	a.InStock = actual
	a.refresh()
	return nil
}

// SetThresholds sets min/max stock and the reorder level
func (a *ItemWarehouseAvailability) SetThresholds(minStock, maxStock, reorderLevel decimal.Decimal) error {
	if minStock.IsNegative() || maxStock.IsNegative() || reorderLevel.IsNegative() {
		return shared.NewValidationError("Thresholds cannot be negative")
	}
	if maxStock.IsPositive() && minStock.GreaterThan(maxStock) {
		return shared.NewValidationError("Minimum stock cannot exceed maximum stock",
			shared.FieldError{Field: "min_stock", Message: "Must be less than or equal to max_stock"})
	}
	a.MinStock = minStock
	a.MaxStock = maxStock
	a.ReorderLevel = reorderLevel
	a.UpdatedAt = time.Now()
	return nil
}

// NeedsReorder returns true when a reorder level is set and available has
// fallen to or below it
func (a *ItemWarehouseAvailability) NeedsReorder() bool {
	return a.ReorderLevel.IsPositive() && a.Available.LessThanOrEqual(a.ReorderLevel)
}

// IsConsistent reports whether Available matches InStock - Committed
func (a *ItemWarehouseAvailability) IsConsistent() bool {
	return a.Available.Equal(a.InStock.Sub(a.Committed))
}

func (a *ItemWarehouseAvailability) refresh() {
	a.Available = a.InStock.Sub(a.Committed)
	a.UpdatedAt = time.Now()
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// StockKey identifies a ledger row. Keys sort by item then warehouse, the
// order in which rows are locked.
type StockKey struct {
	ItemCode  string
	Warehouse string
}

// Less orders keys by item code, then warehouse
func (k StockKey) Less(other StockKey) bool {
	if k.ItemCode != other.ItemCode {
		return k.ItemCode < other.ItemCode
	}
	return k.Warehouse < other.Warehouse
}

// String returns item@warehouse
func (k StockKey) String() string {
	return k.ItemCode + "@" + k.Warehouse
}
