package inventory

import (
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeAvailability = "ItemWarehouseAvailability"

// Event type constants
const (
	EventTypeCommitmentChanged = "CommitmentChanged"
	EventTypeStockIssued       = "StockIssued"
	EventTypeStockReceived     = "StockReceived"
)

// CommitmentChangedEvent is raised when an order commits or releases stock
type CommitmentChangedEvent struct {
	shared.BaseDomainEvent
	ItemCode  string          `json:"item_code"`
	Warehouse string          `json:"warehouse"`
	Delta     decimal.Decimal `json:"delta"`
	Committed decimal.Decimal `json:"committed"`
	Available decimal.Decimal `json:"available"`
}

// NewCommitmentChangedEvent creates a new CommitmentChangedEvent
func NewCommitmentChangedEvent(a *ItemWarehouseAvailability, delta decimal.Decimal) *CommitmentChangedEvent {
	return &CommitmentChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCommitmentChanged, AggregateTypeAvailability, a.ID),
		ItemCode:        a.ItemCode,
		Warehouse:       a.Warehouse,
		Delta:           delta,
		Committed:       a.Committed,
		Available:       a.Available,
	}
}

// StockMovedEvent is raised when a delivery or return moves stock
type StockMovedEvent struct {
	shared.BaseDomainEvent
	ItemCode  string          `json:"item_code"`
	Warehouse string          `json:"warehouse"`
	Quantity  decimal.Decimal `json:"quantity"`
	InStock   decimal.Decimal `json:"in_stock"`
	Available decimal.Decimal `json:"available"`
}

// NewStockMovedEvent creates a StockMovedEvent of the given type
func NewStockMovedEvent(a *ItemWarehouseAvailability, eventType string, qty decimal.Decimal) *StockMovedEvent {
	return &StockMovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeAvailability, a.ID),
		ItemCode:        a.ItemCode,
		Warehouse:       a.Warehouse,
		Quantity:        qty,
		InStock:         a.InStock,
		Available:       a.Available,
	}
}
