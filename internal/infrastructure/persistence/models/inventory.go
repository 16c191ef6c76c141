package models

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemModel is the persistence model for item master data
type ItemModel struct {
	BaseModel
	Code             string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name             string `gorm:"type:varchar(255);not null"`
	DefaultUOM       string `gorm:"column:default_uom;type:varchar(20);not null"`
	DefaultWarehouse string `gorm:"type:varchar(100)"`
	IsStockItem      bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ToDomain converts the persistence model to a domain Item
func (m *ItemModel) ToDomain() *inventory.Item {
	return &inventory.Item{
		BaseEntity:       m.BaseModel.ToDomain(),
		Code:             m.Code,
		Name:             m.Name,
		DefaultUOM:       m.DefaultUOM,
		DefaultWarehouse: m.DefaultWarehouse,
		IsStockItem:      m.IsStockItem,
	}
}

// ItemModelFromDomain creates a persistence model from a domain Item
func ItemModelFromDomain(i *inventory.Item) *ItemModel {
	m := &ItemModel{
		Code:             i.Code,
		Name:             i.Name,
		DefaultUOM:       i.DefaultUOM,
		DefaultWarehouse: i.DefaultWarehouse,
		IsStockItem:      i.IsStockItem,
	}
	m.FromDomainBaseEntity(i.BaseEntity)
	return m
}

// AvailabilityModel is the persistence model for an (item, warehouse) ledger row
type AvailabilityModel struct {
	AggregateModel
	ItemCode     string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_availability_item_warehouse,priority:1"`
	Warehouse    string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_availability_item_warehouse,priority:2"`
	InStock      decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Committed    decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Ordered      decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Available    decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	MinStock     decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	MaxStock     decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	ReorderLevel decimal.Decimal `gorm:"type:decimal(18,6);not null"`
}

// TableName returns the table name for GORM
func (AvailabilityModel) TableName() string {
	return "item_warehouse_availability"
}

// ToDomain converts the persistence model to a domain ledger row
func (m *AvailabilityModel) ToDomain() *inventory.ItemWarehouseAvailability {
	return &inventory.ItemWarehouseAvailability{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ItemCode:          m.ItemCode,
		Warehouse:         m.Warehouse,
		InStock:           m.InStock,
		Committed:         m.Committed,
		Ordered:           m.Ordered,
		Available:         m.Available,
		MinStock:          m.MinStock,
		MaxStock:          m.MaxStock,
		ReorderLevel:      m.ReorderLevel,
	}
}

// AvailabilityModelFromDomain creates a persistence model from a domain ledger row
func AvailabilityModelFromDomain(a *inventory.ItemWarehouseAvailability) *AvailabilityModel {
	m := &AvailabilityModel{
		ItemCode:     a.ItemCode,
		Warehouse:    a.Warehouse,
		InStock:      a.InStock,
		Committed:    a.Committed,
		Ordered:      a.Ordered,
		Available:    a.Available,
		MinStock:     a.MinStock,
		MaxStock:     a.MaxStock,
		ReorderLevel: a.ReorderLevel,
	}
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	return m
}

// InventoryTransactionModel is the persistence model for a stock journal row
type InventoryTransactionModel struct {
	BaseModel
	ItemCode        string                    `gorm:"type:varchar(100);not null;index:idx_inv_tx_item_warehouse,priority:1"`
	Warehouse       string                    `gorm:"type:varchar(100);not null;index:idx_inv_tx_item_warehouse,priority:2"`
	TransactionType inventory.TransactionType `gorm:"type:varchar(20);not null"`
	Quantity        decimal.Decimal           `gorm:"type:decimal(18,6);not null"`
	Reference       string                    `gorm:"type:varchar(100);not null;index"`
	DocumentID      uuid.UUID                 `gorm:"type:uuid;not null;index"`
	LineID          uuid.UUID                 `gorm:"type:uuid;not null"`
	TransactionDate time.Time                 `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (InventoryTransactionModel) TableName() string {
	return "inventory_transactions"
}

// ToDomain converts the persistence model to a domain journal row
func (m *InventoryTransactionModel) ToDomain() *inventory.InventoryTransaction {
	return &inventory.InventoryTransaction{
		BaseEntity:      m.BaseModel.ToDomain(),
		ItemCode:        m.ItemCode,
		Warehouse:       m.Warehouse,
		TransactionType: m.TransactionType,
		Quantity:        m.Quantity,
		Reference:       m.Reference,
		DocumentID:      m.DocumentID,
		LineID:          m.LineID,
		TransactionDate: m.TransactionDate,
	}
}

// InventoryTransactionModelFromDomain creates a persistence model from a domain journal row
func InventoryTransactionModelFromDomain(t *inventory.InventoryTransaction) *InventoryTransactionModel {
	m := &InventoryTransactionModel{
		ItemCode:        t.ItemCode,
		Warehouse:       t.Warehouse,
		TransactionType: t.TransactionType,
		Quantity:        t.Quantity,
		Reference:       t.Reference,
		DocumentID:      t.DocumentID,
		LineID:          t.LineID,
		TransactionDate: t.TransactionDate,
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// AllModels returns every model the fulfillment schema is built from
func AllModels() []any {
	return []any{
		&ItemModel{},
		&AvailabilityModel{},
		&InventoryTransactionModel{},
		&DocumentModel{},
		&DocumentLineModel{},
		&FreeItemRuleModel{},
		&OutboxEntryModel{},
	}
}
