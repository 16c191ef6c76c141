package sales

import (
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FreeItemRemark is the remark stamped on lines created by the free-item rules
const FreeItemRemark = "Free Item (Auto)"

// LineKey groups lines for reconciliation. Quantities of different lines
// sharing a key are merged.
type LineKey struct {
	ItemCode string
	UOM      string
}

// Line is an item/uom/quantity/price entry belonging to a Document
type Line struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	Position     int
	ItemCode     string
	ItemName     string
	UOM          string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	TotalAmount  decimal.Decimal
	Warehouse    string
	SourceLineID *uuid.UUID
	IsAuto       bool
	IsActive     bool
	Remark       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewLine creates a caller-supplied line with its total computed
func NewLine(itemCode, uom string, quantity, unitPrice decimal.Decimal) (*Line, error) {
	itemCode = strings.TrimSpace(itemCode)
	if itemCode == "" {
		return nil, shared.NewValidationError("Item code cannot be empty",
			shared.FieldError{Field: "item_code", Message: "This field is required"})
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("Quantity must be positive",
			shared.FieldError{Field: "quantity", Message: "Must be greater than 0"})
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewValidationError("Unit price cannot be negative",
			shared.FieldError{Field: "unit_price", Message: "Must be greater than or equal to 0"})
	}

	now := time.Now()
	line := &Line{
		ID:        uuid.New(),
		ItemCode:  itemCode,
		UOM:       strings.TrimSpace(uom),
		Quantity:  quantity,
		UnitPrice: unitPrice,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	line.Recalculate()
	return line, nil
}

// NewFreeLine creates an auto-generated zero-price line for a reward item
func NewFreeLine(itemCode, itemName, uom, warehouse string, quantity decimal.Decimal) Line {
	now := time.Now()
	line := Line{
		ID:        uuid.New(),
		ItemCode:  itemCode,
		ItemName:  itemName,
		UOM:       uom,
		Quantity:  quantity,
		UnitPrice: decimal.Zero,
		Warehouse: warehouse,
		IsAuto:    true,
		IsActive:  true,
		Remark:    FreeItemRemark,
		CreatedAt: now,
		UpdatedAt: now,
	}
	line.Recalculate()
	return line
}

// Key returns the reconciliation key of the line
func (l *Line) Key() LineKey {
	return LineKey{ItemCode: l.ItemCode, UOM: l.UOM}
}

// Recalculate recomputes the line total
func (l *Line) Recalculate() {
	l.TotalAmount = LineTotal(l.Quantity, l.UnitPrice)
}

// UpdateQuantity changes the quantity and recomputes the total
func (l *Line) UpdateQuantity(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("Quantity must be positive",
			shared.FieldError{Field: "quantity", Message: "Must be greater than 0"})
	}
	l.Quantity = quantity
	l.Recalculate()
	l.UpdatedAt = time.Now()
	return nil
}

// UpdatePrice changes the unit price and recomputes the total
func (l *Line) UpdatePrice(unitPrice decimal.Decimal) error {
	if unitPrice.IsNegative() {
		return shared.NewValidationError("Unit price cannot be negative",
			shared.FieldError{Field: "unit_price", Message: "Must be greater than or equal to 0"})
	}
	l.UnitPrice = unitPrice
	l.Recalculate()
	l.UpdatedAt = time.Now()
	return nil
}
