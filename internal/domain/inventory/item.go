package inventory

import (
	"strings"

	"github.com/erp/fulfillment/internal/domain/shared"
)

// Item is the master data the ledger and the documents look items up by
type Item struct {
	shared.BaseEntity
	Code             string
	Name             string
	DefaultUOM       string
	DefaultWarehouse string
	IsStockItem      bool
}

// NewItem creates a stock item
func NewItem(code, name, uom, warehouse string) (*Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError("Item code cannot be empty",
			shared.FieldError{Field: "code", Message: "This field is required"})
	}
	if strings.TrimSpace(uom) == "" {
		return nil, shared.NewValidationError("Default unit of measure cannot be empty",
			shared.FieldError{Field: "default_uom", Message: "This field is required"})
	}
	if name == "" {
		name = code
	}
	return &Item{
		BaseEntity:       shared.NewBaseEntity(),
		Code:             code,
		Name:             name,
		DefaultUOM:       strings.TrimSpace(uom),
		DefaultWarehouse: strings.TrimSpace(warehouse),
		IsStockItem:      true,
	}, nil
}

// ResolveWarehouse returns override when set, otherwise the item default
func (i *Item) ResolveWarehouse(override string) string {
	if w := strings.TrimSpace(override); w != "" {
		return w
	}
	return i.DefaultWarehouse
}
