package persistence

import (
	"strings"

	"github.com/erp/fulfillment/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortColumns whitelists the columns a list query may be ordered by
type sortColumns map[string]bool

var (
	documentSortColumns = sortColumns{
		"created_at": true, "updated_at": true, "number": true, "type": true, "status": true,
		"customer_id": true, "document_date": true, "due_date": true, "total_amount": true, "payable_amount": true,
	}
	availabilitySortColumns = sortColumns{
		"updated_at": true, "item_code": true, "warehouse": true, "in_stock": true,
		"committed": true, "available": true, "reorder_level": true,
	}
	journalSortColumns = sortColumns{
		"created_at": true, "transaction_date": true, "transaction_type": true, "quantity": true, "reference": true,
	}
)

// orderColumn resolves the requested ordering. Unknown columns fall back to
// fallback and anything but "asc" sorts descending.
func (c sortColumns) orderColumn(orderBy, orderDir, fallback string) clause.OrderByColumn {
	name := strings.TrimSpace(orderBy)
	if !c[name] {
		name = fallback
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: name},
		Desc:   !strings.EqualFold(strings.TrimSpace(orderDir), "asc"),
	}
}

// paginate orders and pages a list query from filter. A non-positive page
// or page size returns every row.
func paginate(filter shared.Filter, columns sortColumns, fallback string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Order(columns.orderColumn(filter.OrderBy, filter.OrderDir, fallback))
		if filter.Paged() {
			db = db.Offset(filter.Offset()).Limit(filter.PageSize)
		}
		return db
	}
}
