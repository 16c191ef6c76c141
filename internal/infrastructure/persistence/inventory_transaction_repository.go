package persistence

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInventoryTransactionRepository implements the append-only stock journal using GORM
type GormInventoryTransactionRepository struct {
	db *gorm.DB
}

// NewGormInventoryTransactionRepository creates a new GormInventoryTransactionRepository
func NewGormInventoryTransactionRepository(db *gorm.DB) *GormInventoryTransactionRepository {
	return &GormInventoryTransactionRepository{db: db}
}

// Create appends journal rows in one batch
func (r *GormInventoryTransactionRepository) Create(ctx context.Context, txs ...*inventory.InventoryTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	rows := make([]*models.InventoryTransactionModel, len(txs))
	for i, tx := range txs {
		rows[i] = models.InventoryTransactionModelFromDomain(tx)
	}
	return translateError(r.db.WithContext(ctx).Create(&rows).Error)
}

// FindByReference finds journal rows whose reference starts with prefix
func (r *GormInventoryTransactionRepository) FindByReference(ctx context.Context, prefix string) ([]*inventory.InventoryTransaction, error) {
	var rows []models.InventoryTransactionModel
	if err := r.db.WithContext(ctx).
		Where("reference LIKE ?", prefix+"%").
		Order("transaction_date ASC, reference ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toTransactions(rows), nil
}

// FindByItem finds journal rows of an item in a warehouse, newest first by default
func (r *GormInventoryTransactionRepository) FindByItem(ctx context.Context, key inventory.StockKey, filter shared.Filter) ([]*inventory.InventoryTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("item_code = ? AND warehouse = ?", key.ItemCode, key.Warehouse).
		Scopes(paginate(filter, journalSortColumns, "transaction_date"))

	var rows []models.InventoryTransactionModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toTransactions(rows), nil
}

func toTransactions(rows []models.InventoryTransactionModel) []*inventory.InventoryTransaction {
	out := make([]*inventory.InventoryTransaction, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// Ensure GormInventoryTransactionRepository implements InventoryTransactionRepository
var _ inventory.InventoryTransactionRepository = (*GormInventoryTransactionRepository)(nil)
