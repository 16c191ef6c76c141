package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAvailabilityRepository implements inventory.AvailabilityRepository using GORM
type GormAvailabilityRepository struct {
	db *gorm.DB
}

// NewGormAvailabilityRepository creates a new GormAvailabilityRepository
func NewGormAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

// Find finds the row for an item in a warehouse
func (r *GormAvailabilityRepository) Find(ctx context.Context, key inventory.StockKey) (*inventory.ItemWarehouseAvailability, error) {
	var model models.AvailabilityModel
	if err := r.db.WithContext(ctx).
		Where("item_code = ? AND warehouse = ?", key.ItemCode, key.Warehouse).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindForUpdate gets or creates the row and locks it with SELECT ... FOR UPDATE.
// The insert uses ON CONFLICT DO NOTHING so two transactions creating the
// same row converge on one.
func (r *GormAvailabilityRepository) FindForUpdate(ctx context.Context, key inventory.StockKey) (*inventory.ItemWarehouseAvailability, error) {
	db := r.db.WithContext(ctx)

	fresh, err := inventory.NewItemWarehouseAvailability(key.ItemCode, key.Warehouse)
	if err != nil {
		return nil, err
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_code"}, {Name: "warehouse"}},
		DoNothing: true,
	}).Create(models.AvailabilityModelFromDomain(fresh)).Error; err != nil {
		return nil, translateError(err)
	}

	var model models.AvailabilityModel
	if err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("item_code = ? AND warehouse = ?", key.ItemCode, key.Warehouse).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByItem finds the rows of an item across warehouses
func (r *GormAvailabilityRepository) FindByItem(ctx context.Context, itemCode string) ([]*inventory.ItemWarehouseAvailability, error) {
	var rows []models.AvailabilityModel
	if err := r.db.WithContext(ctx).
		Where("item_code = ?", itemCode).
		Order("warehouse ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAvailabilities(rows), nil
}

// FindBelowReorderLevel finds rows with a reorder level whose available
// quantity has fallen to or below it
func (r *GormAvailabilityRepository) FindBelowReorderLevel(ctx context.Context, filter shared.Filter) ([]*inventory.ItemWarehouseAvailability, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AvailabilityModel{}).
		Where("reorder_level > 0 AND available <= reorder_level")
	if filter.Warehouse != "" {
		query = query.Where("warehouse = ?", filter.Warehouse)
	}

	query = query.Scopes(paginate(filter, availabilitySortColumns, "item_code"))

	var rows []models.AvailabilityModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAvailabilities(rows), nil
}

// SaveWithLock saves the row with optimistic locking (version check)
func (r *GormAvailabilityRepository) SaveWithLock(ctx context.Context, row *inventory.ItemWarehouseAvailability) error {
	now := time.Now()
	nextVersion := row.Version + 1

	result := r.db.WithContext(ctx).
		Model(&models.AvailabilityModel{}).
		Where("id = ? AND version = ?", row.ID, row.Version).
		Updates(map[string]interface{}{
			"in_stock":      row.InStock,
			"committed":     row.Committed,
			"ordered":       row.Ordered,
			"available":     row.Available,
			"min_stock":     row.MinStock,
			"max_stock":     row.MaxStock,
			"reorder_level": row.ReorderLevel,
			"version":       nextVersion,
			"updated_at":    now,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrencyError("Stock of %s has been modified by another process", row.Key())
	}

	row.MarkSaved(now)
	return nil
}

func toAvailabilities(rows []models.AvailabilityModel) []*inventory.ItemWarehouseAvailability {
	out := make([]*inventory.ItemWarehouseAvailability, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// Ensure GormAvailabilityRepository implements AvailabilityRepository
var _ inventory.AvailabilityRepository = (*GormAvailabilityRepository)(nil)
