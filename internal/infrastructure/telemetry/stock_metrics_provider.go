package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormStockMetricsProvider implements StockMetricsProvider using GORM.
// It queries the item_warehouse_availability table directly for aggregated metrics.
type GormStockMetricsProvider struct {
	db *gorm.DB
}

// NewGormStockMetricsProvider creates a new GormStockMetricsProvider.
func NewGormStockMetricsProvider(db *gorm.DB) *GormStockMetricsProvider {
	return &GormStockMetricsProvider{db: db}
}

// GetCommittedQuantityByWarehouse returns total committed quantity per warehouse.
func (p *GormStockMetricsProvider) GetCommittedQuantityByWarehouse(ctx context.Context) (map[string]int64, error) {
	type result struct {
		Warehouse string `gorm:"column:warehouse"`
		Committed int64  `gorm:"column:committed"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("item_warehouse_availability").
		Select("warehouse, CAST(COALESCE(SUM(committed), 0) AS BIGINT) as committed").
		Group("warehouse").
		Having("SUM(committed) > 0").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(results))
	for _, r := range results {
		m[r.Warehouse] = r.Committed
	}
	return m, nil
}

// GetReorderCount returns the number of rows at or below their reorder level.
func (p *GormStockMetricsProvider) GetReorderCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("item_warehouse_availability").
		Where("reorder_level > 0 AND available <= reorder_level").
		Count(&count).Error
	return count, err
}
