package persistence

import (
	"context"
	"errors"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFreeItemRuleRepository implements sales.FreeItemRuleRepository using GORM
type GormFreeItemRuleRepository struct {
	db *gorm.DB
}

// NewGormFreeItemRuleRepository creates a new GormFreeItemRuleRepository
func NewGormFreeItemRuleRepository(db *gorm.DB) *GormFreeItemRuleRepository {
	return &GormFreeItemRuleRepository{db: db}
}

// FindByID finds a rule by ID
func (r *GormFreeItemRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.FreeItemRule, error) {
	var model models.FreeItemRuleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByTriggers finds the active rules triggered by any of items,
// oldest first so rewards are produced in a stable order
func (r *GormFreeItemRuleRepository) FindActiveByTriggers(ctx context.Context, items []string) ([]*sales.FreeItemRule, error) {
	if len(items) == 0 {
		return []*sales.FreeItemRule{}, nil
	}
	var rows []models.FreeItemRuleModel
	if err := r.db.WithContext(ctx).
		Where("active = ? AND trigger_item IN ?", true, items).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRules(rows), nil
}

// List lists rules, optionally only active ones
func (r *GormFreeItemRuleRepository) List(ctx context.Context, activeOnly bool) ([]*sales.FreeItemRule, error) {
	query := r.db.WithContext(ctx).Order("trigger_item ASC, created_at ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.FreeItemRuleModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRules(rows), nil
}

// Save creates or updates a rule
func (r *GormFreeItemRuleRepository) Save(ctx context.Context, rule *sales.FreeItemRule) error {
	return translateError(r.db.WithContext(ctx).Save(models.FreeItemRuleModelFromDomain(rule)).Error)
}

func toRules(rows []models.FreeItemRuleModel) []*sales.FreeItemRule {
	out := make([]*sales.FreeItemRule, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// Ensure GormFreeItemRuleRepository implements FreeItemRuleRepository
var _ sales.FreeItemRuleRepository = (*GormFreeItemRuleRepository)(nil)
