package sales

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RuleService manages free item rules. Rule changes apply to orders written
// afterwards; existing auto lines are left as they are.
type RuleService struct {
	ruleRepo sales.FreeItemRuleRepository
	itemRepo inventory.ItemRepository
	logger   *zap.Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(ruleRepo sales.FreeItemRuleRepository, itemRepo inventory.ItemRepository, logger *zap.Logger) *RuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{
		ruleRepo: ruleRepo,
		itemRepo: itemRepo,
		logger:   logger,
	}
}

// Create creates an active rule. Both items must exist in the item master.
func (s *RuleService) Create(ctx context.Context, req CreateFreeItemRuleRequest) (*FreeItemRuleResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	rule, err := sales.NewFreeItemRule(req.TriggerItem, req.BuyQuantity, req.RewardItem, req.FreeQuantity)
	if err != nil {
		return nil, err
	}

	items, err := s.itemRepo.FindByCodes(ctx, dedupe([]string{rule.TriggerItem, rule.RewardItem}))
	if err != nil {
		return nil, err
	}
	var fields []shared.FieldError
	if _, ok := items[rule.TriggerItem]; !ok {
		fields = append(fields, shared.FieldError{Field: "trigger_item", Message: "Unknown item"})
	}
	if _, ok := items[rule.RewardItem]; !ok {
		fields = append(fields, shared.FieldError{Field: "reward_item", Message: "Unknown item"})
	}
	if len(fields) > 0 {
		return nil, shared.NewValidationError("Invalid free item rule", fields...)
	}

	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("Free item rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("trigger_item", rule.TriggerItem),
		zap.String("reward_item", rule.RewardItem),
	)
	resp := ToFreeItemRuleResponse(rule)
	return &resp, nil
}

// List lists rules, optionally only active ones
func (s *RuleService) List(ctx context.Context, activeOnly bool) ([]FreeItemRuleResponse, error) {
	rules, err := s.ruleRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]FreeItemRuleResponse, len(rules))
	for i, r := range rules {
		out[i] = ToFreeItemRuleResponse(r)
	}
	return out, nil
}

// Deactivate stops a rule from producing free lines
func (s *RuleService) Deactivate(ctx context.Context, id uuid.UUID) (*FreeItemRuleResponse, error) {
	rule, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Active {
		rule.Deactivate()
		if err := s.ruleRepo.Save(ctx, rule); err != nil {
			return nil, err
		}
		s.logger.Info("Free item rule deactivated", zap.String("rule_id", rule.ID.String()))
	}
	resp := ToFreeItemRuleResponse(rule)
	return &resp, nil
}
