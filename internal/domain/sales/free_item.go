package sales

import (
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FreeItemRule grants FreeQuantity units of RewardItem for every full
// BuyQuantity units of TriggerItem on an order line
type FreeItemRule struct {
	ID           uuid.UUID
	TriggerItem  string
	BuyQuantity  decimal.Decimal
	RewardItem   string
	FreeQuantity decimal.Decimal
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewFreeItemRule creates an active rule
func NewFreeItemRule(triggerItem string, buyQty decimal.Decimal, rewardItem string, freeQty decimal.Decimal) (*FreeItemRule, error) {
	triggerItem = strings.TrimSpace(triggerItem)
	rewardItem = strings.TrimSpace(rewardItem)

	var fields []shared.FieldError
	if triggerItem == "" {
		fields = append(fields, shared.FieldError{Field: "trigger_item", Message: "This field is required"})
	}
	if rewardItem == "" {
		fields = append(fields, shared.FieldError{Field: "reward_item", Message: "This field is required"})
	}
	if !buyQty.IsPositive() {
		fields = append(fields, shared.FieldError{Field: "buy_quantity", Message: "Must be greater than 0"})
	}
	if !freeQty.IsPositive() {
		fields = append(fields, shared.FieldError{Field: "free_quantity", Message: "Must be greater than 0"})
	}
	if len(fields) > 0 {
		return nil, shared.NewValidationError("Invalid free item rule", fields...)
	}

	now := time.Now()
	return &FreeItemRule{
		ID:           uuid.New(),
		TriggerItem:  triggerItem,
		BuyQuantity:  buyQty,
		RewardItem:   rewardItem,
		FreeQuantity: freeQty,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Deactivate stops the rule from producing new free lines
func (r *FreeItemRule) Deactivate() {
	r.Active = false
	r.UpdatedAt = time.Now()
}

// FreeQuantityFor returns floor(qty / buy) * free
func (r *FreeItemRule) FreeQuantityFor(qty decimal.Decimal) decimal.Decimal {
	if !r.BuyQuantity.IsPositive() || !qty.IsPositive() {
		return decimal.Zero
	}
	return qty.Div(r.BuyQuantity).Floor().Mul(r.FreeQuantity)
}

// FreeAllotment is one reward derived from one manual line and one rule
type FreeAllotment struct {
	RuleID        uuid.UUID
	TriggerLineID uuid.UUID
	RewardItem    string
	Quantity      decimal.Decimal
}

// FreeAllotments derives the rewards owed for lines under rules. Auto lines,
// inactive lines and inactive rules never contribute, so the result depends
// only on the active manual lines and the active rule set.
func FreeAllotments(lines []Line, rules []*FreeItemRule) []FreeAllotment {
	byTrigger := make(map[string][]*FreeItemRule)
	for _, rule := range rules {
		if rule == nil || !rule.Active {
			continue
		}
		byTrigger[rule.TriggerItem] = append(byTrigger[rule.TriggerItem], rule)
	}

	out := make([]FreeAllotment, 0)
	for i := range lines {
		line := &lines[i]
		if line.IsAuto || !line.IsActive {
			continue
		}
		for _, rule := range byTrigger[line.ItemCode] {
			qty := rule.FreeQuantityFor(line.Quantity)
			if !qty.IsPositive() {
				continue
			}
			out = append(out, FreeAllotment{
				RuleID:        rule.ID,
				TriggerLineID: line.ID,
				RewardItem:    rule.RewardItem,
				Quantity:      qty,
			})
		}
	}
	return out
}
