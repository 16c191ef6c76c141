package sales

import (
	"context"
	"sort"
	"sync"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecomputeScope marks the orders whose free lines are being recomputed in
// the current unit of work. It is created per request and threaded through
// the call, so concurrent requests never share it.
type RecomputeScope struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

// NewRecomputeScope creates an empty scope
func NewRecomputeScope() *RecomputeScope {
	return &RecomputeScope{active: make(map[uuid.UUID]struct{})}
}

// Enter marks orderID as being recomputed. It returns false when a
// recomputation for the order is already running in this scope; otherwise
// the caller must call exit when done.
func (s *RecomputeScope) Enter(orderID uuid.UUID) (exit func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.active[orderID]; running {
		return nil, false
	}
	s.active[orderID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.active, orderID)
		s.mu.Unlock()
	}, true
}

// FreeItemEngine regenerates the auto lines of an order from the active
// free-item rules
type FreeItemEngine struct {
	logger *zap.Logger
}

// NewFreeItemEngine creates a new FreeItemEngine
func NewFreeItemEngine(logger *zap.Logger) *FreeItemEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FreeItemEngine{logger: logger}
}

// Recompute drops every auto line of order and appends one free line per
// rule match on its manual lines. Running it twice over the same manual
// lines yields the same auto lines. It reports whether it ran; a nested
// call for an order already being recomputed in scope is a no-op.
func (e *FreeItemEngine) Recompute(ctx context.Context, repos TransactionalRepositories, scope *RecomputeScope, order *sales.Document) (bool, error) {
	if order.Type != sales.DocumentTypeOrder {
		return false, nil
	}
	exit, ok := scope.Enter(order.ID)
	if !ok {
		return false, nil
	}
	defer exit()

	manual := order.ManualLines()
	triggers := itemCodes(manual)

	var rules []*sales.FreeItemRule
	if len(triggers) > 0 {
		var err error
		rules, err = repos.RuleRepo().FindActiveByTriggers(ctx, triggers)
		if err != nil {
			return false, err
		}
	}

	removed := order.RemoveAutoLines()
	allotments := sales.FreeAllotments(manual, rules)
	if len(allotments) == 0 {
		if len(removed) > 0 {
			e.logger.Debug("Free lines removed",
				zap.String("order_id", order.ID.String()),
				zap.Int("removed", len(removed)),
			)
		}
		return true, nil
	}

	rewardCodes := make([]string, 0, len(allotments))
	for _, a := range allotments {
		rewardCodes = append(rewardCodes, a.RewardItem)
	}
	items, err := repos.ItemRepo().FindByCodes(ctx, dedupe(rewardCodes))
	if err != nil {
		return false, err
	}

	for _, a := range allotments {
		trigger, _ := order.FindLine(a.TriggerLineID)
		item, known := items[a.RewardItem]

		name, uom, warehouse := a.RewardItem, "", ""
		if trigger != nil {
			uom, warehouse = trigger.UOM, trigger.Warehouse
		}
		if known {
			name, uom = item.Name, item.DefaultUOM
			if item.DefaultWarehouse != "" {
				warehouse = item.DefaultWarehouse
			}
		} else {
			e.logger.Warn("Reward item missing from item master",
				zap.String("order_id", order.ID.String()),
				zap.String("reward_item", a.RewardItem),
			)
		}

		if err := order.AddLine(sales.NewFreeLine(a.RewardItem, name, uom, warehouse, a.Quantity)); err != nil {
			return false, err
		}
	}

	e.logger.Debug("Free lines recomputed",
		zap.String("order_id", order.ID.String()),
		zap.Int("removed", len(removed)),
		zap.Int("added", len(allotments)),
	)
	return true, nil
}

func itemCodes(lines []sales.Line) []string {
	codes := make([]string, 0, len(lines))
	for i := range lines {
		codes = append(codes, lines[i].ItemCode)
	}
	return dedupe(codes)
}

func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
