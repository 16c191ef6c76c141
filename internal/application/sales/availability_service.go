package sales

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AvailabilityService exposes the ledger rows and the stock journal, and
// records counted stock levels
type AvailabilityService struct {
	availabilityRepo inventory.AvailabilityRepository
	journalRepo      inventory.InventoryTransactionRepository
	uow              *unitOfWork
	logger           *zap.Logger
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(
	availabilityRepo inventory.AvailabilityRepository,
	journalRepo inventory.InventoryTransactionRepository,
	txScope TransactionScope,
	retry RetryConfig,
	logger *zap.Logger,
) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		availabilityRepo: availabilityRepo,
		journalRepo:      journalRepo,
		uow:              &unitOfWork{txScope: txScope, cfg: retry, logger: logger},
		logger:           logger,
	}
}

// SetMetrics sets the metrics recorder (optional)
func (s *AvailabilityService) SetMetrics(m *telemetry.FulfillmentMetrics) {
	s.uow.metrics = m
}

// Get returns the ledger row for an item in a warehouse
func (s *AvailabilityService) Get(ctx context.Context, itemCode, warehouse string) (*AvailabilityResponse, error) {
	row, err := s.availabilityRepo.Find(ctx, inventory.StockKey{ItemCode: itemCode, Warehouse: warehouse})
	if err != nil {
		return nil, err
	}
	resp := ToAvailabilityResponse(row)
	return &resp, nil
}

// ListByItem returns the ledger rows of an item across warehouses
func (s *AvailabilityService) ListByItem(ctx context.Context, itemCode string) ([]AvailabilityResponse, error) {
	rows, err := s.availabilityRepo.FindByItem(ctx, itemCode)
	if err != nil {
		return nil, err
	}
	return toAvailabilityResponses(rows), nil
}

// ListBelowReorderLevel returns the rows whose available quantity has fallen
// to or below their reorder level
func (s *AvailabilityService) ListBelowReorderLevel(ctx context.Context, filter shared.Filter) ([]AvailabilityResponse, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, err := s.availabilityRepo.FindBelowReorderLevel(ctx, filter)
	if err != nil {
		return nil, err
	}
	return toAvailabilityResponses(rows), nil
}

// AdjustStock sets the counted on-hand quantity of a row, creating the row
// when it does not exist yet
func (s *AvailabilityService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*AvailabilityResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "availability", "adjust_stock")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemCode, req.ItemCode,
		telemetry.SpanAttrWarehouse, req.Warehouse,
		telemetry.SpanAttrQuantity, req.InStock.String(),
	)

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var adjusted *inventory.ItemWarehouseAvailability
	err := s.uow.run(ctx, "adjust_stock", func(repos TransactionalRepositories) error {
		row, err := repos.AvailabilityRepo().FindForUpdate(ctx, inventory.StockKey{ItemCode: req.ItemCode, Warehouse: req.Warehouse})
		if err != nil {
			return err
		}
		if err := row.AdjustStock(req.InStock); err != nil {
			return err
		}
		if err := repos.AvailabilityRepo().SaveWithLock(ctx, row); err != nil {
			return err
		}
		adjusted = row
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Stock adjusted",
		zap.String("item_code", adjusted.ItemCode),
		zap.String("warehouse", adjusted.Warehouse),
		zap.String("in_stock", adjusted.InStock.String()),
		zap.String("available", adjusted.Available.String()),
	)
	telemetry.SetOK(span)

	resp := ToAvailabilityResponse(adjusted)
	return &resp, nil
}

// SetThresholds sets the min/max stock and reorder level of a row
func (s *AvailabilityService) SetThresholds(ctx context.Context, itemCode, warehouse string, req SetThresholdsRequest) (*AvailabilityResponse, error) {
	var updated *inventory.ItemWarehouseAvailability
	err := s.uow.run(ctx, "set_thresholds", func(repos TransactionalRepositories) error {
		row, err := repos.AvailabilityRepo().FindForUpdate(ctx, inventory.StockKey{ItemCode: itemCode, Warehouse: warehouse})
		if err != nil {
			return err
		}
		if err := row.SetThresholds(req.MinStock, req.MaxStock, req.ReorderLevel); err != nil {
			return err
		}
		if err := repos.AvailabilityRepo().SaveWithLock(ctx, row); err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToAvailabilityResponse(updated)
	return &resp, nil
}

// Journal returns the stock journal of an item in a warehouse, newest first
func (s *AvailabilityService) Journal(ctx context.Context, itemCode, warehouse string, filter shared.Filter) ([]InventoryTransactionResponse, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	txs, err := s.journalRepo.FindByItem(ctx, inventory.StockKey{ItemCode: itemCode, Warehouse: warehouse}, filter)
	if err != nil {
		return nil, err
	}
	out := make([]InventoryTransactionResponse, len(txs))
	for i, t := range txs {
		out[i] = ToInventoryTransactionResponse(t)
	}
	return out, nil
}

func toAvailabilityResponses(rows []*inventory.ItemWarehouseAvailability) []AvailabilityResponse {
	out := make([]AvailabilityResponse, len(rows))
	for i, r := range rows {
		out[i] = ToAvailabilityResponse(r)
	}
	return out
}
