package event

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/shared"
	"go.uber.org/zap"
)

// ReorderAlert describes a ledger row that fell to its reorder level
type ReorderAlert struct {
	ItemCode     string `json:"item_code"`
	Warehouse    string `json:"warehouse"`
	InStock      string `json:"in_stock"`
	Committed    string `json:"committed"`
	Available    string `json:"available"`
	ReorderLevel string `json:"reorder_level"`
	AlertType    string `json:"alert_type"` // "low_stock", "out_of_stock"
	Trigger      string `json:"trigger"`
}

// ReorderNotifier delivers reorder alerts
type ReorderNotifier interface {
	SendAlert(ctx context.Context, alert ReorderAlert) error
}

// ReorderAlertHandler re-reads the ledger row after every commitment change
// or stock issue and raises an alert when the row needs reordering
type ReorderAlertHandler struct {
	availability inventory.AvailabilityRepository
	notifier     ReorderNotifier
	logger       *zap.Logger
}

// NewReorderAlertHandler creates a handler that alerts through notifier
func NewReorderAlertHandler(availability inventory.AvailabilityRepository, notifier ReorderNotifier, logger *zap.Logger) *ReorderAlertHandler {
	return &ReorderAlertHandler{
		availability: availability,
		notifier:     notifier,
		logger:       logger,
	}
}

// Name scopes idempotency keys
func (h *ReorderAlertHandler) Name() string {
	return "reorder_alert"
}

// EventTypes returns the event types this handler is interested in
func (h *ReorderAlertHandler) EventTypes() []string {
	return []string{inventory.EventTypeCommitmentChanged, inventory.EventTypeStockIssued}
}

// Handle checks the row named by the event
func (h *ReorderAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var key inventory.StockKey
	switch e := event.(type) {
	case *inventory.CommitmentChangedEvent:
		if !e.Delta.IsPositive() {
			return nil
		}
		key = inventory.StockKey{ItemCode: e.ItemCode, Warehouse: e.Warehouse}
	case *inventory.StockMovedEvent:
		key = inventory.StockKey{ItemCode: e.ItemCode, Warehouse: e.Warehouse}
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	// The event carries the quantities at commit time; later movements may
	// already have replenished the row.
	row, err := h.availability.Find(ctx, key)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load availability %s: %w", key, err)
	}
	if !row.NeedsReorder() {
		return nil
	}

	alert := ReorderAlert{
		ItemCode:     row.ItemCode,
		Warehouse:    row.Warehouse,
		InStock:      row.InStock.String(),
		Committed:    row.Committed.String(),
		Available:    row.Available.String(),
		ReorderLevel: row.ReorderLevel.String(),
		AlertType:    "low_stock",
		Trigger:      event.EventType(),
	}
	if !row.Available.IsPositive() {
		alert.AlertType = "out_of_stock"
	}

	if err := h.notifier.SendAlert(ctx, alert); err != nil {
		// a failed notification must not put the event back in the outbox
		h.logger.Error("Failed to send reorder alert",
			zap.String("item_code", alert.ItemCode),
			zap.String("warehouse", alert.Warehouse),
			zap.Error(err),
		)
	}
	return nil
}

var _ shared.EventHandler = (*ReorderAlertHandler)(nil)

// LoggingReorderNotifier writes alerts to the log
type LoggingReorderNotifier struct {
	logger *zap.Logger
}

// NewLoggingReorderNotifier creates a new logging notifier
func NewLoggingReorderNotifier(logger *zap.Logger) *LoggingReorderNotifier {
	return &LoggingReorderNotifier{logger: logger}
}

// SendAlert logs the alert
func (n *LoggingReorderNotifier) SendAlert(_ context.Context, alert ReorderAlert) error {
	n.logger.Warn("REORDER ALERT",
		zap.String("type", alert.AlertType),
		zap.String("item_code", alert.ItemCode),
		zap.String("warehouse", alert.Warehouse),
		zap.String("available", alert.Available),
		zap.String("reorder_level", alert.ReorderLevel),
		zap.String("trigger", alert.Trigger),
	)
	return nil
}

var _ ReorderNotifier = (*LoggingReorderNotifier)(nil)
