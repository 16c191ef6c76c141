package event

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"go.uber.org/zap"
)

// DocumentActivityHandler writes an activity log line for every status
// change and conversion delivered from the outbox
type DocumentActivityHandler struct {
	logger *zap.Logger
}

// NewDocumentActivityHandler creates a new activity handler
func NewDocumentActivityHandler(logger *zap.Logger) *DocumentActivityHandler {
	return &DocumentActivityHandler{logger: logger.Named("activity")}
}

// Name scopes idempotency keys
func (h *DocumentActivityHandler) Name() string {
	return "document_activity"
}

// EventTypes returns the event types this handler is interested in
func (h *DocumentActivityHandler) EventTypes() []string {
	return []string{sales.EventTypeDocumentStatusChanged, sales.EventTypeDocumentConverted}
}

// Handle logs the event
func (h *DocumentActivityHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *sales.DocumentStatusChangedEvent:
		h.logger.Info("Document status changed",
			zap.String("document_id", e.AggregateID().String()),
			zap.String("document_type", e.DocumentType.String()),
			zap.String("number", e.Number),
			zap.String("from", e.FromStatus.String()),
			zap.String("to", e.ToStatus.String()),
			zap.Time("occurred_at", e.OccurredAt()),
		)
	case *sales.DocumentConvertedEvent:
		h.logger.Info("Document converted",
			zap.String("document_id", e.AggregateID().String()),
			zap.String("source_type", e.SourceType.String()),
			zap.String("target_id", e.TargetID.String()),
			zap.String("target_type", e.TargetType.String()),
			zap.String("target_number", e.TargetNumber),
		)
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	return nil
}

var _ shared.EventHandler = (*DocumentActivityHandler)(nil)
