package event

import (
	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
)

// RegisterFulfillmentEvents registers every event the fulfillment domain
// writes to the outbox so the processor can decode them
func RegisterFulfillmentEvents(serializer *EventSerializer) {
	serializer.Register(sales.EventTypeDocumentStatusChanged, func() shared.DomainEvent {
		return &sales.DocumentStatusChangedEvent{}
	})
	serializer.Register(sales.EventTypeDocumentConverted, func() shared.DomainEvent {
		return &sales.DocumentConvertedEvent{}
	})

	serializer.Register(inventory.EventTypeCommitmentChanged, func() shared.DomainEvent {
		return &inventory.CommitmentChangedEvent{}
	})
	for _, t := range []string{inventory.EventTypeStockIssued, inventory.EventTypeStockReceived} {
		serializer.Register(t, func() shared.DomainEvent {
			return &inventory.StockMovedEvent{}
		})
	}
}
