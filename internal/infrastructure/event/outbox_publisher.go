package event

import (
	"context"

	"github.com/erp/fulfillment/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher writes domain events to the outbox table inside the
// caller's transaction
type OutboxPublisher struct {
	serializer *EventSerializer
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(serializer *EventSerializer) *OutboxPublisher {
	return &OutboxPublisher{serializer: serializer}
}

// PublishWithTx stores events through tx so they commit or roll back with the
// aggregate changes
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return err
		}
		entries = append(entries, shared.NewOutboxEntry(event, payload))
	}

	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}

// Saver binds the publisher to tx
func (p *OutboxPublisher) Saver(tx *gorm.DB) shared.EventSaver {
	return &txEventSaver{publisher: p, tx: tx}
}

type txEventSaver struct {
	publisher *OutboxPublisher
	tx        *gorm.DB
}

func (s *txEventSaver) SaveEvents(ctx context.Context, events ...shared.DomainEvent) error {
	return s.publisher.PublishWithTx(ctx, s.tx, events...)
}
