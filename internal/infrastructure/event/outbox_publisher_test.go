package event

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOutboxPublisher_SaverWritesInsideTransaction(t *testing.T) {
	db := setupOutboxDB(t)
	serializer := NewEventSerializer()
	RegisterFulfillmentEvents(serializer)
	publisher := NewOutboxPublisher(serializer)
	ctx := context.Background()
	evt := newStatusEvent()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.Saver(tx).SaveEvents(ctx, evt)
	})
	require.NoError(t, err)

	entries, err := NewGormOutboxRepository(db).FindByAggregate(ctx, evt.AggregateID())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, sales.EventTypeDocumentStatusChanged, entries[0].EventType)
	assert.Equal(t, shared.OutboxStatusPending, entries[0].Status)

	decoded, err := serializer.Deserialize(entries[0].EventType, entries[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, evt.EventID(), decoded.EventID())
}

func TestOutboxPublisher_RollbackDiscardsEvents(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := NewOutboxPublisher(NewEventSerializer())
	ctx := context.Background()
	evt := newStatusEvent()

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, publisher.PublishWithTx(ctx, tx, evt))
		return errors.New("abort")
	})
	require.Error(t, err)

	entries, err := NewGormOutboxRepository(db).FindByAggregate(ctx, evt.AggregateID())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
