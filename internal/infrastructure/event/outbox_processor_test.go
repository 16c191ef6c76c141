package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newProcessorFixture(t *testing.T) (*OutboxProcessor, *GormOutboxRepository, *InMemoryEventBus) {
	t.Helper()
	repo := NewGormOutboxRepository(setupOutboxDB(t))
	serializer := NewEventSerializer()
	RegisterFulfillmentEvents(serializer)
	bus := NewInMemoryEventBus(zap.NewNop())
	cfg := DefaultOutboxProcessorConfig()
	cfg.BatchSize = 10
	return NewOutboxProcessor(repo, bus, serializer, cfg, zap.NewNop()), repo, bus
}

func saveStatusEvent(t *testing.T, repo *GormOutboxRepository) *sales.DocumentStatusChangedEvent {
	t.Helper()
	evt := newStatusEvent()
	payload, err := NewEventSerializer().Serialize(evt)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), shared.NewOutboxEntry(evt, payload)))
	return evt
}

func TestOutboxProcessor_DeliversPending(t *testing.T) {
	processor, repo, bus := newProcessorFixture(t)
	handler := newRecordingHandler(sales.EventTypeDocumentStatusChanged)
	bus.Subscribe(handler)
	ctx := context.Background()

	evt := saveStatusEvent(t, repo)
	processor.ProcessBatch(ctx)

	require.Equal(t, 1, handler.count())
	assert.Equal(t, evt.EventID(), handler.handled[0].EventID())

	entries, err := repo.FindByAggregate(ctx, evt.AggregateID())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, shared.OutboxStatusSent, entries[0].Status)
	assert.NotNil(t, entries[0].ProcessedAt)
}

func TestOutboxProcessor_FailedDeliveryIsScheduledForRetry(t *testing.T) {
	processor, repo, bus := newProcessorFixture(t)
	handler := newRecordingHandler()
	handler.setErr(errors.New("consumer offline"))
	bus.Subscribe(handler)
	ctx := context.Background()

	evt := saveStatusEvent(t, repo)
	processor.ProcessBatch(ctx)

	entries, err := repo.FindByAggregate(ctx, evt.AggregateID())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, shared.OutboxStatusFailed, entries[0].Status)
	assert.Equal(t, 1, entries[0].RetryCount)
	assert.Contains(t, entries[0].LastError, "consumer offline")

	retryable, err := repo.FindRetryable(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, retryable, 1)
}

func TestOutboxProcessor_UnknownTypeGoesDeadEventually(t *testing.T) {
	processor, repo, _ := newProcessorFixture(t)
	ctx := context.Background()

	evt := &struct{ shared.BaseDomainEvent }{sharedEvent("Unregistered")}
	entry := shared.NewOutboxEntry(evt, []byte(`{}`))
	entry.MaxRetries = 1
	require.NoError(t, repo.Save(ctx, entry))

	processor.ProcessBatch(ctx)

	entries, err := repo.FindByAggregate(ctx, evt.AggregateID())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDead())
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	processor, _, _ := newProcessorFixture(t)
	processor.config.PollInterval = 10 * time.Millisecond
	processor.config.CleanupInterval = 10 * time.Millisecond

	require.NoError(t, processor.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, processor.Stop(ctx))
}
