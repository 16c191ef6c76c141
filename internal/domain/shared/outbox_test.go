package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type testEvent struct {
	BaseDomainEvent
}

func TestNewOutboxEntry(t *testing.T) {
	aggID := uuid.New()
	evt := &testEvent{BaseDomainEvent: NewBaseDomainEvent("TestEvent", "Document", aggID)}

	entry := NewOutboxEntry(evt, []byte(`{"ok":true}`))

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, evt.EventID(), entry.EventID)
	assert.Equal(t, "TestEvent", entry.EventType)
	assert.Equal(t, aggID, entry.AggregateID)
	assert.Equal(t, "Document", entry.AggregateType)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, entry.CreatedAt, entry.UpdatedAt)
}

func TestOutboxEntry_MarkProcessing(t *testing.T) {
	entry := NewOutboxEntry(&testEvent{BaseDomainEvent: NewBaseDomainEvent("TestEvent", "Document", uuid.New())}, nil)

	assert.NoError(t, entry.MarkProcessing())
	assert.Equal(t, OutboxStatusProcessing, entry.Status)

	entry.MarkSent()
	err := entry.MarkProcessing()
	assert.True(t, HasCode(err, CodeInvalidState))
	assert.NotNil(t, entry.ProcessedAt)
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	entry := NewOutboxEntry(&testEvent{BaseDomainEvent: NewBaseDomainEvent("TestEvent", "Document", uuid.New())}, nil)
	entry.MaxRetries = 2

	entry.MarkFailed("boom")
	assert.Equal(t, OutboxStatusFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
	assert.Equal(t, "boom", entry.LastError)
	if assert.NotNil(t, entry.NextRetryAt) {
		assert.Equal(t, DefaultBaseBackoff, entry.NextRetryAt.Sub(entry.UpdatedAt))
	}
	assert.True(t, entry.CanRetry())

	entry.MarkFailed("boom again")
	assert.True(t, entry.IsDead())
	assert.Nil(t, entry.NextRetryAt)
	assert.False(t, entry.CanRetry())
}

func TestOutboxBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{9, 256 * time.Second},
		{10, MaxOutboxBackoff},
		{40, MaxOutboxBackoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutboxBackoff(tt.attempt), "attempt %d", tt.attempt)
	}
}
