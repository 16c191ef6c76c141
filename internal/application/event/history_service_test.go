package event

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func outboxEntry(aggregateID uuid.UUID, eventType string, status shared.OutboxStatus, payload string) *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:            uuid.New(),
		EventID:       uuid.New(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: "Document",
		Payload:       []byte(payload),
		Status:        status,
	}
}

func TestHistoryService_ListByAggregate(t *testing.T) {
	docID := uuid.New()
	entries := []*shared.OutboxEntry{
		outboxEntry(docID, "DocumentStatusChanged", shared.OutboxStatusSent, `{"to_status":"OPEN"}`),
		outboxEntry(docID, "DocumentConverted", shared.OutboxStatusPending, `{"target_type":"DELIVERY"}`),
		outboxEntry(docID, "DocumentStatusChanged", shared.OutboxStatusDead, `not json`),
	}

	tests := []struct {
		name      string
		eventType string
		wantTypes []string
		wantStats HistoryStatsDTO
	}{
		{
			name:      "all events",
			wantTypes: []string{"DocumentStatusChanged", "DocumentConverted", "DocumentStatusChanged"},
			wantStats: HistoryStatsDTO{Pending: 1, Sent: 1, Dead: 1, Total: 3},
		},
		{
			name:      "filtered by type",
			eventType: "DocumentConverted",
			wantTypes: []string{"DocumentConverted"},
			wantStats: HistoryStatsDTO{Pending: 1, Total: 1},
		},
		{
			name:      "unknown type",
			eventType: "Nope",
			wantTypes: []string{},
			wantStats: HistoryStatsDTO{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockOutboxRepository)
			repo.On("FindByAggregate", context.Background(), docID).Return(entries, nil)
			svc := NewHistoryService(repo, zap.NewNop())

			result, err := svc.ListByAggregate(context.Background(), docID, tt.eventType)
			require.NoError(t, err)

			types := make([]string, 0, len(result.Events))
			for _, e := range result.Events {
				types = append(types, e.EventType)
			}
			assert.Equal(t, tt.wantTypes, types)
			assert.Equal(t, tt.wantStats, result.Stats)
			assert.Equal(t, docID, result.AggregateID)
			repo.AssertExpectations(t)
		})
	}
}

func TestHistoryService_PayloadOnlyWhenJSON(t *testing.T) {
	docID := uuid.New()
	repo := new(mockOutboxRepository)
	repo.On("FindByAggregate", context.Background(), docID).Return([]*shared.OutboxEntry{
		outboxEntry(docID, "DocumentStatusChanged", shared.OutboxStatusSent, `{"to_status":"OPEN"}`),
		outboxEntry(docID, "DocumentStatusChanged", shared.OutboxStatusSent, `garbage`),
	}, nil)

	result, err := NewHistoryService(repo, zap.NewNop()).ListByAggregate(context.Background(), docID, "")
	require.NoError(t, err)
	require.Len(t, result.Events, 2)
	assert.JSONEq(t, `{"to_status":"OPEN"}`, string(result.Events[0].Payload))
	assert.Nil(t, result.Events[1].Payload)
}

func TestHistoryService_Errors(t *testing.T) {
	t.Run("nil id", func(t *testing.T) {
		svc := NewHistoryService(new(mockOutboxRepository), zap.NewNop())
		_, err := svc.ListByAggregate(context.Background(), uuid.Nil, "")
		assert.True(t, shared.HasCode(err, shared.CodeValidation))
	})

	t.Run("repository failure", func(t *testing.T) {
		docID := uuid.New()
		repo := new(mockOutboxRepository)
		repo.On("FindByAggregate", context.Background(), docID).Return(nil, errors.New("db down"))

		_, err := NewHistoryService(repo, zap.NewNop()).ListByAggregate(context.Background(), docID, "")
		assert.True(t, shared.HasCode(err, "INTERNAL_ERROR"))
	})
}
