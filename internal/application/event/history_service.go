package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryService exposes the outbox as the event history of a document or
// ledger row
type HistoryService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(repo shared.OutboxRepository, logger *zap.Logger) *HistoryService {
	return &HistoryService{
		repo:   repo,
		logger: logger,
	}
}

// EventEntryDTO is one recorded event
type EventEntryDTO struct {
	ID            uuid.UUID       `json:"id"`
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Status        string          `json:"status"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// HistoryStatsDTO counts an aggregate's events by delivery status
type HistoryStatsDTO struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Dead    int `json:"dead"`
	Total   int `json:"total"`
}

// HistoryResult is the event history of one aggregate, oldest first
type HistoryResult struct {
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Events      []EventEntryDTO `json:"events"`
	Stats       HistoryStatsDTO `json:"stats"`
}

// ListByAggregate returns the events recorded for aggregateID, optionally
// restricted to one event type
func (s *HistoryService) ListByAggregate(ctx context.Context, aggregateID uuid.UUID, eventType string) (*HistoryResult, error) {
	if aggregateID == uuid.Nil {
		return nil, shared.NewValidationError("Aggregate id is required",
			shared.FieldError{Field: "id", Message: "This field is required"})
	}

	entries, err := s.repo.FindByAggregate(ctx, aggregateID)
	if err != nil {
		s.logger.Error("Failed to load event history",
			zap.String("aggregate_id", aggregateID.String()),
			zap.Error(err),
		)
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to load event history")
	}

	result := &HistoryResult{
		AggregateID: aggregateID,
		Events:      make([]EventEntryDTO, 0, len(entries)),
	}
	for _, entry := range entries {
		if eventType != "" && entry.EventType != eventType {
			continue
		}
		result.Events = append(result.Events, toEventEntryDTO(entry))
		result.Stats.add(entry.Status)
	}
	return result, nil
}

func (st *HistoryStatsDTO) add(status shared.OutboxStatus) {
	st.Total++
	switch status {
	case shared.OutboxStatusPending, shared.OutboxStatusProcessing:
		st.Pending++
	case shared.OutboxStatusSent:
		st.Sent++
	case shared.OutboxStatusFailed:
		st.Failed++
	case shared.OutboxStatusDead:
		st.Dead++
	}
}

func toEventEntryDTO(entry *shared.OutboxEntry) EventEntryDTO {
	dto := EventEntryDTO{
		ID:            entry.ID,
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID,
		AggregateType: entry.AggregateType,
		Status:        string(entry.Status),
		RetryCount:    entry.RetryCount,
		LastError:     entry.LastError,
		ProcessedAt:   entry.ProcessedAt,
		CreatedAt:     entry.CreatedAt,
	}
	if json.Valid(entry.Payload) {
		dto.Payload = json.RawMessage(entry.Payload)
	}
	return dto
}
