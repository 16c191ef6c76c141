package sales

import (
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type constants
const (
	EventTypeDocumentStatusChanged = "DocumentStatusChanged"
	EventTypeDocumentConverted     = "DocumentConverted"
)

// DocumentStatusChangedEvent is recorded whenever a document changes status
type DocumentStatusChangedEvent struct {
	shared.BaseDomainEvent
	DocumentType DocumentType   `json:"document_type"`
	Number       string         `json:"number"`
	FromStatus   DocumentStatus `json:"from_status"`
	ToStatus     DocumentStatus `json:"to_status"`
}

// NewDocumentStatusChangedEvent creates a DocumentStatusChangedEvent
func NewDocumentStatusChangedEvent(d *Document, from, to DocumentStatus) *DocumentStatusChangedEvent {
	return &DocumentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentStatusChanged, AggregateTypeDocument, d.ID),
		DocumentType:    d.Type,
		Number:          d.Number,
		FromStatus:      from,
		ToStatus:        to,
	}
}

// DocumentConvertedEvent is recorded on the source when a downstream
// document is committed against it
type DocumentConvertedEvent struct {
	shared.BaseDomainEvent
	SourceType   DocumentType `json:"source_type"`
	TargetID     uuid.UUID    `json:"target_id"`
	TargetType   DocumentType `json:"target_type"`
	TargetNumber string       `json:"target_number"`
}

// NewDocumentConvertedEvent creates a DocumentConvertedEvent
func NewDocumentConvertedEvent(source, target *Document) *DocumentConvertedEvent {
	return &DocumentConvertedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentConverted, AggregateTypeDocument, source.ID),
		SourceType:      source.Type,
		TargetID:        target.ID,
		TargetType:      target.Type,
		TargetNumber:    target.Number,
	}
}
