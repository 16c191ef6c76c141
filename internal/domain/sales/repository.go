package sales

import (
	"context"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// DownstreamFilter selects the documents of one type linked to a source.
// SourceID matches the direct source reference, OrderID the sales order a
// document descends from. At least one must be set.
type DownstreamFilter struct {
	Type     DocumentType
	SourceID *uuid.UUID
	OrderID  *uuid.UUID
}

// DocumentFilter narrows document listings
type DocumentFilter struct {
	shared.Filter
	Type       DocumentType
	Status     DocumentStatus
	CustomerID string
}

// DocumentRepository defines the interface for document persistence
type DocumentRepository interface {
	// FindByID finds a document with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)

	// FindByIDForUpdate finds a document and locks its header row until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Document, error)

	// FindByNumber finds a document by its document number
	FindByNumber(ctx context.Context, number string) (*Document, error)

	// FindDownstream finds documents converted from a source
	FindDownstream(ctx context.Context, filter DownstreamFilter) ([]*Document, error)

	// List lists documents with paging and returns the total count
	List(ctx context.Context, filter DocumentFilter) ([]*Document, int64, error)

	// Create inserts a new document and its lines
	Create(ctx context.Context, doc *Document) error

	// SaveWithLock updates header and lines with optimistic locking. A stale
	// version yields a CONCURRENCY_CONFLICT error.
	SaveWithLock(ctx context.Context, doc *Document) error

	// NextNumber generates the next document number for docType in the year of at
	NextNumber(ctx context.Context, docType DocumentType, at time.Time) (string, error)
}

// FreeItemRuleRepository defines the interface for free item rule persistence
type FreeItemRuleRepository interface {
	// FindByID finds a rule by ID
	FindByID(ctx context.Context, id uuid.UUID) (*FreeItemRule, error)

	// FindActiveByTriggers finds the active rules triggered by any of items
	FindActiveByTriggers(ctx context.Context, items []string) ([]*FreeItemRule, error)

	// List lists rules, optionally only active ones
	List(ctx context.Context, activeOnly bool) ([]*FreeItemRule, error)

	// Save creates or updates a rule
	Save(ctx context.Context, rule *FreeItemRule) error
}
