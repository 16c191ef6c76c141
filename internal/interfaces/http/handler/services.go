package handler

import (
	"context"

	eventapp "github.com/erp/fulfillment/internal/application/event"
	salesapp "github.com/erp/fulfillment/internal/application/sales"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
)

// DocumentService is the document use case surface used by DocumentHandler
type DocumentService interface {
	CreateDocument(ctx context.Context, req salesapp.CreateDocumentRequest) (*salesapp.DocumentResponse, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, req salesapp.UpdateDocumentRequest) (*salesapp.DocumentResponse, error)
	Open(ctx context.Context, id uuid.UUID) (*salesapp.DocumentResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) (*salesapp.DocumentResponse, error)
	Close(ctx context.Context, id uuid.UUID) (*salesapp.DocumentResponse, error)
	Transition(ctx context.Context, id uuid.UUID, req salesapp.TransitionDocumentRequest) (*salesapp.DocumentResponse, error)
	RecordPayment(ctx context.Context, id uuid.UUID, req salesapp.RecordPaymentRequest) (*salesapp.DocumentResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*salesapp.DocumentResponse, error)
	GetByNumber(ctx context.Context, number string) (*salesapp.DocumentResponse, error)
	List(ctx context.Context, filter salesapp.DocumentListFilter) ([]salesapp.DocumentResponse, int64, error)
}

// ConversionService stages and commits document conversions
type ConversionService interface {
	PrepareConversion(ctx context.Context, sourceID uuid.UUID, targetType sales.DocumentType) (*salesapp.ConversionPayload, error)
	CommitConversion(ctx context.Context, payload salesapp.ConversionPayload) (*salesapp.DocumentResponse, error)
	ConversionTargets(ctx context.Context, sourceID uuid.UUID) ([]sales.DocumentType, error)
}

// AvailabilityService reads and maintains the stock commitment ledger
type AvailabilityService interface {
	Get(ctx context.Context, itemCode, warehouse string) (*salesapp.AvailabilityResponse, error)
	ListByItem(ctx context.Context, itemCode string) ([]salesapp.AvailabilityResponse, error)
	ListBelowReorderLevel(ctx context.Context, filter shared.Filter) ([]salesapp.AvailabilityResponse, error)
	AdjustStock(ctx context.Context, req salesapp.AdjustStockRequest) (*salesapp.AvailabilityResponse, error)
	SetThresholds(ctx context.Context, itemCode, warehouse string, req salesapp.SetThresholdsRequest) (*salesapp.AvailabilityResponse, error)
	Journal(ctx context.Context, itemCode, warehouse string, filter shared.Filter) ([]salesapp.InventoryTransactionResponse, error)
}

// RuleService manages free item rules
type RuleService interface {
	Create(ctx context.Context, req salesapp.CreateFreeItemRuleRequest) (*salesapp.FreeItemRuleResponse, error)
	List(ctx context.Context, activeOnly bool) ([]salesapp.FreeItemRuleResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*salesapp.FreeItemRuleResponse, error)
}

// ItemService manages the item master
type ItemService interface {
	Save(ctx context.Context, req salesapp.SaveItemRequest) (*salesapp.ItemResponse, error)
	Get(ctx context.Context, code string) (*salesapp.ItemResponse, error)
}

// EventHistoryService reads the recorded events of an aggregate
type EventHistoryService interface {
	ListByAggregate(ctx context.Context, aggregateID uuid.UUID, eventType string) (*eventapp.HistoryResult, error)
}

var (
	_ DocumentService     = (*salesapp.DocumentService)(nil)
	_ ConversionService   = (*salesapp.ConversionService)(nil)
	_ AvailabilityService = (*salesapp.AvailabilityService)(nil)
	_ RuleService         = (*salesapp.RuleService)(nil)
	_ ItemService         = (*salesapp.ItemService)(nil)
	_ EventHistoryService = (*eventapp.HistoryService)(nil)
)
