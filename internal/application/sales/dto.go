package sales

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/inventory"
	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Document DTOs ====================

// LineInput represents one line of a create or update request. ID is set
// when an update keeps an existing line.
type LineInput struct {
	ID           *uuid.UUID      `json:"id"`
	ItemCode     string          `json:"item_code" binding:"required,max=64"`
	UOM          string          `json:"uom" binding:"max=20"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Warehouse    string          `json:"warehouse" binding:"max=64"`
	SourceLineID *uuid.UUID      `json:"source_line_id"`
	IsActive     *bool           `json:"is_active"`
	Remark       string          `json:"remark" binding:"max=500"`
}

// CreateDocumentRequest represents a request to create a document
type CreateDocumentRequest struct {
	Type           sales.DocumentType   `json:"type" binding:"required,oneof=QUOTATION ORDER DELIVERY RETURN INVOICE"`
	CustomerID     string               `json:"customer_id" binding:"required,max=64"`
	Status         sales.DocumentStatus `json:"status" binding:"omitempty,oneof=DRAFT OPEN"`
	DocumentDate   *time.Time           `json:"document_date"`
	DueDate        *time.Time           `json:"due_date"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	TaxAmount      decimal.Decimal      `json:"tax_amount"`
	PaidAmount     decimal.Decimal      `json:"paid_amount"`
	Remark         string               `json:"remark" binding:"max=500"`
	Lines          []LineInput          `json:"lines" binding:"required,min=1,dive"`
}

// UpdateDocumentRequest replaces the header fields that are set and the full
// manual line set. Version, when set, must match the stored version.
type UpdateDocumentRequest struct {
	Version        *int             `json:"version"`
	CustomerID     *string          `json:"customer_id" binding:"omitempty,min=1,max=64"`
	DocumentDate   *time.Time       `json:"document_date"`
	DueDate        *time.Time       `json:"due_date"`
	DiscountAmount *decimal.Decimal `json:"discount_amount"`
	TaxAmount      *decimal.Decimal `json:"tax_amount"`
	PaidAmount     *decimal.Decimal `json:"paid_amount"`
	Remark         *string          `json:"remark" binding:"omitempty,max=500"`
	Lines          []LineInput      `json:"lines" binding:"required,min=1,dive"`
}

// TransitionDocumentRequest requests a manual status change
type TransitionDocumentRequest struct {
	Status sales.DocumentStatus `json:"status" binding:"required,oneof=OPEN EXPIRED RETURNED OVERDUE CLOSED CANCELLED"`
}

// RecordPaymentRequest records a payment against an invoice
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// DocumentListFilter represents filter options for listing documents
type DocumentListFilter struct {
	Type       sales.DocumentType   `form:"type" json:"type" binding:"omitempty,oneof=QUOTATION ORDER DELIVERY RETURN INVOICE"`
	Status     sales.DocumentStatus `form:"status" json:"status"`
	CustomerID string               `form:"customer_id" json:"customer_id"`
	Search     string               `form:"search" json:"search"`
	Page       int                  `form:"page" json:"page" binding:"omitempty,min=1"`
	PageSize   int                  `form:"page_size" json:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string               `form:"order_by" json:"order_by" binding:"omitempty,oneof=created_at document_date number total_amount"`
	OrderDir   string               `form:"order_dir" json:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// LineResponse represents a document line in API responses
type LineResponse struct {
	ID           uuid.UUID       `json:"id"`
	Position     int             `json:"position"`
	ItemCode     string          `json:"item_code"`
	ItemName     string          `json:"item_name"`
	UOM          string          `json:"uom"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Warehouse    string          `json:"warehouse"`
	SourceLineID *uuid.UUID      `json:"source_line_id,omitempty"`
	IsAuto       bool            `json:"is_auto"`
	IsActive     bool            `json:"is_active"`
	Remark       string          `json:"remark,omitempty"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID             uuid.UUID            `json:"id"`
	Type           sales.DocumentType   `json:"type"`
	Number         string               `json:"number"`
	Status         sales.DocumentStatus `json:"status"`
	CustomerID     string               `json:"customer_id"`
	DocumentDate   time.Time            `json:"document_date"`
	DueDate        *time.Time           `json:"due_date,omitempty"`
	SourceType     sales.DocumentType   `json:"source_type,omitempty"`
	SourceID       *uuid.UUID           `json:"source_id,omitempty"`
	OrderID        *uuid.UUID           `json:"order_id,omitempty"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	TaxAmount      decimal.Decimal      `json:"tax_amount"`
	PaidAmount     decimal.Decimal      `json:"paid_amount"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	PayableAmount  decimal.Decimal      `json:"payable_amount"`
	DueAmount      decimal.Decimal      `json:"due_amount"`
	Remark         string               `json:"remark,omitempty"`
	Lines          []LineResponse       `json:"lines"`
	Version        int                  `json:"version"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// ToDocumentResponse converts a domain Document to DocumentResponse
func ToDocumentResponse(d *sales.Document) DocumentResponse {
	lines := make([]LineResponse, len(d.Lines))
	for i, l := range d.Lines {
		lines[i] = LineResponse{
			ID:           l.ID,
			Position:     l.Position,
			ItemCode:     l.ItemCode,
			ItemName:     l.ItemName,
			UOM:          l.UOM,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			TotalAmount:  l.TotalAmount,
			Warehouse:    l.Warehouse,
			SourceLineID: l.SourceLineID,
			IsAuto:       l.IsAuto,
			IsActive:     l.IsActive,
			Remark:       l.Remark,
		}
	}

	resp := DocumentResponse{
		ID:             d.ID,
		Type:           d.Type,
		Number:         d.Number,
		Status:         d.Status,
		CustomerID:     d.CustomerID,
		DocumentDate:   d.DocumentDate,
		DueDate:        d.DueDate,
		OrderID:        d.OrderID,
		DiscountAmount: d.DiscountAmount,
		TaxAmount:      d.TaxAmount,
		PaidAmount:     d.PaidAmount,
		TotalAmount:    d.TotalAmount,
		PayableAmount:  d.PayableAmount,
		DueAmount:      d.DueAmount,
		Remark:         d.Remark,
		Lines:          lines,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.Source != nil {
		id := d.Source.ID
		resp.SourceType = d.Source.Type
		resp.SourceID = &id
	}
	return resp
}

// ==================== Conversion DTOs ====================

// ConversionLine is one staged line of a conversion payload
type ConversionLine struct {
	SourceLineID *uuid.UUID      `json:"source_line_id"`
	ItemCode     string          `json:"item_code" binding:"required,max=64"`
	ItemName     string          `json:"item_name"`
	UOM          string          `json:"uom" binding:"max=20"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Warehouse    string          `json:"warehouse" binding:"max=64"`
	Remark       string          `json:"remark" binding:"max=500"`
}

// ConversionPayload is an unsaved downstream document staged from a source.
// The caller may edit it before handing it to CommitConversion.
type ConversionPayload struct {
	SourceID       uuid.UUID            `json:"source_id" binding:"required"`
	SourceType     sales.DocumentType   `json:"source_type"`
	SourceNumber   string               `json:"source_number"`
	TargetType     sales.DocumentType   `json:"target_type" binding:"required,oneof=ORDER DELIVERY RETURN INVOICE"`
	CustomerID     string               `json:"customer_id" binding:"required,max=64"`
	Status         sales.DocumentStatus `json:"status" binding:"omitempty,oneof=DRAFT OPEN"`
	DueDate        *time.Time           `json:"due_date"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	TaxAmount      decimal.Decimal      `json:"tax_amount"`
	Remark         string               `json:"remark" binding:"max=500"`
	Lines          []ConversionLine     `json:"lines" binding:"required,min=1,dive"`
}

// PrepareConversionRequest asks for a payload converting a source into TargetType
type PrepareConversionRequest struct {
	TargetType sales.DocumentType `json:"target_type" binding:"required,oneof=ORDER DELIVERY RETURN INVOICE"`
}

// ==================== Free Item Rule DTOs ====================

// CreateFreeItemRuleRequest represents a request to create a free item rule
type CreateFreeItemRuleRequest struct {
	TriggerItem  string          `json:"trigger_item" binding:"required,max=64"`
	BuyQuantity  decimal.Decimal `json:"buy_quantity" binding:"required"`
	RewardItem   string          `json:"reward_item" binding:"required,max=64"`
	FreeQuantity decimal.Decimal `json:"free_quantity" binding:"required"`
}

// FreeItemRuleResponse represents a free item rule in API responses
type FreeItemRuleResponse struct {
	ID           uuid.UUID       `json:"id"`
	TriggerItem  string          `json:"trigger_item"`
	BuyQuantity  decimal.Decimal `json:"buy_quantity"`
	RewardItem   string          `json:"reward_item"`
	FreeQuantity decimal.Decimal `json:"free_quantity"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ToFreeItemRuleResponse converts a domain FreeItemRule to FreeItemRuleResponse
func ToFreeItemRuleResponse(r *sales.FreeItemRule) FreeItemRuleResponse {
	return FreeItemRuleResponse{
		ID:           r.ID,
		TriggerItem:  r.TriggerItem,
		BuyQuantity:  r.BuyQuantity,
		RewardItem:   r.RewardItem,
		FreeQuantity: r.FreeQuantity,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// ==================== Availability DTOs ====================

// AdjustStockRequest sets the counted on-hand quantity of a ledger row
type AdjustStockRequest struct {
	ItemCode  string          `json:"item_code" binding:"required,max=64"`
	Warehouse string          `json:"warehouse" binding:"required,max=64"`
	InStock   decimal.Decimal `json:"in_stock" binding:"required"`
}

// SetThresholdsRequest sets the stock thresholds of a ledger row
type SetThresholdsRequest struct {
	MinStock     decimal.Decimal `json:"min_stock"`
	MaxStock     decimal.Decimal `json:"max_stock"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
}

// AvailabilityResponse represents a ledger row in API responses
type AvailabilityResponse struct {
	ItemCode     string          `json:"item_code"`
	Warehouse    string          `json:"warehouse"`
	InStock      decimal.Decimal `json:"in_stock"`
	Committed    decimal.Decimal `json:"committed"`
	Ordered      decimal.Decimal `json:"ordered"`
	Available    decimal.Decimal `json:"available"`
	MinStock     decimal.Decimal `json:"min_stock"`
	MaxStock     decimal.Decimal `json:"max_stock"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Version      int             `json:"version"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ToAvailabilityResponse converts a ledger row to AvailabilityResponse
func ToAvailabilityResponse(a *inventory.ItemWarehouseAvailability) AvailabilityResponse {
	return AvailabilityResponse{
		ItemCode:     a.ItemCode,
		Warehouse:    a.Warehouse,
		InStock:      a.InStock,
		Committed:    a.Committed,
		Ordered:      a.Ordered,
		Available:    a.Available,
		MinStock:     a.MinStock,
		MaxStock:     a.MaxStock,
		ReorderLevel: a.ReorderLevel,
		Version:      a.Version,
		UpdatedAt:    a.UpdatedAt,
	}
}

// InventoryTransactionResponse represents a journal row in API responses
type InventoryTransactionResponse struct {
	ID              uuid.UUID                 `json:"id"`
	ItemCode        string                    `json:"item_code"`
	Warehouse       string                    `json:"warehouse"`
	TransactionType inventory.TransactionType `json:"transaction_type"`
	Quantity        decimal.Decimal           `json:"quantity"`
	Reference       string                    `json:"reference"`
	DocumentID      uuid.UUID                 `json:"document_id"`
	TransactionDate time.Time                 `json:"transaction_date"`
}

// ToInventoryTransactionResponse converts a journal row to its response
func ToInventoryTransactionResponse(t *inventory.InventoryTransaction) InventoryTransactionResponse {
	return InventoryTransactionResponse{
		ID:              t.ID,
		ItemCode:        t.ItemCode,
		Warehouse:       t.Warehouse,
		TransactionType: t.TransactionType,
		Quantity:        t.Quantity,
		Reference:       t.Reference,
		DocumentID:      t.DocumentID,
		TransactionDate: t.TransactionDate,
	}
}

// ==================== Item DTOs ====================

// SaveItemRequest creates or replaces an item master record
type SaveItemRequest struct {
	Code             string `json:"code" binding:"required,max=64"`
	Name             string `json:"name" binding:"required,max=200"`
	DefaultUOM       string `json:"default_uom" binding:"required,max=20"`
	DefaultWarehouse string `json:"default_warehouse" binding:"max=64"`
}

// ItemResponse represents an item in API responses
type ItemResponse struct {
	Code             string `json:"code"`
	Name             string `json:"name"`
	DefaultUOM       string `json:"default_uom"`
	DefaultWarehouse string `json:"default_warehouse"`
}

// ToItemResponse converts an item to ItemResponse
func ToItemResponse(i *inventory.Item) ItemResponse {
	return ItemResponse{
		Code:             i.Code,
		Name:             i.Name,
		DefaultUOM:       i.DefaultUOM,
		DefaultWarehouse: i.DefaultWarehouse,
	}
}
