package models

import (
	"time"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentModel is the persistence model for the Document aggregate root
type DocumentModel struct {
	AggregateModel
	Type           sales.DocumentType   `gorm:"type:varchar(20);not null;index:idx_document_type_status,priority:1"`
	Number         string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	Status         sales.DocumentStatus `gorm:"type:varchar(30);not null;index:idx_document_type_status,priority:2"`
	CustomerID     string               `gorm:"type:varchar(100);not null;index"`
	DocumentDate   time.Time            `gorm:"not null"`
	DueDate        *time.Time
	SourceType     *sales.DocumentType `gorm:"type:varchar(20)"`
	SourceID       *uuid.UUID          `gorm:"type:uuid;index"`
	OrderID        *uuid.UUID          `gorm:"type:uuid;index"`
	DiscountAmount decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	TaxAmount      decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	PaidAmount     decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	TotalAmount    decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	PayableAmount  decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	DueAmount      decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	Remark         string              `gorm:"type:text"`
	ClosedAt       *time.Time
	CancelledAt    *time.Time
	Lines          []DocumentLineModel `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "sales_documents"
}

// ToDomain converts the persistence model to a domain Document
func (m *DocumentModel) ToDomain() *sales.Document {
	doc := &sales.Document{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Type:              m.Type,
		Number:            m.Number,
		Status:            m.Status,
		CustomerID:        m.CustomerID,
		DocumentDate:      m.DocumentDate,
		DueDate:           m.DueDate,
		OrderID:           m.OrderID,
		DiscountAmount:    m.DiscountAmount,
		TaxAmount:         m.TaxAmount,
		PaidAmount:        m.PaidAmount,
		TotalAmount:       m.TotalAmount,
		PayableAmount:     m.PayableAmount,
		DueAmount:         m.DueAmount,
		Remark:            m.Remark,
		ClosedAt:          m.ClosedAt,
		CancelledAt:       m.CancelledAt,
		Lines:             make([]sales.Line, len(m.Lines)),
	}
	if m.SourceType != nil && m.SourceID != nil {
		doc.Source = &sales.SourceRef{Type: *m.SourceType, ID: *m.SourceID}
	}
	for i := range m.Lines {
		doc.Lines[i] = m.Lines[i].ToDomain()
	}
	return doc
}

// FromDomain populates the persistence model from a domain Document
func (m *DocumentModel) FromDomain(d *sales.Document) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.Type = d.Type
	m.Number = d.Number
	m.Status = d.Status
	m.CustomerID = d.CustomerID
	m.DocumentDate = d.DocumentDate
	m.DueDate = d.DueDate
	m.SourceType, m.SourceID = nil, nil
	if d.Source != nil {
		sourceType, sourceID := d.Source.Type, d.Source.ID
		m.SourceType, m.SourceID = &sourceType, &sourceID
	}
	m.OrderID = d.OrderID
	m.DiscountAmount = d.DiscountAmount
	m.TaxAmount = d.TaxAmount
	m.PaidAmount = d.PaidAmount
	m.TotalAmount = d.TotalAmount
	m.PayableAmount = d.PayableAmount
	m.DueAmount = d.DueAmount
	m.Remark = d.Remark
	m.ClosedAt = d.ClosedAt
	m.CancelledAt = d.CancelledAt
	m.Lines = make([]DocumentLineModel, len(d.Lines))
	for i := range d.Lines {
		m.Lines[i] = *DocumentLineModelFromDomain(d.ID, &d.Lines[i])
	}
}

// DocumentModelFromDomain creates a new persistence model from a domain Document
func DocumentModelFromDomain(d *sales.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(d)
	return m
}

// DocumentLineModel is the persistence model for a document line
type DocumentLineModel struct {
	BaseModel
	DocumentID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position     int             `gorm:"not null"`
	ItemCode     string          `gorm:"type:varchar(100);not null;index"`
	ItemName     string          `gorm:"type:varchar(255)"`
	UOM          string          `gorm:"column:uom;type:varchar(20);not null"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Warehouse    string          `gorm:"type:varchar(100)"`
	SourceLineID *uuid.UUID      `gorm:"type:uuid;index"`
	IsAuto       bool            `gorm:"not null;default:false"`
	IsActive     bool            `gorm:"not null"`
	Remark       string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (DocumentLineModel) TableName() string {
	return "sales_document_lines"
}

// ToDomain converts the persistence model to a domain Line
func (m *DocumentLineModel) ToDomain() sales.Line {
	return sales.Line{
		ID:           m.ID,
		DocumentID:   m.DocumentID,
		Position:     m.Position,
		ItemCode:     m.ItemCode,
		ItemName:     m.ItemName,
		UOM:          m.UOM,
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		TotalAmount:  m.TotalAmount,
		Warehouse:    m.Warehouse,
		SourceLineID: m.SourceLineID,
		IsAuto:       m.IsAuto,
		IsActive:     m.IsActive,
		Remark:       m.Remark,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// DocumentLineModelFromDomain creates a persistence model for a line of documentID
func DocumentLineModelFromDomain(documentID uuid.UUID, l *sales.Line) *DocumentLineModel {
	return &DocumentLineModel{
		BaseModel: BaseModel{
			ID:        l.ID,
			CreatedAt: l.CreatedAt,
			UpdatedAt: l.UpdatedAt,
		},
		DocumentID:   documentID,
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

// FreeItemRuleModel is the persistence model for a free item rule
type FreeItemRuleModel struct {
	BaseModel
	TriggerItem  string          `gorm:"type:varchar(100);not null;index"`
	BuyQuantity  decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	RewardItem   string          `gorm:"type:varchar(100);not null"`
	FreeQuantity decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Active       bool            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (FreeItemRuleModel) TableName() string {
	return "free_item_rules"
}

// ToDomain converts the persistence model to a domain FreeItemRule
func (m *FreeItemRuleModel) ToDomain() *sales.FreeItemRule {
	return &sales.FreeItemRule{
		ID:           m.ID,
		TriggerItem:  m.TriggerItem,
		BuyQuantity:  m.BuyQuantity,
		RewardItem:   m.RewardItem,
		FreeQuantity: m.FreeQuantity,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FreeItemRuleModelFromDomain creates a persistence model from a domain FreeItemRule
func FreeItemRuleModelFromDomain(r *sales.FreeItemRule) *FreeItemRuleModel {
	return &FreeItemRuleModel{
		BaseModel: BaseModel{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
		TriggerItem:  r.TriggerItem,
		BuyQuantity:  r.BuyQuantity,
		RewardItem:   r.RewardItem,
		FreeQuantity: r.FreeQuantity,
		Active:       r.Active,
	}
}
