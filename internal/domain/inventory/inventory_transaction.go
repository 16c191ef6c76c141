package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the type of stock movement journaled
type TransactionType string

const (
	// TransactionTypeSale records a commitment change from an order line
	TransactionTypeSale TransactionType = "SALE"
	// TransactionTypeDelivery records stock leaving with a delivery
	TransactionTypeDelivery TransactionType = "DELIVERY"
	// TransactionTypeReturn records stock coming back with a return
	TransactionTypeReturn TransactionType = "RETURN"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypeDelivery, TransactionTypeReturn:
		return true
	}
	return false
}

// ReferencePrefix returns the prefix of journal references for this type
func (t TransactionType) ReferencePrefix() string {
	switch t {
	case TransactionTypeSale:
		return "SO"
	case TransactionTypeDelivery:
		return "DEL"
	case TransactionTypeReturn:
		return "RET"
	}
	return "TX"
}

// InventoryTransaction is an immutable journal row for one ledger movement.
// Corrections are made with new rows of opposite sign.
type InventoryTransaction struct {
	shared.BaseEntity
	ItemCode        string
	Warehouse       string
	TransactionType TransactionType
	Quantity        decimal.Decimal // signed
	Reference       string
	DocumentID      uuid.UUID
	LineID          uuid.UUID
	TransactionDate time.Time
}

// NewInventoryTransaction creates a journal row for a document line. The
// reference is <PREFIX>-<document number>-<line position>.
func NewInventoryTransaction(
	txType TransactionType,
	itemCode, warehouse string,
	quantity decimal.Decimal,
	documentID uuid.UUID, documentNumber string,
	lineID uuid.UUID, linePosition int,
) (*InventoryTransaction, error) {
	if !txType.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("Invalid transaction type %q", txType))
	}
	if strings.TrimSpace(itemCode) == "" || strings.TrimSpace(warehouse) == "" {
		return nil, shared.NewValidationError("Item and warehouse are required")
	}
	if quantity.IsZero() {
		return nil, shared.NewValidationError("Transaction quantity cannot be zero",
			shared.FieldError{Field: "quantity", Message: "Must not be 0"})
	}

	now := time.Now()
	return &InventoryTransaction{
		BaseEntity:      shared.NewBaseEntity(),
		ItemCode:        itemCode,
		Warehouse:       warehouse,
		TransactionType: txType,
		Quantity:        quantity,
		Reference:       JournalReference(txType, documentNumber, linePosition),
		DocumentID:      documentID,
		LineID:          lineID,
		TransactionDate: now,
	}, nil
}

// JournalReference builds the reference string of a journal row
func JournalReference(txType TransactionType, documentNumber string, linePosition int) string {
	return fmt.Sprintf("%s-%s-%d", txType.ReferencePrefix(), documentNumber, linePosition)
}

// IsInbound returns true if the row adds to stock or commitment
func (t *InventoryTransaction) IsInbound() bool {
	return t.Quantity.IsPositive()
}
