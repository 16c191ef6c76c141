package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error codes shared by the fulfillment pipeline
const (
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidState      = "INVALID_STATE"
	CodeExhausted         = "CONVERSION_EXHAUSTED"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeConcurrency       = "CONCURRENCY_CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrency, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
)

// FieldError describes one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned for malformed input. Fields carries the
// per-field context the caller needs to fix the request.
type ValidationError struct {
	*DomainError
	Fields []FieldError
}

// NewValidationError creates a validation error with optional field details
func NewValidationError(message string, fields ...FieldError) *ValidationError {
	return &ValidationError{
		DomainError: NewDomainError(CodeValidation, message),
		Fields:      fields,
	}
}

// Unwrap exposes the embedded DomainError to errors.As
func (e *ValidationError) Unwrap() error {
	return e.DomainError
}

// InsufficientStockError reports that a commitment would exceed what is available
type InsufficientStockError struct {
	*DomainError
	ItemCode  string
	Warehouse string
	Available decimal.Decimal
	Required  decimal.Decimal
}

// NewInsufficientStockError creates an InsufficientStockError for the given row
func NewInsufficientStockError(itemCode, warehouse string, available, required decimal.Decimal) *InsufficientStockError {
	msg := fmt.Sprintf("insufficient stock for item %s in warehouse %s: available %s, required %s",
		itemCode, warehouse, available.String(), required.String())
	return &InsufficientStockError{
		DomainError: NewDomainError(CodeInsufficientStock, msg),
		ItemCode:    itemCode,
		Warehouse:   warehouse,
		Available:   available,
		Required:    required,
	}
}

// Unwrap exposes the embedded DomainError to errors.As
func (e *InsufficientStockError) Unwrap() error {
	return e.DomainError
}

// NewInvalidStateError reports an operation that is not allowed in the current status
func NewInvalidStateError(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidState, fmt.Sprintf(format, args...))
}

// NewExhaustedError reports a conversion source with nothing left to convert
func NewExhaustedError(format string, args ...any) *DomainError {
	return NewDomainError(CodeExhausted, fmt.Sprintf(format, args...))
}

// NewConcurrencyError reports contention on a versioned or locked row
func NewConcurrencyError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConcurrency, fmt.Sprintf(format, args...))
}

// HasCode reports whether err carries a DomainError with the given code
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsConcurrency reports whether err is a ConcurrencyError
func IsConcurrency(err error) bool {
	return HasCode(err, CodeConcurrency)
}

// IsExhausted reports whether err is an ExhaustedError
func IsExhausted(err error) bool {
	return HasCode(err, CodeExhausted)
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}
