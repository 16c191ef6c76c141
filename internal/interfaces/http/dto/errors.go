package dto

import (
	"errors"
	"net/http"

	"github.com/erp/fulfillment/internal/domain/shared"
)

// Domain error codes. These are the codes carried by shared.DomainError and
// are passed to clients unchanged.
const (
	ErrCodeValidation        = shared.CodeValidation
	ErrCodeNotFound          = shared.CodeNotFound
	ErrCodeInvalidState      = shared.CodeInvalidState
	ErrCodeExhausted         = shared.CodeExhausted
	ErrCodeInsufficientStock = shared.CodeInsufficientStock
	ErrCodeConcurrency       = shared.CodeConcurrency
)

// Request error codes raised by the HTTP layer itself
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeDuplicateRequest = "DUPLICATE_REQUEST"
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	ErrCodeRouteNotFound    = "ROUTE_NOT_FOUND"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:        http.StatusBadRequest,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeExhausted:         http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,
	ErrCodeConcurrency:       http.StatusConflict,
	"ALREADY_EXISTS":         http.StatusConflict,
	"INVALID_INPUT":          http.StatusBadRequest,

	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeDuplicateRequest: http.StatusConflict,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeRouteNotFound:    http.StatusNotFound,
	ErrCodeInternal:         http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponseFromError builds the response body and status for err.
// Domain errors keep their code and message; field details and stock
// shortages are copied into the response. Anything else is a 500 with a
// generic message.
func ErrorResponseFromError(err error, requestID string) (int, Response) {
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError,
			NewErrorResponseWithRequestID(ErrCodeInternal, "An unexpected error occurred", requestID)
	}

	resp := NewErrorResponseWithRequestID(domainErr.Code, domainErr.Message, requestID)

	var validationErr *shared.ValidationError
	if errors.As(err, &validationErr) {
		for _, f := range validationErr.Fields {
			resp.Error.Details = append(resp.Error.Details, ValidationDetail{Field: f.Field, Message: f.Message})
		}
	}

	var stockErr *shared.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.Error.Shortage = &StockShortage{
			ItemCode:  stockErr.ItemCode,
			Warehouse: stockErr.Warehouse,
			Available: stockErr.Available.String(),
			Required:  stockErr.Required.String(),
		}
	}

	return GetHTTPStatus(domainErr.Code), resp
}
