package handler

import (
	salesapp "github.com/erp/fulfillment/internal/application/sales"
	"github.com/gin-gonic/gin"
)

// ConversionHandler handles document conversion endpoints. Conversion is two
// steps: prepare stages an unsaved payload the client may edit, commit
// persists it.
type ConversionHandler struct {
	BaseHandler
	conversionService ConversionService
}

// NewConversionHandler creates a new ConversionHandler
func NewConversionHandler(conversionService ConversionService) *ConversionHandler {
	return &ConversionHandler{conversionService: conversionService}
}

// Targets lists the document types a source can currently be converted into
// GET /documents/:id/conversions
func (h *ConversionHandler) Targets(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}

	targets, err := h.conversionService.ConversionTargets(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"source_id": id, "targets": targets})
}

// Prepare stages a conversion of a source document
// POST /documents/:id/conversions/prepare
func (h *ConversionHandler) Prepare(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req salesapp.PrepareConversionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	payload, err := h.conversionService.PrepareConversion(c.Request.Context(), id, req.TargetType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payload)
}

// Commit persists a staged conversion payload
// POST /conversions
func (h *ConversionHandler) Commit(c *gin.Context) {
	var payload salesapp.ConversionPayload
	if !h.BindJSON(c, &payload) {
		return
	}

	doc, err := h.conversionService.CommitConversion(c.Request.Context(), payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}
