package handler

import (
	"context"

	salesapp "github.com/erp/fulfillment/internal/application/sales"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler handles sales document API endpoints
type DocumentHandler struct {
	BaseHandler
	documentService DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Create creates a quotation, order, delivery, return or invoice
// POST /documents
func (h *DocumentHandler) Create(c *gin.Context) {
	var req salesapp.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.documentService.CreateDocument(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// GetByID returns a document with its lines
// GET /documents/:id
func (h *DocumentHandler) GetByID(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}

	doc, err := h.documentService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// GetByNumber returns a document by its number
// GET /documents/number/:number
func (h *DocumentHandler) GetByNumber(c *gin.Context) {
	doc, err := h.documentService.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// List lists documents
// GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	var filter salesapp.DocumentListFilter
	if !h.BindQuery(c, &filter) {
		return
	}

	docs, total, err := h.documentService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, docs, total, page, pageSize)
}

// Update replaces the header fields and manual lines of a document
// PUT /documents/:id
func (h *DocumentHandler) Update(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req salesapp.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.documentService.UpdateDocument(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Open moves a draft document to its open status
// POST /documents/:id/open
func (h *DocumentHandler) Open(c *gin.Context) {
	h.statusAction(c, h.documentService.Open)
}

// Cancel cancels a document
// POST /documents/:id/cancel
func (h *DocumentHandler) Cancel(c *gin.Context) {
	h.statusAction(c, h.documentService.Cancel)
}

// Close closes a document
// POST /documents/:id/close
func (h *DocumentHandler) Close(c *gin.Context) {
	h.statusAction(c, h.documentService.Close)
}

// Transition applies a manual status change
// POST /documents/:id/transition
func (h *DocumentHandler) Transition(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req salesapp.TransitionDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.documentService.Transition(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// RecordPayment records a payment against an invoice
// POST /documents/:id/payments
func (h *DocumentHandler) RecordPayment(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}
	var req salesapp.RecordPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.documentService.RecordPayment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

func (h *DocumentHandler) statusAction(c *gin.Context, action func(ctx context.Context, id uuid.UUID) (*salesapp.DocumentResponse, error)) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}

	doc, err := action(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}
