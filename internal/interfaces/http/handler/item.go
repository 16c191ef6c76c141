package handler

import (
	salesapp "github.com/erp/fulfillment/internal/application/sales"
	"github.com/gin-gonic/gin"
)

// ItemHandler handles item master endpoints
type ItemHandler struct {
	BaseHandler
	itemService ItemService
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(itemService ItemService) *ItemHandler {
	return &ItemHandler{itemService: itemService}
}

// Save creates or replaces an item
// PUT /items/:code
func (h *ItemHandler) Save(c *gin.Context) {
	req := salesapp.SaveItemRequest{Code: c.Param("code")}
	if !h.BindJSON(c, &req) {
		return
	}
	req.Code = c.Param("code")

	item, err := h.itemService.Save(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// Get returns an item
// GET /items/:code
func (h *ItemHandler) Get(c *gin.Context) {
	item, err := h.itemService.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}
