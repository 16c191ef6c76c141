package handler

import (
	salesapp "github.com/erp/fulfillment/internal/application/sales"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// AvailabilityHandler exposes the stock commitment ledger
type AvailabilityHandler struct {
	BaseHandler
	availabilityService AvailabilityService
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(availabilityService AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilityService: availabilityService}
}

// Get returns the ledger row of an item in a warehouse
// GET /items/:code/availability/:warehouse
func (h *AvailabilityHandler) Get(c *gin.Context) {
	row, err := h.availabilityService.Get(c.Request.Context(), c.Param("code"), c.Param("warehouse"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, row)
}

// ListByItem returns the ledger rows of an item across warehouses
// GET /items/:code/availability
func (h *AvailabilityHandler) ListByItem(c *gin.Context) {
	rows, err := h.availabilityService.ListByItem(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// BelowReorderLevel lists the rows that need replenishment, optionally in
// one warehouse
// GET /availability/reorder?warehouse=
func (h *AvailabilityHandler) BelowReorderLevel(c *gin.Context) {
	var req dto.ListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter := listFilter(req)
	filter.Warehouse = c.Query("warehouse")

	rows, err := h.availabilityService.ListBelowReorderLevel(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// AdjustStock sets the counted on-hand quantity of a row
// POST /items/:code/availability/:warehouse/adjust
func (h *AvailabilityHandler) AdjustStock(c *gin.Context) {
	// the path names the row; the body only needs in_stock
	req := salesapp.AdjustStockRequest{ItemCode: c.Param("code"), Warehouse: c.Param("warehouse")}
	if !h.BindJSON(c, &req) {
		return
	}
	req.ItemCode, req.Warehouse = c.Param("code"), c.Param("warehouse")

	row, err := h.availabilityService.AdjustStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, row)
}

// SetThresholds sets the min/max stock and reorder level of a row
// PUT /items/:code/availability/:warehouse/thresholds
func (h *AvailabilityHandler) SetThresholds(c *gin.Context) {
	var req salesapp.SetThresholdsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	row, err := h.availabilityService.SetThresholds(c.Request.Context(), c.Param("code"), c.Param("warehouse"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, row)
}

// Journal returns the stock journal of a row, newest first
// GET /items/:code/availability/:warehouse/journal
func (h *AvailabilityHandler) Journal(c *gin.Context) {
	var req dto.ListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter := listFilter(req)
	if req.PageSize <= 0 {
		filter.PageSize = 50
	}

	rows, err := h.availabilityService.Journal(c.Request.Context(), c.Param("code"), c.Param("warehouse"), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}
