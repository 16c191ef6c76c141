package handler

import (
	salesapp "github.com/erp/fulfillment/internal/application/sales"
	"github.com/gin-gonic/gin"
)

// RuleHandler handles free item rule endpoints
type RuleHandler struct {
	BaseHandler
	ruleService RuleService
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(ruleService RuleService) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

// Create creates an active rule
// POST /free-item-rules
func (h *RuleHandler) Create(c *gin.Context) {
	var req salesapp.CreateFreeItemRuleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rule, err := h.ruleService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rule)
}

// List lists rules. ?active_only=true hides deactivated ones.
// GET /free-item-rules
func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.ruleService.List(c.Request.Context(), queryBool(c, "active_only", false))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rules)
}

// Deactivate stops a rule from producing new free lines
// POST /free-item-rules/:id/deactivate
func (h *RuleHandler) Deactivate(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}

	rule, err := h.ruleService.Deactivate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rule)
}
