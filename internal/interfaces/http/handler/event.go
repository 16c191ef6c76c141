package handler

import (
	"github.com/gin-gonic/gin"
)

// EventHandler exposes the recorded events of documents and ledger rows
type EventHandler struct {
	BaseHandler
	historyService EventHistoryService
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(historyService EventHistoryService) *EventHandler {
	return &EventHandler{historyService: historyService}
}

// History returns the events of an aggregate, oldest first.
// ?event_type= narrows the result to one type.
// GET /documents/:id/events
func (h *EventHandler) History(c *gin.Context) {
	id, ok := h.ParseUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.historyService.ListByAggregate(c.Request.Context(), id, c.Query("event_type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
