package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/service"
)

type ActivityController struct {
	activity service.ActivityInteractor
}

func NewActivityController(activity service.ActivityInteractor) *ActivityController {
	return &ActivityController{activity: activity}
}

// Track is called by the lead-facing pages without a session.
func (c *ActivityController) Track(ctx *gin.Context) {
	type request struct {
		CallID string `json:"callId"`
		Type   string `json:"type"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := c.activity.Track(ctx.Request.Context(), req.CallID, domain.EventType(req.Type)); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

func (c *ActivityController) History(ctx *gin.Context) {
	events, err := c.activity.ListEvents(ctx.Request.Context(), currentUserID(ctx), service.HistoryEventLimit)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"events": events})
}

func (c *ActivityController) ListSales(ctx *gin.Context) {
	sales, err := c.activity.ListSales(ctx.Request.Context(), currentUserID(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (c *ActivityController) AddSale(ctx *gin.Context) {
	type request struct {
		CallID string `json:"callId"`
		Amount any    `json:"amount"`
		Note   any    `json:"note"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var note *string
	if s, ok := req.Note.(string); ok {
		note = &s
	}

	sale, err := c.activity.AddSale(ctx.Request.Context(), currentUserID(ctx), req.CallID, req.Amount, note)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"ok": true, "sale": sale})
}
