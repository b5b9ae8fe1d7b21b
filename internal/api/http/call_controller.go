package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/ringcall/internal/api/http/converter"
	"github.com/immxrtalbeast/ringcall/internal/service"
)

type CallController struct {
	calls service.CallInteractor
}

func NewCallController(calls service.CallInteractor) *CallController {
	return &CallController{calls: calls}
}

func (c *CallController) CreateCall(ctx *gin.Context) {
	type request struct {
		VideoURL         string `json:"videoUrl"`
		Title            string `json:"title"`
		CallerName       string `json:"callerName"`
		CallerAvatarURL  string `json:"callerAvatarUrl"`
		ExpiresInMinutes any    `json:"expiresInMinutes"`
		ExpectedAmount   any    `json:"expectedAmount"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	call, sale, err := c.calls.Create(ctx.Request.Context(), service.CreateCallInput{
		VideoURL:         req.VideoURL,
		Title:            req.Title,
		CallerName:       req.CallerName,
		CallerAvatarURL:  req.CallerAvatarURL,
		ExpiresInMinutes: req.ExpiresInMinutes,
		ExpectedAmount:   req.ExpectedAmount,
		OwnerUserID:      currentUserID(ctx),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, converter.CreatedCallToApi(call, sale))
}

// GetCall is public. Callers without a session are counted as ring opens.
func (c *CallController) GetCall(ctx *gin.Context) {
	_, authenticated := currentUser(ctx)

	view, err := c.calls.GetPublic(ctx.Request.Context(), ctx.Param("callID"), authenticated)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, converter.CallToPublic(view))
}

func (c *CallController) ListCalls(ctx *gin.Context) {
	views, err := c.calls.List(ctx.Request.Context(), currentUserID(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"calls": converter.CallsToApi(views)})
}

func (c *CallController) UpdateCall(ctx *gin.Context) {
	type request struct {
		Title            *string `json:"title"`
		ExpiresInMinutes any     `json:"expiresInMinutes"`
		ExpireNow        bool    `json:"expireNow"`
		ClearExpiry      bool    `json:"clearExpiry"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	call, err := c.calls.Update(ctx.Request.Context(), ctx.Param("callID"), currentUserID(ctx), service.UpdateCallInput{
		Title:            req.Title,
		ExpireNow:        req.ExpireNow,
		ClearExpiry:      req.ClearExpiry,
		ExpiresInMinutes: req.ExpiresInMinutes,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, converter.UpdatedCallToApi(call))
}

func (c *CallController) DeleteCall(ctx *gin.Context) {
	if err := c.calls.Delete(ctx.Request.Context(), ctx.Param("callID"), currentUserID(ctx)); err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}
