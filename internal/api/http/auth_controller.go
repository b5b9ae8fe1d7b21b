package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/service"
)

type AuthController struct {
	auth         service.AuthInteractor
	sessionTTL   time.Duration
	secureCookie bool
}

func NewAuthController(auth service.AuthInteractor, sessionTTL time.Duration, secureCookie bool) *AuthController {
	if sessionTTL <= 0 {
		sessionTTL = domain.DefaultSessionTTL
	}
	return &AuthController{auth: auth, sessionTTL: sessionTTL, secureCookie: secureCookie}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *AuthController) Register(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, session, err := c.auth.Register(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(ctx, err)
		return
	}

	c.setSessionCookie(ctx, session.ID)
	ctx.JSON(http.StatusOK, userResponse(user))
}

func (c *AuthController) Login(ctx *gin.Context) {
	var req credentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, session, err := c.auth.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(ctx, err)
		return
	}

	c.setSessionCookie(ctx, session.ID)
	ctx.JSON(http.StatusOK, userResponse(user))
}

func (c *AuthController) Logout(ctx *gin.Context) {
	if err := c.auth.Logout(ctx.Request.Context(), sessionToken(ctx)); err != nil {
		writeError(ctx, err)
		return
	}

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(SessionCookie, "", -1, "/", "", c.secureCookie, true)
	ctx.JSON(http.StatusOK, gin.H{"ok": true})
}

func (c *AuthController) Me(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthenticated.Error()})
		return
	}
	ctx.JSON(http.StatusOK, userResponse(user))
}

func (c *AuthController) setSessionCookie(ctx *gin.Context, token string) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(SessionCookie, token, int(c.sessionTTL/time.Second), "/", "", c.secureCookie, true)
}

func userResponse(user *domain.User) gin.H {
	return gin.H{"ok": true, "userId": user.ID, "username": user.Username}
}
