package http

import (
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/ringcall/internal/metrics"
)

type RouterOptions struct {
	AllowedOrigins []string
	// AuthRate and AuthBurst throttle register and login per client IP.
	AuthRate  float64
	AuthBurst int
	Log       *slog.Logger
}

func SetupRouter(
	opts RouterOptions,
	auth Authenticator,
	authController *AuthController,
	callController *CallController,
	activityController *ActivityController,
	signalController *SignalController,
) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), AccessLog(log), Metrics())

	config := cors.DefaultConfig()
	if len(opts.AllowedOrigins) > 0 {
		config.AllowOrigins = opts.AllowedOrigins
	} else {
		config.AllowOriginFunc = func(origin string) bool { return true }
	}
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	config.ExposeHeaders = []string{"Set-Cookie"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	requireSession := RequireSession(auth)
	optionalSession := OptionalSession(auth)

	api := router.Group("/api")

	if authController != nil {
		authGroup := api.Group("/auth")
		if opts.AuthRate > 0 {
			limiter := NewRateLimiter(opts.AuthRate, opts.AuthBurst)
			authGroup.POST("/register", limiter.Middleware(), authController.Register)
			authGroup.POST("/login", limiter.Middleware(), authController.Login)
		} else {
			authGroup.POST("/register", authController.Register)
			authGroup.POST("/login", authController.Login)
		}
		authGroup.POST("/logout", authController.Logout)
		authGroup.GET("/me", requireSession, authController.Me)
	}

	if callController != nil {
		api.POST("/create-call", requireSession, callController.CreateCall)
		api.GET("/calls", requireSession, callController.ListCalls)
		api.GET("/call/:callID", optionalSession, callController.GetCall)
		api.PATCH("/call/:callID", requireSession, callController.UpdateCall)
		api.DELETE("/call/:callID", requireSession, callController.DeleteCall)
	}

	if activityController != nil {
		api.POST("/track", activityController.Track)
		api.GET("/history", requireSession, activityController.History)
		api.GET("/sales", requireSession, activityController.ListSales)
		api.POST("/sales", requireSession, activityController.AddSale)
	}

	if signalController != nil {
		api.GET("/webrtc/config", signalController.WebRTCConfig)
		router.GET("/ws", signalController.Serve)
	}

	return router
}
