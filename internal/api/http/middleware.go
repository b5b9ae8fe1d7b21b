package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/metrics"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	SessionCookie = "cs_session"

	contextUserKey    = "user"
	contextSessionKey = "session_id"
)

// Authenticator resolves session tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, sessionID string) (*domain.User, error)
}

func sessionToken(ctx *gin.Context) string {
	if cookie, err := ctx.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}

	parts := strings.SplitN(ctx.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// RequireSession rejects requests without a valid session.
func RequireSession(auth Authenticator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := sessionToken(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthenticated.Error()})
			return
		}

		user, err := auth.Authenticate(ctx.Request.Context(), token)
		if err != nil {
			ctx.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		ctx.Set(contextUserKey, user)
		ctx.Set(contextSessionKey, token)
		ctx.Next()
	}
}

// OptionalSession attaches the user when a valid session is presented and
// lets every request through.
func OptionalSession(auth Authenticator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token := sessionToken(ctx); token != "" {
			if user, err := auth.Authenticate(ctx.Request.Context(), token); err == nil {
				ctx.Set(contextUserKey, user)
				ctx.Set(contextSessionKey, token)
			}
		}
		ctx.Next()
	}
}

func currentUser(ctx *gin.Context) (*domain.User, bool) {
	v, ok := ctx.Get(contextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}

func currentUserID(ctx *gin.Context) string {
	if user, ok := currentUser(ctx); ok {
		return user.ID
	}
	return ""
}

// minLimiterIdle is the shortest time an idle client's bucket is kept.
const minLimiterIdle = time.Minute

// RateLimiter keeps one token bucket per client IP. Buckets idle long enough
// to have refilled are evicted.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	idle := minLimiterIdle
	if requestsPerSecond > 0 {
		refill := time.Duration(float64(burst) / requestsPerSecond * float64(time.Second))
		if refill > idle {
			idle = refill
		}
	}
	return newRateLimiter(requestsPerSecond, burst, idle)
}

func newRateLimiter(requestsPerSecond float64, burst int, idle time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: cache.New(idle, idle),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var limiter *rate.Limiter
	if cached, ok := rl.limiters.Get(key); ok {
		limiter = cached.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
	}
	// Refresh the idle deadline on every hit.
	rl.limiters.SetDefault(key, limiter)
	return limiter
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !rl.limiter(ctx.ClientIP()).Allow() {
			ctx.Header("Retry-After", "1")
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		ctx.Next()
	}
}

// AccessLog writes one slog record per request. Probes and metric scrapes
// are skipped.
func AccessLog(log *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		path := ctx.Request.URL.Path

		ctx.Next()

		if path == "/healthz" || path == "/metrics" {
			return
		}

		status := ctx.Writer.Status()
		attrs := []any{
			slog.Int("status", status),
			slog.String("method", ctx.Request.Method),
			slog.String("path", path),
			slog.String("ip", ctx.ClientIP()),
			slog.Duration("latency", time.Since(start)),
		}
		if len(ctx.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", ctx.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}

// Metrics records request counts and latencies labelled by route.
func Metrics() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
