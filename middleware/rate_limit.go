package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/habitly/habitd/config"
	"github.com/habitly/habitd/utils"
)

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
	mu      sync.Mutex
}

var (
	limiters   = map[string]*rateLimiter{}
	limitersMu sync.Mutex
)

// RateLimitMiddleware applies a token bucket per authenticated user, or per
// client IP for anonymous requests.
func RateLimitMiddleware() gin.HandlerFunc {
	return RateLimitPerMinute(config.Get().RateLimitPerMinute)
}

// RateLimitPerMinute is RateLimitMiddleware with an explicit budget.
func RateLimitPerMinute(perMinute int) gin.HandlerFunc {
	r := rate.Every(time.Minute / time.Duration(max(perMinute, 1)))
	burst := max(perMinute/2, 1)

	return func(ctx *gin.Context) {
		key := "ip:" + ctx.ClientIP()
		if uid, ok := ctx.Get(ContextUserIDKey); ok {
			key = fmt.Sprintf("user:%v", uid)
		}
		limiter := getLimiter(key, r, burst)

		limiter.mu.Lock()
		allowed := limiter.limiter.Allow()
		limiter.mu.Unlock()

		if !allowed {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

func getLimiter(key string, limit rate.Limit, burst int) *rateLimiter {
	limitersMu.Lock()
	defer limitersMu.Unlock()

	cleanupExpiredLimitersLocked()

	if limiter, ok := limiters[key]; ok {
		limiter.expires = time.Now().Add(5 * time.Minute)
		return limiter
	}

	limiter := &rateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		expires: time.Now().Add(5 * time.Minute),
	}
	limiters[key] = limiter
	return limiter
}

func cleanupExpiredLimitersLocked() {
	now := time.Now()
	for key, limiter := range limiters {
		if now.After(limiter.expires) {
			delete(limiters, key)
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
