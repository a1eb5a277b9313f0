package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"docqa-platform/internal/logger"
	"docqa-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware implements fixed-window rate limiting in Redis, keyed by
// client IP, scope and route. A nil client disables limiting, and Redis
// errors fail open.
func RateLimitMiddleware(rdb *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || c.FullPath() == "/health" || c.FullPath() == "/pdf/health" {
			c.Next()
			return
		}

		key := "ratelimit:" + scope + ":" + c.ClientIP() + ":" + c.FullPath()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", "error", err, "key", key)
			c.Next()
			return
		}
		count := incr.Val()

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if count > int64(limit) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))

			utils.RespondWithError(c, http.StatusTooManyRequests,
				"rate_limit_exceeded",
				"Too many requests. Please try again later.",
				gin.H{
					"retry_after": int(window.Seconds()),
					"limit":       limit,
					"scope":       scope,
				})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
		c.Next()
	}
}
