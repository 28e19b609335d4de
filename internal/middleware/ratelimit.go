package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis *redis.Client
}

// NewRateLimiter returns a limiter backed by client. A nil client disables
// limiting.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{redis: client}
}

// Limit allows maxRequests per user within window.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := CurrentUserID(c)
		if rl == nil || rl.redis == nil || maxRequests <= 0 || userID == 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%d", keyPrefix, userID)
		ctx := c.Request.Context()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// Redis being down must not block generation.
			logger.WithError(err, "ratelimit").Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Header("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate_limited",
				"message": "Too many generation requests, try again later",
			})
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))
		c.Next()
	}
}

// GenerationLimit limits section actions and monster runs per minute.
func (rl *RateLimiter) GenerationLimit(maxPerMin int) gin.HandlerFunc {
	return rl.Limit("generation", maxPerMin, time.Minute)
}
