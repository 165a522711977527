package middleware

import (
	"net/http"
	"strconv"
	"time"

	"document-portal/internal/logger"
	"document-portal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimitMiddleware allows limit requests per client IP and route in each
// window, counted in Redis. Requests pass when Redis is unavailable.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() == "/health" {
			c.Next()
			return
		}

		key := rateLimitPrefix + c.ClientIP() + ":" + c.FullPath()

		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("Rate limit check failed, allowing request", "error", err, "request_id", GetRequestID(c))
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

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
				})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
		c.Next()
	}
}
