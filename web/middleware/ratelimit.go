package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/postboard/postboard/logger"
	"github.com/postboard/postboard/web/locale"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "postboard:ratelimit:"

// RateLimitConfig limits how many requests one key may make per Window.
type RateLimitConfig struct {
	Attempts int
	Window   time.Duration
	KeyFunc  func(c *gin.Context) string
}

// DefaultRateLimitConfig keys on the client IP and the route.
func DefaultRateLimitConfig(attempts int) RateLimitConfig {
	return RateLimitConfig{
		Attempts: attempts,
		Window:   time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP() + ":" + c.FullPath()
		},
	}
}

// RateLimitMiddleware counts requests in Redis and answers 429 once the
// limit is hit. A Redis failure lets the request through. Attempts <= 0
// disables the limiter.
func RateLimitMiddleware(client *redis.Client, config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.Attempts <= 0 {
			c.Next()
			return
		}

		key := rateLimitKeyPrefix + config.KeyFunc(c)
		ctx := c.Request.Context()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Warning("Rate limit increment failed:", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, config.Window).Err(); err != nil {
				logger.Warning("Rate limit expire failed:", err)
			}
		}

		remaining := int64(config.Attempts) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Attempts))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(config.Attempts) {
			ttl, err := client.TTL(ctx, key).Result()
			if err != nil || ttl < 0 {
				ttl = config.Window
			}
			logger.Warningf("Rate limit exceeded for %s (count: %d)", key, count)
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			c.String(http.StatusTooManyRequests, locale.I18n(c, "errors.tooManyAttempts"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// LoginRateLimit limits credential posts to attempts per minute per client
// IP and route.
func LoginRateLimit(client *redis.Client, attempts int) gin.HandlerFunc {
	return RateLimitMiddleware(client, DefaultRateLimitConfig(attempts))
}
