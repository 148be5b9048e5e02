package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/civicwatch/backend/internal/logger"
	"github.com/gin-gonic/gin"
)

// RateLimiter decides whether the caller identified by key may act again.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// IssueRateLimiter caps issue submissions per user. It must run after
// RequireAuth. A nil limiter disables the check, and Redis failures let the
// request through.
func IssueRateLimiter(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := CurrentSession(c)
		if limiter == nil || session == nil {
			c.Next()
			return
		}

		key := strconv.FormatUint(uint64(session.UserID), 10)
		ok, retryAfter, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithError(err, "rate_limiter").Warn("Rate limit check failed, allowing request")
			c.Next()
			return
		}

		if !ok {
			seconds := int64(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.FormatInt(seconds, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": seconds,
			})
			return
		}

		c.Next()
	}
}
