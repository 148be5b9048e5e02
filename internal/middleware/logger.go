package middleware

import (
	"fmt"
	"time"

	"github.com/civicwatch/backend/internal/logger"
	"github.com/gin-gonic/gin"
)

// RequestLogger writes one access line per request to the API logger in
// simple text format.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)

		userID := uint(0)
		if session := CurrentSession(c); session != nil {
			userID = session.UserID
		}

		line := fmt.Sprintf("[API] %s | %s | %d | %s | %s | User: %d",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			latency.String(),
			c.ClientIP(),
			userID,
		)

		if len(c.Errors) > 0 {
			logger.APILogger.WithField("errors", c.Errors.String()).Warn(line)
			return
		}
		logger.APILogger.Info(line)
	}
}
