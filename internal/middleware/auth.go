package middleware

import (
	"net/http"
	"strings"

	"github.com/civicwatch/backend/internal/auth"
	"github.com/civicwatch/backend/internal/models"
	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// Session parses an optional Bearer token and stores the caller's session in
// the context. Requests without a valid token continue anonymously; routes
// that need a caller add RequireAuth.
func Session(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.Next()
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if session, err := tokens.Parse(tokenString); err == nil {
			c.Set(sessionKey, session)
		}

		c.Next()
	}
}

// CurrentSession returns the caller's session, or nil for anonymous requests.
func CurrentSession(c *gin.Context) *auth.Session {
	value, exists := c.Get(sessionKey)
	if !exists {
		return nil
	}
	session, _ := value.(*auth.Session)
	return session
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.RequireSession(CurrentSession(c)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireRole rejects anonymous requests with 401 and callers without role
// with 403.
func RequireRole(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch auth.RequireRole(CurrentSession(c), role) {
		case nil:
			c.Next()
		case auth.ErrUnauthenticated:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		}
	}
}
