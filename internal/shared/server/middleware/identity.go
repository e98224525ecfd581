package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/shared/server/respond"
)

const (
	userIDKey     = "userId"
	privilegedKey = "isPrivileged"
)

// Identity reads the caller identity from headers and stores it in context.
// X-User-Id is required on every request; an X-Admin-Key matching the
// configured key marks the caller as a privileged viewer. Session and token
// mechanics live in front of this service.
func Identity(adminAPIKey string) gin.HandlerFunc {
	adminAPIKey = strings.TrimSpace(adminAPIKey)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		userID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}
		c.Set(userIDKey, userID)

		privileged := false
		if adminAPIKey != "" {
			key := strings.TrimSpace(c.GetHeader("X-Admin-Key"))
			if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(adminAPIKey)) == 1 {
				privileged = true
			}
		}
		c.Set(privilegedKey, privileged)

		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the identity middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// IsPrivilegedViewer reports whether the caller may see all users' jobs.
func IsPrivilegedViewer(c *gin.Context) bool {
	if c == nil {
		return false
	}
	val, _ := c.Get(privilegedKey)
	if privileged, ok := val.(bool); ok {
		return privileged
	}
	return false
}
