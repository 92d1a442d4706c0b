package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ProjectPlatform/Server/internal/auth"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeyNick   = "nick"
)

// AuthMiddleware validates the bearer token on every request in the group
// and stashes the resolved identity in the gin context. Requests with a
// missing or invalid token never reach a handler.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyNick, claims.Nick)
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or 0 if the middleware did
// not run. Zero is never a valid identity so downstream checks fail closed.
func GetUserID(c *gin.Context) int64 {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0
	}
	id, ok := val.(int64)
	if !ok {
		return 0
	}
	return id
}

func GetNick(c *gin.Context) string {
	val, exists := c.Get(ContextKeyNick)
	if !exists {
		return ""
	}
	nick, ok := val.(string)
	if !ok {
		return ""
	}
	return nick
}
