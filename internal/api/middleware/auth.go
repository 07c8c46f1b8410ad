package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/ragchat/internal/domain"
)

// Auth returns an API key middleware for the proxy. An empty key disables it.
// The key is read from X-API-Key or a Bearer Authorization header.
func Auth(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)
	return func(c *gin.Context) {
		if apiKey == "" || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
				key = token
			}
		}

		if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthorized.Error()})
			return
		}

		c.Next()
	}
}
