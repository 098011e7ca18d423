// Package auth guards the v1 API surface with a static key, which is enough
// for the single-tenant deployments facegate targets.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Header carries the API key on every authenticated request.
const Header = "X-API-Key"

// RequireKey enforces the configured API key. An empty key disables the
// check so local setups run without credentials.
func RequireKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(Header)
		switch {
		case provided == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "api key required"})
		case subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "api key rejected"})
		default:
			c.Next()
		}
	}
}
