package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

// Authentication happens upstream; the edge proxy forwards the verified user id in this header.
const (
	userHeader          = "X-User-ID"
	principalContextKey = "peerrent.principal"
)

// Principal stores the caller's user id, if any, on the gin context.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(userHeader)); uid != "" {
			c.Set(principalContextKey, uid)
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (string, bool) {
	uid := c.GetString(principalContextKey)
	return uid, uid != ""
}

func requireUser(c *gin.Context) (string, bool) {
	uid, ok := currentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return uid, ok
}
