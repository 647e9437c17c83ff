package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relayd/relayd/pkg/relaylog"
)

// maxBodyMiddleware rejects a management API request whose body exceeds
// limit, matching spec.md's boundary behavior for the control plane.
func maxBodyMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// loggingMiddleware records the peer, method, and path of every management
// request at DEBUG, matching the reference management server's logger.
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		relaylog.Debug("management: %s %s from %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.ClientIP(), c.Writer.Status(), time.Since(start))
	}
}

// notFoundHandler returns the uniform error shape for unmatched routes.
func notFoundHandler(c *gin.Context) {
	c.JSON(404, gin.H{"message": "not found"})
}
