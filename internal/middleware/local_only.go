package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// LocalOnly restricts authority endpoints to loopback clients
// (127.0.0.1 or ::1).
func LocalOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		ip := net.ParseIP(clientIP)
		if ip == nil || !ip.IsLoopback() {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden: local access only"})
			c.Abort()
			return
		}

		c.Next()
	}
}
