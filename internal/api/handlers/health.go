package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status along with the number of
// websocket clients connected to this instance.
func HealthCheck(connections func() int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "arena-api",
			"version":     version,
			"uptime":      time.Since(startTime).String(),
			"connections": connections(),
		})
	}
}
