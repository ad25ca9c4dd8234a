package api

import (
	"net/http"

	"listingwatch/orchestrator"

	"github.com/gin-gonic/gin"
)

// RegisterHealthRoutes registers liveness and status endpoints.
func RegisterHealthRoutes(r *gin.Engine, runner *orchestrator.Runner) {
	r.GET("/api/health", handleHealth)
	r.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, runner.Status().GetStatus())
	})
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
