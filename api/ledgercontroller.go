package api

import (
	"net/http"

	"listingwatch/config"
	"listingwatch/orchestrator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterLedgerRoutes registers the read-only ledger endpoint.
// GET /api/ledger?hashes=true includes the hash list.
func RegisterLedgerRoutes(r *gin.Engine, cfg config.Config, logger *zap.Logger) {
	r.GET("/api/ledger", func(c *gin.Context) {
		withHashes := c.Query("hashes") == "true"
		info, err := orchestrator.InspectLedger(c.Request.Context(), cfg, nil, logger, withHashes)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open ledger: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	})
}
