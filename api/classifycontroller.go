package api

import (
	"net/http"

	"listingwatch/orchestrator"

	"github.com/gin-gonic/gin"
)

// ClassifyRequest is the body of POST /api/classify
type ClassifyRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// ClassifyResponse reports how the filter chain sees a title
type ClassifyResponse struct {
	Entity        bool              `json:"entity"`
	Excluded      bool              `json:"excluded"`
	EventType     string            `json:"event_type,omitempty"`
	Supplementary map[string]string `json:"supplementary"`
}

// RegisterClassifyRoutes registers the dry-run classification endpoint.
func RegisterClassifyRoutes(r *gin.Engine, runner *orchestrator.Runner) {
	r.POST("/api/classify", func(c *gin.Context) {
		var req ClassifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		a := runner.Analyzer()
		resp := ClassifyResponse{
			Entity:        a.MatchesEntity(req.Title),
			Excluded:      a.ContainsExcludeKeyword(req.Title),
			Supplementary: a.ExtractSupplementaryInfo(req.Title),
		}
		if t, ok := a.IdentifyEventType(req.Title, req.Description); ok {
			resp.EventType = string(t)
		}
		c.JSON(http.StatusOK, resp)
	})
}
