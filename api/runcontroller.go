package api

import (
	"errors"
	"net/http"
	"strconv"

	"listingwatch/orchestrator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunResponse is returned by POST /api/run
type RunResponse struct {
	RunID   string `json:"run_id,omitempty"`
	Test    bool   `json:"test"`
	Message string `json:"message"`
}

// RegisterRunRoutes registers the manual trigger endpoint.
func RegisterRunRoutes(r *gin.Engine, runner *orchestrator.Runner, logger *zap.Logger) {
	r.POST("/api/run", func(c *gin.Context) {
		test := false
		if raw := c.Query("test"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "test must be a boolean"})
				return
			}
			test = v
		}

		runID, err := runner.RunAsync(orchestrator.RunOptions{Test: test})
		if errors.Is(err, orchestrator.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		logger.Info("Run triggered over HTTP", zap.String("run_id", runID), zap.Bool("test", test))
		c.JSON(http.StatusAccepted, RunResponse{RunID: runID, Test: test, Message: "run started"})
	})
}
