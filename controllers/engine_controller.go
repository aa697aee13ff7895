package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pricewatch_backend/services"
	"pricewatch_backend/services/alerting"
)

// EngineController exposes operational controls for the alert engine
type EngineController struct {
	engine *alerting.Engine
}

// NewEngineController creates a new engine controller
func NewEngineController(engine *alerting.Engine) *EngineController {
	return &EngineController{engine: engine}
}

// GetStatus returns the engine's current state and last run summary
// GET /api/v1/admin/engine/status
func (ec *EngineController) GetStatus(c *gin.Context) {
	status := gin.H{
		"running":  ec.engine.IsRunning(),
		"last_run": ec.engine.LastSummary(),
	}

	if services.GlobalEventStream != nil {
		status["stream_clients"] = services.GlobalEventStream.GetClientCount()
	}
	if services.GlobalMongoClient != nil {
		status["mongodb"] = services.GlobalMongoClient.GetConnectionStatus()
	}

	c.JSON(http.StatusOK, status)
}

// RunNow kicks off a manual alert check with the same semantics as a
// scheduled one. If a check is already running the new one is dropped by
// the engine's single-flight guard.
// POST /api/v1/admin/engine/run
func (ec *EngineController) RunNow(c *gin.Context) {
	if ec.engine.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{
			"message": "Alert check already running",
		})
		return
	}

	go ec.engine.RunOnce()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Alert check started",
	})
}

// GetRecentTriggers returns recently fired alerts from the trigger history
// GET /api/v1/admin/triggers
func (ec *EngineController) GetRecentTriggers(c *gin.Context) {
	if services.GlobalTriggerLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Trigger history not available"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := services.GlobalTriggerLog.ListRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch trigger history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}
