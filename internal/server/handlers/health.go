package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kitepay/railbridge/internal/application/watcher"
	"github.com/kitepay/railbridge/internal/infrastructure/database"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db      *database.DBManager
	watcher watcher.IWatcherService
}

func NewHealthHandler(db *database.DBManager, watcherSvc watcher.IWatcherService) *HealthHandler {
	return &HealthHandler{db: db, watcher: watcherSvc}
}

// Health returns basic health status
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "railbridge",
		"version":   "1.0.0",
		"timestamp": time.Now(),
	})
}

// Ready verifies the database is reachable before reporting ready.
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.db.Pool.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "ready",
		"service":         "railbridge",
		"version":         "1.0.0",
		"active_sessions": h.watcher.ActiveCount(),
		"timestamp":       time.Now(),
	})
}
