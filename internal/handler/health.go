package handler

import (
	"context"
	"net/http"
	"time"

	"pet_chat/internal/realtime"
	"pet_chat/internal/repository"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	db      repository.Pinger
	manager *realtime.Manager
}

func NewHealthHandler(db repository.Pinger, manager *realtime.Manager) *HealthHandler {
	return &HealthHandler{
		db:      db,
		manager: manager,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "degraded",
			"service": "pet-chat",
			"error":   "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "pet-chat",
		"connections": h.manager.SessionCount(),
	})
}
