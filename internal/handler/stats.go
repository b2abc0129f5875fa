package handler

import (
	"net/http"

	"pet_chat/internal/service"
	"pet_chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	statsService service.StatsService
	log          logger.Logger
}

func NewStatsHandler(statsService service.StatsService, log logger.Logger) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
		log:          log,
	}
}

// GetChatStats - сводка по перепискам для админской панели
func (h *StatsHandler) GetChatStats(c *gin.Context) {
	stats, err := h.statsService.GetChatStats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
