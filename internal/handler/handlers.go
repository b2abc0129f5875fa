package handler

import (
	"net/http"

	"pet_chat/internal/config"
	"pet_chat/internal/middleware"
	"pet_chat/internal/realtime"
	"pet_chat/internal/repository"
	"pet_chat/internal/service"
	apperrors "pet_chat/pkg/errors"
	"pet_chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handlers struct {
	Health       *HealthHandler
	Conversation *ConversationHandler
	Stats        *StatsHandler
	WebSocket    *WebSocketHandler
}

func NewHandlers(services *service.Services, repos *repository.Repositories, manager *realtime.Manager, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(repos.DB, manager),
		Conversation: NewConversationHandler(services.Conversation, log),
		Stats:        NewStatsHandler(services.Stats, log),
		WebSocket:    NewWebSocketHandler(manager, cfg.Realtime, log),
	}
}

// respondError отдает ошибку сервиса со статусом по таксономии pkg/errors
func respondError(c *gin.Context, log logger.Logger, err error) {
	status := apperrors.HTTPStatusFromError(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "error", err, "path", c.FullPath())
	}
	c.JSON(status, gin.H{
		"error": apperrors.PublicMessage(err),
		"code":  apperrors.Code(err),
	})
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}
	return userID, true
}

func uuidParam(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " ID"})
		return uuid.Nil, false
	}
	return id, true
}
