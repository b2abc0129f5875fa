package handler

import (
	"net/http"

	"pet_chat/internal/domain"
	"pet_chat/internal/middleware"
	"pet_chat/internal/service"
	"pet_chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	conversationService service.ConversationService
	log                 logger.Logger
}

func NewConversationHandler(conversationService service.ConversationService, log logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		log:                 log,
	}
}

// List - активные переписки текущего пользователя, свежие сверху
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	conversations, err := h.conversationService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// CheckExists сообщает, есть ли уже переписка о питомце, не создавая ее
func (h *ConversationHandler) CheckExists(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	petID, ok := uuidParam(c, "petId", "pet")
	if !ok {
		return
	}

	lookup, err := h.conversationService.CheckExists(c.Request.Context(), petID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, lookup)
}

func (h *ConversationHandler) GetOrCreateForPet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	petID, ok := uuidParam(c, "petId", "pet")
	if !ok {
		return
	}

	conv, err := h.conversationService.ResolveOrCreate(c.Request.Context(), petID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id", "conversation")
	if !ok {
		return
	}

	conv, err := h.conversationService.GetByID(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) GetMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id", "conversation")
	if !ok {
		return
	}

	messages, err := h.conversationService.GetMessages(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *ConversationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id", "conversation")
	if !ok {
		return
	}

	updated, err := h.conversationService.MarkRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"updated": updated,
	})
}

type RetireRequest struct {
	PetIDs []uuid.UUID `json:"pet_ids" binding:"required,min=1"`
}

// RetireByPets вызывается процессами усыновления и модерации
func (h *ConversationHandler) RetireByPets(c *gin.Context) {
	var req RetireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pet_ids is required"})
		return
	}

	var actorID *uuid.UUID
	if userID, ok := middleware.UserID(c); ok {
		actorID = &userID
	}
	role := domain.ActorRoleService
	if roles, ok := c.Get(middleware.ContextUserRoles); ok {
		if rs, _ := roles.([]string); containsRole(rs, domain.GlobalRoleAdmin) {
			role = domain.GlobalRoleAdmin
		}
	}

	retired, err := h.conversationService.RetireByPet(c.Request.Context(), actorID, role, req.PetIDs...)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"retired":          len(retired),
		"conversation_ids": retired,
	})
}

func containsRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
