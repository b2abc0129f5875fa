package service

import (
	"context"
	"time"

	"pet_chat/internal/domain"
	"pet_chat/internal/repository"
	"pet_chat/pkg/logger"

	"github.com/google/uuid"
)

// auditWriteTimeout ограничивает запись в журнал, отвязанную от контекста вызывающего
const auditWriteTimeout = 2 * time.Second

// Actor - кто инициировал событие; ID == nil для служебных вызовов без пользователя
type Actor struct {
	ID   *uuid.UUID
	Role string
}

// AuditService фиксирует жизненный цикл переписок.
// Ошибка журнала не отменяет уже выполненную операцию: она логируется и возвращается для наблюдения.
type AuditService interface {
	ConversationCreated(ctx context.Context, conv *domain.Conversation, requesterID uuid.UUID) error
	ConversationsRetired(ctx context.Context, actor Actor, petIDs, retired []uuid.UUID) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) ConversationCreated(ctx context.Context, conv *domain.Conversation, requesterID uuid.UUID) error {
	return s.write(ctx, &domain.AuditLog{
		ActorUserID:    &requesterID,
		ActorRole:      domain.ActorRoleUser,
		ConversationID: &conv.ID,
		EventType:      domain.EventTypeConversationCreated,
		Payload: map[string]interface{}{
			"pet_id":   conv.PetID.String(),
			"owner_id": conv.OtherParticipant(requesterID).String(),
		},
	})
}

func (s *auditService) ConversationsRetired(ctx context.Context, actor Actor, petIDs, retired []uuid.UUID) error {
	role := actor.Role
	if role == "" {
		role = domain.ActorRoleSystem
	}

	return s.write(ctx, &domain.AuditLog{
		ActorUserID: actor.ID,
		ActorRole:   role,
		EventType:   domain.EventTypeConversationsRetired,
		Payload: map[string]interface{}{
			"pet_ids":          uuidStrings(petIDs),
			"conversation_ids": uuidStrings(retired),
			"retired":          len(retired),
		},
	})
}

// write пишет запись после того, как операция уже зафиксирована,
// поэтому отмена запроса клиентом не должна терять событие
func (s *auditService) write(ctx context.Context, entry *domain.AuditLog) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	entry.EventTime = repository.Now()
	if err := s.auditRepo.CreateLog(ctx, entry); err != nil {
		s.log.Warn("Failed to write audit log", "error", err, "event_type", entry.EventType)
		return err
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
