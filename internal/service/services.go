package service

import (
	"pet_chat/internal/repository"
	"pet_chat/pkg/logger"
)

type Services struct {
	Conversation ConversationService
	Dispatcher   MessageDispatcher
	Stats        StatsService
	RateLimit    RateLimitService
	Audit        AuditService
}

// NewServices собирает сервисы; broadcaster - таблица комнат realtime-слоя
func NewServices(repos *repository.Repositories, broadcaster Broadcaster, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)
	conversations := NewConversationService(repos.Conversation, repos.Pet, repos.User, audit, log)

	return &Services{
		Conversation: conversations,
		Dispatcher:   NewMessageDispatcher(conversations, repos.Conversation, repos.User, broadcaster, log),
		Stats:        NewStatsService(repos.Stats, log),
		RateLimit:    NewRateLimitService(repos.RateLimit, log),
		Audit:        audit,
	}
}
