package service

import (
	"context"
	"time"

	"pet_chat/internal/repository"
	"pet_chat/pkg/logger"
)

type RateLimitService interface {
	// Allow сообщает, укладывается ли очередной запрос по ключу в limit за window
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

// NewRateLimitService принимает nil-репозиторий: тогда ограничение выключено
func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int) {
	if s.rateLimitRepo == nil || limit <= 0 {
		return true, limit
	}

	allowed, remaining, err := s.rateLimitRepo.Allow(ctx, key, limit, window)
	if err != nil {
		// Недоступный Redis не должен блокировать чат
		s.log.Warn("Rate limit check failed, allowing request", "error", err, "key", key)
		return true, limit
	}
	return allowed, remaining
}
