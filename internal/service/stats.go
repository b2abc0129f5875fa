package service

import (
	"context"
	"time"

	"pet_chat/internal/domain"
	"pet_chat/internal/repository"
	apperrors "pet_chat/pkg/errors"
	"pet_chat/pkg/logger"
)

type StatsService interface {
	GetChatStats(ctx context.Context) (*domain.ChatStats, error)
}

type statsService struct {
	statsRepo repository.StatsRepository
	log       logger.Logger
}

func NewStatsService(statsRepo repository.StatsRepository, log logger.Logger) StatsService {
	return &statsService{
		statsRepo: statsRepo,
		log:       log,
	}
}

func (s *statsService) GetChatStats(ctx context.Context) (*domain.ChatStats, error) {
	now := repository.Now()
	stats, err := s.statsRepo.ChatStats(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	stats.GeneratedAt = now
	return stats, nil
}
