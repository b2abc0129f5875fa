package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pet_chat/internal/repository"
	"pet_chat/internal/service"
	"pet_chat/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type countingRateLimitRepo struct {
	counts map[string]int
	err    error
}

func (r *countingRateLimitRepo) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, int, error) {
	if r.err != nil {
		return false, 0, r.err
	}
	r.counts[key]++
	remaining := limit - r.counts[key]
	if remaining < 0 {
		remaining = 0
	}
	return r.counts[key] <= limit, remaining, nil
}

func TestRateLimitService_Allow(t *testing.T) {
	ctx := context.Background()
	repo := &countingRateLimitRepo{counts: make(map[string]int)}
	svc := service.NewRateLimitService(repo, logger.NewNop())

	for i := 0; i < 3; i++ {
		allowed, _ := svc.Allow(ctx, "ratelimit:send:u1", 3, time.Minute)
		assert.True(t, allowed)
	}
	allowed, remaining := svc.Allow(ctx, "ratelimit:send:u1", 3, time.Minute)
	assert.False(t, allowed)
	assert.Zero(t, remaining)

	// Другой ключ считается отдельно
	allowed, _ = svc.Allow(ctx, "ratelimit:send:u2", 3, time.Minute)
	assert.True(t, allowed)

	// Нулевой лимит выключает проверку
	allowed, _ = svc.Allow(ctx, "ratelimit:send:u1", 0, time.Minute)
	assert.True(t, allowed)
}

func TestRateLimitService_FailsOpen(t *testing.T) {
	ctx := context.Background()

	svc := service.NewRateLimitService(&countingRateLimitRepo{err: errors.New("redis down")}, logger.NewNop())
	allowed, remaining := svc.Allow(ctx, "ratelimit:user:u1", 10, time.Minute)
	assert.True(t, allowed)
	assert.Equal(t, 10, remaining)

	// Реальный клиент без сервера
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	svc = service.NewRateLimitService(repository.NewRateLimitRepository(rdb, logger.NewNop()), logger.NewNop())
	allowed, _ = svc.Allow(ctx, "ratelimit:user:u1", 10, time.Minute)
	assert.True(t, allowed)

	svc = service.NewRateLimitService(nil, logger.NewNop())
	allowed, _ = svc.Allow(ctx, "ratelimit:user:u1", 1, time.Minute)
	assert.True(t, allowed)
}
