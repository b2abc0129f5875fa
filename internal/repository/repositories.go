package repository

import (
	"context"
	"database/sql"

	"pet_chat/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Pinger - проверка доступности хранилища для /health
type Pinger interface {
	Ping(ctx context.Context) error
}

type Repositories struct {
	Conversation ConversationRepository
	Pet          PetRepository
	User         UserRepository
	Stats        StatsRepository
	Audit        AuditRepository
	RateLimit    RateLimitRepository // nil, если Redis не настроен
	DB           Pinger
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		Conversation: NewConversationRepository(db, log),
		Pet:          NewPetRepository(db, log),
		User:         NewUserRepository(db, log),
		Stats:        NewStatsRepository(db, log),
		Audit:        NewAuditRepository(db, log),
		DB:           db,
	}
	withRateLimit(repos, redis, log)

	log.Info("Postgres repositories initialized")
	return repos
}

func NewSQLiteRepositories(db *sql.DB, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		Conversation: NewSQLiteConversationRepository(db, log),
		Pet:          NewSQLitePetRepository(db, log),
		User:         NewSQLiteUserRepository(db, log),
		Stats:        NewSQLiteStatsRepository(db, log),
		Audit:        NewSQLiteAuditRepository(db, log),
		DB:           sqlPinger{db: db},
	}
	withRateLimit(repos, redis, log)

	log.Info("SQLite repositories initialized")
	return repos
}

func withRateLimit(repos *Repositories, redis *redis.Client, log logger.Logger) {
	if redis == nil {
		log.Warn("Redis is not configured, rate limiting disabled")
		return
	}
	repos.RateLimit = NewRateLimitRepository(redis, log)
}

type sqlPinger struct {
	db *sql.DB
}

func (p sqlPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
