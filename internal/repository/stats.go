package repository

import (
	"context"
	"database/sql"
	"time"

	"pet_chat/internal/domain"
	"pet_chat/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepository interface {
	// ChatStats считает переписки и сообщения; NewConversations24h - созданные после since
	ChatStats(ctx context.Context, since time.Time) (*domain.ChatStats, error)
}

type statsRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewStatsRepository(db *pgxpool.Pool, log logger.Logger) StatsRepository {
	return &statsRepository{db: db, log: log}
}

func (r *statsRepository) ChatStats(ctx context.Context, since time.Time) (*domain.ChatStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COALESCE(SUM(message_count), 0)
		FROM conversations
	`

	stats := &domain.ChatStats{}
	err := r.db.QueryRow(ctx, query, since).Scan(
		&stats.TotalConversations, &stats.ActiveConversations,
		&stats.NewConversations24h, &stats.TotalMessages,
	)
	if err != nil {
		r.log.Error("Failed to get chat stats", "error", err)
		return nil, err
	}

	return stats, nil
}

type sqliteStatsRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewSQLiteStatsRepository(db *sql.DB, log logger.Logger) StatsRepository {
	return &sqliteStatsRepository{db: db, log: log}
}

func (r *sqliteStatsRepository) ChatStats(ctx context.Context, since time.Time) (*domain.ChatStats, error) {
	stats := &domain.ChatStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(message_count), 0)
		FROM conversations
	`, since.UTC()).Scan(
		&stats.TotalConversations, &stats.ActiveConversations,
		&stats.NewConversations24h, &stats.TotalMessages,
	)
	if err != nil {
		r.log.Error("Failed to get chat stats", "error", err)
		return nil, err
	}

	return stats, nil
}
