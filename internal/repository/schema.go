package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Таблицы pets и users принадлежат соседним сервисам; здесь они создаются
// только если их еще нет (локальная разработка).
var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS pets (
		id UUID PRIMARY KEY,
		owner_id UUID,
		name TEXT NOT NULL,
		image_url TEXT,
		breed TEXT,
		gender TEXT,
		age INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY,
		pet_id UUID NOT NULL,
		participant_low UUID NOT NULL,
		participant_high UUID NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_message_content TEXT,
		last_message_at TIMESTAMPTZ,
		last_message_sender_id UUID,
		message_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_conversations_active_key
		ON conversations (pet_id, participant_low, participant_high) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_low ON conversations (participant_low) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_high ON conversations (participant_high) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_pet ON conversations (pet_id)`,
	`CREATE TABLE IF NOT EXISTS conversation_messages (
		id TEXT PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq BIGINT NOT NULL,
		sender_id UUID NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (conversation_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		event_time TIMESTAMPTZ NOT NULL,
		actor_user_id UUID,
		actor_role TEXT NOT NULL,
		conversation_id UUID,
		event_type TEXT NOT NULL,
		payload JSONB
	)`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS pets (
		id TEXT PRIMARY KEY,
		owner_id TEXT,
		name TEXT NOT NULL,
		image_url TEXT,
		breed TEXT,
		gender TEXT,
		age INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		pet_id TEXT NOT NULL,
		participant_low TEXT NOT NULL,
		participant_high TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_message_content TEXT,
		last_message_at TIMESTAMP,
		last_message_sender_id TEXT,
		message_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_conversations_active_key
		ON conversations (pet_id, participant_low, participant_high) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_pet ON conversations (pet_id)`,
	`CREATE TABLE IF NOT EXISTS conversation_messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		UNIQUE (conversation_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_time TIMESTAMP NOT NULL,
		actor_user_id TEXT,
		actor_role TEXT NOT NULL,
		conversation_id TEXT,
		event_type TEXT NOT NULL,
		payload TEXT
	)`,
}

// MigratePostgres создает схему чата, если ее еще нет
func MigratePostgres(ctx context.Context, db *pgxpool.Pool) error {
	for _, m := range postgresMigrations {
		if _, err := db.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}
