package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"pet_chat/internal/domain"
	"pet_chat/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, log *domain.AuditLog) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	query := `
		INSERT INTO audit_log (event_time, actor_user_id, actor_role, conversation_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		auditLog.EventTime, auditLog.ActorUserID, auditLog.ActorRole,
		auditLog.ConversationID, auditLog.EventType, auditLog.Payload,
	).Scan(&auditLog.ID)

	if err != nil {
		r.log.Error("Failed to create audit log", "error", err, "event_type", auditLog.EventType)
		return err
	}

	return nil
}

type sqliteAuditRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewSQLiteAuditRepository(db *sql.DB, log logger.Logger) AuditRepository {
	return &sqliteAuditRepository{db: db, log: log}
}

func (r *sqliteAuditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	payload, err := json.Marshal(auditLog.Payload)
	if err != nil {
		return err
	}

	var actorID, conversationID sql.NullString
	if auditLog.ActorUserID != nil {
		actorID = sql.NullString{String: auditLog.ActorUserID.String(), Valid: true}
	}
	if auditLog.ConversationID != nil {
		conversationID = sql.NullString{String: auditLog.ConversationID.String(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_time, actor_user_id, actor_role, conversation_id, event_type, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, auditLog.EventTime, actorID, auditLog.ActorRole, conversationID, auditLog.EventType, string(payload))
	if err != nil {
		r.log.Error("Failed to create audit log", "error", err, "event_type", auditLog.EventType)
		return err
	}

	auditLog.ID, err = res.LastInsertId()
	return err
}
