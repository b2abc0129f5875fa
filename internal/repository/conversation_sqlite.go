package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"pet_chat/internal/domain"
	apperrors "pet_chat/pkg/errors"
	"pet_chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

type sqliteConversationRepository struct {
	db  *sql.DB
	log logger.Logger
}

func NewSQLiteConversationRepository(db *sql.DB, log logger.Logger) ConversationRepository {
	return &sqliteConversationRepository{db: db, log: log}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteConversation(row rowScanner, extra ...any) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	var (
		lastContent  sql.NullString
		lastAt       sql.NullTime
		lastSenderID uuid.NullUUID
	)
	dest := []any{
		&conv.ID, &conv.PetID, &conv.Participants[0], &conv.Participants[1], &conv.IsActive,
		&lastContent, &lastAt, &lastSenderID,
		&conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if lastAt.Valid && lastContent.Valid && lastSenderID.Valid {
		conv.LastMessage = &domain.LastMessageSummary{
			Content:   lastContent.String,
			Timestamp: lastAt.Time.UTC(),
			SenderID:  lastSenderID.UUID,
		}
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	return conv, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// placeholders возвращает "?, ?, ?" и аргументы для IN-списка идентификаторов
func placeholders(ids []uuid.UUID) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

func (r *sqliteConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	conv.Participants = domain.NormalizePair(conv.Participants[0], conv.Participants[1])
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, pet_id, participant_low, participant_high, is_active,
		                           message_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, 0, ?, ?)
	`, conv.ID.String(), conv.PetID.String(), conv.Participants[0].String(), conv.Participants[1].String(),
		conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			r.log.Warn("Conversation already exists (unique violation)", "pet_id", conv.PetID)
			return apperrors.ErrConflict
		}
		r.log.Error("Failed to create conversation", "error", err, "pet_id", conv.PetID)
		return err
	}

	conv.IsActive = true
	return nil
}

func (r *sqliteConversationRepository) FindActive(ctx context.Context, petID, a, b uuid.UUID) (*domain.Conversation, error) {
	pair := domain.NormalizePair(a, b)
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+`
		FROM conversations
		WHERE pet_id = ? AND participant_low = ? AND participant_high = ? AND is_active
	`, petID.String(), pair[0].String(), pair[1].String())

	conv, err := scanSQLiteConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to find conversation", "error", err, "pet_id", petID)
		return nil, err
	}
	return conv, nil
}

func (r *sqliteConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id.String())

	conv, err := scanSQLiteConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to get conversation by ID", "error", err, "conversation_id", id)
		return nil, err
	}
	return conv, nil
}

func (r *sqliteConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*UserConversation, error) {
	uid := userID.String()
	rows, err := r.db.QueryContext(ctx, `SELECT `+conversationColumns+`,
		       (SELECT COUNT(*) FROM conversation_messages m
		         WHERE m.conversation_id = c.id AND m.sender_id <> ? AND NOT m.is_read) AS unread
		FROM conversations c
		WHERE c.is_active AND (c.participant_low = ? OR c.participant_high = ?)
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id
	`, uid, uid, uid)
	if err != nil {
		r.log.Error("Failed to list conversations", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	result := make([]*UserConversation, 0)
	for rows.Next() {
		item := &UserConversation{}
		conv, err := scanSQLiteConversation(rows, &item.UnreadCount)
		if err != nil {
			r.log.Error("Failed to scan conversation", "error", err)
			return nil, err
		}
		item.Conversation = conv
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *sqliteConversationRepository) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, seq, sender_id, content, created_at, is_read
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY seq
	`, conversationID.String())
	if err != nil {
		r.log.Error("Failed to get messages", "error", err, "conversation_id", conversationID)
		return nil, err
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		msg := &domain.Message{}
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Seq, &msg.SenderID,
			&msg.Content, &msg.CreatedAt, &msg.IsRead); err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *sqliteConversationRepository) AppendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*domain.Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return nil, err
	}
	defer tx.Rollback()

	var (
		isActive bool
		count    int64
		lastAt   sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `
		SELECT is_active, message_count, last_message_at FROM conversations WHERE id = ?
	`, conversationID.String()).Scan(&isActive, &count, &lastAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to load conversation", "error", err, "conversation_id", conversationID)
		return nil, err
	}
	if !isActive {
		return nil, apperrors.ErrConversationNotFound
	}

	var last *time.Time
	if lastAt.Valid {
		last = &lastAt.Time
	}
	msg := &domain.Message{
		ID:             newMessageID(),
		ConversationID: conversationID,
		Seq:            count + 1,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      nextTimestamp(last),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, seq, sender_id, content, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, msg.ID, conversationID.String(), msg.Seq, senderID.String(), msg.Content, msg.CreatedAt)
	if err != nil {
		r.log.Error("Failed to insert message", "error", err, "conversation_id", conversationID)
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_content = ?, last_message_at = ?, last_message_sender_id = ?,
		    message_count = ?, updated_at = ?
		WHERE id = ?
	`, msg.Content, msg.CreatedAt, senderID.String(), msg.Seq, msg.CreatedAt, conversationID.String())
	if err != nil {
		r.log.Error("Failed to update conversation summary", "error", err, "conversation_id", conversationID)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		r.log.Error("Failed to commit message", "error", err, "conversation_id", conversationID)
		return nil, err
	}

	return msg, nil
}

func (r *sqliteConversationRepository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversation_messages
		SET is_read = 1
		WHERE conversation_id = ? AND sender_id <> ? AND NOT is_read
	`, conversationID.String(), readerID.String())
	if err != nil {
		r.log.Error("Failed to mark messages as read", "error", err, "conversation_id", conversationID)
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sqliteConversationRepository) RetireByPet(ctx context.Context, petIDs ...uuid.UUID) ([]uuid.UUID, error) {
	if len(petIDs) == 0 {
		return nil, nil
	}

	in, args := placeholders(petIDs)
	rows, err := r.db.QueryContext(ctx, `
		UPDATE conversations
		SET is_active = 0, updated_at = ?
		WHERE is_active AND pet_id IN (`+in+`)
		RETURNING id
	`, append([]any{Now()}, args...)...)
	if err != nil {
		r.log.Error("Failed to retire conversations", "error", err, "pets", len(petIDs))
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
