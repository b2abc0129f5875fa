package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pet_chat/internal/domain"
	apperrors "pet_chat/pkg/errors"
	"pet_chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// ConversationRepository - хранилище переписок и их логов сообщений.
// Отсутствующие или неактивные переписки возвращаются как apperrors.ErrConversationNotFound.
type ConversationRepository interface {
	// Create сохраняет новую переписку; если активная переписка с тем же ключом уже есть - ErrConflict
	Create(ctx context.Context, conv *domain.Conversation) error
	// FindActive ищет активную переписку по (питомец, пара участников в любом порядке)
	FindActive(ctx context.Context, petID, a, b uuid.UUID) (*domain.Conversation, error)
	// GetByID возвращает заголовок переписки без сообщений, в том числе неактивной
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*UserConversation, error)
	GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error)
	// AppendMessage атомарно добавляет сообщение и обновляет сводку последнего сообщения
	AppendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error)
	// RetireByPet деактивирует все активные переписки указанных питомцев и возвращает их идентификаторы
	RetireByPet(ctx context.Context, petIDs ...uuid.UUID) ([]uuid.UUID, error)
}

// UserConversation - переписка с количеством непрочитанных для конкретного пользователя
type UserConversation struct {
	Conversation *domain.Conversation
	UnreadCount  int64
}

// Now - текущее время в точности хранилища
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// nextTimestamp не дает времени сообщений идти назад внутри переписки
func nextTimestamp(last *time.Time) time.Time {
	now := Now()
	if last != nil && last.After(now) {
		return last.UTC()
	}
	return now
}

func newMessageID() string {
	return ulid.Make().String()
}

type conversationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewConversationRepository(db *pgxpool.Pool, log logger.Logger) ConversationRepository {
	return &conversationRepository{db: db, log: log}
}

const conversationColumns = `
	id, pet_id, participant_low, participant_high, is_active,
	last_message_content, last_message_at, last_message_sender_id,
	message_count, created_at, updated_at`

func scanConversation(row pgx.Row, extra ...any) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	var (
		lastContent  *string
		lastAt       *time.Time
		lastSenderID *uuid.UUID
	)
	dest := []any{
		&conv.ID, &conv.PetID, &conv.Participants[0], &conv.Participants[1], &conv.IsActive,
		&lastContent, &lastAt, &lastSenderID,
		&conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if lastAt != nil && lastContent != nil && lastSenderID != nil {
		conv.LastMessage = &domain.LastMessageSummary{
			Content:   *lastContent,
			Timestamp: lastAt.UTC(),
			SenderID:  *lastSenderID,
		}
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	return conv, nil
}

func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, pet_id, participant_low, participant_high, is_active,
		                           message_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, 0, $5, $6)
	`

	conv.Participants = domain.NormalizePair(conv.Participants[0], conv.Participants[1])
	_, err := r.db.Exec(ctx, query,
		conv.ID, conv.PetID, conv.Participants[0], conv.Participants[1],
		conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		// Код 23505 = unique_violation: активная переписка уже создана параллельным запросом
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.log.Warn("Conversation already exists (unique violation)", "pet_id", conv.PetID, "constraint", pgErr.ConstraintName)
			return apperrors.ErrConflict
		}
		r.log.Error("Failed to create conversation", "error", err, "pet_id", conv.PetID)
		return err
	}

	conv.IsActive = true
	return nil
}

func (r *conversationRepository) FindActive(ctx context.Context, petID, a, b uuid.UUID) (*domain.Conversation, error) {
	pair := domain.NormalizePair(a, b)
	query := `SELECT ` + conversationColumns + `
		FROM conversations
		WHERE pet_id = $1 AND participant_low = $2 AND participant_high = $3 AND is_active
	`

	conv, err := scanConversation(r.db.QueryRow(ctx, query, petID, pair[0], pair[1]))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to find conversation", "error", err, "pet_id", petID)
		return nil, err
	}
	return conv, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	conv, err := scanConversation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to get conversation by ID", "error", err, "conversation_id", id)
		return nil, err
	}
	return conv, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*UserConversation, error) {
	// Переписки без сообщений сортируются по времени создания
	query := `SELECT ` + conversationColumns + `,
		       (SELECT COUNT(*) FROM conversation_messages m
		         WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND NOT m.is_read) AS unread
		FROM conversations c
		WHERE c.is_active AND (c.participant_low = $1 OR c.participant_high = $1)
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list conversations", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	result := make([]*UserConversation, 0)
	for rows.Next() {
		item := &UserConversation{}
		conv, err := scanConversation(rows, &item.UnreadCount)
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

func (r *conversationRepository) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, seq, sender_id, content, created_at, is_read
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY seq
	`

	rows, err := r.db.Query(ctx, query, conversationID)
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

func (r *conversationRepository) AppendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*domain.Message, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return nil, err
	}
	defer tx.Rollback(ctx)

	var (
		isActive bool
		count    int64
		lastAt   *time.Time
	)
	// Блокировка строки упорядочивает параллельные добавления в одну переписку
	err = tx.QueryRow(ctx, `
		SELECT is_active, message_count, last_message_at
		FROM conversations
		WHERE id = $1
		FOR UPDATE
	`, conversationID).Scan(&isActive, &count, &lastAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to lock conversation", "error", err, "conversation_id", conversationID)
		return nil, err
	}
	if !isActive {
		return nil, apperrors.ErrConversationNotFound
	}

	msg := &domain.Message{
		ID:             newMessageID(),
		ConversationID: conversationID,
		Seq:            count + 1,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      nextTimestamp(lastAt),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, seq, sender_id, content, created_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`, msg.ID, msg.ConversationID, msg.Seq, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		r.log.Error("Failed to insert message", "error", err, "conversation_id", conversationID)
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_content = $2, last_message_at = $3, last_message_sender_id = $4,
		    message_count = $5, updated_at = $3
		WHERE id = $1
	`, conversationID, msg.Content, msg.CreatedAt, msg.SenderID, msg.Seq)
	if err != nil {
		r.log.Error("Failed to update conversation summary", "error", err, "conversation_id", conversationID)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit message", "error", err, "conversation_id", conversationID)
		return nil, err
	}

	return msg, nil
}

func (r *conversationRepository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversation_messages
		SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read
	`, conversationID, readerID)
	if err != nil {
		r.log.Error("Failed to mark messages as read", "error", err, "conversation_id", conversationID)
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *conversationRepository) RetireByPet(ctx context.Context, petIDs ...uuid.UUID) ([]uuid.UUID, error) {
	if len(petIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		UPDATE conversations
		SET is_active = FALSE, updated_at = $2
		WHERE pet_id = ANY($1) AND is_active
		RETURNING id
	`, petIDs, Now())
	if err != nil {
		r.log.Error("Failed to retire conversations", "error", err, "pets", len(petIDs))
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan retired conversation: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
