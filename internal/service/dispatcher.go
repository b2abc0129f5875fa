package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pet_chat/internal/domain"
	"pet_chat/internal/metrics"
	"pet_chat/internal/repository"
	apperrors "pet_chat/pkg/errors"
	"pet_chat/pkg/logger"

	"github.com/google/uuid"
)

// Broadcaster рассылает кадр всем соединениям комнаты и возвращает число получателей
type Broadcaster interface {
	Broadcast(roomID string, frame []byte) int
}

// SendCommand - одно сообщение от отправителя. Если задан ConversationID, PetID игнорируется.
type SendCommand struct {
	SenderID       uuid.UUID
	Content        string
	ConversationID *uuid.UUID
	PetID          *uuid.UUID
	// Bind вызывается после сохранения и до рассылки: привязка сессии отправителя к комнате
	Bind func(conv *domain.Conversation)
}

type SendResult struct {
	Conversation *domain.Conversation
	Message      *domain.Message
	Event        domain.MessageEvent
	Delivered    int
}

var encodeEvent = domain.EncodeEvent

type MessageDispatcher interface {
	Send(ctx context.Context, cmd SendCommand) (*SendResult, error)
}

type messageDispatcher struct {
	conversations ConversationService
	convRepo      repository.ConversationRepository
	userRepo      repository.UserRepository
	broadcaster   Broadcaster
	locks         *keyedMutex
	log           logger.Logger
}

func NewMessageDispatcher(
	conversations ConversationService,
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	broadcaster Broadcaster,
	log logger.Logger,
) MessageDispatcher {
	return &messageDispatcher{
		conversations: conversations,
		convRepo:      convRepo,
		userRepo:      userRepo,
		broadcaster:   broadcaster,
		locks:         newKeyedMutex(),
		log:           log,
	}
}

func (d *messageDispatcher) Send(ctx context.Context, cmd SendCommand) (*SendResult, error) {
	// Пустое сообщение не должно создавать переписку
	if strings.TrimSpace(cmd.Content) == "" {
		return nil, fmt.Errorf("%w: content is empty", apperrors.ErrInvalidMessage)
	}

	sender, err := d.userRepo.GetByID(ctx, cmd.SenderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: sender not found", apperrors.ErrInvalidMessage)
		}
		return nil, apperrors.Classify(err)
	}

	conv, err := d.resolve(ctx, cmd)
	if err != nil {
		return nil, err
	}

	unlock := d.locks.Lock(conv.ID)
	defer unlock()

	msg, err := d.convRepo.AppendMessage(ctx, conv.ID, cmd.SenderID, cmd.Content)
	if err != nil {
		d.log.Error("Failed to append message", "error", err, "conversation_id", conv.ID)
		return nil, apperrors.Classify(err)
	}

	if cmd.Bind != nil {
		cmd.Bind(conv)
	}

	event := domain.MessageEvent{
		ID:             msg.ID,
		Sender:         sender.Summary(),
		Content:        msg.Content,
		Timestamp:      msg.CreatedAt,
		PetID:          conv.PetID,
		ConversationID: conv.ID,
	}
	metrics.MessagesSent.Inc()

	// Сообщение уже сохранено: сбой кодирования не превращается в ошибку отправки,
	// иначе повтор клиента создаст дубль. Клиенты получат его из истории.
	delivered := 0
	frame, err := encodeEvent(domain.EventMessage, event)
	if err != nil {
		d.log.Error("Failed to encode message event", "error", err, "message_id", msg.ID)
	} else {
		delivered = d.broadcaster.Broadcast(domain.RoomID(conv.ID), frame)
	}

	return &SendResult{
		Conversation: conv,
		Message:      msg,
		Event:        event,
		Delivered:    delivered,
	}, nil
}

// resolve находит целевую переписку и проверяет, что отправитель ее участник
func (d *messageDispatcher) resolve(ctx context.Context, cmd SendCommand) (*domain.Conversation, error) {
	switch {
	case cmd.ConversationID != nil:
		conv, err := d.conversations.Authorize(ctx, *cmd.ConversationID, cmd.SenderID)
		if errors.Is(err, apperrors.ErrForbidden) {
			return nil, fmt.Errorf("%w: sender is not a participant", apperrors.ErrInvalidMessage)
		}
		return conv, err
	case cmd.PetID != nil:
		return d.conversations.ResolveOrCreate(ctx, *cmd.PetID, cmd.SenderID)
	default:
		return nil, fmt.Errorf("%w: conversation or pet is required", apperrors.ErrInvalidMessage)
	}
}
