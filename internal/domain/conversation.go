package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Conversation - переписка двух пользователей об одном питомце.
// Пара (PetID, участники) - естественный ключ: активной может быть только одна.
type Conversation struct {
	ID           uuid.UUID           `json:"id"`
	PetID        uuid.UUID           `json:"pet_id"`
	Participants [2]uuid.UUID        `json:"participants"`
	Messages     []*Message          `json:"messages,omitempty"`
	LastMessage  *LastMessageSummary `json:"last_message,omitempty"`
	MessageCount int64               `json:"message_count"`
	IsActive     bool                `json:"is_active"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// LastMessageSummary - денормализованный хвост лога сообщений для списка переписок
type LastMessageSummary struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	SenderID  uuid.UUID `json:"sender_id"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Seq            int64     `json:"seq"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"timestamp"`
	IsRead         bool      `json:"read"`
}

// ConversationSummary - элемент списка переписок пользователя
type ConversationSummary struct {
	ID               uuid.UUID           `json:"id"`
	Pet              *PetSummary         `json:"pet"`
	OtherParticipant UserSummary         `json:"other_participant"`
	LastMessage      *LastMessageSummary `json:"last_message,omitempty"`
	UnreadCount      int64               `json:"unread_count"`
	CreatedAt        time.Time           `json:"created_at"`
}

// ConversationLookup - результат проверки существования переписки без ее создания
type ConversationLookup struct {
	Exists         bool        `json:"exists"`
	ConversationID *uuid.UUID  `json:"conversation_id,omitempty"`
	Pet            PetSummary  `json:"pet"`
	Owner          UserSummary `json:"owner"`
}

// NewConversation собирает новую активную переписку с нормализованной парой участников
func NewConversation(petID, a, b uuid.UUID, now time.Time) *Conversation {
	return &Conversation{
		ID:           uuid.New(),
		PetID:        petID,
		Participants: NormalizePair(a, b),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizePair упорядочивает пару, чтобы {a,b} и {b,a} давали один ключ
func NormalizePair(a, b uuid.UUID) [2]uuid.UUID {
	if bytes.Compare(a[:], b[:]) > 0 {
		return [2]uuid.UUID{b, a}
	}
	return [2]uuid.UUID{a, b}
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// OtherParticipant возвращает собеседника userID; для постороннего - uuid.Nil
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	}
	return uuid.Nil
}

// RoomID - идентификатор комнаты рассылки для переписки
func RoomID(conversationID uuid.UUID) string {
	return "chat-" + conversationID.String()
}
