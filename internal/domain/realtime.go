package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Имена событий websocket-протокола
const (
	EventJoin       = "join"
	EventJoined     = "joined"
	EventSend       = "send"
	EventMessage    = "message"
	EventSendFailed = "sendFailed"
	EventTyping     = "typing"
	EventPeerTyping = "peerTyping"
	EventError      = "error"
)

// Envelope - обертка любого кадра: {"event": "...", "data": {...}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinRequest struct {
	PetID          *uuid.UUID `json:"pet_id,omitempty"`
	RequesterID    *uuid.UUID `json:"requester_id,omitempty"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

type JoinedEvent struct {
	Success        bool       `json:"success"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	RoomID         string     `json:"room_id,omitempty"`
	Error          string     `json:"error,omitempty"`
}

type SendRequest struct {
	PetID          *uuid.UUID `json:"pet_id,omitempty"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	SenderID       *uuid.UUID `json:"sender_id,omitempty"`
	Content        string     `json:"content"`
}

// MessageEvent - каноническое представление сообщения, рассылаемое всей комнате
type MessageEvent struct {
	ID             string      `json:"id"`
	Sender         UserSummary `json:"sender"`
	Content        string      `json:"content"`
	Timestamp      time.Time   `json:"timestamp"`
	PetID          uuid.UUID   `json:"pet_id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
}

type SendFailedEvent struct {
	Reason string `json:"reason"`
}

type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

type PeerTypingEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
}

type ErrorEvent struct {
	Reason string `json:"reason"`
}

// EncodeEvent сериализует событие в кадр для отправки клиенту
func EncodeEvent(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
