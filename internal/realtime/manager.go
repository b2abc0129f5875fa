package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"pet_chat/internal/config"
	"pet_chat/internal/domain"
	"pet_chat/internal/metrics"
	"pet_chat/internal/service"
	apperrors "pet_chat/pkg/errors"
	"pet_chat/pkg/logger"

	"github.com/google/uuid"
)

// Session - состояние одного соединения. Manager отдает наружу только копии.
type Session struct {
	ConnectionID   string
	UserID         uuid.UUID
	PetID          *uuid.UUID
	ConversationID *uuid.UUID

	peer Peer
}

// Manager владеет таблицей сессий и маршрутизирует события websocket-протокола.
// События одного соединения обрабатываются последовательно его циклом чтения.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	rooms         *Rooms
	conversations service.ConversationService
	dispatcher    service.MessageDispatcher
	rateLimit     service.RateLimitService
	cfg           config.RealtimeConfig
	log           logger.Logger
}

func NewManager(rooms *Rooms, services *service.Services, cfg config.RealtimeConfig, log logger.Logger) *Manager {
	return &Manager{
		sessions:      make(map[string]*Session),
		rooms:         rooms,
		conversations: services.Conversation,
		dispatcher:    services.Dispatcher,
		rateLimit:     services.RateLimit,
		cfg:           cfg,
		log:           log,
	}
}

// Connect регистрирует соединение аутентифицированного пользователя
func (m *Manager) Connect(peer Peer, userID uuid.UUID) {
	m.mu.Lock()
	m.sessions[peer.ID()] = &Session{
		ConnectionID: peer.ID(),
		UserID:       userID,
		peer:         peer,
	}
	m.mu.Unlock()

	metrics.ActiveConnections.Inc()
	m.log.Debug("Realtime connection opened", "connection_id", peer.ID(), "user_id", userID)
}

// Disconnect удаляет сессию и все ее членства в комнатах
func (m *Manager) Disconnect(connID string) {
	m.mu.Lock()
	_, ok := m.sessions[connID]
	delete(m.sessions, connID)
	m.mu.Unlock()

	m.rooms.LeaveAll(connID)
	if ok {
		metrics.ActiveConnections.Dec()
		m.log.Debug("Realtime connection closed", "connection_id", connID)
	}
}

func (m *Manager) Session(connID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// bind привязывает сессию к переписке и добавляет ее в комнату.
// Предыдущее членство сохраняется. Возвращает false, если сессия уже была привязана к conv.
func (m *Manager) bind(connID string, conv *domain.Conversation) bool {
	m.mu.Lock()
	s, ok := m.sessions[connID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	changed := s.ConversationID == nil || *s.ConversationID != conv.ID
	convID, petID := conv.ID, conv.PetID
	s.ConversationID = &convID
	s.PetID = &petID
	peer := s.peer
	m.mu.Unlock()

	m.rooms.Join(domain.RoomID(conv.ID), peer)
	return changed
}

// HandleFrame разбирает входящий кадр и вызывает обработчик события
func (m *Manager) HandleFrame(ctx context.Context, connID string, raw []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		m.emit(connID, domain.EventError, domain.ErrorEvent{Reason: "malformed frame"})
		return
	}

	switch env.Event {
	case domain.EventJoin:
		var req domain.JoinRequest
		if err := decodeData(env.Data, &req); err != nil {
			m.emit(connID, domain.EventJoined, domain.JoinedEvent{Success: false, Error: "malformed join payload"})
			return
		}
		m.Join(ctx, connID, req)
	case domain.EventSend:
		var req domain.SendRequest
		if err := decodeData(env.Data, &req); err != nil {
			m.emit(connID, domain.EventSendFailed, domain.SendFailedEvent{Reason: "malformed send payload"})
			return
		}
		m.Send(ctx, connID, req)
	case domain.EventTyping:
		var req domain.TypingRequest
		if err := decodeData(env.Data, &req); err != nil {
			m.emit(connID, domain.EventError, domain.ErrorEvent{Reason: "malformed typing payload"})
			return
		}
		m.SetTyping(connID, req.IsTyping)
	default:
		m.emit(connID, domain.EventError, domain.ErrorEvent{Reason: "unknown event: " + env.Event})
	}
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, v)
}

// Join привязывает соединение к переписке по id или по (питомец, запрашивающий).
// Ответ joined уходит только этому соединению; по питомцу переписка не создается.
func (m *Manager) Join(ctx context.Context, connID string, req domain.JoinRequest) domain.JoinedEvent {
	session, ok := m.Session(connID)
	if !ok {
		return domain.JoinedEvent{Success: false, Error: "session not found"}
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	conv, err := m.resolveJoin(ctx, session, req)
	if err != nil {
		metrics.Joins.WithLabelValues("failed").Inc()
		m.log.Debug("Join failed", "connection_id", connID, "error", err)
		ack := domain.JoinedEvent{Success: false, Error: apperrors.PublicMessage(err)}
		m.emit(connID, domain.EventJoined, ack)
		return ack
	}

	m.bind(connID, conv)
	metrics.Joins.WithLabelValues("ok").Inc()

	ack := joinedAck(conv)
	m.emit(connID, domain.EventJoined, ack)
	return ack
}

func (m *Manager) resolveJoin(ctx context.Context, session Session, req domain.JoinRequest) (*domain.Conversation, error) {
	if req.RequesterID != nil && *req.RequesterID != session.UserID {
		return nil, fmt.Errorf("%w: requester does not match authenticated user", apperrors.ErrForbidden)
	}

	switch {
	case req.ConversationID != nil:
		return m.conversations.Authorize(ctx, *req.ConversationID, session.UserID)
	case req.PetID != nil:
		return m.conversations.Find(ctx, *req.PetID, session.UserID)
	default:
		return nil, fmt.Errorf("%w: pet_id or conversation_id is required", apperrors.ErrBadRequest)
	}
}

func joinedAck(conv *domain.Conversation) domain.JoinedEvent {
	convID := conv.ID
	return domain.JoinedEvent{
		Success:        true,
		ConversationID: &convID,
		RoomID:         domain.RoomID(conv.ID),
	}
}

// Send сохраняет и рассылает сообщение. Любая ошибка сообщается отправителю событием sendFailed.
func (m *Manager) Send(ctx context.Context, connID string, req domain.SendRequest) (*service.SendResult, error) {
	session, ok := m.Session(connID)
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	defer cancel()

	result, err := m.send(ctx, session, req)
	if err != nil {
		metrics.SendFailures.WithLabelValues(apperrors.Code(err)).Inc()
		m.log.Debug("Send failed", "connection_id", connID, "error", err)
		m.emit(connID, domain.EventSendFailed, domain.SendFailedEvent{Reason: apperrors.PublicMessage(err)})
		return nil, err
	}
	return result, nil
}

func (m *Manager) send(ctx context.Context, session Session, req domain.SendRequest) (*service.SendResult, error) {
	if req.SenderID != nil && *req.SenderID != session.UserID {
		return nil, fmt.Errorf("%w: sender does not match authenticated user", apperrors.ErrInvalidMessage)
	}

	key := domain.RateLimitKey(domain.RateLimitScopeSend, session.UserID.String())
	if allowed, _ := m.rateLimit.Allow(ctx, key, m.cfg.SendLimit, m.cfg.SendWindow); !allowed {
		metrics.RateLimitHits.WithLabelValues(domain.RateLimitScopeSend).Inc()
		return nil, apperrors.ErrRateLimited
	}

	cmd := service.SendCommand{
		SenderID:       session.UserID,
		Content:        req.Content,
		ConversationID: req.ConversationID,
		PetID:          req.PetID,
		Bind: func(conv *domain.Conversation) {
			// Неявный join: отправитель узнает id переписки до эха своего сообщения
			if m.bind(session.ConnectionID, conv) {
				m.emit(session.ConnectionID, domain.EventJoined, joinedAck(conv))
			}
		},
	}
	if cmd.ConversationID == nil && cmd.PetID == nil {
		cmd.ConversationID = session.ConversationID
	}

	return m.dispatcher.Send(ctx, cmd)
}

// SetTyping пересылает состояние набора текста остальным участникам комнаты
func (m *Manager) SetTyping(connID string, isTyping bool) {
	session, ok := m.Session(connID)
	if !ok || session.ConversationID == nil {
		return
	}

	frame, err := domain.EncodeEvent(domain.EventPeerTyping, domain.PeerTypingEvent{
		UserID:   session.UserID,
		IsTyping: isTyping,
	})
	if err != nil {
		m.log.Error("Failed to encode typing event", "error", err)
		return
	}
	m.rooms.BroadcastExcept(domain.RoomID(*session.ConversationID), connID, frame)
}

// emit отправляет событие только указанному соединению
func (m *Manager) emit(connID string, event string, payload interface{}) {
	m.mu.RLock()
	s, ok := m.sessions[connID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	frame, err := domain.EncodeEvent(event, payload)
	if err != nil {
		m.log.Error("Failed to encode event", "error", err, "event", event)
		return
	}
	if !s.peer.Send(frame) {
		m.log.Warn("Failed to deliver event, closing connection", "connection_id", connID, "event", event)
		s.peer.Close()
	}
}
