package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pet_chat/internal/domain"
	"pet_chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, h *harness) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	cfg := testRealtimeConfig()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
		if err != nil {
			http.Error(w, "bad user", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(conn, cfg, logger.NewNop()).Run(context.Background(), h.manager, userID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user_id=" + userID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	frame, err := domain.EncodeEvent(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readEvent(t *testing.T, conn *websocket.Conn, v interface{}) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var env domain.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v))
	}
	return env.Event
}

func TestClient_WebSocketRoundTrip(t *testing.T) {
	h := newHarness(t)
	srv := newWSServer(t, h)

	adopter := dial(t, srv, h.adopter)
	owner := dial(t, srv, h.owner)

	writeEvent(t, adopter, domain.EventSend, domain.SendRequest{PetID: &h.petID, Content: "Hello!"})

	var joined domain.JoinedEvent
	require.Equal(t, domain.EventJoined, readEvent(t, adopter, &joined))
	require.True(t, joined.Success)
	require.NotNil(t, joined.ConversationID)

	var msg domain.MessageEvent
	require.Equal(t, domain.EventMessage, readEvent(t, adopter, &msg))
	assert.Equal(t, "Hello!", msg.Content)

	writeEvent(t, owner, domain.EventJoin, domain.JoinRequest{ConversationID: joined.ConversationID})
	var ownerJoined domain.JoinedEvent
	require.Equal(t, domain.EventJoined, readEvent(t, owner, &ownerJoined))
	require.True(t, ownerJoined.Success)

	writeEvent(t, owner, domain.EventTyping, domain.TypingRequest{IsTyping: true})
	var typing domain.PeerTypingEvent
	require.Equal(t, domain.EventPeerTyping, readEvent(t, adopter, &typing))
	assert.Equal(t, h.owner, typing.UserID)

	writeEvent(t, owner, domain.EventSend, domain.SendRequest{ConversationID: joined.ConversationID, Content: "Hi, yes"})
	require.Equal(t, domain.EventMessage, readEvent(t, adopter, &msg))
	assert.Equal(t, "Hi, yes", msg.Content)
	require.Equal(t, domain.EventMessage, readEvent(t, owner, &msg))
	assert.Equal(t, h.owner, msg.Sender.ID)

	// Закрытие сокета снимает сессию
	require.NoError(t, owner.Close())
	assert.Eventually(t, func() bool {
		return h.manager.SessionCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
}
