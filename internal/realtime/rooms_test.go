package realtime

import (
	"testing"

	"pet_chat/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestRooms_BroadcastAndLeave(t *testing.T) {
	rooms := NewRooms(logger.NewNop())
	a, b, c := newFakePeer(), newFakePeer(), newFakePeer()

	rooms.Join("chat-1", a)
	rooms.Join("chat-1", b)
	rooms.Join("chat-2", a)
	rooms.Join("chat-2", c)

	frame := []byte(`{"event":"message","data":{}}`)
	assert.Equal(t, 2, rooms.Broadcast("chat-1", frame))
	assert.Equal(t, 1, rooms.BroadcastExcept("chat-2", a.ID(), frame))
	assert.Equal(t, 2, a.count("message")+c.count("message"))
	assert.Equal(t, 1, a.count("message"))

	rooms.LeaveAll(a.ID())
	assert.False(t, rooms.Contains("chat-1", a.ID()))
	assert.False(t, rooms.Contains("chat-2", a.ID()))
	assert.Equal(t, 1, rooms.Size("chat-1"))

	rooms.Leave("chat-2", c.ID())
	assert.Equal(t, 0, rooms.Size("chat-2"))
	assert.Equal(t, 0, rooms.Broadcast("chat-2", frame))
}

func TestRooms_DropsSlowPeer(t *testing.T) {
	rooms := NewRooms(logger.NewNop())
	fast, slow := newFakePeer(), newFakePeer()
	slow.blocked = true

	rooms.Join("chat-1", fast)
	rooms.Join("chat-1", slow)
	rooms.Join("chat-2", slow)

	delivered := rooms.Broadcast("chat-1", []byte(`{"event":"message"}`))
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, fast.count("message"))

	assert.True(t, slow.isClosed())
	assert.False(t, rooms.Contains("chat-1", slow.ID()))
	assert.False(t, rooms.Contains("chat-2", slow.ID()))
	assert.True(t, rooms.Contains("chat-1", fast.ID()))
}
