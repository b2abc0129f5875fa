package realtime

import (
	"context"
	"sync"
	"time"

	"pet_chat/internal/config"
	"pet_chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client - websocket-соединение с ограниченной очередью отправки.
// Чтение и обработка событий идут в Run, запись - в отдельной горутине.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	cfg       config.RealtimeConfig
	log       logger.Logger
}

func NewClient(conn *websocket.Conn, cfg config.RealtimeConfig, log logger.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
		cfg:  cfg,
		log:  log.With("connection_id", id),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Run регистрирует соединение в менеджере и обрабатывает входящие кадры до разрыва
func (c *Client) Run(ctx context.Context, m *Manager, userID uuid.UUID) {
	m.Connect(c, userID)
	defer func() {
		m.Disconnect(c.id)
		c.Close()
		c.conn.Close()
	}()

	go c.writePump()
	c.readPump(ctx, m)
}

func (c *Client) readPump(ctx context.Context, m *Manager) {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Realtime connection closed unexpectedly", "error", err)
			}
			return
		}

		m.HandleFrame(ctx, c.id, data)

		select {
		case <-c.done:
			return
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Failed to write frame", "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
