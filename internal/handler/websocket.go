package handler

import (
	"context"
	"net/http"

	"pet_chat/internal/config"
	"pet_chat/internal/realtime"
	"pet_chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	manager  *realtime.Manager
	upgrader websocket.Upgrader
	cfg      config.RealtimeConfig
	log      logger.Logger
}

func NewWebSocketHandler(manager *realtime.Manager, cfg config.RealtimeConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		cfg: cfg,
		log: log,
	}
}

// originChecker разрешает запросы без Origin (не браузер) и из списка allowed; "*" разрешает все
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleChat поднимает websocket-соединение чата. Пользователь уже аутентифицирован middleware.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := realtime.NewClient(conn, h.cfg, h.log)
	h.log.Debug("Realtime client connected", "connection_id", client.ID(), "user_id", userID)

	// Контекст запроса после hijack не отменяется по закрытию сокета, жизнь соединения ведет Run
	client.Run(context.Background(), h.manager, userID)
}
