package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ProjectPlatform/Server/internal/middleware"
	"github.com/ProjectPlatform/Server/internal/ws"
)

// WSHandler upgrades authenticated requests to a live message feed.
type WSHandler struct {
	registry *ws.Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(registry *ws.Registry, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Connect handles GET /v1/ws
//
// One live connection per user; a newer connection evicts the previous one.
func (h *WSHandler) Connect(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	client := ws.NewClient(userID, conn, h.logger)
	h.registry.Register(userID, client)

	client.Run()
	h.registry.UnregisterSession(userID, client)
}
