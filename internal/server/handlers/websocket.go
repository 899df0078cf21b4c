package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/server/websocket"
	"github.com/kitepay/railbridge/pkg/config"
)

// WebSocketHandler upgrades stream subscriptions and parks them on the hub.
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gws.Upgrader
	logger   zerolog.Logger
}

func NewWebSocketHandler(hub *websocket.Hub, cfg config.WebSocketConfig, logger zerolog.Logger) *WebSocketHandler {
	readBuffer := cfg.ReadBufferSize
	if readBuffer == 0 {
		readBuffer = 1024
	}
	writeBuffer := cfg.WriteBufferSize
	if writeBuffer == 0 {
		writeBuffer = 1024
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: gws.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			CheckOrigin: func(r *http.Request) bool {
				return !cfg.CheckOrigin
			},
		},
		logger: logger,
	}
}

// HandleConnection subscribes the caller to status updates for the payment
// id in the query string, or to all payments when none is given.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": "Failed to upgrade to WebSocket",
		})
		return
	}

	client := &websocket.Client{
		PaymentID: c.Query("payment_id"),
		Conn:      conn,
	}
	h.hub.Register <- client

	go h.readPump(client)
}

// readPump drains inbound frames to observe close events; subscribers never
// send application data.
func (h *WebSocketHandler) readPump(client *websocket.Client) {
	defer func() {
		h.hub.Unregister <- client
	}()

	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseGoingAway, gws.CloseAbnormalClosure) {
				h.logger.Error().Err(err).Msg("Unexpected WebSocket close error")
			}
			return
		}
	}
}
