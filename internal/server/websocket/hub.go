package websocket

import (
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kitepay/railbridge/internal/domain"
)

// Hub fans unified status updates out to websocket subscribers. A client
// subscribes to one payment id or, with an empty id, to every payment.
type Hub struct {
	Clients    map[string]map[*websocket.Conn]bool
	Broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	Logger     zerolog.Logger
}

type Client struct {
	PaymentID string
	Conn      *websocket.Conn
}

type Message struct {
	Type   string                       `json:"type"`
	Status *domain.UnifiedPaymentStatus `json:"status,omitempty"`
}

// wildcard is the subscription key for clients watching all payments.
const wildcard = "*"

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		Clients:    make(map[string]map[*websocket.Conn]bool),
		Broadcast:  make(chan Message, 100),
		Register:   make(chan *Client, 100),
		Unregister: make(chan *Client, 100),
		Logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			key := client.key()
			if h.Clients[key] == nil {
				h.Clients[key] = make(map[*websocket.Conn]bool)
			}
			h.Clients[key][client.Conn] = true
			h.Logger.Info().
				Str("payment_id", key).
				Int("connection_count", len(h.Clients[key])).
				Msg("WebSocket client registered")

		case client := <-h.Unregister:
			key := client.key()
			if clients, ok := h.Clients[key]; ok {
				delete(clients, client.Conn)
				if len(clients) == 0 {
					delete(h.Clients, key)
				}
				client.Conn.Close()
				h.Logger.Info().
					Str("payment_id", key).
					Int("connection_count", len(clients)).
					Msg("WebSocket client unregistered")
			}

		case message := <-h.Broadcast:
			if message.Status == nil {
				continue
			}
			h.send(h.Clients[message.Status.PaymentID], message)
			h.send(h.Clients[wildcard], message)
		}
	}
}

func (h *Hub) send(clients map[*websocket.Conn]bool, message Message) {
	for conn := range clients {
		if err := conn.WriteJSON(message); err != nil {
			h.Logger.Err(err).
				Str("payment_id", message.Status.PaymentID).
				Msg("Failed to send WebSocket message")
			conn.Close()
			delete(clients, conn)
		}
	}
}

// BroadcastStatus queues a status update for delivery; drops it when the
// broadcast buffer is full rather than blocking the tracker.
func (h *Hub) BroadcastStatus(status domain.UnifiedPaymentStatus) {
	select {
	case h.Broadcast <- Message{Type: "status", Status: &status}:
	default:
		h.Logger.Warn().
			Str("payment_id", status.PaymentID).
			Msg("WebSocket broadcast buffer full, dropping update")
	}
}

func (c *Client) key() string {
	if c.PaymentID == "" {
		return wildcard
	}
	return c.PaymentID
}
