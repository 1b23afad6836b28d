package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"say-hi/contract"
	"say-hi/domain/event"
)

// frame is the outbound wire shape: the event name plus its payload.
type frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Hub tracks live connections by id and implements the emitter the chat
// service pushes through. Delivery is best effort: a connection that fails
// to accept a payload is detached, never retried.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*Connection
	presence contract.IPresence
	log      *slog.Logger
}

func NewHub(presence contract.IPresence, log *slog.Logger) *Hub {
	return &Hub{
		conns:    make(map[string]*Connection),
		presence: presence,
		log:      log,
	}
}

// Attach registers the connection and flips the user online. Presence and
// hub membership move together so Emit targets always resolve.
func (h *Hub) Attach(c *Connection) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()

	h.presence.SetOnline(c.UserID, c.ID)
	c.Start()
	h.log.Info("Client connected", slog.String("user", c.UserID), slog.String("connection", c.ID))
}

// Detach removes the connection and flips the user offline. The presence
// registry's own guard ignores the call if the user already reconnected.
func (h *Hub) Detach(c *Connection) {
	h.mu.Lock()
	delete(h.conns, c.ID)
	h.mu.Unlock()

	h.presence.SetOffline(c.ID)
	h.log.Info("Client disconnected", slog.String("user", c.UserID), slog.String("connection", c.ID))
}

// Emit marshals the event once and sends it to every listed connection.
func (h *Hub) Emit(ctx context.Context, connectionIDs []string, e event.Event) {
	payload, err := json.Marshal(frame{Event: e.Name(), Payload: e})
	if err != nil {
		h.log.Error("Encoding event failed", "event", e.Name(), "error", err)
		return
	}

	for _, id := range connectionIDs {
		h.mu.RLock()
		conn, ok := h.conns[id]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		if err := conn.Send(payload); err != nil {
			h.log.Warn("Dropping unresponsive connection",
				slog.String("connection", id), slog.String("event", e.Name()))
			h.Detach(conn)
			conn.Close(websocket.CloseGoingAway, "delivery failed")
		}
	}
}
