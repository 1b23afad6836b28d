package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"say-hi/auth"
	"say-hi/contract"
	"say-hi/services"
)

const readTimeout = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The gateway fronts this endpoint; origin policy lives there.
		return true
	},
}

// inboundFrame is what clients send: joinChat and leaveChat subscriptions.
type inboundFrame struct {
	Event  string    `json:"event"`
	ChatID uuid.UUID `json:"chatId"`
}

type errorFrame struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

// Handler upgrades authenticated clients and runs their read loop.
type Handler struct {
	hub      *Hub
	presence contract.IPresence
	chat     services.IChatService
	log      *slog.Logger
}

func NewHandler(hub *Hub, presence contract.IPresence, chat services.IChatService, log *slog.Logger) *Handler {
	return &Handler{hub: hub, presence: presence, chat: chat, log: log}
}

// ServeHTTP authenticates via the token query parameter, upgrades, and
// processes subscription frames until the client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		return
	}

	conn := NewConnection(claims.UserID, ws)
	h.hub.Attach(conn)
	defer func() {
		h.hub.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	ws.SetReadLimit(1 << 20)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return
			}
			h.log.Debug("Read loop ended", "user", claims.UserID, "error", err)
			return
		}

		var fr inboundFrame
		if err := json.Unmarshal(data, &fr); err != nil {
			h.replyError(conn, "invalid payload")
			continue
		}

		switch fr.Event {
		case "joinChat":
			h.handleJoin(r.Context(), conn, fr.ChatID)
		case "leaveChat":
			h.presence.Unsubscribe(conn.UserID, fr.ChatID)
		default:
			h.replyError(conn, "unknown event: "+fr.Event)
		}
	}
}

// handleJoin subscribes the viewer, then runs the seen sync so everything
// pending flips in one batch while the conversation opens.
func (h *Handler) handleJoin(ctx context.Context, conn *Connection, chatID uuid.UUID) {
	h.presence.Subscribe(conn.UserID, chatID)
	if _, err := h.chat.MarkSeenOnOpen(ctx, conn.UserID, chatID); err != nil {
		h.presence.Unsubscribe(conn.UserID, chatID)
		h.replyError(conn, err.Error())
	}
}

func (h *Handler) replyError(conn *Connection, msg string) {
	if payload, err := json.Marshal(errorFrame{Event: "error", Error: msg}); err == nil {
		_ = conn.Send(payload)
	}
}
