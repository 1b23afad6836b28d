package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"say-hi/auth"
	"say-hi/domain"
	"say-hi/domain/event"
	"say-hi/presence"
	"say-hi/services"
)

// fakeChatService records seen syncs; everything else is unused here.
type fakeChatService struct {
	mu        sync.Mutex
	seenCalls []string
}

func (f *fakeChatService) MarkSeenOnOpen(_ context.Context, viewerID string, _ uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seenCalls = append(f.seenCalls, viewerID)
	return nil, nil
}

func (f *fakeChatService) CreateConversation(string, string) (domain.Conversation, error) {
	return domain.Conversation{}, nil
}

func (f *fakeChatService) ListConversations(context.Context, string) ([]services.ConversationView, error) {
	return nil, nil
}

func (f *fakeChatService) GetMessages(context.Context, string, uuid.UUID) ([]domain.Message, error) {
	return nil, nil
}

func (f *fakeChatService) Deliver(context.Context, string, uuid.UUID, services.MessageContent) (domain.Message, error) {
	return domain.Message{}, nil
}

func (f *fakeChatService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seenCalls)
}

func dialTestServer(t *testing.T, handler *Handler, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	token, err := auth.GenerateToken(userID, domain.RoleUser, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestHandler_LifecycleAndDelivery(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := presence.NewRegistry()
	hub := NewHub(registry, log)
	chat := &fakeChatService{}
	handler := NewHandler(hub, registry, chat, log)

	ws := dialTestServer(t, handler, "alice")

	// The upgrade flips alice online.
	req.Eventually(func() bool {
		_, online := registry.Lookup("alice")
		return online
	}, time.Second, 10*time.Millisecond)

	// Joining a conversation subscribes and runs the seen sync.
	chatID := uuid.New()
	req.NoError(ws.WriteJSON(inboundFrame{Event: "joinChat", ChatID: chatID}))
	req.Eventually(func() bool {
		return registry.IsViewing("alice", chatID) && chat.calls() == 1
	}, time.Second, 10*time.Millisecond)

	// An emitted event reaches the client as an {event, payload} frame.
	connID, _ := registry.Lookup("alice")
	hub.Emit(context.Background(), []string{connID}, event.MessagesSeen{
		ChatID: chatID, SeenBy: "bob", MessageIDs: []uuid.UUID{uuid.New()},
	})

	_ = ws.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := ws.ReadMessage()
	req.NoError(err)

	var fr struct {
		Event   string             `json:"event"`
		Payload event.MessagesSeen `json:"payload"`
	}
	req.NoError(json.Unmarshal(data, &fr))
	req.Equal("messagesSeen", fr.Event)
	req.Equal("bob", fr.Payload.SeenBy)

	// Leaving the conversation clears the subscription.
	req.NoError(ws.WriteJSON(inboundFrame{Event: "leaveChat", ChatID: chatID}))
	req.Eventually(func() bool {
		return !registry.IsViewing("alice", chatID)
	}, time.Second, 10*time.Millisecond)

	// Disconnecting flips alice offline.
	req.NoError(ws.Close())
	req.Eventually(func() bool {
		_, online := registry.Lookup("alice")
		return !online
	}, time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsBadToken(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := presence.NewRegistry()
	hub := NewHub(registry, log)
	handler := NewHandler(hub, registry, &fakeChatService{}, log)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=not-a-token"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	req.Error(err)
	req.Equal(401, resp.StatusCode)
}
