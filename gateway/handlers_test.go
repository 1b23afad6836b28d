package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"say-hi/auth"
	"say-hi/broker"
	"say-hi/domain"
	"say-hi/errors"
	"say-hi/mocks"
)

func newTestApp(t *testing.T) (*mocks.MockICaller, *fiber.App) {
	t.Helper()
	ctrl := gomock.NewController(t)
	rpc := mocks.NewMockICaller(ctrl)
	h := NewHandler(rpc, time.Second, logs.GetLoggerFromLevel(slog.LevelDebug))
	return rpc, NewApp(h)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	req := require.New(t)
	rpc, app := newTestApp(t)

	reply := broker.OK(200, "logged in", map[string]string{"id": "user-1"})
	reply.Token = "signed-token"
	rpc.EXPECT().
		Call(gomock.Any(), broker.AuthQueue, "login", gomock.Any(), gomock.Any()).
		Return(reply, nil)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/login",
		`{"email":"a@b.c","password":"pw"}`), -1)
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(200, resp.StatusCode)
	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == "jwt" {
			cookie = c.Value
		}
	}
	req.Equal("signed-token", cookie)

	var body struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.True(body.Success)
	req.Contains(string(body.Data), "user-1")
}

func TestForward_TimeoutBecomesGatewayTimeout(t *testing.T) {
	req := require.New(t)
	rpc, app := newTestApp(t)

	// A lost upstream must surface as an explicit failure, never a hang.
	rpc.EXPECT().
		Call(gomock.Any(), broker.AuthQueue, "register", gomock.Any(), gomock.Any()).
		Return(broker.Reply{}, fmt.Errorf("%w: no reply", errors.ErrCallTimeout))

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"a@b.c","password":"pw"}`), -1)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusGatewayTimeout, resp.StatusCode)
}

func TestForward_UpstreamStatusPassesThrough(t *testing.T) {
	req := require.New(t)
	rpc, app := newTestApp(t)

	rpc.EXPECT().
		Call(gomock.Any(), broker.AuthQueue, "register", gomock.Any(), gomock.Any()).
		Return(broker.Fail(http.StatusConflict, "user already exists"), nil)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"a@b.c","password":"pw"}`), -1)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusConflict, resp.StatusCode)
}

func TestChats_RequireAuth(t *testing.T) {
	req := require.New(t)
	_, app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/chats/", nil), -1)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestChats_ForwardsAuthenticatedUser(t *testing.T) {
	req := require.New(t)
	rpc, app := newTestApp(t)

	rpc.EXPECT().
		Call(gomock.Any(), broker.ChatQueue, "get_conversations", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, _, _ string, data any, _ any) (broker.Reply, error) {
			payload := data.(fiber.Map)
			require.Equal(t, "user-42", payload["userId"])
			return broker.OK(200, "conversations", []string{}), nil
		})

	token, err := auth.GenerateToken("user-42", domain.RoleUser, time.Hour)
	req.NoError(err)

	httpReq := httptest.NewRequest(http.MethodGet, "/api/chats/", nil)
	httpReq.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)

	resp, err := app.Test(httpReq, -1)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(200, resp.StatusCode)
}
