// Package gateway is the HTTP edge: it owns no business logic, it maps
// routes onto queue actions and forwards whatever status the owning
// service decided.
package gateway

import (
	goerrors "errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"say-hi/broker"
	"say-hi/contract"
	"say-hi/errors"
)

type Handler struct {
	rpc     contract.ICaller
	timeout time.Duration
	log     *slog.Logger
}

func NewHandler(rpc contract.ICaller, timeout time.Duration, log *slog.Logger) *Handler {
	return &Handler{rpc: rpc, timeout: timeout, log: log}
}

// forward issues the RPC and translates the reply onto the HTTP response.
// A failed call degrades to an explicit gateway error, never to a hang or
// an empty success.
func (h *Handler) forward(c *fiber.Ctx, queue, action string, payload any) error {
	reply, err := h.rpc.Call(c.UserContext(), queue, action, payload, h.timeout)
	if err != nil {
		status := fiber.StatusBadGateway
		switch {
		case goerrors.Is(err, errors.ErrCallTimeout):
			status = fiber.StatusGatewayTimeout
		case goerrors.Is(err, errors.ErrChannelUnavailable):
			status = fiber.StatusServiceUnavailable
		}
		h.log.Error("Upstream call failed", "queue", queue, "action", action, "error", err)
		return c.Status(status).JSON(fiber.Map{
			"success": false, "message": "upstream service unavailable",
		})
	}

	if action == "login" && reply.Success {
		c.Cookie(&fiber.Cookie{
			Name:     tokenCookie,
			Value:    reply.Token,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}

	body := fiber.Map{"success": reply.Success, "message": reply.Message}
	if reply.Data != nil {
		body["data"] = reply.Data
	}
	return c.Status(reply.Status).JSON(body)
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	return h.forward(c, broker.AuthQueue, "register", req)
}

func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	return h.forward(c, broker.AuthQueue, "verify_otp", req)
}

func (h *Handler) ResendOTP(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	return h.forward(c, broker.AuthQueue, "resend_otp", req)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	return h.forward(c, broker.AuthQueue, "login", req)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	c.ClearCookie(tokenCookie)
	return h.forward(c, broker.AuthQueue, "logout", req)
}

func (h *Handler) GetUser(c *fiber.Ctx) error {
	return h.forward(c, broker.UserQueue, "get_user_by_id",
		fiber.Map{"userId": c.Params("id")})
}

func (h *Handler) ListConversations(c *fiber.Ctx) error {
	return h.forward(c, broker.ChatQueue, "get_conversations",
		fiber.Map{"userId": c.Locals(localsUserID)})
}

func (h *Handler) CreateConversation(c *fiber.Ctx) error {
	var req struct {
		ReceiverID string `json:"receiverId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	return h.forward(c, broker.ChatQueue, "create_conversation", fiber.Map{
		"senderId":   c.Locals(localsUserID),
		"receiverId": req.ReceiverID,
	})
}

func (h *Handler) GetMessages(c *fiber.Ctx) error {
	return h.forward(c, broker.ChatQueue, "get_messages", fiber.Map{
		"userId": c.Locals(localsUserID),
		"chatId": c.Params("id"),
	})
}

func (h *Handler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		Text  string `json:"text"`
		Image any    `json:"image,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c)
	}
	return h.forward(c, broker.ChatQueue, "send_message", fiber.Map{
		"senderId": c.Locals(localsUserID),
		"chatId":   c.Params("id"),
		"text":     req.Text,
		"image":    req.Image,
	})
}

func (h *Handler) MarkSeen(c *fiber.Ctx) error {
	return h.forward(c, broker.ChatQueue, "mark_seen", fiber.Map{
		"userId": c.Locals(localsUserID),
		"chatId": c.Params("id"),
	})
}

func badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false, "message": "malformed request body",
	})
}
