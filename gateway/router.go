package gateway

import (
	"github.com/gofiber/fiber/v2"
)

// NewApp wires the HTTP routes. Everything under /api/chats requires a
// valid session; the websocket endpoint lives on the chat service itself.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", h.Register)
	authRoutes.Post("/verify-otp", h.VerifyOTP)
	authRoutes.Post("/resend-otp", h.ResendOTP)
	authRoutes.Post("/login", h.Login)
	authRoutes.Post("/logout", IsAuth, h.Logout)

	api.Get("/users/:id", IsAuth, h.GetUser)

	chats := api.Group("/chats", IsAuth)
	chats.Get("/", h.ListConversations)
	chats.Post("/", h.CreateConversation)
	chats.Get("/:id/messages", h.GetMessages)
	chats.Post("/:id/messages", h.SendMessage)
	chats.Post("/:id/seen", h.MarkSeen)

	return app
}
