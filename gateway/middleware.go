package gateway

import (
	"github.com/gofiber/fiber/v2"

	"say-hi/auth"
)

const (
	tokenCookie  = "jwt"
	localsUserID = "userID"
	localsEmail  = "email"
)

// IsAuth validates the session token from the cookie or the Authorization
// header and stashes the user id for the handlers.
func IsAuth(c *fiber.Ctx) error {
	token := c.Cookies(tokenCookie)
	if token == "" {
		header := c.Get(fiber.HeaderAuthorization)
		if len(header) > 7 && header[:7] == "Bearer " {
			token = header[7:]
		}
	}
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false, "message": "missing token",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false, "message": "invalid token",
		})
	}
	c.Locals(localsUserID, claims.UserID)
	return c.Next()
}
