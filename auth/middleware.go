package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/scribe-notes/server/domain"
)

const userIDKey = "authUserID"

// Middleware rejects requests without a valid bearer token and stores the
// resolved user id in the request locals.
func Middleware(tokens *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := tokens.Verify(tokenStr)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user id stored by Middleware.
func UserID(c *fiber.Ctx) domain.UserID {
	id, _ := c.Locals(userIDKey).(domain.UserID)
	return id
}
