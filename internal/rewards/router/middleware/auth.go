package middleware

import (
	"github.com/SakuraBurst/rewards/internal/rewards/session"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// TokenKey is the Locals key holding the verified *jwt.Token.
const TokenKey = "user"

// Protected accepts a bearer token or the session cookie.
func Protected(jwtSecret []byte) func(*fiber.Ctx) error {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: jwtSecret},
		ContextKey:   TokenKey,
		TokenLookup:  "header:Authorization,cookie:" + session.CookieName,
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, _ error) error {
	c.Status(fiber.StatusUnauthorized)
	return c.JSON(fiber.Map{"status": "error", "message": "Authorization required"})
}
