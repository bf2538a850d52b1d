package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/stacksgate/stacksgate/internal/pkg/env"
	"github.com/stacksgate/stacksgate/internal/pkg/storecontext"
)

// HeaderAdminToken carries the shared operator secret.
const HeaderAdminToken = "X-Admin-Token"

// AdminAuthMiddleware authenticates operator requests. Only the bcrypt hash of
// the token is kept at rest (ADMIN_TOKEN_HASH); with no hash configured every
// admin request is refused.
func AdminAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash := env.GetEnv("ADMIN_TOKEN_HASH", "")
		if hash == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "admin_disabled", "message": "Admin API is not configured"})
		}

		token := strings.TrimSpace(c.Get(HeaderAdminToken))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing admin token"})
		}

		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid admin token"})
		}

		c.Locals(storecontext.KeyIsAdmin, true)
		return c.Next()
	}
}
