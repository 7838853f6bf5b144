// middleware/auth.go
package middleware

import (
	"log"

	"achievement-sync-system/models"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts user identity forwarded by the Gateway.
// A missing X-User-ID is NOT an error here: achievements work for guest
// profiles too, they just never sync with the remote service.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")

		userKey := models.GuestStorageKey
		if userID != "" {
			userKey = "user:" + userID
		}

		// Attach to ctx for handlers
		c.Locals("user_id", userID)
		c.Locals("user_key", userKey)

		log.Printf("👤 [USER_CTX] UserID=%q (key=%s) | Path: %s", userID, userKey, c.Path())

		return c.Next()
	}
}

// ProfileFromCtx rebuilds the caller's Profile identity from the request context
func ProfileFromCtx(c *fiber.Ctx) *models.Profile {
	userID := c.Locals("user_id").(string)
	if userID == "" {
		return &models.Profile{}
	}
	return &models.Profile{Identifier: &userID}
}
