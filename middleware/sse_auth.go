// middleware/sse_auth.go
package middleware

import (
	"log"
	"os"
	"strings"

	"achievement-sync-system/models"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates `token` and `user_id` from query params.
// EventSource can't set headers, so the stream route authenticates via query
// instead of the usual gateway Authorization header.
//
// Usage:
//
//	app.Get("/user/achievements/stream", middleware.SSEAuthMiddleware(), notificationService.StreamUserNotificationsSSE)
func SSEAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("GATEWAY_SERVICE_TOKEN")

	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		userID := strings.TrimSpace(c.Query("user_id"))

		if expectedToken != "" && accessToken != expectedToken {
			log.Printf("[SSEAuth] ❌ Invalid token for %s (len=%d)", c.Path(), len(accessToken))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		userKey := models.GuestStorageKey
		if userID != "" {
			userKey = "user:" + userID
		}

		c.Locals("user_id", userID)
		c.Locals("user_key", userKey)

		log.Printf("[SSEAuth] ✅ Stream authenticated for %s", userKey)
		return c.Next()
	}
}
