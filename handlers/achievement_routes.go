// handlers/achievement_routes.go
package handlers

import (
	"os"

	"achievement-sync-system/middleware"
	"achievement-sync-system/models"
	"achievement-sync-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAchievementRoutes(app *fiber.App, svc *services.AchievementService, notifications *services.NotificationService) {
	// 🔐 Secured routes — user context forwarded by the Gateway (guests allowed)
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/achievements", func(c *fiber.Ctx) error {
		profile := middleware.ProfileFromCtx(c)

		records, err := svc.InitAchievements(c.Context(), profile)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load achievements",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"achievements": records,
			"total_points": profile.TotalPoints,
		})
	})

	securedGroup.Post("/user/achievements/grant", func(c *fiber.Ctx) error {
		type Req struct {
			AchievementID string `json:"achievement_id" validate:"required"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.AchievementID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "achievement_id is required",
			})
		}

		profile := middleware.ProfileFromCtx(c)
		if _, err := svc.InitAchievements(c.Context(), profile); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load achievements",
				"cause": err.Error(),
			})
		}

		// Grant never surfaces transport errors — the optimistic result is
		// the caller's answer either way
		updated, notification := svc.GrantAchievement(c.Context(), profile, req.AchievementID)

		return c.JSON(fiber.Map{
			"profile":      updated,
			"notification": notification,
		})
	})

	securedGroup.Post("/user/achievements/game", func(c *fiber.Ctx) error {
		type Req struct {
			Game  string `json:"game" validate:"required"`
			Level int    `json:"level" validate:"required,min=1"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.Game == "" || req.Level < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "game and level (>= 1) are required",
			})
		}

		profile := middleware.ProfileFromCtx(c)
		if _, err := svc.InitAchievements(c.Context(), profile); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load achievements",
				"cause": err.Error(),
			})
		}

		updated, earned := svc.GrantChain(c.Context(), profile, models.GameKind(req.Game), req.Level)

		return c.JSON(fiber.Map{
			"profile":       updated,
			"notifications": earned,
		})
	})

	// SSE stream — query-param auth because EventSource can't set headers
	if notifications != nil {
		app.Get("/user/achievements/stream", middleware.SSEAuthMiddleware(), notifications.StreamUserNotificationsSSE)
	}

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/catalog/reload", func(c *fiber.Ctx) error {
		objectKey := os.Getenv("CATALOG_OBJECT_KEY")
		if objectKey == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "CATALOG_OBJECT_KEY not configured",
			})
		}

		if err := svc.ReloadCatalogFromR2(c.Context(), objectKey); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "catalog reload failed",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"message": "catalog reloaded successfully",
		})
	})
}
