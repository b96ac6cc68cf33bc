package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"pairwatch/internal/browser"
	"pairwatch/internal/status"
)

// qrStatusHandler serves the current status snapshot. It only reads from
// the store.
func qrStatusHandler(st *status.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Cache-Control", "no-store")
		return c.JSON(NewQRStatusResponse(st.Snapshot()))
	}
}

// openDashboardHandler opens the client's own dashboard in the browser
// of the machine running pairwatch.
func openDashboardHandler(dashboardURL string, open browser.Opener, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := open(dashboardURL); err != nil {
			if logger != nil {
				logger.Warn("open dashboard failed", "url", dashboardURL, "error", err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(OpenDashboardResponse{
				Success: false,
				Error:   err.Error(),
			})
		}
		return c.JSON(OpenDashboardResponse{Success: true, URL: dashboardURL})
	}
}
