package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	webui "pairwatch/frontend"
)

func registerWebUIRoutes(app *fiber.App, dashboardURL string) {
	indexHTML := webui.IndexHTML(dashboardURL)

	serveIndex := func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-cache")
		c.Type("html", "utf-8")
		return c.Send(indexHTML)
	}

	app.Get("/", serveIndex)

	app.Use(func(c *fiber.Ctx) error {
		// Don't hijack API routes; let them return a proper JSON 404.
		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "Unknown API endpoint",
			})
		}
		return fiber.ErrNotFound
	})
}
