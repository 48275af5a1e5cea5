package api

import (
	"github.com/gofiber/fiber/v3"
)

// NewApp builds the fiber application. bodyLimit bounds multipart uploads.
func NewApp(h *Handler, bodyLimit int) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "sketch2code API",
		BodyLimit:    bodyLimit,
		ErrorHandler: ErrorHandler,
	})
	SetupRoutes(app, h)
	return app
}

func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)

	api := app.Group("/api")

	// Pipeline
	api.Post("/analyze", h.Analyze)

	// Snippet library
	snippets := api.Group("/snippets")
	snippets.Post("/", h.AddSnippets)
	snippets.Get("/search", h.SearchSnippets)
}
