package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"pdf-generator/internal/config"
	"pdf-generator/internal/http/handlers"
	"pdf-generator/internal/http/middleware"
	"pdf-generator/internal/infra/logging"
	"pdf-generator/internal/layout"
)

// Renderer is what the routes need from the rendering core.
type Renderer interface {
	handlers.Renderer
	Ready() bool
}

// Deps are the collaborators wired into the app.
type Deps struct {
	Config   config.Config
	Renderer Renderer
	// Journal is optional.
	Journal handlers.Journal
	// Service overrides the PDFService built from Renderer and Journal, so
	// the caller can wait for its pending journal writes on shutdown.
	Service *handlers.PDFService
}

// New creates and configures the Fiber app.
func New(deps Deps) *fiber.App {
	cfg := deps.Config
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler:          errorHandler,
	})

	middleware.Register(app, deps.Renderer.Ready)
	registerRoutes(app, deps)

	// Unmatched routes still answer in JSON.
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func registerRoutes(app *fiber.App, deps Deps) {
	svc := deps.Service
	if svc == nil {
		svc = NewPDFService(deps)
	}

	v1 := app.Group("/api/v1")
	v1.Post("/generate-pdf", svc.HandleGenerate)
	v1.Post("/generate-pdf-with-header-footer", svc.HandleGenerateWithHeaderFooter)
	v1.Get("/engine/stats", svc.HandleEngineStats)
	v1.Get("/monitor", monitor.New())
}

// NewPDFService builds the conversion service for deps.
func NewPDFService(deps Deps) *handlers.PDFService {
	return handlers.NewPDFService(
		layout.NewNormalizer(deps.Config.HeaderFooterMode()),
		deps.Renderer,
		deps.Journal,
	)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg, "request_id", middleware.RequestID(c))

	return c.Status(code).JSON(fiber.Map{"error": msg})
}
