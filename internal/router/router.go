package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/syllabus-dashboard/internal/config"
	"github.com/noah-isme/syllabus-dashboard/internal/handler"
	"github.com/noah-isme/syllabus-dashboard/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler    *handler.SessionHandler
	UploadHandler     *handler.UploadHandler
	AssignmentHandler *handler.AssignmentHandler
	SyllabusHandler   *handler.SyllabusHandler
	DashboardHandler  *handler.DashboardHandler
	ExportHandler     *handler.ExportHandler
	HealthChecks      map[string]handler.HealthCheckFunc
	SessionMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(api.Group("/sessions"))
	}

	// Use provided session middleware, or a no-op if nil
	sessionMiddleware := deps.SessionMiddleware
	if sessionMiddleware == nil {
		sessionMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(api.Group("/uploads", sessionMiddleware))
	}

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(api.Group("/assignments", sessionMiddleware))
	}

	if deps.SyllabusHandler != nil {
		deps.SyllabusHandler.Register(api.Group("/syllabi", sessionMiddleware))
	}

	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(api.Group("/dashboard", sessionMiddleware))
		deps.DashboardHandler.RegisterStats(api.Group("/stats", sessionMiddleware))
	}

	if deps.ExportHandler != nil {
		deps.ExportHandler.Register(api.Group("/export", sessionMiddleware))
	}
}
