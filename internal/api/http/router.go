package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Stats          *handlers.StatsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	protected := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	protected.Get("/tickets", cfg.Tickets.List)
	protected.Get("/tickets/venue/:venueID", cfg.Tickets.GetByVenue)
	protected.Get("/tickets/:ticketID/transcript", cfg.Tickets.GetTranscript)
	protected.Delete("/transcripts/:transcriptID", cfg.Tickets.DeleteTranscript)
	protected.Get("/audit-logs", cfg.Tickets.AuditLogs)
	protected.Get("/stats/satisfaction", cfg.Stats.Satisfaction)
	protected.Get("/stats/monthly", cfg.Stats.Monthly)
}
