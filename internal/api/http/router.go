package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gsg-it/it4u/internal/api/http/handlers"
	"github.com/gsg-it/it4u/internal/auth"
	"github.com/gsg-it/it4u/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Attachments    *handlers.AttachmentsHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("", cfg.AuthMiddleware.Handle)
	api.Get("/auth/me", cfg.Auth.Me)
	api.Post("/users", auth.RequireRole(domain.RoleAdmin), cfg.Auth.CreateUser)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("", cfg.Tickets.List)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/approve", auth.RequireRole(domain.RoleManager, domain.RoleITSupport, domain.RoleAdmin), cfg.Tickets.Approve)
	tickets.Post("/:id/reject", auth.RequireRole(domain.RoleManager, domain.RoleITSupport, domain.RoleAdmin), cfg.Tickets.Reject)
	tickets.Patch("/:id/status", auth.RequireRole(domain.RoleITSupport, domain.RoleAdmin), cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/assign", auth.RequireRole(domain.RoleITSupport, domain.RoleAdmin), cfg.Tickets.Assign)
	tickets.Patch("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.AdminUpdate)
	tickets.Delete("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.Delete)

	tickets.Post("/:id/attachments", cfg.Attachments.Upload)
	tickets.Get("/:id/email-audit", auth.RequireRole(domain.RoleITSupport, domain.RoleAdmin), cfg.Audit.ListForTicket)

	api.Get("/attachments/:attachmentID", cfg.Attachments.Download)
	api.Delete("/attachments/:attachmentID", cfg.Attachments.Delete)
	api.Get("/email-audit", auth.RequireRole(domain.RoleAdmin), cfg.Audit.ListRecent)
}
