package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk/ticketd/internal/api/http/handlers"
	"github.com/helpdesk/ticketd/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Departments    *handlers.DepartmentsHandler
	Tickets        *handlers.TicketsHandler
	Categories     *handlers.LookupsHandler
	Priorities     *handlers.LookupsHandler
	Statuses       *handlers.LookupsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Users.Login)
	app.Post("/auth/first-admin", cfg.Users.CreateFirstAdmin)

	// Lookup listings back the ticket submission form and stay open. The
	// /tickets/... spellings are the original surface; they must be bound
	// before the numeric /tickets/:id routes so literal segments win.
	app.Get("/tickets/categories", cfg.Categories.List)
	app.Get("/tickets/priorities", cfg.Priorities.List)
	app.Get("/tickets/status", cfg.Statuses.List)
	app.Get("/categories", cfg.Categories.List)
	app.Get("/priorities", cfg.Priorities.List)
	app.Get("/statuses", cfg.Statuses.List)

	authed := app.Group("", cfg.AuthMiddleware.Handle)

	authed.Get("/users/me", cfg.Users.Me)

	tickets := authed.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)

	authed.Get("/departments", cfg.Departments.List)

	admin := authed.Group("", auth.RequireAdmin())

	admin.Post("/users", cfg.Users.Register)
	admin.Get("/users", cfg.Users.List)
	admin.Put("/users/:id", cfg.Users.Update)
	admin.Delete("/users/:id", cfg.Users.Delete)

	admin.Post("/departments", cfg.Departments.Create)
	admin.Put("/departments/:id", cfg.Departments.Update)
	admin.Delete("/departments/:id", cfg.Departments.Delete)

	registerLookupRoutes(admin, "/categories", cfg.Categories)
	registerLookupRoutes(admin, "/priorities", cfg.Priorities)
	registerLookupRoutes(admin, "/statuses", cfg.Statuses)
}

func registerLookupRoutes(router fiber.Router, prefix string, h *handlers.LookupsHandler) {
	router.Post(prefix, h.Create)
	router.Put(prefix+"/:id", h.Update)
	router.Delete(prefix+"/:id", h.Delete)
}
