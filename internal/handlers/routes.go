package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/config"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/middleware"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Config  *config.Config
	Users   middleware.UserSyncer
	Service Service
	Hub     Subscriptions
}

// Routes registers the authenticated API under /api/v1.
//
// Route group pattern: app.Group(prefix, middlewares...) applies middleware.Auth to
// every route registered on the returned group, so it is not repeated per route.
func Routes(app *fiber.App, d Deps) {
	staff := middleware.RequireRole(models.UserRoleAdmin, models.UserRoleManager)
	svc := d.Service

	api := app.Group("/api/v1", middleware.Auth(d.Config, d.Users))

	// League routes
	// GET    /api/v1/leagues                 - list leagues (?type=, ?mode=) with availability
	// GET    /api/v1/leagues/:id             - one league with availability and payment terms
	// POST   /api/v1/leagues                 - create (admin, manager)
	// PUT    /api/v1/leagues/:id             - replace editable fields (admin, manager)
	// DELETE /api/v1/leagues/:id             - delete (admin, manager)
	// GET    /api/v1/leagues/:id/availability
	// GET    /api/v1/leagues/:id/live        - Server-Sent Events availability stream
	api.Get("/leagues", GetLeagues(svc))
	api.Post("/leagues", staff, CreateLeague(svc))
	api.Get("/leagues/:id", GetLeague(svc))
	api.Put("/leagues/:id", staff, UpdateLeague(svc))
	api.Delete("/leagues/:id", staff, DeleteLeague(svc))
	api.Get("/leagues/:id/availability", GetAvailability(svc))
	api.Get("/leagues/:id/live", LiveAvailability(svc, d.Hub))

	// Registration routes
	// GET    /api/v1/leagues/:id/registrations           - list (?status=) (admin, manager)
	// POST   /api/v1/leagues/:id/registrations           - register the caller (or their team)
	// POST   /api/v1/leagues/:id/waitlist/promote-next   - promote the head of the waitlist (admin, manager)
	// GET    /api/v1/registrations/:id                   - owner, roster member or staff
	// DELETE /api/v1/registrations/:id                   - cancel (owner or admin)
	// POST   /api/v1/registrations/:id/promote           - promote this one (admin, manager)
	// POST   /api/v1/registrations/:id/payments          - record a payment (admin, manager)
	api.Get("/leagues/:id/registrations", staff, GetLeagueRegistrations(svc))
	api.Post("/leagues/:id/registrations", Register(svc))
	api.Post("/leagues/:id/waitlist/promote-next", staff, PromoteNext(svc))
	api.Get("/registrations/:id", GetRegistration(svc))
	api.Delete("/registrations/:id", CancelRegistration(svc))
	api.Post("/registrations/:id/promote", staff, PromoteRegistration(svc))
	api.Post("/registrations/:id/payments", staff, RecordPayment(svc))
}
