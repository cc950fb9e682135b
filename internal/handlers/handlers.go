// Package handlers contains the HTTP route handlers for the league registration API.
// Each handler corresponds to one endpoint: it reads the request, calls the service
// and writes the response.
//
// Every exported function follows the "handler factory" pattern: it takes its
// dependencies and returns a fiber.Handler, so nothing is held in globals.
//
// --- Permission model ---
//
//  1. Route-level (middleware.RequireRole): only admins and managers may create or
//     change leagues, list a league's registrations, promote from the waitlist or
//     record payments. Every authenticated user may browse leagues and register.
//  2. Resource-level (canSee, canCancel below): players may read their own
//     registrations (or their team's) and cancel their own; admins may cancel any.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/cache"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/service"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/store"
)

// Service is what the handlers need from *service.Service.
type Service interface {
	ListLeagues(ctx context.Context, filter store.LeagueFilter) ([]models.League, error)
	GetLeague(ctx context.Context, id uuid.UUID) (models.League, error)
	CreateLeague(ctx context.Context, league *models.League) error
	UpdateLeague(ctx context.Context, league *models.League) error
	DeleteLeague(ctx context.Context, id uuid.UUID) error
	Availability(ctx context.Context, leagueID uuid.UUID) (cache.Availability, error)

	Register(ctx context.Context, in store.RegisterInput) (service.RegistrationView, error)
	GetRegistration(ctx context.Context, id uuid.UUID) (service.RegistrationView, error)
	ListRegistrations(ctx context.Context, leagueID uuid.UUID, status *registration.Status) ([]service.RegistrationView, error)
	Cancel(ctx context.Context, id uuid.UUID) (models.Registration, error)
	Promote(ctx context.Context, id uuid.UUID) (service.RegistrationView, error)
	PromoteNext(ctx context.Context, leagueID uuid.UUID) (*service.RegistrationView, error)
	RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (service.RegistrationView, error)
}

// respondError maps a service or store error to a status code and a JSON body.
// Anything unrecognised is logged and reported as a plain 500.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := "internal server error"

	switch {
	case errors.Is(err, store.ErrNotFound):
		status, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrAlreadyRegistered),
		errors.Is(err, store.ErrLeagueFull),
		errors.Is(err, store.ErrNotWaitlisted):
		status, msg = fiber.StatusConflict, err.Error()
	case errors.Is(err, store.ErrTeamNameRequired),
		errors.Is(err, store.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidLeague):
		status, msg = fiber.StatusBadRequest, err.Error()
	default:
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("Request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient permissions"})
}

// paramID parses a UUID route parameter.
func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// formatOptionalDate converts a *time.Time to a *string in "2006-01-02" format,
// keeping null as null in the JSON response.
func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format("2006-01-02")
	return &s
}

// formatOptionalTime renders a timestamp as RFC 3339 with milliseconds.
func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return &s
}

// parseOptionalDate parses an optional "YYYY-MM-DD" string. Nil or empty means unset.
func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatOptionalMoney(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}
