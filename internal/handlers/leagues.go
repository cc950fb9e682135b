package handlers

// leagues.go: the /api/v1/leagues routes.
//
// A league is anything people register for: a regular season, a tournament, a skills
// & drills clinic or a single drop-in session. Its registration mode says whether the
// capacity counts teams or individuals; its league type says how payment deadlines are
// worked out.

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/cache"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/middleware"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/store"
)

// LeagueResponse is what we send back for a league. A dedicated struct (instead of the
// raw GORM model) controls exactly which fields are serialised and adds computed ones.
type LeagueResponse struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Sport              string              `json:"sport"`
	Description        *string             `json:"description"`
	RegistrationMode   string              `json:"registration_mode"` // "team" or "individual"
	Capacity           int                 `json:"capacity"`
	LeagueType         string              `json:"league_type"`
	TeamCost           string              `json:"team_cost"`       // Money as a fixed two-decimal string
	IndividualCost     string              `json:"individual_cost"` // Money as a fixed two-decimal string
	ExplicitDueDate    *string             `json:"explicit_due_date"`
	DepositAmount      *string             `json:"deposit_amount"`
	DepositDueDate     *string             `json:"deposit_due_date"`
	PaymentWindowHours *int                `json:"payment_window_hours"`
	PaymentWindow      *string             `json:"payment_window"` // "2 days", "1 week", ...
	StartDate          *string             `json:"start_date"`
	EndDate            *string             `json:"end_date"`
	CreatorName        string              `json:"creator_name"`
	Availability       *cache.Availability `json:"availability,omitempty"`
	CreatedAt          string              `json:"created_at"`
}

// LeagueRequest is the JSON body for POST and PUT /api/v1/leagues[/:id].
// Money fields accept either JSON numbers or strings.
type LeagueRequest struct {
	Name               string           `json:"name"`
	Sport              string           `json:"sport"`
	Description        *string          `json:"description"`
	RegistrationMode   string           `json:"registration_mode"`
	Capacity           int              `json:"capacity"`
	LeagueType         string           `json:"league_type"`
	TeamCost           decimal.Decimal  `json:"team_cost"`
	IndividualCost     decimal.Decimal  `json:"individual_cost"`
	ExplicitDueDate    *string          `json:"explicit_due_date"` // "YYYY-MM-DD"
	DepositAmount      *decimal.Decimal `json:"deposit_amount"`
	DepositDueDate     *string          `json:"deposit_due_date"` // "YYYY-MM-DD"
	PaymentWindowHours *int             `json:"payment_window_hours"`
	StartDate          *string          `json:"start_date"`
	EndDate            *string          `json:"end_date"`
}

// apply copies the request onto league. It fails only on malformed dates; everything
// else is checked by service.ValidateLeague.
func (r LeagueRequest) apply(league *models.League) error {
	due, err := parseOptionalDate(r.ExplicitDueDate)
	if err != nil {
		return errors.New("explicit_due_date must be YYYY-MM-DD")
	}
	depositDue, err := parseOptionalDate(r.DepositDueDate)
	if err != nil {
		return errors.New("deposit_due_date must be YYYY-MM-DD")
	}
	startDate, err := parseOptionalDate(r.StartDate)
	if err != nil {
		return errors.New("start_date must be YYYY-MM-DD")
	}
	endDate, err := parseOptionalDate(r.EndDate)
	if err != nil {
		return errors.New("end_date must be YYYY-MM-DD")
	}

	league.Name = strings.TrimSpace(r.Name)
	league.Sport = strings.TrimSpace(r.Sport)
	league.Description = r.Description
	league.RegistrationMode = registration.RegistrationMode(r.RegistrationMode)
	league.Capacity = r.Capacity
	league.LeagueType = registration.LeagueType(r.LeagueType)
	league.TeamCost = r.TeamCost
	league.IndividualCost = r.IndividualCost
	league.ExplicitDueDate = due
	league.DepositAmount = r.DepositAmount
	league.DepositDueDate = depositDue
	league.PaymentWindowHours = r.PaymentWindowHours
	league.StartDate = startDate
	league.EndDate = endDate
	return nil
}

// toLeagueResponse converts a league model. avail may be nil.
func toLeagueResponse(l models.League, avail *cache.Availability) LeagueResponse {
	resp := LeagueResponse{
		ID:                 l.ID.String(),
		Name:               l.Name,
		Sport:              l.Sport,
		Description:        l.Description,
		RegistrationMode:   string(l.RegistrationMode),
		Capacity:           l.Capacity,
		LeagueType:         string(l.LeagueType),
		TeamCost:           l.TeamCost.StringFixed(2),
		IndividualCost:     l.IndividualCost.StringFixed(2),
		ExplicitDueDate:    formatOptionalDate(l.ExplicitDueDate),
		DepositAmount:      formatOptionalMoney(l.DepositAmount),
		DepositDueDate:     formatOptionalDate(l.DepositDueDate),
		PaymentWindowHours: l.PaymentWindowHours,
		StartDate:          formatOptionalDate(l.StartDate),
		EndDate:            formatOptionalDate(l.EndDate),
		CreatorName:        l.Creator.DisplayName,
		Availability:       avail,
		CreatedAt:          l.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if l.PaymentWindowHours != nil && registration.UsesRelativeWindow(l.LeagueType) {
		label := registration.FormatDuration(*l.PaymentWindowHours)
		resp.PaymentWindow = &label
	}
	return resp
}

// availabilityFor looks up availability for display. A failure only drops the badge.
func availabilityFor(c *fiber.Ctx, svc Service, l models.League) *cache.Availability {
	a, err := svc.Availability(c.UserContext(), l.ID)
	if err != nil {
		log.Warn().Err(err).Str("league_id", l.ID.String()).Msg("Availability lookup failed")
		return nil
	}
	return &a
}

// GetLeagues returns a handler for GET /api/v1/leagues.
// Optional query params: ?type=tournament, ?mode=team.
func GetLeagues(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := store.LeagueFilter{
			Type: registration.LeagueType(c.Query("type")),
			Mode: registration.RegistrationMode(c.Query("mode")),
		}
		if filter.Type != "" && !filter.Type.Valid() {
			return badRequest(c, "type must be regular_season, tournament, skills_drills or single_session")
		}
		if filter.Mode != "" && !filter.Mode.Valid() {
			return badRequest(c, "mode must be 'team' or 'individual'")
		}

		leagues, err := svc.ListLeagues(c.UserContext(), filter)
		if err != nil {
			return respondError(c, err)
		}

		resp := make([]LeagueResponse, 0, len(leagues))
		for _, l := range leagues {
			resp = append(resp, toLeagueResponse(l, availabilityFor(c, svc, l)))
		}
		return c.JSON(resp)
	}
}

// GetLeague returns a handler for GET /api/v1/leagues/:id.
func GetLeague(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid league ID")
		}
		league, err := svc.GetLeague(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(toLeagueResponse(league, availabilityFor(c, svc, league)))
	}
}

// CreateLeague returns a handler for POST /api/v1/leagues (admin and manager only).
// The creator is recorded as the current user.
func CreateLeague(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LeagueRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}

		league := models.League{CreatedBy: middleware.CurrentUserID(c)}
		if err := req.apply(&league); err != nil {
			return badRequest(c, err.Error())
		}
		if err := svc.CreateLeague(c.UserContext(), &league); err != nil {
			return respondError(c, err)
		}

		log.Info().Str("league_id", league.ID.String()).Str("name", league.Name).Msg("League created")
		return c.Status(fiber.StatusCreated).JSON(toLeagueResponse(league, nil))
	}
}

// UpdateLeague returns a handler for PUT /api/v1/leagues/:id (admin and manager only).
// The body replaces every editable field.
func UpdateLeague(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid league ID")
		}
		var req LeagueRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}

		league, err := svc.GetLeague(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		if err := req.apply(&league); err != nil {
			return badRequest(c, err.Error())
		}
		if err := svc.UpdateLeague(c.UserContext(), &league); err != nil {
			return respondError(c, err)
		}
		return c.JSON(toLeagueResponse(league, availabilityFor(c, svc, league)))
	}
}

// DeleteLeague returns a handler for DELETE /api/v1/leagues/:id (admin and manager only).
func DeleteLeague(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid league ID")
		}
		if err := svc.DeleteLeague(c.UserContext(), id); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetAvailability returns a handler for GET /api/v1/leagues/:id/availability.
func GetAvailability(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid league ID")
		}
		a, err := svc.Availability(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(a)
	}
}
