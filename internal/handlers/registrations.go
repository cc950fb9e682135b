package handlers

// registrations.go: registering for a league, the waitlist and payments.
//
// A registration is either active (holding one of the league's spots and owing the
// league's fee) or waitlisted (owing nothing until promoted). Team leagues take a
// team name and roster from the captain; individual leagues take just the player.

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/middleware"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/service"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/store"
)

// PaymentResponse is a registration's money state. Amounts are fixed two-decimal strings.
type PaymentResponse struct {
	AmountDue   string `json:"amount_due"`
	AmountPaid  string `json:"amount_paid"`
	Outstanding string `json:"outstanding"`
	Status      string `json:"status"` // "pending", "partial" or "paid"
}

// RegistrationResponse is what we send back for a registration.
type RegistrationResponse struct {
	ID                     string          `json:"id"`
	LeagueID               string          `json:"league_id"`
	UserID                 string          `json:"user_id"`
	PlayerName             string          `json:"player_name,omitempty"`
	Mode                   string          `json:"mode"`
	TeamName               *string         `json:"team_name"`
	MemberIDs              []string        `json:"member_ids"`
	Status                 string          `json:"status"`            // "active" or "waitlisted"
	WaitlistPosition       *int            `json:"waitlist_position"` // 1-based; null when active
	Payment                PaymentResponse `json:"payment"`
	PaymentDeadline        *string         `json:"payment_deadline"`         // RFC 3339; null when nothing is due by a date
	PaymentDeadlineDisplay *string         `json:"payment_deadline_display"` // "August 3, 2025"
	PaymentWindow          *string         `json:"payment_window"`           // "2 days"; null for fixed-date leagues
	Overdue                bool            `json:"overdue"`
	DepositOverdue         bool            `json:"deposit_overdue"`
	ActivatedAt            *string         `json:"activated_at"`
	CreatedAt              string          `json:"created_at"`
}

// RegisterRequest is the JSON body for POST /api/v1/leagues/:id/registrations.
// Individual leagues need no body at all.
type RegisterRequest struct {
	TeamName  *string  `json:"team_name"`  // Required for team leagues
	MemberIDs []string `json:"member_ids"` // Other players on the roster (user UUIDs)
}

// PaymentRequest is the JSON body for POST /api/v1/registrations/:id/payments.
type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func toRegistrationResponse(v service.RegistrationView) RegistrationResponse {
	reg := v.Registration
	members := make([]string, 0, len(reg.Members))
	for _, m := range reg.Members {
		members = append(members, m.UserID.String())
	}

	resp := RegistrationResponse{
		ID:                     reg.ID.String(),
		LeagueID:               reg.LeagueID.String(),
		UserID:                 reg.UserID.String(),
		PlayerName:             reg.User.DisplayName,
		Mode:                   string(reg.Mode),
		TeamName:               reg.TeamName,
		MemberIDs:              members,
		Status:                 string(reg.Status),
		PaymentDeadline:        formatOptionalTime(v.Deadline),
		PaymentDeadlineDisplay: v.DeadlineDisplay,
		Overdue:                v.Overdue,
		DepositOverdue:         v.DepositOverdue,
		ActivatedAt:            formatOptionalTime(reg.ActivatedAt),
		CreatedAt:              reg.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Payment: PaymentResponse{
			AmountDue:   reg.Payment.AmountDue.StringFixed(2),
			AmountPaid:  reg.Payment.AmountPaid.StringFixed(2),
			Outstanding: v.Outstanding.StringFixed(2),
			Status:      string(reg.Payment.Status),
		},
	}
	if v.WaitlistPosition > 0 {
		pos := v.WaitlistPosition
		resp.WaitlistPosition = &pos
	}
	if v.PaymentWindow != "" {
		label := v.PaymentWindow
		resp.PaymentWindow = &label
	}
	return resp
}

// canSee reports whether the caller may read reg: staff, the registrant, or anyone on
// the team's roster.
func canSee(c *fiber.Ctx, reg models.Registration) bool {
	if middleware.IsStaff(c) {
		return true
	}
	me := middleware.CurrentUserID(c)
	if reg.UserID == me {
		return true
	}
	for _, m := range reg.Members {
		if m.UserID == me {
			return true
		}
	}
	return false
}

// canCancel reports whether the caller may cancel reg: the registrant or an admin.
func canCancel(c *fiber.Ctx, reg models.Registration) bool {
	return middleware.CurrentRole(c) == models.UserRoleAdmin || reg.UserID == middleware.CurrentUserID(c)
}

// Register returns a handler for POST /api/v1/leagues/:id/registrations.
// The caller registers themselves (or, for team leagues, their team with them as
// captain). A full league still accepts the registration, onto the waitlist.
func Register(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		leagueID, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid league ID")
		}

		var req RegisterRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid request body")
			}
		}
		members := make([]uuid.UUID, 0, len(req.MemberIDs))
		for _, raw := range req.MemberIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				return badRequest(c, "member_ids must be user IDs")
			}
			members = append(members, id)
		}

		v, err := svc.Register(c.UserContext(), store.RegisterInput{
			LeagueID:  leagueID,
			UserID:    middleware.CurrentUserID(c),
			TeamName:  req.TeamName,
			MemberIDs: members,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(toRegistrationResponse(v))
	}
}

// GetLeagueRegistrations returns a handler for GET /api/v1/leagues/:id/registrations
// (admin and manager only). Optional ?status=active or ?status=waitlisted.
func GetLeagueRegistrations(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		leagueID, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid league ID")
		}

		var status *registration.Status
		if raw := c.Query("status"); raw != "" {
			s := registration.Status(raw)
			if s != registration.StatusActive && s != registration.StatusWaitlisted {
				return badRequest(c, "status must be 'active' or 'waitlisted'")
			}
			status = &s
		}

		views, err := svc.ListRegistrations(c.UserContext(), leagueID, status)
		if err != nil {
			return respondError(c, err)
		}
		resp := make([]RegistrationResponse, 0, len(views))
		for _, v := range views {
			resp = append(resp, toRegistrationResponse(v))
		}
		return c.JSON(resp)
	}
}

// GetRegistration returns a handler for GET /api/v1/registrations/:id.
func GetRegistration(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid registration ID")
		}
		v, err := svc.GetRegistration(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		if !canSee(c, v.Registration) {
			return forbidden(c)
		}
		return c.JSON(toRegistrationResponse(v))
	}
}

// CancelRegistration returns a handler for DELETE /api/v1/registrations/:id.
// Cancelling an active registration frees its spot for the head of the waitlist.
func CancelRegistration(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid registration ID")
		}
		v, err := svc.GetRegistration(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		if !canCancel(c, v.Registration) {
			return forbidden(c)
		}
		if _, err := svc.Cancel(c.UserContext(), id); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// PromoteRegistration returns a handler for POST /api/v1/registrations/:id/promote
// (admin and manager only). 409 when the league has no free spot.
func PromoteRegistration(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid registration ID")
		}
		v, err := svc.Promote(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(toRegistrationResponse(v))
	}
}

// PromoteNext returns a handler for POST /api/v1/leagues/:id/waitlist/promote-next
// (admin and manager only). 204 when the league is full or nobody is waiting.
func PromoteNext(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		leagueID, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid league ID")
		}
		v, err := svc.PromoteNext(c.UserContext(), leagueID)
		if err != nil {
			return respondError(c, err)
		}
		if v == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(toRegistrationResponse(*v))
	}
}

// RecordPayment returns a handler for POST /api/v1/registrations/:id/payments
// (admin and manager only).
func RecordPayment(svc Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "invalid registration ID")
		}
		var req PaymentRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		v, err := svc.RecordPayment(c.UserContext(), id, req.Amount)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(toRegistrationResponse(v))
	}
}
