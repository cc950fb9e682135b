package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/metrics"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/notify"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/store"
)

// Promotion triggers, used as the metrics label.
const (
	TriggerManual = "manual"
	TriggerCancel = "cancellation"
	TriggerSweep  = "sweep"
)

// RegistrationView is a registration plus everything derived from it that callers show:
// the payment deadline, how much is still owed and where it sits on the waitlist.
type RegistrationView struct {
	Registration     models.Registration
	Deadline         *time.Time
	DeadlineDisplay  *string
	PaymentWindow    string // e.g. "2 days"; empty when the league has no relative window
	Outstanding      decimal.Decimal
	Overdue          bool
	DepositOverdue   bool
	WaitlistPosition int // 1-based; 0 when active
}

// DeadlineFor returns when a registration's payment is due.
//
// Waitlisted registrations owe nothing, so they have no deadline. Relative windows run
// from the moment the registration became active: creation for direct placements, the
// promotion time for registrations that came off the waitlist.
func DeadlineFor(reg models.Registration) *time.Time {
	if reg.Status != registration.StatusActive {
		return nil
	}
	base := reg.CreatedAt
	if reg.ActivatedAt != nil {
		base = *reg.ActivatedAt
	}
	return registration.ComputeDeadline(reg.League.Terms(), base)
}

// derive fills in everything computable from the registration alone. reg.League must
// be loaded.
func derive(reg models.Registration, now time.Time) RegistrationView {
	deadline := DeadlineFor(reg)
	v := RegistrationView{
		Registration:    reg,
		Deadline:        deadline,
		DeadlineDisplay: registration.FormatDeadlineForDisplay(deadline),
		Outstanding:     registration.Outstanding(reg.Payment.AmountDue, reg.Payment.AmountPaid),
	}
	terms := reg.League.Terms()
	v.Overdue = isOverdue(reg, deadline, now)
	if registration.UsesRelativeWindow(terms.Type) && terms.PaymentWindowHours != nil &&
		registration.ValidPaymentWindow(*terms.PaymentWindowHours) {
		v.PaymentWindow = registration.FormatDuration(*terms.PaymentWindowHours)
	}
	if reg.Status == registration.StatusActive {
		v.DepositOverdue = registration.DepositOverdue(terms, reg.Payment.AmountPaid, now)
	}
	return v
}

// isOverdue reports whether reg still owes money after its deadline. reg.League
// must be loaded.
func isOverdue(reg models.Registration, deadline *time.Time, now time.Time) bool {
	cutoff := registration.OverdueCutoff(reg.League.Terms(), deadline)
	return registration.IsOverdue(cutoff, reg.Payment.AmountDue, reg.Payment.AmountPaid, now)
}

// view derives a RegistrationView and looks up the waitlist position.
func (s *Service) view(ctx context.Context, reg models.Registration) (RegistrationView, error) {
	v := derive(reg, s.clock.Now())
	pos, err := s.store.WaitlistPosition(ctx, reg)
	if err != nil {
		return RegistrationView{}, err
	}
	v.WaitlistPosition = pos
	return v, nil
}

// Register places a new registration and announces it.
func (s *Service) Register(ctx context.Context, in store.RegisterInput) (RegistrationView, error) {
	in.Now = s.clock.Now().UTC()
	reg, err := s.store.Register(ctx, in)
	if err != nil {
		return RegistrationView{}, err
	}

	log.Info().
		Str("league_id", reg.LeagueID.String()).
		Str("registration_id", reg.ID.String()).
		Str("status", string(reg.Status)).
		Msg("Registration created")
	metrics.Registrations.WithLabelValues(string(reg.Status), string(reg.Mode)).Inc()

	s.refresh(ctx, reg.LeagueID)
	s.notifier.Send(ctx, s.event(notify.RegistrationCreated, reg))
	return s.view(ctx, reg)
}

// GetRegistration loads one registration with its derived values.
func (s *Service) GetRegistration(ctx context.Context, id uuid.UUID) (RegistrationView, error) {
	reg, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		return RegistrationView{}, err
	}
	return s.view(ctx, reg)
}

// ListRegistrations returns a league's registrations, oldest first, optionally filtered
// by status. Waitlist positions are computed from the listed rows, so they are exact
// whenever the filter includes the waitlist.
func (s *Service) ListRegistrations(ctx context.Context, leagueID uuid.UUID, status *registration.Status) ([]RegistrationView, error) {
	league, err := s.store.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	regs, err := s.store.ListRegistrations(ctx, leagueID, status)
	if err != nil {
		return nil, err
	}

	states := make([]registration.RegistrationState, 0, len(regs))
	for _, r := range regs {
		if r.Status == registration.StatusWaitlisted {
			states = append(states, r.State())
		}
	}

	now := s.clock.Now()
	views := make([]RegistrationView, 0, len(regs))
	for _, r := range regs {
		r.League = league
		v := derive(r, now)
		v.WaitlistPosition = registration.WaitlistPosition(states, r.ID)
		views = append(views, v)
	}
	return views, nil
}

// Cancel withdraws a registration. When it held an active spot, the head of the
// waitlist is promoted into it straight away.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (models.Registration, error) {
	reg, err := s.store.Cancel(ctx, id)
	if err != nil {
		return models.Registration{}, err
	}

	log.Info().
		Str("league_id", reg.LeagueID.String()).
		Str("registration_id", reg.ID.String()).
		Str("status", string(reg.Status)).
		Msg("Registration cancelled")
	metrics.Cancellations.WithLabelValues(string(reg.Status)).Inc()
	s.notifier.Send(ctx, s.event(notify.RegistrationCancelled, reg))

	if reg.Status == registration.StatusActive {
		if _, err := s.promoteNext(ctx, reg.LeagueID, TriggerCancel); err != nil {
			// The cancellation stands; the sweep will fill the spot later.
			log.Error().Err(err).Str("league_id", reg.LeagueID.String()).Msg("Promote after cancellation failed")
		}
	}
	s.refresh(ctx, reg.LeagueID)
	return reg, nil
}

// Promote moves a specific waitlisted registration to active. Promoting one that is
// already active returns it unchanged.
func (s *Service) Promote(ctx context.Context, id uuid.UUID) (RegistrationView, error) {
	reg, promoted, err := s.store.Promote(ctx, id, s.clock.Now().UTC())
	if err != nil {
		return RegistrationView{}, err
	}
	if promoted {
		s.promoted(ctx, reg, TriggerManual)
		s.refresh(ctx, reg.LeagueID)
	}
	return s.view(ctx, reg)
}

// PromoteNext promotes the head of a league's waitlist if a spot is free. It returns
// nil when nothing was promoted.
func (s *Service) PromoteNext(ctx context.Context, leagueID uuid.UUID) (*RegistrationView, error) {
	reg, err := s.promoteNext(ctx, leagueID, TriggerManual)
	if err != nil || reg == nil {
		return nil, err
	}
	s.refresh(ctx, leagueID)
	v, err := s.view(ctx, *reg)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Service) promoteNext(ctx context.Context, leagueID uuid.UUID, trigger string) (*models.Registration, error) {
	reg, err := s.store.PromoteNext(ctx, leagueID, s.clock.Now().UTC())
	if err != nil || reg == nil {
		return nil, err
	}
	s.promoted(ctx, *reg, trigger)
	return reg, nil
}

// promoted logs, counts and announces a promotion that has been committed.
func (s *Service) promoted(ctx context.Context, reg models.Registration, trigger string) {
	log.Info().
		Str("league_id", reg.LeagueID.String()).
		Str("registration_id", reg.ID.String()).
		Str("trigger", trigger).
		Str("amount_due", reg.Payment.AmountDue.StringFixed(2)).
		Msg("Registration promoted from waitlist")
	metrics.Promotions.WithLabelValues(trigger).Inc()
	s.notifier.Send(ctx, s.event(notify.RegistrationPromoted, reg))
}

// RecordPayment adds a payment to a registration.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (RegistrationView, error) {
	reg, err := s.store.RecordPayment(ctx, id, amount, s.clock.Now().UTC())
	if err != nil {
		return RegistrationView{}, err
	}
	log.Info().
		Str("registration_id", reg.ID.String()).
		Str("amount", amount.StringFixed(2)).
		Str("payment_status", string(reg.Payment.Status)).
		Msg("Payment recorded")
	s.notifier.Send(ctx, s.event(notify.PaymentRecorded, reg))
	return s.view(ctx, reg)
}

// event builds the notification body for reg. reg.League must be loaded for the deadline.
func (s *Service) event(kind string, reg models.Registration) notify.Event {
	return notify.Event{
		Type:           kind,
		LeagueID:       reg.LeagueID,
		RegistrationID: reg.ID,
		UserID:         reg.UserID,
		Status:         string(reg.Status),
		AmountDue:      reg.Payment.AmountDue.StringFixed(2),
		AmountPaid:     reg.Payment.AmountPaid.StringFixed(2),
		PaymentStatus:  string(reg.Payment.Status),
		Deadline:       DeadlineFor(reg),
		OccurredAt:     s.clock.Now().UTC(),
	}
}
