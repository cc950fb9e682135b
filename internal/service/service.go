// Package service ties the registration rules to the outside world: it asks the store to
// place, promote and cancel registrations, then refreshes the availability cache, pushes
// live updates, publishes notifications and records metrics.
//
// "Now" always comes from an injected clockwork.Clock so tests can pin time.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/cache"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/notify"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/store"
)

// Store is the subset of *store.Store the service uses.
type Store interface {
	CreateLeague(ctx context.Context, league *models.League) error
	GetLeague(ctx context.Context, id uuid.UUID) (models.League, error)
	ListLeagues(ctx context.Context, filter store.LeagueFilter) ([]models.League, error)
	UpdateLeague(ctx context.Context, league *models.League) error
	DeleteLeague(ctx context.Context, id uuid.UUID) error
	LeaguesWithWaitlist(ctx context.Context) ([]uuid.UUID, error)

	LoadSnapshot(ctx context.Context, leagueID uuid.UUID) (store.Snapshot, error)
	Register(ctx context.Context, in store.RegisterInput) (models.Registration, error)
	GetRegistration(ctx context.Context, id uuid.UUID) (models.Registration, error)
	ListRegistrations(ctx context.Context, leagueID uuid.UUID, status *registration.Status) ([]models.Registration, error)
	WaitlistPosition(ctx context.Context, reg models.Registration) (int, error)
	Cancel(ctx context.Context, id uuid.UUID) (models.Registration, error)
	Promote(ctx context.Context, id uuid.UUID, now time.Time) (models.Registration, bool, error)
	PromoteNext(ctx context.Context, leagueID uuid.UUID, now time.Time) (*models.Registration, error)
	RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal, now time.Time) (models.Registration, error)
	ListUnpaidActive(ctx context.Context) ([]models.Registration, error)
	MarkOverdueNotified(ctx context.Context, paymentID uuid.UUID, now time.Time) (bool, error)
}

// Broadcaster pushes a payload to everyone watching a league (implemented by *live.Hub).
type Broadcaster interface {
	Publish(leagueID string, data []byte) bool
}

// ErrInvalidLeague wraps every league validation failure.
var ErrInvalidLeague = errors.New("invalid league")

// Options carries the optional collaborators. Zero values fall back to no-op versions
// and the real clock.
type Options struct {
	Cache    cache.AvailabilityCache
	Notifier *notify.Notifier
	Hub      Broadcaster
	Clock    clockwork.Clock
}

// Service is safe for concurrent use.
type Service struct {
	store    Store
	cache    cache.AvailabilityCache
	notifier *notify.Notifier
	hub      Broadcaster
	clock    clockwork.Clock
}

// New builds a Service over st.
func New(st Store, opts Options) *Service {
	s := &Service{
		store:    st,
		cache:    opts.Cache,
		notifier: opts.Notifier,
		hub:      opts.Hub,
		clock:    opts.Clock,
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.notifier == nil {
		s.notifier = notify.NewNotifier(nil)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	return s
}

// Now is the service's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// --- Leagues ---

// ValidateLeague checks the invariants of a league's configuration.
func ValidateLeague(l models.League) error {
	switch {
	case strings.TrimSpace(l.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidLeague)
	case !l.RegistrationMode.Valid():
		return fmt.Errorf("%w: registration_mode must be 'team' or 'individual'", ErrInvalidLeague)
	case !l.LeagueType.Valid():
		return fmt.Errorf("%w: league_type must be regular_season, tournament, skills_drills or single_session", ErrInvalidLeague)
	case l.Capacity < 0:
		return fmt.Errorf("%w: capacity must not be negative", ErrInvalidLeague)
	case l.TeamCost.IsNegative() || l.IndividualCost.IsNegative():
		return fmt.Errorf("%w: costs must not be negative", ErrInvalidLeague)
	case l.PaymentWindowHours != nil && !registration.ValidPaymentWindow(*l.PaymentWindowHours):
		return fmt.Errorf("%w: payment_window_hours must be one of %v", ErrInvalidLeague, registration.PaymentWindowOptions())
	case l.DepositAmount != nil && l.DepositAmount.IsNegative():
		return fmt.Errorf("%w: deposit_amount must not be negative", ErrInvalidLeague)
	case l.StartDate != nil && l.EndDate != nil && l.EndDate.Before(*l.StartDate):
		return fmt.Errorf("%w: end_date is before start_date", ErrInvalidLeague)
	}
	return nil
}

// CreateLeague validates and stores a new league.
func (s *Service) CreateLeague(ctx context.Context, league *models.League) error {
	if err := ValidateLeague(*league); err != nil {
		return err
	}
	return s.store.CreateLeague(ctx, league)
}

// UpdateLeague validates and saves a league, then refreshes its availability since the
// capacity or mode may have changed.
func (s *Service) UpdateLeague(ctx context.Context, league *models.League) error {
	if err := ValidateLeague(*league); err != nil {
		return err
	}
	if err := s.store.UpdateLeague(ctx, league); err != nil {
		return err
	}
	s.refresh(ctx, league.ID)
	return nil
}

// DeleteLeague removes a league.
func (s *Service) DeleteLeague(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteLeague(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.Warn().Err(err).Str("league_id", id.String()).Msg("Availability cache invalidate failed")
	}
	return nil
}

// GetLeague loads one league.
func (s *Service) GetLeague(ctx context.Context, id uuid.UUID) (models.League, error) {
	return s.store.GetLeague(ctx, id)
}

// ListLeagues lists leagues matching filter.
func (s *Service) ListLeagues(ctx context.Context, filter store.LeagueFilter) ([]models.League, error) {
	return s.store.ListLeagues(ctx, filter)
}

// --- Availability ---

// Availability returns the league's capacity view, from cache when possible.
func (s *Service) Availability(ctx context.Context, leagueID uuid.UUID) (cache.Availability, error) {
	if a, err := s.cache.Get(ctx, leagueID); err == nil {
		return a, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Str("league_id", leagueID.String()).Msg("Availability cache read failed")
	}

	a, err := s.computeAvailability(ctx, leagueID)
	if err != nil {
		return cache.Availability{}, err
	}
	if err := s.cache.Set(ctx, a); err != nil {
		log.Warn().Err(err).Str("league_id", leagueID.String()).Msg("Availability cache write failed")
	}
	return a, nil
}

func (s *Service) computeAvailability(ctx context.Context, leagueID uuid.UUID) (cache.Availability, error) {
	snap, err := s.store.LoadSnapshot(ctx, leagueID)
	if err != nil {
		return cache.Availability{}, err
	}
	return availabilityOf(snap, s.clock.Now()), nil
}

// availabilityOf derives the availability view from a snapshot.
func availabilityOf(snap store.Snapshot, now time.Time) cache.Availability {
	occupancy := snap.Occupancy()
	avail := registration.ComputeAvailability(snap.League.Capacity, occupancy)
	return cache.Availability{
		LeagueID:       snap.League.ID,
		Capacity:       snap.League.Capacity,
		Occupancy:      occupancy,
		SpotsRemaining: avail.SpotsRemaining,
		Bucket:         string(avail.Bucket),
		Waitlisted:     snap.Tally().Waitlisted,
		ComputedAt:     now.UTC(),
	}
}

// refresh recomputes a league's availability after a write, stores it in the cache and
// pushes it to live subscribers. Failures are logged; the write already succeeded.
func (s *Service) refresh(ctx context.Context, leagueID uuid.UUID) {
	logger := log.With().Str("league_id", leagueID.String()).Logger()

	if err := s.cache.Invalidate(ctx, leagueID); err != nil {
		logger.Warn().Err(err).Msg("Availability cache invalidate failed")
	}
	a, err := s.computeAvailability(ctx, leagueID)
	if err != nil {
		logger.Warn().Err(err).Msg("Availability refresh failed")
		return
	}
	if err := s.cache.Set(ctx, a); err != nil {
		logger.Warn().Err(err).Msg("Availability cache write failed")
	}
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(a)
	if err != nil {
		logger.Error().Err(err).Msg("Encode availability update")
		return
	}
	if !s.hub.Publish(leagueID.String(), payload) {
		logger.Debug().Msg("Live update dropped, hub queue full")
	}
}
