// Package store is the data-access layer: every read and write against Postgres goes
// through a *Store so handlers, jobs and the CLI share the same queries.
//
// Occupancy-sensitive writes (register, promote, cancel) run in a transaction that first
// locks the league row (SELECT ... FOR UPDATE). Locking the league before any registration
// row serialises concurrent registrations for the same league, so the occupancy the
// placement rules see is a consistent snapshot, and keeps lock order identical across
// operations so they cannot deadlock each other.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyRegistered = errors.New("already registered for this league")
	ErrLeagueFull        = errors.New("league is full")
	ErrNotWaitlisted     = errors.New("registration is not waitlisted")
	ErrTeamNameRequired  = errors.New("team name is required for team leagues")
	ErrInvalidAmount     = errors.New("payment amount must be positive")
)

// Store wraps a *gorm.DB. It is safe for concurrent use because *gorm.DB is.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping checks the underlying connection (used by the health check).
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// notFound maps gorm.ErrRecordNotFound onto ErrNotFound and wraps anything else.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// lockLeague loads a league and holds its row lock until tx ends.
func lockLeague(tx *gorm.DB, leagueID uuid.UUID) (models.League, error) {
	var league models.League
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&league, "id = ?", leagueID).Error
	if err != nil {
		return models.League{}, notFound(err, "league")
	}
	return league, nil
}

// liveRegistrations loads every non-cancelled registration of a league with its payment,
// oldest first.
func liveRegistrations(tx *gorm.DB, leagueID uuid.UUID) ([]models.Registration, error) {
	var regs []models.Registration
	err := tx.Preload("Payment").
		Where("league_id = ?", leagueID).
		Order("created_at ASC, id ASC").
		Find(&regs).Error
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}
	return regs, nil
}

// Snapshot is a league with its live registrations, read in one go.
type Snapshot struct {
	League        models.League
	Registrations []models.Registration
}

// Occupants projects the registrations for the classifier.
func (s Snapshot) Occupants() []registration.OccupantRow {
	rows := make([]registration.OccupantRow, 0, len(s.Registrations))
	for _, r := range s.Registrations {
		rows = append(rows, r.Occupant())
	}
	return rows
}

// States projects the registrations for the waitlist rules.
func (s Snapshot) States() []registration.RegistrationState {
	states := make([]registration.RegistrationState, 0, len(s.Registrations))
	for _, r := range s.Registrations {
		states = append(states, r.State())
	}
	return states
}

// Occupancy is the number of active occupants counted against the league's capacity.
func (s Snapshot) Occupancy() int {
	return registration.CountOccupancy(s.League.RegistrationMode, s.Occupants())
}

// Tally splits occupants by their recorded mode and counts the waitlist.
func (s Snapshot) Tally() registration.OccupancyTally {
	return registration.Tally(s.Occupants())
}

// LoadSnapshot reads a league and its live registrations without locking.
func (s *Store) LoadSnapshot(ctx context.Context, leagueID uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&snap.League, "id = ?", leagueID).Error; err != nil {
			return notFound(err, "league")
		}
		regs, err := liveRegistrations(tx, leagueID)
		if err != nil {
			return err
		}
		snap.Registrations = regs
		return nil
	})
	return snap, err
}
