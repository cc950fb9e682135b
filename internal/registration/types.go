// Package registration holds the rules that decide where a registration lands
// in a league and what it owes: spots remaining, which occupants count toward
// capacity, when payment is due, and how a waitlisted registration is promoted.
//
// Everything in this package is pure. Callers fetch rows first, pass them in,
// and write the results back themselves; "now" is always an argument.
package registration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegistrationMode says whether a league fills up with teams or with individuals.
type RegistrationMode string

const (
	ModeTeam       RegistrationMode = "team"       // Capacity counts teams; a captain registers a roster
	ModeIndividual RegistrationMode = "individual" // Capacity counts single players
)

// Valid reports whether m is one of the known modes.
func (m RegistrationMode) Valid() bool {
	return m == ModeTeam || m == ModeIndividual
}

// LeagueType drives which payment deadline rules apply.
type LeagueType string

const (
	LeagueTypeRegularSeason LeagueType = "regular_season"
	LeagueTypeTournament    LeagueType = "tournament"
	LeagueTypeSkillsDrills  LeagueType = "skills_drills"
	LeagueTypeSingleSession LeagueType = "single_session"
)

// Valid reports whether t is one of the known league types.
func (t LeagueType) Valid() bool {
	switch t {
	case LeagueTypeRegularSeason, LeagueTypeTournament, LeagueTypeSkillsDrills, LeagueTypeSingleSession:
		return true
	}
	return false
}

// Status is where a registration sits relative to league capacity.
type Status string

const (
	StatusActive     Status = "active"     // Counted against capacity and owes its fee
	StatusWaitlisted Status = "waitlisted" // Recorded but not counted; owes nothing yet
)

// PaymentStatus summarises how much of the amount due has been paid.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// LeagueTerms is the slice of a league's configuration the deadline and
// promotion rules read. Optional fields are pointers; nil means "not set".
type LeagueTerms struct {
	Mode               RegistrationMode
	Capacity           int
	Type               LeagueType
	TeamCost           decimal.Decimal
	IndividualCost     decimal.Decimal
	ExplicitDueDate    *time.Time
	DepositAmount      *decimal.Decimal
	DepositDueDate     *time.Time
	PaymentWindowHours *int
}

// CostFor returns the fee an active registration recorded under mode owes.
func (t LeagueTerms) CostFor(mode RegistrationMode) decimal.Decimal {
	if mode == ModeTeam {
		return t.TeamCost
	}
	return t.IndividualCost
}

// RegistrationState is the mutable part of a registration that placement and
// promotion reason about.
type RegistrationState struct {
	ID         uuid.UUID
	Mode       RegistrationMode // Mode recorded when the registration was created
	Status     Status
	AmountDue  decimal.Decimal
	AmountPaid decimal.Decimal
	CreatedAt  time.Time
}
