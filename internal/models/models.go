// Package models defines the data structures (models) that map to database tables.
// GORM uses these structs to generate SQL queries and map database rows back to Go values.
// The struct field tags (the backtick strings like `gorm:"..."`) tell GORM how to handle
// each field: its column type, constraints, default values, and relationships.
//
// The data model represents a sports-league registration platform where:
//   - Admins and managers create Leagues with a capacity, a cost and payment terms
//   - Users register for a League either as a team captain (with a roster) or as an individual
//   - Every Registration is either active (counted against capacity) or waitlisted
//   - Every Registration has exactly one Payment row tracking what is owed and paid
//
// The rules that decide placement, deadlines and promotion live in internal/registration;
// this package only describes how those values are stored.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
)

// --- Enums ---
// Go doesn't have a built-in enum keyword, so we simulate them using a named string type
// plus constants. The league/registration enums themselves are declared in the
// registration package and reused here so the database and the rules agree on spelling.

// UserRole represents a user's global permission level across the entire platform.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"   // Full access: manage users, leagues, registrations, payments
	UserRoleManager UserRole = "manager" // Can create and manage leagues and their registrations
	UserRoleUser    UserRole = "user"    // Regular player: can browse leagues and register
)

// --- Models ---
// Each struct below maps to a database table. GORM uses the struct name (snake_cased and
// pluralized) as the table name by default: User -> users, League -> leagues, etc.

// User represents a registered person in the system.
// Users are created automatically the first time an authenticated user hits the API.
// Subject is the "sub" claim of their access token and links our row to the identity provider.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Subject     string    `gorm:"uniqueIndex;not null"` // Token subject; unique per identity
	DisplayName string    `gorm:"not null"`
	Email       string    `gorm:"uniqueIndex;not null"`
	Role        UserRole  `gorm:"type:user_role;not null;default:'user'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// League is a season, tournament, drop-in session or skills clinic that people register for.
//
// RegistrationMode decides what Capacity counts: teams or individuals. LeagueType decides
// how the payment deadline is derived: a fixed ExplicitDueDate for regular seasons, or a
// relative PaymentWindowHours window for tournaments, skills & drills and single sessions.
type League struct {
	ID                 uuid.UUID                     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name               string                        `gorm:"not null"`
	Sport              string                        `gorm:"not null;default:''"`
	Description        *string                       // Optional long-form description; pointer = nullable
	RegistrationMode   registration.RegistrationMode `gorm:"type:registration_mode;not null"`
	Capacity           int                           `gorm:"not null"` // Max teams or max individuals, depending on RegistrationMode
	LeagueType         registration.LeagueType       `gorm:"type:league_type;not null"`
	TeamCost           decimal.Decimal               `gorm:"type:numeric(10,2);not null;default:0"` // Fee owed by an active team
	IndividualCost     decimal.Decimal               `gorm:"type:numeric(10,2);not null;default:0"` // Fee owed by an active individual
	ExplicitDueDate    *time.Time                    `gorm:"type:date"`                             // Fixed payment deadline for regular seasons
	DepositAmount      *decimal.Decimal              `gorm:"type:numeric(10,2)"`                    // Optional up-front deposit
	DepositDueDate     *time.Time                    `gorm:"type:date"`
	PaymentWindowHours *int                          // One of 24, 48, 72, 120, 168, 240, 336; nullable
	StartDate          *time.Time                    `gorm:"type:date"`
	EndDate            *time.Time                    `gorm:"type:date"`
	CreatedBy          uuid.UUID                     `gorm:"type:uuid;not null"`
	Creator            User                          `gorm:"foreignKey:CreatedBy"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Terms projects the columns the registration rules read.
func (l League) Terms() registration.LeagueTerms {
	return registration.LeagueTerms{
		Mode:               l.RegistrationMode,
		Capacity:           l.Capacity,
		Type:               l.LeagueType,
		TeamCost:           l.TeamCost,
		IndividualCost:     l.IndividualCost,
		ExplicitDueDate:    l.ExplicitDueDate,
		DepositAmount:      l.DepositAmount,
		DepositDueDate:     l.DepositDueDate,
		PaymentWindowHours: l.PaymentWindowHours,
	}
}

// Registration is one occupant of a league: either a team (UserID is the captain and
// Members is the roster) or an individual (UserID is the player).
//
// Mode is copied from the league when the row is created and never changes afterwards,
// so switching a league between team and individual mode does not reclassify history.
//
// Cancelling a registration soft-deletes it (DeletedAt). The partial unique index
// idx_registrations_league_user (see migrations) stops a user holding two live
// registrations in the same league.
type Registration struct {
	ID          uuid.UUID                     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LeagueID    uuid.UUID                     `gorm:"type:uuid;not null;index"`
	League      League                        `gorm:"foreignKey:LeagueID"`
	UserID      uuid.UUID                     `gorm:"type:uuid;not null"`
	User        User                          `gorm:"foreignKey:UserID"`
	Mode        registration.RegistrationMode `gorm:"type:registration_mode;not null"`
	TeamName    *string                       // Set for team registrations only
	Status      registration.Status           `gorm:"type:registration_status;not null"`
	ActivatedAt *time.Time                    // When the registration became active; base of relative payment windows
	Members     []TeamMember                  `gorm:"foreignKey:RegistrationID"`
	Payment     Payment                       `gorm:"foreignKey:RegistrationID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// State projects the columns the waitlist rules read.
func (r Registration) State() registration.RegistrationState {
	return registration.RegistrationState{
		ID:         r.ID,
		Mode:       r.Mode,
		Status:     r.Status,
		AmountDue:  r.Payment.AmountDue,
		AmountPaid: r.Payment.AmountPaid,
		CreatedAt:  r.CreatedAt,
	}
}

// Occupant projects the row the classifier reads. A team registration is its own team.
func (r Registration) Occupant() registration.OccupantRow {
	row := registration.OccupantRow{
		ID:      r.ID,
		Mode:    r.Mode,
		Status:  r.Status,
		Deleted: r.DeletedAt.Valid,
	}
	if r.Mode == registration.ModeTeam {
		id := r.ID
		row.TeamID = &id
	}
	return row
}

// TeamMember places a user on a team registration's roster.
// The composite primary key prevents listing the same user twice on one roster.
type TeamMember struct {
	RegistrationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	User           User      `gorm:"foreignKey:UserID"`
	CreatedAt      time.Time
}

// Payment tracks what a registration owes and has paid.
// AmountDue stays 0 while the registration is waitlisted and becomes the league's cost
// when it is promoted. AmountPaid only ever grows through recorded payments.
type Payment struct {
	ID                uuid.UUID                  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegistrationID    uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex"`
	AmountDue         decimal.Decimal            `gorm:"type:numeric(10,2);not null;default:0"`
	AmountPaid        decimal.Decimal            `gorm:"type:numeric(10,2);not null;default:0"`
	Status            registration.PaymentStatus `gorm:"type:payment_status;not null;default:'pending'"`
	OverdueNotifiedAt *time.Time                 // Set once the overdue notice has been sent
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}
