package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
)

// RegisterInput describes a new registration. For team leagues UserID is the captain,
// TeamName is required and MemberIDs is the rest of the roster.
type RegisterInput struct {
	LeagueID  uuid.UUID
	UserID    uuid.UUID
	TeamName  *string
	MemberIDs []uuid.UUID
	Now       time.Time
}

// Register places a new registration in a league.
//
// Inside one transaction it locks the league, counts occupancy from the live rows,
// decides active vs waitlisted and writes the registration, roster and payment. The
// returned registration is re-read after commit, so what the caller sees is what the
// database holds rather than what this process intended to write.
func (s *Store) Register(ctx context.Context, in RegisterInput) (models.Registration, error) {
	var regID uuid.UUID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		league, err := lockLeague(tx, in.LeagueID)
		if err != nil {
			return err
		}

		mode := league.RegistrationMode
		var teamName *string
		if mode == registration.ModeTeam {
			if in.TeamName == nil || strings.TrimSpace(*in.TeamName) == "" {
				return ErrTeamNameRequired
			}
			name := strings.TrimSpace(*in.TeamName)
			teamName = &name
		}

		regs, err := liveRegistrations(tx, league.ID)
		if err != nil {
			return err
		}
		occupancy := Snapshot{League: league, Registrations: regs}.Occupancy()
		status := registration.DecidePlacement(league.Capacity, occupancy)

		reg := models.Registration{
			LeagueID:  league.ID,
			UserID:    in.UserID,
			Mode:      mode,
			TeamName:  teamName,
			Status:    status,
			CreatedAt: in.Now,
			UpdatedAt: in.Now,
		}
		if status == registration.StatusActive {
			activated := in.Now
			reg.ActivatedAt = &activated
		}
		if err := tx.Omit(clause.Associations).Create(&reg).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRegistered
			}
			return fmt.Errorf("create registration: %w", err)
		}

		if mode == registration.ModeTeam {
			members := rosterFor(reg.ID, in.UserID, in.MemberIDs, in.Now)
			if err := tx.Omit(clause.Associations).Create(&members).Error; err != nil {
				return fmt.Errorf("create roster: %w", err)
			}
		}

		due := registration.InitialAmountDue(status, league.Terms().CostFor(mode))
		payment := models.Payment{
			RegistrationID: reg.ID,
			AmountDue:      due,
			AmountPaid:     decimal.Zero,
			Status:         registration.PaymentStatusFor(due, decimal.Zero),
			CreatedAt:      in.Now,
			UpdatedAt:      in.Now,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		regID = reg.ID
		return nil
	})
	if err != nil {
		return models.Registration{}, err
	}
	return s.GetRegistration(ctx, regID)
}

// rosterFor builds roster rows with the captain first and duplicates dropped.
func rosterFor(regID, captain uuid.UUID, memberIDs []uuid.UUID, now time.Time) []models.TeamMember {
	seen := map[uuid.UUID]bool{captain: true}
	members := []models.TeamMember{{RegistrationID: regID, UserID: captain, CreatedAt: now}}
	for _, id := range memberIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, models.TeamMember{RegistrationID: regID, UserID: id, CreatedAt: now})
	}
	return members
}

// GetRegistration loads a live registration with its league, payment and roster.
func (s *Store) GetRegistration(ctx context.Context, id uuid.UUID) (models.Registration, error) {
	var reg models.Registration
	err := s.db.WithContext(ctx).
		Preload("League").
		Preload("Payment").
		Preload("Members").
		First(&reg, "id = ?", id).Error
	if err != nil {
		return models.Registration{}, notFound(err, "registration")
	}
	return reg, nil
}

// ListRegistrations returns a league's live registrations, oldest first, optionally
// restricted to one status.
func (s *Store) ListRegistrations(ctx context.Context, leagueID uuid.UUID, status *registration.Status) ([]models.Registration, error) {
	query := s.db.WithContext(ctx).
		Preload("User").
		Preload("Payment").
		Preload("Members").
		Where("league_id = ?", leagueID).
		Order("created_at ASC, id ASC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var regs []models.Registration
	if err := query.Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// WaitlistPosition returns the 1-based FIFO position of a registration in its league's
// waitlist, or 0 when it is not waitlisted.
func (s *Store) WaitlistPosition(ctx context.Context, reg models.Registration) (int, error) {
	if reg.Status != registration.StatusWaitlisted {
		return 0, nil
	}
	waitlisted := registration.StatusWaitlisted
	regs, err := s.ListRegistrations(ctx, reg.LeagueID, &waitlisted)
	if err != nil {
		return 0, err
	}
	states := make([]registration.RegistrationState, 0, len(regs))
	for _, r := range regs {
		states = append(states, r.State())
	}
	return registration.WaitlistPosition(states, reg.ID), nil
}

// Cancel soft-deletes a registration and its payment. The roster rows are kept for
// history. The registration as it was before cancellation is returned.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID) (models.Registration, error) {
	var cancelled models.Registration

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reg models.Registration
		if err := tx.Preload("Payment").First(&reg, "id = ?", id).Error; err != nil {
			return notFound(err, "registration")
		}
		if _, err := lockLeague(tx, reg.LeagueID); err != nil {
			return err
		}

		if err := tx.Delete(&models.Payment{}, "registration_id = ?", reg.ID).Error; err != nil {
			return fmt.Errorf("cancel payment: %w", err)
		}
		res := tx.Delete(&models.Registration{}, "id = ?", reg.ID)
		if res.Error != nil {
			return fmt.Errorf("cancel registration: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Cancelled concurrently between the read and the lock.
			return fmt.Errorf("registration: %w", ErrNotFound)
		}

		cancelled = reg
		return nil
	})
	return cancelled, err
}

// Promote moves one waitlisted registration to active, if the league has a free spot.
// Promoting an already active registration is a no-op that returns it unchanged with
// promoted == false, so retries are safe.
func (s *Store) Promote(ctx context.Context, id uuid.UUID, now time.Time) (reg models.Registration, promoted bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Registration
		if err := tx.First(&current, "id = ?", id).Error; err != nil {
			return notFound(err, "registration")
		}
		league, err := lockLeague(tx, current.LeagueID)
		if err != nil {
			return err
		}
		regs, err := liveRegistrations(tx, league.ID)
		if err != nil {
			return err
		}

		var target *models.Registration
		for i := range regs {
			if regs[i].ID == id {
				target = &regs[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("registration: %w", ErrNotFound)
		}
		if target.Status == registration.StatusActive {
			return nil
		}

		snap := Snapshot{League: league, Registrations: regs}
		if registration.ComputeAvailability(league.Capacity, snap.Occupancy()).SpotsRemaining == 0 {
			return ErrLeagueFull
		}
		if err := applyPromotion(tx, league, *target, now); err != nil {
			return err
		}
		promoted = true
		return nil
	})
	if err != nil {
		return models.Registration{}, false, err
	}
	reg, err = s.GetRegistration(ctx, id)
	return reg, promoted, err
}

// PromoteNext promotes the head of a league's waitlist (FIFO by creation time) when a
// spot is free. It returns nil when the league is full or nobody is waiting.
func (s *Store) PromoteNext(ctx context.Context, leagueID uuid.UUID, now time.Time) (*models.Registration, error) {
	var promotedID uuid.UUID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		league, err := lockLeague(tx, leagueID)
		if err != nil {
			return err
		}
		regs, err := liveRegistrations(tx, league.ID)
		if err != nil {
			return err
		}

		snap := Snapshot{League: league, Registrations: regs}
		next, ok := registration.NextToPromoteIn(league.RegistrationMode, snap.States(), league.Capacity, snap.Occupancy())
		if !ok {
			return nil
		}
		for _, r := range regs {
			if r.ID == next.ID {
				if err := applyPromotion(tx, league, r, now); err != nil {
					return err
				}
				promotedID = r.ID
				return nil
			}
		}
		return nil
	})
	if err != nil || promotedID == uuid.Nil {
		return nil, err
	}

	reg, err := s.GetRegistration(ctx, promotedID)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// applyPromotion writes the result of registration.OnPromote for one waitlisted row.
func applyPromotion(tx *gorm.DB, league models.League, reg models.Registration, now time.Time) error {
	if reg.Status != registration.StatusWaitlisted {
		return ErrNotWaitlisted
	}
	next := registration.OnPromote(reg.State(), league.Terms())

	res := tx.Model(&models.Registration{}).
		Where("id = ? AND status = ?", reg.ID, registration.StatusWaitlisted).
		Updates(map[string]any{
			"status":       next.Status,
			"activated_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("promote registration: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotWaitlisted
	}

	err := tx.Model(&models.Payment{}).
		Where("registration_id = ?", reg.ID).
		Updates(map[string]any{
			"amount_due": next.AmountDue,
			"status":     registration.PaymentStatusFor(next.AmountDue, next.AmountPaid),
			"updated_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("set amount due: %w", err)
	}
	return nil
}

// RecordPayment adds amount to what a registration has paid and recomputes the status.
func (s *Store) RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal, now time.Time) (models.Registration, error) {
	if !amount.IsPositive() {
		return models.Registration{}, ErrInvalidAmount
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, "registration_id = ?", id).Error
		if err != nil {
			return notFound(err, "payment")
		}

		paid := payment.AmountPaid.Add(amount)
		return tx.Model(&payment).Updates(map[string]any{
			"amount_paid": paid,
			"status":      registration.PaymentStatusFor(payment.AmountDue, paid),
			"updated_at":  now,
		}).Error
	})
	if err != nil {
		return models.Registration{}, err
	}
	return s.GetRegistration(ctx, id)
}

// ListUnpaidActive returns active registrations that still owe money and whose
// overdue notice has not been sent yet, with league and payment loaded.
func (s *Store) ListUnpaidActive(ctx context.Context) ([]models.Registration, error) {
	var regs []models.Registration
	err := s.db.WithContext(ctx).
		Preload("League").
		Preload("Payment").
		Joins("JOIN payments ON payments.registration_id = registrations.id AND payments.deleted_at IS NULL").
		Where("registrations.status = ?", registration.StatusActive).
		Where("payments.status <> ? AND payments.overdue_notified_at IS NULL", registration.PaymentPaid).
		Where("payments.amount_due > payments.amount_paid").
		Order("registrations.created_at ASC").
		Find(&regs).Error
	if err != nil {
		return nil, fmt.Errorf("list unpaid registrations: %w", err)
	}
	return regs, nil
}

// MarkOverdueNotified records that the overdue notice for a payment went out. It reports
// false when another sweep already marked it, so each notice is sent once.
func (s *Store) MarkOverdueNotified(ctx context.Context, paymentID uuid.UUID, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND overdue_notified_at IS NULL", paymentID).
		Update("overdue_notified_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("mark overdue notified: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
