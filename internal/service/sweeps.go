package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/metrics"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/notify"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
)

// SweepWaitlists fills free spots in every league that has a waitlist, promoting in FIFO
// order until each league is full or its waitlist is empty. It returns how many
// registrations were promoted. A failing league is logged and skipped; the joined
// errors are returned after every league has been tried.
func (s *Service) SweepWaitlists(ctx context.Context) (int, error) {
	leagueIDs, err := s.store.LeaguesWithWaitlist(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	var errs []error
	for _, leagueID := range leagueIDs {
		promotedHere := 0
		for {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			reg, err := s.promoteNext(ctx, leagueID, TriggerSweep)
			if err != nil {
				log.Error().Err(err).Str("league_id", leagueID.String()).Msg("Waitlist sweep failed")
				errs = append(errs, fmt.Errorf("league %s: %w", leagueID, err))
				break
			}
			if reg == nil {
				break
			}
			promotedHere++
		}
		if promotedHere > 0 {
			total += promotedHere
			s.refresh(ctx, leagueID)
		}
	}
	return total, errors.Join(errs...)
}

// SweepOverduePayments publishes a payment.overdue notice for every active registration
// whose deadline has passed without full payment. Each payment is noticed at most once,
// even when several sweeps overlap. It returns how many notices were sent.
func (s *Service) SweepOverduePayments(ctx context.Context) (int, error) {
	regs, err := s.store.ListUnpaidActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now().UTC()
	sent := 0
	var errs []error
	for _, reg := range regs {
		if !isOverdue(reg, DeadlineFor(reg), now) {
			continue
		}
		marked, err := s.store.MarkOverdueNotified(ctx, reg.Payment.ID, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !marked {
			continue
		}
		log.Info().
			Str("league_id", reg.LeagueID.String()).
			Str("registration_id", reg.ID.String()).
			Str("outstanding", registration.Outstanding(reg.Payment.AmountDue, reg.Payment.AmountPaid).StringFixed(2)).
			Msg("Payment overdue")
		metrics.OverdueNotices.Inc()
		s.notifier.Send(ctx, s.event(notify.PaymentOverdue, reg))
		sent++
	}
	return sent, errors.Join(errs...)
}
