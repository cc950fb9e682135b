package registration

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DecidePlacement places a new registration given the occupancy counted
// before it. The count must come from a consistent snapshot; serialising
// concurrent registrations is the store's job.
func DecidePlacement(capacity, occupancyBefore int) Status {
	if occupancyBefore < capacity {
		return StatusActive
	}
	return StatusWaitlisted
}

// InitialAmountDue is what a fresh registration owes: nothing while waitlisted.
func InitialAmountDue(status Status, cost decimal.Decimal) decimal.Decimal {
	if status == StatusWaitlisted {
		return decimal.Zero
	}
	return cost
}

// OnPromote moves a waitlisted registration to active and sets the fee for
// its recorded mode. AmountPaid is never touched. Promoting an active
// registration returns it unchanged so retried promotions cannot double-charge.
func OnPromote(reg RegistrationState, terms LeagueTerms) RegistrationState {
	if reg.Status == StatusActive {
		return reg
	}
	reg.Status = StatusActive
	reg.AmountDue = terms.CostFor(reg.Mode)
	return reg
}

// OrderWaitlist sorts waitlisted registrations first-in first-out, breaking
// ties on creation time by id. Active registrations are dropped.
func OrderWaitlist(regs []RegistrationState) []RegistrationState {
	out := make([]RegistrationState, 0, len(regs))
	for _, r := range regs {
		if r.Status == StatusWaitlisted {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

// WaitlistPosition returns the 1-based FIFO position of id among regs, or 0
// when id is not waitlisted.
func WaitlistPosition(regs []RegistrationState, id uuid.UUID) int {
	for i, r := range OrderWaitlist(regs) {
		if r.ID == id {
			return i + 1
		}
	}
	return 0
}

// NextToPromote returns the head of the waitlist when a spot is free.
func NextToPromote(regs []RegistrationState, capacity, occupancy int) (RegistrationState, bool) {
	if ComputeAvailability(capacity, occupancy).SpotsRemaining == 0 {
		return RegistrationState{}, false
	}
	queue := OrderWaitlist(regs)
	if len(queue) == 0 {
		return RegistrationState{}, false
	}
	return queue[0], true
}

// NextToPromoteIn is NextToPromote restricted to rows recorded under mode.
// After a league changes mode, rows waiting under the old mode would not take
// up a spot once active, so only staff can promote them explicitly.
func NextToPromoteIn(mode RegistrationMode, regs []RegistrationState, capacity, occupancy int) (RegistrationState, bool) {
	same := make([]RegistrationState, 0, len(regs))
	for _, r := range regs {
		if r.Mode == mode {
			same = append(same, r)
		}
	}
	return NextToPromote(same, capacity, occupancy)
}
