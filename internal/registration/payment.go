package registration

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatusFor derives the payment status from what is owed and paid.
// Nothing paid is pending; paying part of a positive amount is partial;
// covering the full amount (or paying anything when nothing is owed) is paid.
func PaymentStatusFor(due, paid decimal.Decimal) PaymentStatus {
	if !paid.IsPositive() {
		return PaymentPending
	}
	if paid.GreaterThanOrEqual(due) {
		return PaymentPaid
	}
	return PaymentPartial
}

// Outstanding is the unpaid balance, never negative.
func Outstanding(due, paid decimal.Decimal) decimal.Decimal {
	rest := due.Sub(paid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// IsOverdue reports whether payment is late: cutoff has passed and part of a
// positive balance is still unpaid. A nil cutoff is never overdue, and neither
// is a registration that owes nothing.
func IsOverdue(cutoff *time.Time, due, paid decimal.Decimal, now time.Time) bool {
	if cutoff == nil || !Outstanding(due, paid).IsPositive() {
		return false
	}
	return now.After(*cutoff)
}

// DepositOverdue reports whether a configured deposit is past its due day
// while less than the deposit has been paid.
func DepositOverdue(terms LeagueTerms, paid decimal.Decimal, now time.Time) bool {
	if terms.DepositAmount == nil || terms.DepositDueDate == nil {
		return false
	}
	if !terms.DepositAmount.IsPositive() {
		return false
	}
	return now.After(EndOfDueDay(*terms.DepositDueDate)) && paid.LessThan(*terms.DepositAmount)
}
