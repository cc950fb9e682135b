package registration

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// dueDayZone is the zone a fixed due date's calendar day is counted in.
var dueDayZone = loadZone("America/Toronto")

func loadZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// millisPerHour is the wall-clock length of one payment-window hour.
const millisPerHour = 3_600_000

// paymentWindowHours is the closed set of relative windows a league may use.
var paymentWindowHours = map[int]struct{}{
	24: {}, 48: {}, 72: {}, 120: {}, 168: {}, 240: {}, 336: {},
}

// PaymentWindowOptions lists the allowed windows in ascending order.
func PaymentWindowOptions() []int {
	return []int{24, 48, 72, 120, 168, 240, 336}
}

// ValidPaymentWindow reports whether hours is one of the allowed windows.
func ValidPaymentWindow(hours int) bool {
	_, ok := paymentWindowHours[hours]
	return ok
}

// UsesRelativeWindow reports whether leagues of type t take their deadline
// from a payment window instead of a fixed due date.
func UsesRelativeWindow(t LeagueType) bool {
	switch t {
	case LeagueTypeTournament, LeagueTypeSkillsDrills, LeagueTypeSingleSession:
		return true
	}
	return false
}

// ComputeDeadline returns when payment is due for a registration made at
// registeredAt, or nil when no deadline is enforced.
//
// Leagues outside the relative-window types use their explicit due date. For
// relative-window types the window wins even if a due date is also set; a
// missing, non-positive or unlisted window means no deadline. The result is
// registeredAt plus the window at millisecond precision, in UTC. A zero
// registeredAt yields nil.
func ComputeDeadline(terms LeagueTerms, registeredAt time.Time) *time.Time {
	if !UsesRelativeWindow(terms.Type) {
		if terms.ExplicitDueDate == nil {
			return nil
		}
		due := terms.ExplicitDueDate.UTC()
		return &due
	}

	if terms.PaymentWindowHours == nil {
		return nil
	}
	hours := *terms.PaymentWindowHours
	if hours <= 0 || !ValidPaymentWindow(hours) {
		return nil
	}
	if registeredAt.IsZero() {
		return nil
	}

	window := time.Duration(hours) * millisPerHour * time.Millisecond
	due := registeredAt.UTC().Truncate(time.Millisecond).Add(window)
	return &due
}

// EndOfDueDay is the first instant after the calendar day of date, counted in
// Ottawa time. Fixed due dates are stored as dates, so a payment due
// August 21 stays on time until midnight at the end of August 21 local time.
func EndOfDueDay(date time.Time) time.Time {
	y, m, d := date.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, dueDayZone).UTC()
}

// OverdueCutoff is the instant after which an unpaid balance with this
// deadline is late. Relative-window deadlines are exact instants; explicit
// due dates last until the end of the due day. Nil means no deadline.
func OverdueCutoff(terms LeagueTerms, deadline *time.Time) *time.Time {
	if deadline == nil {
		return nil
	}
	if UsesRelativeWindow(terms.Type) {
		return deadline
	}
	end := EndOfDueDay(*deadline)
	return &end
}

// timestampLayouts are the base timestamp shapes accepted from loosely typed rows.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a base timestamp in any of the accepted layouts.
// Strings without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ComputeDeadlineFromString is ComputeDeadline for a raw timestamp string.
// An unparseable timestamp means no deadline for relative-window leagues;
// fixed-date leagues ignore the timestamp entirely.
func ComputeDeadlineFromString(terms LeagueTerms, raw string) *time.Time {
	t, _ := ParseTimestamp(raw)
	return ComputeDeadline(terms, t)
}

// FormatDuration renders a window as weeks, days or hours.
func FormatDuration(hours int) string {
	switch {
	case hours != 0 && hours%168 == 0:
		return plural(hours/168, "week")
	case hours != 0 && hours%24 == 0:
		return plural(hours/24, "day")
	default:
		return plural(hours, "hour")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// displayLayout is "Month D, YYYY"; Go's month names are always English.
const displayLayout = "January 2, 2006"

// FormatDeadlineForDisplay renders a deadline for people, or nil for no deadline.
func FormatDeadlineForDisplay(deadline *time.Time) *string {
	if deadline == nil {
		return nil
	}
	s := deadline.UTC().Format(displayLayout)
	return &s
}
