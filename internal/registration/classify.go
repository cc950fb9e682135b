package registration

import "github.com/google/uuid"

// CountsTowards names the capacity pool an occupant row is counted in.
type CountsTowards string

const (
	CountsNone       CountsTowards = ""
	CountsTeam       CountsTowards = "team"
	CountsIndividual CountsTowards = "individual"
)

// OccupantRow is one registration as fetched from the store, together with
// the team it belongs to (if any). Mode is the mode recorded when the row was
// created, not the league's current mode.
type OccupantRow struct {
	ID      uuid.UUID
	Mode    RegistrationMode
	TeamID  *uuid.UUID
	Status  Status
	Deleted bool
}

// ClassifyOccupant decides which pool a row counts toward under mode.
//
// In individual mode every live row without a team is one individual. In team
// mode only a live team row counts; a bare payment row with no team is never
// counted, so a team and its captain's payment are not double-counted.
func ClassifyOccupant(mode RegistrationMode, row OccupantRow) CountsTowards {
	if row.Deleted {
		return CountsNone
	}
	switch mode {
	case ModeIndividual:
		if row.TeamID == nil {
			return CountsIndividual
		}
	case ModeTeam:
		if row.TeamID != nil {
			return CountsTeam
		}
	}
	return CountsNone
}

// OccupancyTally splits active occupants by the pool their own recorded mode
// puts them in.
type OccupancyTally struct {
	Teams       int
	Individuals int
	Waitlisted  int
}

// Tally counts rows using each row's recorded mode. Waitlisted rows are
// counted separately and never toward capacity.
func Tally(rows []OccupantRow) OccupancyTally {
	var t OccupancyTally
	for _, row := range rows {
		kind := ClassifyOccupant(row.Mode, row)
		if kind == CountsNone {
			continue
		}
		if row.Status == StatusWaitlisted {
			t.Waitlisted++
			continue
		}
		switch kind {
		case CountsTeam:
			t.Teams++
		case CountsIndividual:
			t.Individuals++
		}
	}
	return t
}

// CountOccupancy returns how many active occupants count against the capacity
// of a league currently in leagueMode. Rows recorded under the other mode keep
// their original classification and therefore do not count here.
func CountOccupancy(leagueMode RegistrationMode, rows []OccupantRow) int {
	t := Tally(rows)
	if leagueMode == ModeTeam {
		return t.Teams
	}
	return t.Individuals
}
