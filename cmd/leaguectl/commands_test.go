package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDeadlineCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
		not  []string
	}{
		{
			name: "relative window from registration time",
			args: []string{"deadline", "--type", "tournament", "--window-hours", "48", "--at", "2025-08-01T10:30:00Z"},
			want: []string{"Deadline: 2025-08-03T10:30:00.000Z", "Display:  August 3, 2025", "Window:   2 days"},
		},
		{
			name: "window wins over due date",
			args: []string{"deadline", "--type", "single_session", "--window-hours", "168", "--due-date", "2025-12-01", "--at", "2025-08-01 00:00:00"},
			want: []string{"Deadline: 2025-08-08T00:00:00.000Z", "Window:   1 week"},
		},
		{
			name: "fixed due date for regular season",
			args: []string{"deadline", "--type", "regular_season", "--due-date", "2025-09-15", "--at", "2025-08-01T10:30:00Z"},
			want: []string{"Deadline: 2025-09-15T00:00:00.000Z", "Display:  September 15, 2025"},
			not:  []string{"Window:"},
		},
		{
			name: "relative type without a window",
			args: []string{"deadline", "--type", "skills_drills", "--at", "2025-08-01T10:30:00Z"},
			want: []string{"No payment deadline"},
		},
		{
			name: "unlisted window",
			args: []string{"deadline", "--type", "tournament", "--window-hours", "36", "--at", "2025-08-01T10:30:00Z"},
			want: []string{"No payment deadline"},
		},
		{
			name: "unparseable registration time",
			args: []string{"deadline", "--type", "tournament", "--window-hours", "24", "--at", "yesterday"},
			want: []string{"No payment deadline"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, n := range tt.not {
				assert.NotContains(t, out, n)
			}
		})
	}
}

func TestDeadlineCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "deadline", "--type", "league")
	assert.ErrorContains(t, err, `unknown league type "league"`)

	_, err = execute(t, "deadline", "--type", "regular_season", "--due-date", "soon")
	assert.ErrorContains(t, err, "cannot parse due date")
}

func TestPromoteCommandRejectsBadID(t *testing.T) {
	_, err := execute(t, "promote", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid league ID")

	_, err = execute(t, "promote")
	assert.Error(t, err)
}
