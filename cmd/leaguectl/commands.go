package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/app"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/config"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/database"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/jobs"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "leaguectl",
		Short:        "Operate the league registration service",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newDeadlineCmd(), newSweepCmd(), newPromoteCmd())
	return root
}

// ─── migrate ────────────────────────────────────────────────────────────────

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to roll back")

	migrateCmd.AddCommand(up, down)
	return migrateCmd
}

// ─── deadline ───────────────────────────────────────────────────────────────

func newDeadlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Show the payment deadline a registration would get",
		Long: `Compute the payment deadline for a registration made at --at in a league
of the given type. Tournaments, skills and drills, and single sessions use
--window-hours counted from registration; other types use --due-date.`,
		Args: cobra.NoArgs,
		RunE: runDeadline,
	}
	cmd.Flags().String("type", string(registration.LeagueTypeRegularSeason), "League type")
	cmd.Flags().Int("window-hours", 0, fmt.Sprintf("Relative payment window in hours, one of %v", registration.PaymentWindowOptions()))
	cmd.Flags().String("due-date", "", "Explicit due date for fixed-date leagues")
	cmd.Flags().String("at", "", "Registration timestamp (default now)")
	return cmd
}

func runDeadline(cmd *cobra.Command, _ []string) error {
	typeFlag, _ := cmd.Flags().GetString("type")
	hours, _ := cmd.Flags().GetInt("window-hours")
	dueFlag, _ := cmd.Flags().GetString("due-date")
	at, _ := cmd.Flags().GetString("at")

	terms := registration.LeagueTerms{Type: registration.LeagueType(typeFlag)}
	if !terms.Type.Valid() {
		return fmt.Errorf("unknown league type %q", typeFlag)
	}
	if cmd.Flags().Changed("window-hours") {
		terms.PaymentWindowHours = &hours
	}
	if dueFlag != "" {
		due, ok := registration.ParseTimestamp(dueFlag)
		if !ok {
			return fmt.Errorf("cannot parse due date %q", dueFlag)
		}
		terms.ExplicitDueDate = &due
	}
	if strings.TrimSpace(at) == "" {
		at = time.Now().UTC().Format(time.RFC3339Nano)
	}

	out := cmd.OutOrStdout()
	deadline := registration.ComputeDeadlineFromString(terms, at)
	if deadline == nil {
		fmt.Fprintln(out, "No payment deadline")
		return nil
	}
	fmt.Fprintf(out, "Deadline: %s\n", deadline.Format("2006-01-02T15:04:05.000Z07:00"))
	fmt.Fprintf(out, "Display:  %s\n", *registration.FormatDeadlineForDisplay(deadline))
	if registration.UsesRelativeWindow(terms.Type) {
		fmt.Fprintf(out, "Window:   %s\n", registration.FormatDuration(hours))
	}
	return nil
}

// ─── sweep ──────────────────────────────────────────────────────────────────

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the waitlist and overdue-payment sweeps once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			r := jobs.RunOnce(cmd.Context(), a.Service)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Promoted from waitlists: %d (%s)\n", r.Promoted, r.WaitlistTook.Round(time.Millisecond))
			fmt.Fprintf(out, "Overdue notices sent:    %d (%s)\n", r.OverdueSent, r.OverdueTook.Round(time.Millisecond))
			return r.Err()
		},
	}
}

// ─── promote ────────────────────────────────────────────────────────────────

func newPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote LEAGUE_ID",
		Short: "Promote the head of a league's waitlist if a spot is free",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			leagueID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid league ID %q", args[0])
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.Service.PromoteNext(cmd.Context(), leagueID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if view == nil {
				fmt.Fprintln(out, "Nothing to promote")
				return nil
			}
			fmt.Fprintf(out, "Promoted registration %s\n", view.Registration.ID)
			if view.DeadlineDisplay != nil {
				fmt.Fprintf(out, "Payment due %s\n", *view.DeadlineDisplay)
			}
			return nil
		},
	}
}

func openApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, nil)
}
