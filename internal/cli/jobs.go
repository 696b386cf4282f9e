package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulsefit/streakd/internal/daemon"
	"github.com/pulsefit/streakd/internal/domain"
)

func init() {
	jobsCmd.PersistentFlags().StringVar(&jobsNow, "now", "", "Run as of this RFC3339 instant (default now)")
	jobsCmd.AddCommand(resetFreezesCmd, breakCheckCmd)
	rootCmd.AddCommand(jobsCmd)
}

var jobsNow string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run scheduled batch jobs",
	Long: `Batch jobs for an external scheduler (cron, systemd timers, k8s CronJob).
A failing user is reported and skipped; the batch always finishes.`,
}

var resetFreezesCmd = &cobra.Command{
	Use:   "reset-freezes",
	Short: "Grant every user their weekly freeze shield",
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		now, err := parseNow(jobsNow)
		if err != nil {
			return err
		}
		report, err := d.Claims.ResetWeeklyFreezes(cmd.Context(), now)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	}),
}

var breakCheckCmd = &cobra.Command{
	Use:   "break-check",
	Short: "Protect or break streaks whose yesterday went unclaimed",
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		now, err := parseNow(jobsNow)
		if err != nil {
			return err
		}
		report, err := d.Claims.CheckAndBreakStreaks(cmd.Context(), now)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	}),
}

func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--now must be RFC3339: %w", err)
	}
	return t, nil
}

func printReport(w io.Writer, r domain.JobReport) {
	bold.Fprintf(w, "%s", r.Job)
	fmt.Fprintf(w, " at %s: %d processed, %d updated\n", r.RanAt.Format(time.RFC3339), r.Processed, r.Updated)

	outcomes := make([]string, 0, len(r.Outcomes))
	for o := range r.Outcomes {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %-12s %d\n", o, r.Outcomes[domain.BreakOutcome(o)])
	}
	for _, f := range r.Failures {
		yellow.Fprintf(w, "  ⚠ %s: %s\n", f.UserID, f.Error)
	}
}
