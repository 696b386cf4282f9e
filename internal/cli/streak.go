package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pulsefit/streakd/internal/daemon"
	"github.com/pulsefit/streakd/internal/domain"
)

func init() {
	activityCmd.Flags().StringVar(&activityDate, "date", "", "Day of the activity, YYYY-MM-DD (default today)")
	activityCmd.Flags().StringVar(&activityRef, "ref", "", "Reference ID of the source record")
	rootCmd.AddCommand(activityCmd)

	pauseCmd.Flags().StringVar(&pauseUntil, "until", "", "Resume date, YYYY-MM-DD (default today + max pause)")
	streakCmd.AddCommand(recomputeCmd, pauseCmd, resumeCmd)
	rootCmd.AddCommand(streakCmd)
}

var (
	activityDate string
	activityRef  string
	pauseUntil   string
)

var activityCmd = &cobra.Command{
	Use:   "activity <type>",
	Short: "Record an activity and recompute the streak",
	Example: `  streakd activity workout -u alice
  streakd activity meal_log -u alice --date 2025-07-09 --ref meal-42`,
	Args: cobra.ExactArgs(1),
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		date, err := parseDay(activityDate)
		if err != nil {
			return err
		}
		st, err := d.Streaks.RecordActivity(cmd.Context(), user, args[0], activityRef, date)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		green.Fprintf(out, "✓ Recorded %s\n", args[0])
		printStreak(out, st)
		return nil
	}),
}

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show the engagement streak",
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		st, err := d.Streaks.GetEngagementStreak(cmd.Context(), user)
		if err != nil {
			return err
		}
		printStreak(cmd.OutOrStdout(), st)
		return nil
	}),
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute the streak from activity history",
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		st, err := d.Streaks.UpdateEngagementStreak(cmd.Context(), user)
		if err != nil {
			return err
		}
		printStreak(cmd.OutOrStdout(), st)
		return nil
	}),
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the streak (vacation, illness)",
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		var resume *time.Time
		if pauseUntil != "" {
			day, err := domain.ParseDate(pauseUntil)
			if err != nil {
				return err
			}
			resume = &day
		}
		st, err := d.Streaks.PauseStreak(cmd.Context(), user, resume)
		if err != nil {
			return err
		}
		yellow.Fprintf(cmd.OutOrStdout(), "⏸ Streak paused until %s\n", domain.FormatDatePtr(st.PauseEndDate))
		return nil
	}),
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused streak",
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		st, err := d.Streaks.ResumeStreak(cmd.Context(), user)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		green.Fprintln(out, "▶ Streak resumed")
		printStreak(out, st)
		return nil
	}),
}
