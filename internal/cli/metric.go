package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulsefit/streakd/internal/daemon"
	"github.com/pulsefit/streakd/internal/domain"
)

func init() {
	metricRecomputeCmd.Flags().StringVar(&metricLogDate, "date", "", "Log date to validate, YYYY-MM-DD")
	metricCmd.AddCommand(metricRecomputeCmd)
	rootCmd.AddCommand(metricCmd)

	trackHealthCmd.Flags().Float64Var(&trackWeight, "weight", 0, "Body weight")
	trackHealthCmd.Flags().IntVar(&trackSteps, "steps", 0, "Step count")
	trackHealthCmd.Flags().IntVar(&trackMood, "mood", 0, "Mood score")
	trackHealthCmd.Flags().IntVar(&trackEnergy, "energy", 0, "Energy score")
	trackCmd.PersistentFlags().StringVar(&trackDate, "date", "", "Day of the entry, YYYY-MM-DD (default today)")
	trackCmd.AddCommand(trackHealthCmd, trackProgressCmd)
	rootCmd.AddCommand(trackCmd)
}

var (
	metricLogDate string

	trackDate   string
	trackWeight float64
	trackSteps  int
	trackMood   int
	trackEnergy int
)

var metricCmd = &cobra.Command{
	Use:     "metric",
	Aliases: []string{"metrics"},
	Short:   "Show per-metric streaks",
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		streaks, err := d.Metrics.GetMetricStreaks(cmd.Context(), user)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "METRIC\tCADENCE\tCURRENT\tLONGEST\tGRACE\tLAST LOG")
		for _, m := range domain.AllMetrics() {
			profile := domain.ProfileFor(m)
			ms := streaks[m]
			if ms == nil {
				fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t-\n", m, profile.Cadence)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
				m, profile.Cadence, ms.CurrentStreak, ms.LongestStreak,
				ms.GraceDaysAvailable, domain.FormatDatePtr(ms.LastLogDate))
		}
		return w.Flush()
	}),
}

var metricRecomputeCmd = &cobra.Command{
	Use:   "recompute <metric>",
	Short: "Recompute one metric streak (weight, steps, mood, measurements, photos)",
	Args:  cobra.ExactArgs(1),
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		metric, err := domain.ParseMetricType(args[0])
		if err != nil {
			return err
		}
		logDate, err := parseDay(metricLogDate)
		if err != nil {
			return err
		}
		ms, err := d.Metrics.UpdateMetricStreak(cmd.Context(), user, metric, logDate)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d (longest %d, grace left %d)\n",
			metric, ms.CurrentStreak, ms.LongestStreak, ms.GraceDaysAvailable)
		return nil
	}),
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Log health data and progress entries",
}

var trackHealthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Log weight, steps, mood or energy for a day",
	Example: `  streakd track health -u alice --weight 81.4 --steps 9200`,
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		date, err := parseDay(trackDate)
		if err != nil {
			return err
		}
		entry := domain.HealthEntry{UserID: user, Date: date}
		flags := cmd.Flags()
		if flags.Changed("weight") {
			entry.Weight = &trackWeight
		}
		if flags.Changed("steps") {
			entry.Steps = &trackSteps
		}
		if flags.Changed("mood") {
			entry.Mood = &trackMood
		}
		if flags.Changed("energy") {
			entry.Energy = &trackEnergy
		}
		res, err := d.Tracker.LogHealth(cmd.Context(), entry)
		if err != nil {
			return err
		}
		printTracking(cmd, res.Engagement, res.Metrics)
		return nil
	}),
}

var trackProgressCmd = &cobra.Command{
	Use:   "progress <measurements|photos>",
	Short: "Log a measurements set or a progress photo",
	Args:  cobra.ExactArgs(1),
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		date, err := parseDay(trackDate)
		if err != nil {
			return err
		}
		res, err := d.Tracker.AddProgressEntry(cmd.Context(), user, date, domain.ProgressKind(args[0]))
		if err != nil {
			return err
		}
		printTracking(cmd, res.Engagement, res.Metrics)
		return nil
	}),
}

func printTracking(cmd *cobra.Command, st domain.EngagementStreak, metrics []domain.MetricStreak) {
	out := cmd.OutOrStdout()
	green.Fprintln(out, "✓ Logged")
	for _, ms := range metrics {
		fmt.Fprintf(out, "  %-12s %d day streak\n", ms.Metric, ms.CurrentStreak)
	}
	printStreak(out, st)
}
