package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulsefit/streakd/internal/daemon"
	"github.com/pulsefit/streakd/internal/domain"
)

func init() {
	claimCmd.PersistentFlags().StringVar(&claimTZ, "tz", "UTC", "IANA timezone of the user")
	claimCmd.Flags().StringVar(&claimMethod, "method", string(domain.ClaimExplicit), "Claim method: explicit, manual_entry, retroactive")
	claimCmd.AddCommand(claimCheckCmd, claimDaysCmd)
	rootCmd.AddCommand(claimCmd)
}

var (
	claimTZ     string
	claimMethod string
)

var claimCmd = &cobra.Command{
	Use:   "claim <date>",
	Short: "Claim a day with logged health data",
	Example: `  streakd claim 2025-07-10 -u alice --tz Europe/Berlin
  streakd claim days -u alice`,
	Args: cobra.ExactArgs(1),
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		date, err := domain.ParseDate(args[0])
		if err != nil {
			return err
		}
		res, err := d.Claims.ClaimStreak(cmd.Context(), user, date, claimTZ, domain.ClaimMethod(claimMethod))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		green.Fprintf(out, "✓ Claimed %s", args[0])
		fmt.Fprintf(out, ", streak is now %d\n", res.StreakCount)
		printMilestone(out, res.Milestone)
		return nil
	}),
}

var claimCheckCmd = &cobra.Command{
	Use:   "check <date>",
	Short: "Check whether a day can be claimed",
	Args:  cobra.ExactArgs(1),
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		date, err := domain.ParseDate(args[0])
		if err != nil {
			return err
		}
		res, err := d.Claims.CanClaimStreak(cmd.Context(), user, date, claimTZ)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.CanClaim {
			green.Fprintf(out, "✓ %s can be claimed", args[0])
			if res.GracePeriodActive {
				faint.Fprint(out, " (grace period)")
			}
			fmt.Fprintln(out)
			return nil
		}
		yellow.Fprintf(out, "✗ %s: %s\n", args[0], res.Reason)
		return nil
	}),
}

var claimDaysCmd = &cobra.Command{
	Use:   "days",
	Short: "Show the claim window calendar",
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		days, err := d.Claims.GetClaimableDays(cmd.Context(), user, claimTZ)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tDAY\tCLAIMED\tDATA\tCLAIMABLE\tREASON")
		for _, day := range days {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				domain.FormatDate(day.Date), day.Date.Weekday().String()[:3],
				yesNo(day.Claimed), yesNo(day.HasHealthData), yesNo(day.CanClaim), day.Reason)
		}
		return w.Flush()
	}),
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
