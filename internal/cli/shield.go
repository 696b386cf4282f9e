package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pulsefit/streakd/internal/daemon"
	"github.com/pulsefit/streakd/internal/domain"
)

func init() {
	shieldCmd.AddCommand(shieldFreezeCmd, shieldBuyCmd)
	rootCmd.AddCommand(shieldCmd)
}

var shieldCmd = &cobra.Command{
	Use:     "shield",
	Aliases: []string{"shields"},
	Short:   "Show shield balances",
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		st, err := d.Claims.GetAvailableShields(cmd.Context(), user)
		if err != nil {
			return err
		}
		printShields(cmd.OutOrStdout(), st)
		return nil
	}),
}

var shieldFreezeCmd = &cobra.Command{
	Use:   "freeze [date]",
	Short: "Spend a shield to protect a missed day (default yesterday)",
	Args:  cobra.MaximumNArgs(1),
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		day := domain.AddDays(d.Streaks.Today(), -1)
		if len(args) == 1 {
			if day, err = domain.ParseDate(args[0]); err != nil {
				return err
			}
		}
		ok, err := d.Claims.ActivateFreeze(cmd.Context(), user, day)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if ok {
			green.Fprintf(out, "✓ %s protected\n", domain.FormatDate(day))
		} else {
			faint.Fprintf(out, "%s is already covered, no shield spent\n", domain.FormatDate(day))
		}
		return nil
	}),
}

var shieldBuyCmd = &cobra.Command{
	Use:   "buy <count>",
	Short: "Credit purchased shields",
	Args:  cobra.ExactArgs(1),
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return domain.InvalidInput("count must be a number: %v", err)
		}
		st, err := d.Claims.PurchaseShields(cmd.Context(), user, n)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		green.Fprintf(out, "✓ Added %d shields\n", n)
		printShields(out, st)
		return nil
	}),
}
