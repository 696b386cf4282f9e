package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulsefit/streakd/internal/daemon"
	"github.com/pulsefit/streakd/internal/domain"
)

func init() {
	recoveryStartCmd.Flags().StringVar(&recoveryType, "type", string(domain.RecoveryWeekendWarrior), "Recovery type: weekend_warrior or purchased")
	recoveryCmd.AddCommand(recoveryStartCmd, recoveryActionCmd)
	rootCmd.AddCommand(recoveryCmd)
}

var recoveryType string

var recoveryCmd = &cobra.Command{
	Use:   "recovery",
	Short: "List streak recoveries",
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		list, err := d.Claims.ListRecoveries(cmd.Context(), user)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No recoveries.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBROKEN\tTYPE\tSTATUS\tACTIONS\tEXPIRES")
		for _, r := range list {
			expires := "-"
			if r.ExpiresAt != nil {
				expires = r.ExpiresAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
				r.ID[:8], domain.FormatDate(r.BrokenDate), r.Type, r.Status,
				r.ActionsCompleted, r.ActionsRequired, expires)
		}
		return w.Flush()
	}),
}

var recoveryStartCmd = &cobra.Command{
	Use:   "start <broken-date>",
	Short: "Start recovering a broken day",
	Args:  cobra.ExactArgs(1),
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		broken, err := domain.ParseDate(args[0])
		if err != nil {
			return err
		}
		r, err := d.Claims.StartRecovery(cmd.Context(), user, broken, domain.RecoveryType(recoveryType))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if r.Status == domain.RecoveryCompleted {
			green.Fprintf(out, "✓ %s restored\n", args[0])
			return nil
		}
		fmt.Fprintf(out, "Recovery %s started: %d actions due by %s\n",
			r.ID, r.ActionsRequired, r.ExpiresAt.Format("2006-01-02 15:04"))
		return nil
	}),
}

var recoveryActionCmd = &cobra.Command{
	Use:   "action <recovery-id>",
	Short: "Record one qualifying action for a recovery",
	Args:  cobra.ExactArgs(1),
	RunE: withDaemon(func(cmd *cobra.Command, d *daemon.Daemon, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		done, err := d.Claims.CompleteRecoveryAction(cmd.Context(), user, args[0])
		if err != nil {
			return err
		}
		if done {
			green.Fprintln(cmd.OutOrStdout(), "✓ Recovery complete, day restored")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Action recorded")
		return nil
	}),
}
