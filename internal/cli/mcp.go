package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server for AI assistant integration.
The server talks JSON-RPC over stdin/stdout; logs go to stderr.

AVAILABLE TOOLS:

  get_streak        Engagement streak, freezes and pause state
  record_activity   Record an activity and recompute the streak
  claim_streak      Claim a day with logged health data
  claimable_days    Claim window calendar
  get_shields       Shield balances by type
  metric_streaks    Per-metric streaks

The same tools are served over Streamable HTTP at /mcp by 'streakd serve'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return d.MCP.Serve(ctx)
	},
}
