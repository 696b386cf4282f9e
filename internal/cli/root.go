// Package cli implements the streakd command-line interface using Cobra.
// Most subcommands open the local database directly; serve runs the API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var userID string

var rootCmd = &cobra.Command{
	Use:   "streakd",
	Short: "streakd - streaks, claims and shields for fitness tracking",
	Long: `streakd keeps the engagement streak of every user: activities extend it,
freezes and shields protect it, claims and recoveries repair it.

QUICK START:

  $ streakd config init                     # Write ~/.streakd/config.toml
  $ streakd activity workout -u alice       # Log an activity for today
  $ streakd track health -u alice --weight 81.4
  $ streakd claim 2025-07-10 -u alice       # Claim a day with health data
  $ streakd streak -u alice                 # Show the streak
  $ streakd serve                           # Run the HTTP API

SCHEDULED JOBS:

  $ streakd jobs break-check                # Run daily after midnight
  $ streakd jobs reset-freezes              # Run weekly`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("STREAKD_USER"), "User ID (default $STREAKD_USER)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
