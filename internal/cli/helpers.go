package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pulsefit/streakd/internal/daemon"
	"github.com/pulsefit/streakd/internal/domain"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	faint  = color.New(color.Faint)
	bold   = color.New(color.Bold)
)

// openDaemon loads config and wires the engines against the local database.
func openDaemon() (*daemon.Daemon, error) {
	return daemon.New()
}

// requireUser fails when neither --user nor $STREAKD_USER is set.
func requireUser() (string, error) {
	if userID == "" {
		return "", errors.New("a user is required: pass --user or set STREAKD_USER")
	}
	return userID, nil
}

// parseDay parses YYYY-MM-DD; "" yields the zero time.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return domain.ParseDate(s)
}

func printStreak(w io.Writer, st domain.EngagementStreak) {
	bold.Fprintf(w, "%s: %d day streak", st.UserID, st.CurrentStreak)
	fmt.Fprintf(w, " (longest %d)\n", st.LongestStreak)
	fmt.Fprintf(w, "  freezes:     %d available, %d used this week\n", st.FreezesAvailable, st.FreezesUsedThisWeek)
	if st.LastEngagementDate != nil {
		fmt.Fprintf(w, "  last active: %s\n", domain.FormatDatePtr(st.LastEngagementDate))
	}
	if st.TotalClaims > 0 {
		fmt.Fprintf(w, "  claims:      %d (last %s)\n", st.TotalClaims, domain.FormatDatePtr(st.LastClaimDate))
	}
	if st.Paused {
		yellow.Fprintf(w, "  paused since %s until %s\n",
			domain.FormatDatePtr(st.PauseStartDate), domain.FormatDatePtr(st.PauseEndDate))
	}
	faint.Fprintf(w, "  next freeze refill: %s\n", domain.FormatDate(st.AutoFreezeResetDate))
}

func printShields(w io.Writer, st domain.ShieldStatus) {
	fmt.Fprintf(w, "  freeze:    %d\n", st.Freeze)
	fmt.Fprintf(w, "  milestone: %d\n", st.Milestone)
	fmt.Fprintf(w, "  purchased: %d\n", st.Purchased)
	bold.Fprintf(w, "  total:     %d\n", st.Total)
}

func printMilestone(w io.Writer, m *domain.Milestone) {
	if m == nil {
		return
	}
	green.Fprintf(w, "★ %s", m.Title)
	if m.ShieldsGranted > 0 {
		fmt.Fprintf(w, " (+%d shield)", m.ShieldsGranted)
	}
	fmt.Fprintln(w)
}

// withDaemon opens the daemon for one command run and closes it after.
func withDaemon(fn func(cmd *cobra.Command, d *daemon.Daemon, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()
		return fn(cmd, d, args)
	}
}
