package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pulsefit/streakd/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address host:port, replacing [server] host and port")
	serveCmd.Flags().BoolVar(&serveJobs, "jobs", false, "run the break check and freeze reset in-process")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveAddr string
	serveJobs bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the streak API daemon",
	Long: `Run the HTTP API (default 127.0.0.1:8420) with /health, /metrics and /mcp.
With --jobs the daily break check and weekly freeze reset run on the
[jobs] schedules instead of an external cron calling /api/v1/jobs.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyServeFlags(&cfg, serveAddr, serveJobs); err != nil {
		return err
	}
	d, err := daemon.NewWithConfig(cfg, daemon.NewLogger(cfg.Logging, os.Stderr))
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Serve(context.Background())
}

// applyServeFlags folds the serve flags into cfg and re-validates it.
func applyServeFlags(cfg *daemon.Config, addr string, jobs bool) error {
	if addr != "" {
		host, portStr, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("--addr: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("--addr: bad port %q", portStr)
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}
	if jobs {
		cfg.Jobs.Enabled = true
	}
	return cfg.Validate()
}
