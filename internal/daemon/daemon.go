package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsefit/streakd/internal/api"
	"github.com/pulsefit/streakd/internal/app/engagement"
	"github.com/pulsefit/streakd/internal/health"
	"github.com/pulsefit/streakd/internal/infra/scheduler"
	"github.com/pulsefit/streakd/internal/infra/sqlite"
	"github.com/pulsefit/streakd/internal/mcp"
)

// Version is stamped into the MCP implementation info.
const Version = "0.3.0"

// Daemon is the core streakd runtime. It wires together all services.
type Daemon struct {
	Config Config
	Logger *slog.Logger
	DB     *sqlite.DB

	Streaks *engagement.StreakEngine
	Metrics *engagement.MetricEngine
	Claims  *engagement.ClaimEngine
	Tracker *engagement.Tracker

	Health    *health.Checker
	Server    *api.Server
	MCP       *mcp.Server
	Scheduler *scheduler.Scheduler // nil unless [jobs] enabled

	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg, NewLogger(cfg.Logging, os.Stderr))
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := cfg.Database.Dir
	if dir == "" {
		dir = streakdHome()
	}
	loc, err := cfg.Jobs.Location()
	if err != nil {
		return nil, fmt.Errorf("jobs.timezone: %w", err)
	}
	db, err := sqlite.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The break check asks about "yesterday"; it must be the same day in
	// the engines as in the zone the schedule fires in.
	opts := []engagement.Option{
		engagement.WithRules(cfg.Streak.Rules()),
		engagement.WithLocation(loc),
		engagement.WithLogger(logger),
	}
	d := &Daemon{
		Config: cfg,
		Logger: logger,
		DB:     db,
	}
	d.Streaks = engagement.NewStreakEngine(db, opts...)
	d.Metrics = engagement.NewMetricEngine(db, opts...)
	d.Claims = engagement.NewClaimEngine(db, d.Streaks, opts...)
	d.Tracker = engagement.NewTracker(db, d.Streaks, d.Metrics, opts...)

	d.Health = health.NewChecker(db, dir, logger.With(slog.String("component", "health")))

	d.MCP = mcp.NewServer(mcp.Services{
		Streaks: d.Streaks,
		Metrics: d.Metrics,
		Claims:  d.Claims,
	}, Version)

	srv := api.NewServer(api.Services{
		Streaks: d.Streaks,
		Metrics: d.Metrics,
		Claims:  d.Claims,
		Tracker: d.Tracker,
	}, logger.With(slog.String("component", "api")))
	srv.SetHealth(d.Health)
	srv.SetJobsToken(cfg.Server.JobsToken)
	srv.SetRateLimit(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	srv.SetMCPHandler(d.MCP.HTTPHandler())
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	d.Server = srv

	if cfg.Jobs.Enabled {
		sched, err := newScheduler(cfg.Jobs, loc, d.Claims, logger.With(slog.String("component", "scheduler")))
		if err != nil {
			db.Close()
			return nil, err
		}
		d.Scheduler = sched
	}

	return d, nil
}

// newScheduler registers the daily break check and the weekly freeze reset.
func newScheduler(cfg JobsConfig, loc *time.Location, claims *engagement.ClaimEngine, logger *slog.Logger) (*scheduler.Scheduler, error) {
	breakCheck, err := scheduler.ParseSchedule(cfg.BreakCheck, loc)
	if err != nil {
		return nil, fmt.Errorf("jobs.break_check: %w", err)
	}
	freezeReset, err := scheduler.ParseSchedule(cfg.FreezeReset, loc)
	if err != nil {
		return nil, fmt.Errorf("jobs.freeze_reset: %w", err)
	}

	s := scheduler.New(scheduler.DefaultRetryConfig(), logger)
	s.Add(scheduler.Job{
		Name:     engagement.JobBreakCheck,
		Schedule: breakCheck,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := claims.CheckAndBreakStreaks(ctx, now)
			return err
		},
	})
	s.Add(scheduler.Job{
		Name:     engagement.JobWeeklyFreezeReset,
		Schedule: freezeReset,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := claims.ResetWeeklyFreezes(ctx, now)
			return err
		},
	})
	return s, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	go d.Health.Run(ctx)
	go d.Server.RunLimiterCleanup(ctx)
	if d.Scheduler != nil {
		go d.Scheduler.Run(ctx)
	}

	addr := d.Config.Addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  d.Config.ReadTimeout(),
		WriteTimeout: d.Config.WriteTimeout(),
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			d.Logger.Warn("http shutdown", slog.String("error", err.Error()))
		}
	}()

	d.Logger.Info("streakd serving",
		slog.String("addr", addr),
		slog.Bool("metrics", d.Config.Telemetry.Prometheus),
		slog.Bool("job_routes", d.Config.Server.JobsToken != ""),
		slog.Bool("scheduler", d.Scheduler != nil))

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
