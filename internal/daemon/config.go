// Package daemon manages the streakd lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/pulsefit/streakd/internal/domain"
	"github.com/pulsefit/streakd/internal/infra/scheduler"
)

// Config holds all daemon configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Streak    StreakConfig    `toml:"streak"`
	Jobs      JobsConfig      `toml:"jobs"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"`
	JobsToken    string          `toml:"jobs_token"`
	ReadTimeout  string          `toml:"read_timeout"`
	WriteTimeout string          `toml:"write_timeout"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig is the per-client token bucket. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

// DatabaseConfig controls where streakd.db lives.
type DatabaseConfig struct {
	Dir string `toml:"dir"`
}

// StreakConfig mirrors domain.Rules.
type StreakConfig struct {
	MaxStreakFreezes          int            `toml:"max_streak_freezes"`
	DefaultStreakFreezes      int            `toml:"default_streak_freezes"`
	EngagementLookbackDays    int            `toml:"engagement_lookback_days"`
	WeeklyLookbackWeeks       int            `toml:"weekly_lookback_weeks"`
	MaxPauseDurationDays      int            `toml:"max_pause_duration_days"`
	RetroactiveWindowDays     int            `toml:"retroactive_window_days"`
	GraceCutoffHour           int            `toml:"grace_cutoff_hour"`
	MaxTotalShields           int            `toml:"max_total_shields"`
	DefaultFreezeShields      int            `toml:"default_freeze_shields"`
	WeekendWarriorActions     int            `toml:"weekend_warrior_actions"`
	WeekendWarriorWindowHours int            `toml:"weekend_warrior_window_hours"`
	GraceDaysPerWeek          map[string]int `toml:"grace_days_per_week"`
}

// JobsConfig controls the in-process job scheduler. Off by default; an
// external scheduler can call `streakd jobs` or the job routes instead.
type JobsConfig struct {
	Enabled bool `toml:"enabled"`
	// Timezone decides the engines' calendar day as well as when the
	// schedules fire.
	Timezone    string `toml:"timezone"`
	BreakCheck  string `toml:"break_check"`  // cron spec
	FreezeReset string `toml:"freeze_reset"` // cron spec
}

// Location loads the configured zone. Empty means UTC.
func (j JobsConfig) Location() (*time.Location, error) {
	return domain.LoadTimezone(j.Timezone)
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// TelemetryConfig controls the /metrics endpoint.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8420,
			ReadTimeout:  "15s",
			WriteTimeout: "30s",
			RateLimit:    RateLimitConfig{RPS: 10, Burst: 30},
		},
		Database: DatabaseConfig{
			Dir: streakdHome(),
		},
		Streak: streakConfigFrom(domain.DefaultRules()),
		Jobs: JobsConfig{
			Timezone:    "UTC",
			BreakCheck:  "5 0 * * *",
			FreezeReset: "10 0 * * MON",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// Rules converts the [streak] section into engine rules.
func (s StreakConfig) Rules() domain.Rules {
	r := domain.Rules{
		MaxStreakFreezes:          s.MaxStreakFreezes,
		DefaultStreakFreezes:      s.DefaultStreakFreezes,
		EngagementLookbackDays:    s.EngagementLookbackDays,
		WeeklyLookbackWeeks:       s.WeeklyLookbackWeeks,
		MaxPauseDurationDays:      s.MaxPauseDurationDays,
		RetroactiveWindowDays:     s.RetroactiveWindowDays,
		GraceCutoffHour:           s.GraceCutoffHour,
		MaxTotalShields:           s.MaxTotalShields,
		DefaultFreezeShields:      s.DefaultFreezeShields,
		WeekendWarriorActions:     s.WeekendWarriorActions,
		WeekendWarriorWindowHours: s.WeekendWarriorWindowHours,
		GraceDaysPerWeek:          make(map[domain.MetricType]int, len(s.GraceDaysPerWeek)),
	}
	for k, v := range s.GraceDaysPerWeek {
		r.GraceDaysPerWeek[domain.MetricType(k)] = v
	}
	return r
}

func streakConfigFrom(r domain.Rules) StreakConfig {
	s := StreakConfig{
		MaxStreakFreezes:          r.MaxStreakFreezes,
		DefaultStreakFreezes:      r.DefaultStreakFreezes,
		EngagementLookbackDays:    r.EngagementLookbackDays,
		WeeklyLookbackWeeks:       r.WeeklyLookbackWeeks,
		MaxPauseDurationDays:      r.MaxPauseDurationDays,
		RetroactiveWindowDays:     r.RetroactiveWindowDays,
		GraceCutoffHour:           r.GraceCutoffHour,
		MaxTotalShields:           r.MaxTotalShields,
		DefaultFreezeShields:      r.DefaultFreezeShields,
		WeekendWarriorActions:     r.WeekendWarriorActions,
		WeekendWarriorWindowHours: r.WeekendWarriorWindowHours,
		GraceDaysPerWeek:          make(map[string]int, len(r.GraceDaysPerWeek)),
	}
	for k, v := range r.GraceDaysPerWeek {
		s.GraceDaysPerWeek[string(k)] = v
	}
	return s
}

// Validate rejects configs the engines cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	s := c.Streak
	if s.MaxStreakFreezes < 0 || s.DefaultStreakFreezes < 0 || s.DefaultStreakFreezes > s.MaxStreakFreezes {
		return fmt.Errorf("streak freezes: default %d must be within [0, %d]", s.DefaultStreakFreezes, s.MaxStreakFreezes)
	}
	if s.EngagementLookbackDays <= 0 || s.WeeklyLookbackWeeks <= 0 {
		return errors.New("streak lookback windows must be positive")
	}
	if s.MaxPauseDurationDays <= 0 || s.RetroactiveWindowDays < 0 {
		return errors.New("streak pause and claim windows must be positive")
	}
	if s.GraceCutoffHour < 0 || s.GraceCutoffHour > 23 {
		return fmt.Errorf("streak.grace_cutoff_hour %d out of range", s.GraceCutoffHour)
	}
	for k := range s.GraceDaysPerWeek {
		if _, err := domain.ParseMetricType(k); err != nil {
			return fmt.Errorf("streak.grace_days_per_week: %w", err)
		}
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	loc, err := c.Jobs.Location()
	if err != nil {
		return fmt.Errorf("jobs.timezone: %w", err)
	}
	if c.Jobs.Enabled {
		if _, err := scheduler.ParseSchedule(c.Jobs.BreakCheck, loc); err != nil {
			return fmt.Errorf("jobs.break_check: %w", err)
		}
		if _, err := scheduler.ParseSchedule(c.Jobs.FreezeReset, loc); err != nil {
			return fmt.Errorf("jobs.freeze_reset: %w", err)
		}
	}
	return nil
}

// ReadTimeout parses server.read_timeout, falling back to 15s.
func (c Config) ReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// WriteTimeout parses server.write_timeout, falling back to 30s.
func (c Config) WriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 30*time.Second)
}

// Addr is the host:port the API listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LoadConfig reads config from $STREAKD_HOME/config.toml, falling back to
// defaults, then applies .env and environment overrides.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom is LoadConfig with an explicit file path.
func LoadConfigFrom(path string) (Config, error) {
	loadDotenv()

	cfg := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDotenv loads ./.env and $STREAKD_HOME/.env when present. Variables
// already set in the environment win.
func loadDotenv() {
	for _, p := range []string{".env", filepath.Join(streakdHome(), ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("STREAKD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STREAKD_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("STREAKD_JOBS_TOKEN"); v != "" {
		cfg.Server.JobsToken = v
	}
	if v := os.Getenv("STREAKD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// SaveConfig writes the config to $STREAKD_HOME/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigTo(ConfigPath(), cfg)
}

// SaveConfigTo writes cfg as TOML to path.
func SaveConfigTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath is the default config file location.
func ConfigPath() string {
	return filepath.Join(streakdHome(), "config.toml")
}

// streakdHome returns the streakd data directory.
func streakdHome() string {
	if env := os.Getenv("STREAKD_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".streakd")
}

// Home is exported for use by other packages.
func Home() string {
	return streakdHome()
}

// NewLogger builds the process logger from the [logging] section.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
