package daemon

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("STREAKD_HOME", t.TempDir())
	cfg := DefaultConfig()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8420 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8420)
	}
	if cfg.Streak.MaxStreakFreezes != 3 {
		t.Errorf("Streak.MaxStreakFreezes = %d, want 3", cfg.Streak.MaxStreakFreezes)
	}
	if cfg.Streak.GraceDaysPerWeek["steps"] != 2 {
		t.Errorf("steps grace = %d, want 2", cfg.Streak.GraceDaysPerWeek["steps"])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestStreakConfig_RulesRoundTrip(t *testing.T) {
	want := domain.DefaultRules()
	got := streakConfigFrom(want).Rules()

	if got.MaxPauseDurationDays != want.MaxPauseDurationDays {
		t.Errorf("MaxPauseDurationDays = %d, want %d", got.MaxPauseDurationDays, want.MaxPauseDurationDays)
	}
	if got.WeekendWarriorWindowHours != want.WeekendWarriorWindowHours {
		t.Errorf("WeekendWarriorWindowHours = %d, want %d", got.WeekendWarriorWindowHours, want.WeekendWarriorWindowHours)
	}
	for _, m := range domain.AllMetrics() {
		if got.GraceFor(m) != want.GraceFor(m) {
			t.Errorf("GraceFor(%s) = %d, want %d", m, got.GraceFor(m), want.GraceFor(m))
		}
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("STREAKD_HOME", home)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Database.Dir != home {
		t.Errorf("Database.Dir = %q, want %q", cfg.Database.Dir, home)
	}
}

func TestSaveLoadConfig(t *testing.T) {
	t.Setenv("STREAKD_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Server.Port = 9000
	cfg.Streak.MaxPauseDurationDays = 30
	cfg.Logging.Format = "json"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", got.Server.Port)
	}
	if got.Streak.MaxPauseDurationDays != 30 {
		t.Errorf("MaxPauseDurationDays = %d, want 30", got.Streak.MaxPauseDurationDays)
	}
	if got.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", got.Logging.Format)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("STREAKD_HOME", t.TempDir())
	t.Setenv("STREAKD_PORT", "9911")
	t.Setenv("STREAKD_JOBS_TOKEN", "tok")
	t.Setenv("STREAKD_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.Port != 9911 {
		t.Errorf("Server.Port = %d, want 9911", cfg.Server.Port)
	}
	if cfg.Server.JobsToken != "tok" {
		t.Errorf("JobsToken = %q, want tok", cfg.Server.JobsToken)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	t.Setenv("STREAKD_PORT", "not-a-port")
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should reject a non-numeric STREAKD_PORT")
	}
}

func TestLoadConfig_Dotenv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("STREAKD_HOME", home)
	t.Setenv("STREAKD_JOBS_TOKEN", "")
	os.Unsetenv("STREAKD_JOBS_TOKEN")
	if err := os.WriteFile(filepath.Join(home, ".env"), []byte("STREAKD_JOBS_TOKEN=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("STREAKD_JOBS_TOKEN") })

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Server.JobsToken != "from-dotenv" {
		t.Errorf("JobsToken = %q, want from-dotenv", cfg.Server.JobsToken)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"bad toml", "[server\nport = 1"},
		{"port", "[server]\nport = 70000"},
		{"freezes", "[streak]\nmax_streak_freezes = 1\ndefault_streak_freezes = 2"},
		{"cutoff", "[streak]\ngrace_cutoff_hour = 24"},
		{"metric", "[streak.grace_days_per_week]\nheart_rate = 1"},
		{"level", "[logging]\nlevel = \"loud\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.toml), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfigFrom(path); err == nil {
				t.Errorf("LoadConfigFrom(%q) should fail", tt.toml)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("output = %q, want a JSON warn line", out)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"5s", "5s"},
		{"", "1m0s"},
		{"soon", "1m0s"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseDuration(tt.input, 60e9)
			if got.String() != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWithConfig_Wires(t *testing.T) {
	t.Setenv("STREAKD_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Database.Dir = t.TempDir()

	d, err := NewWithConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	if d.Streaks == nil || d.Claims == nil || d.Tracker == nil || d.Server == nil || d.MCP == nil {
		t.Fatal("NewWithConfig() left a service nil")
	}
	d.Health.RunOnce(context.Background())
	if !d.Health.IsHealthy() {
		t.Errorf("fresh daemon should be healthy: %+v", d.Health.Statuses())
	}
}

func TestJobsConfig_Validate(t *testing.T) {
	t.Setenv("STREAKD_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Jobs.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default jobs config invalid: %v", err)
	}

	bad := cfg
	bad.Jobs.BreakCheck = "5 25 * * *"
	if err := bad.Validate(); err == nil {
		t.Error("break_check hour 25 should be rejected")
	}
	bad = cfg
	bad.Jobs.FreezeReset = "10 0 * * FUNDAY"
	if err := bad.Validate(); err == nil {
		t.Error("unknown weekday should be rejected")
	}
	bad = cfg
	bad.Jobs.Timezone = "Nowhere/City"
	if err := bad.Validate(); err == nil {
		t.Error("unknown timezone should be rejected")
	}
}

func TestNewWithConfig_Scheduler(t *testing.T) {
	t.Setenv("STREAKD_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Database.Dir = t.TempDir()
	cfg.Jobs.Enabled = true

	d, err := NewWithConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	if d.Scheduler == nil {
		t.Fatal("Scheduler should be set when jobs are enabled")
	}
	statuses := d.Scheduler.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("scheduled jobs = %d, want 2", len(statuses))
	}
	if statuses[0].Name != "break_check" || statuses[1].Name != "weekly_freeze_reset" {
		t.Errorf("jobs = %v", statuses)
	}
}

func TestNewWithConfig_JobsTimezone(t *testing.T) {
	t.Setenv("STREAKD_HOME", t.TempDir())
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation() error: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Database.Dir = t.TempDir()
	cfg.Jobs.Enabled = true
	cfg.Jobs.Timezone = "Asia/Tokyo"

	d, err := NewWithConfig(cfg, nil)
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	defer d.Close()

	before := domain.Day(time.Now().In(tokyo))
	today := d.Streaks.Today()
	if after := domain.Day(time.Now().In(tokyo)); before.Equal(after) && !today.Equal(before) {
		t.Errorf("Today() = %s, want Tokyo day %s", domain.FormatDate(today), domain.FormatDate(before))
	}

	// 00:05 Tokyo on Jul 16 is 15:05 UTC on Jul 15; yesterday is Jul 15.
	ctx := context.Background()
	if _, err := d.Streaks.RecordActivity(ctx, "u1", "workout", "", time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("RecordActivity() error: %v", err)
	}
	fire := time.Date(2025, 7, 15, 15, 5, 0, 0, time.UTC)
	outcome, err := d.Claims.CheckAndBreakStreak(ctx, "u1", fire)
	if err != nil {
		t.Fatalf("CheckAndBreakStreak() error: %v", err)
	}
	if outcome != domain.BreakCovered {
		t.Errorf("outcome = %s, want covered (Jul 15 checked in Tokyo time)", outcome)
	}

	next := d.Scheduler.Statuses()[0].NextRun.In(tokyo)
	if next.Hour() != 0 || next.Minute() != 5 {
		t.Errorf("break_check NextRun = %v, want 00:05 Tokyo", next)
	}
}
