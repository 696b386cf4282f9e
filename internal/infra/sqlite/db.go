// Package sqlite provides SQLite-based persistent storage for streakd.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/pulsefit/streakd/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
// It implements domain.Store.
type DB struct {
	db *sql.DB
}

var _ domain.Store = (*DB)(nil)

// Open creates or opens the SQLite database at dir/streakd.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "streakd.db")
	// modernc applies each _pragma on every new connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serialises the
	// read-modify-write cycles of the engines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// PingContext checks database connectivity under ctx.
func (d *DB) PingContext(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Activity log: one row per (user, day, type), never updated.
		`CREATE TABLE IF NOT EXISTS activity_log (
			user_id       TEXT NOT NULL,
			activity_date TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			reference_id  TEXT NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL,
			PRIMARY KEY (user_id, activity_date, activity_type)
		)`,

		// Engagement streak state
		`CREATE TABLE IF NOT EXISTS engagement_streaks (
			user_id                TEXT PRIMARY KEY,
			current_streak         INTEGER NOT NULL DEFAULT 0,
			longest_streak         INTEGER NOT NULL DEFAULT 0,
			freezes_available      INTEGER NOT NULL DEFAULT 0,
			freezes_used_this_week INTEGER NOT NULL DEFAULT 0,
			last_engagement_date   TEXT,
			auto_freeze_reset_date TEXT NOT NULL,
			paused                 BOOLEAN NOT NULL DEFAULT 0,
			pause_start_date       TEXT,
			pause_end_date         TEXT,
			last_claim_date        TEXT,
			total_claims           INTEGER NOT NULL DEFAULT 0,
			updated_at             INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS streak_frozen_days (
			user_id     TEXT NOT NULL,
			frozen_date TEXT NOT NULL,
			source      TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			PRIMARY KEY (user_id, frozen_date)
		)`,
		`CREATE TABLE IF NOT EXISTS streak_broken_days (
			user_id       TEXT NOT NULL,
			broken_date   TEXT NOT NULL,
			streak_before INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL,
			PRIMARY KEY (user_id, broken_date)
		)`,
		`CREATE TABLE IF NOT EXISTS streak_pauses (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_streak_pauses_user ON streak_pauses(user_id)`,

		// Metric streaks
		`CREATE TABLE IF NOT EXISTS metric_streaks (
			user_id              TEXT NOT NULL,
			metric_type          TEXT NOT NULL,
			current_streak       INTEGER NOT NULL DEFAULT 0,
			longest_streak       INTEGER NOT NULL DEFAULT 0,
			grace_days_available INTEGER NOT NULL DEFAULT 0,
			last_log_date        TEXT,
			updated_at           INTEGER NOT NULL,
			PRIMARY KEY (user_id, metric_type)
		)`,

		// Tracking history
		`CREATE TABLE IF NOT EXISTS daily_tracking (
			user_id    TEXT NOT NULL,
			track_date TEXT NOT NULL,
			weight     REAL,
			steps      INTEGER,
			mood       INTEGER,
			energy     INTEGER,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, track_date)
		)`,
		`CREATE TABLE IF NOT EXISTS progress_entries (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			entry_date TEXT NOT NULL,
			kind       TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_user_kind ON progress_entries(user_id, kind, entry_date)`,

		// Claims
		`CREATE TABLE IF NOT EXISTS streak_claims (
			id                 TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL,
			claim_date         TEXT NOT NULL,
			claimed_at         INTEGER NOT NULL,
			claim_method       TEXT NOT NULL,
			timezone           TEXT NOT NULL DEFAULT '',
			health_data_synced BOOLEAN NOT NULL DEFAULT 0,
			metadata           TEXT NOT NULL DEFAULT '{}',
			settled            BOOLEAN NOT NULL DEFAULT 0,
			UNIQUE (user_id, claim_date)
		)`,

		// Shields
		`CREATE TABLE IF NOT EXISTS streak_shields (
			user_id         TEXT NOT NULL,
			shield_type     TEXT NOT NULL,
			available_count INTEGER NOT NULL DEFAULT 0 CHECK (available_count >= 0),
			last_reset_at   INTEGER,
			PRIMARY KEY (user_id, shield_type)
		)`,

		// Recoveries
		`CREATE TABLE IF NOT EXISTS streak_recoveries (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			broken_date       TEXT NOT NULL,
			recovery_type     TEXT NOT NULL,
			recovery_status   TEXT NOT NULL,
			actions_required  INTEGER NOT NULL DEFAULT 0,
			actions_completed INTEGER NOT NULL DEFAULT 0,
			expires_at        INTEGER,
			created_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recoveries_user ON streak_recoveries(user_id, broken_date)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func dateStr(t time.Time) string {
	return domain.FormatDate(t)
}

func nullableDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: domain.FormatDate(*t), Valid: true}
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return t, nil
}

func parseNullDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func unixPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

// scanDates collects a single-column date result set.
func scanDates(rows *sql.Rows) ([]time.Time, error) {
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		t, err := parseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// scanStrings collects a single-column text result set.
func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
