package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
)

// ─── Metric Streaks ─────────────────────────────────────────────────────────

// GetMetricStreak loads one metric's streak row. Returns nil if absent.
func (d *DB) GetMetricStreak(ctx context.Context, userID string, m domain.MetricType) (*domain.MetricStreak, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT user_id, metric_type, current_streak, longest_streak, grace_days_available, last_log_date
		 FROM metric_streaks WHERE user_id = ? AND metric_type = ?`,
		userID, string(m),
	)
	s, err := scanMetricStreak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListMetricStreaks returns every metric row of a user.
func (d *DB) ListMetricStreaks(ctx context.Context, userID string) ([]domain.MetricStreak, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, metric_type, current_streak, longest_streak, grace_days_available, last_log_date
		 FROM metric_streaks WHERE user_id = ? ORDER BY metric_type`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MetricStreak
	for rows.Next() {
		s, err := scanMetricStreak(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// SaveMetricStreak upserts a metric streak row.
func (d *DB) SaveMetricStreak(ctx context.Context, s domain.MetricStreak) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO metric_streaks (user_id, metric_type, current_streak, longest_streak,
		        grace_days_available, last_log_date, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, metric_type) DO UPDATE SET
			current_streak=excluded.current_streak,
			longest_streak=excluded.longest_streak,
			grace_days_available=excluded.grace_days_available,
			last_log_date=excluded.last_log_date,
			updated_at=excluded.updated_at`,
		s.UserID, string(s.Metric), s.CurrentStreak, s.LongestStreak,
		s.GraceDaysAvailable, nullableDate(s.LastLogDate), time.Now().Unix(),
	)
	return err
}

func scanMetricStreak(s scanner) (*domain.MetricStreak, error) {
	var ms domain.MetricStreak
	var metric string
	var lastLog sql.NullString
	if err := s.Scan(&ms.UserID, &metric, &ms.CurrentStreak, &ms.LongestStreak,
		&ms.GraceDaysAvailable, &lastLog); err != nil {
		return nil, err
	}
	ms.Metric = domain.MetricType(metric)
	var err error
	if ms.LastLogDate, err = parseNullDate(lastLog); err != nil {
		return nil, err
	}
	return &ms, nil
}

// ─── Daily Tracking ─────────────────────────────────────────────────────────

// UpsertHealthEntry merges a day's values. Fields left nil keep whatever
// was logged earlier that day.
func (d *DB) UpsertHealthEntry(ctx context.Context, e domain.HealthEntry) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO daily_tracking (user_id, track_date, weight, steps, mood, energy, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, track_date) DO UPDATE SET
			weight=COALESCE(excluded.weight, weight),
			steps=COALESCE(excluded.steps, steps),
			mood=COALESCE(excluded.mood, mood),
			energy=COALESCE(excluded.energy, energy),
			updated_at=excluded.updated_at`,
		e.UserID, dateStr(e.Date), nullFloat(e.Weight), nullInt(e.Steps),
		nullInt(e.Mood), nullInt(e.Energy), time.Now().Unix(),
	)
	return err
}

// GetHealthEntry loads one day of tracking. Returns nil if nothing was logged.
func (d *DB) GetHealthEntry(ctx context.Context, userID string, day time.Time) (*domain.HealthEntry, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT user_id, track_date, weight, steps, mood, energy
		 FROM daily_tracking WHERE user_id = ? AND track_date = ?`,
		userID, dateStr(day),
	)
	e, err := scanHealthEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// HealthEntries lists tracking rows in [from, to], newest first.
func (d *DB) HealthEntries(ctx context.Context, userID string, from, to time.Time) ([]domain.HealthEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, track_date, weight, steps, mood, energy
		 FROM daily_tracking
		 WHERE user_id = ? AND track_date BETWEEN ? AND ?
		 ORDER BY track_date DESC`,
		userID, dateStr(from), dateStr(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HealthEntry
	for rows.Next() {
		e, err := scanHealthEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanHealthEntry(s scanner) (*domain.HealthEntry, error) {
	var e domain.HealthEntry
	var date string
	var weight sql.NullFloat64
	var steps, mood, energy sql.NullInt64
	if err := s.Scan(&e.UserID, &date, &weight, &steps, &mood, &energy); err != nil {
		return nil, err
	}
	var err error
	if e.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	if weight.Valid {
		w := weight.Float64
		e.Weight = &w
	}
	e.Steps = intPtr(steps)
	e.Mood = intPtr(mood)
	e.Energy = intPtr(energy)
	return &e, nil
}

// InsertProgressEntry records a measurement set or progress photo.
func (d *DB) InsertProgressEntry(ctx context.Context, e domain.ProgressEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO progress_entries (id, user_id, entry_date, kind, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, dateStr(e.Date), string(e.Kind), created.Unix(),
	)
	return err
}

// MetricLogDates returns the distinct days in [from, to] on which metric m
// was logged, newest first.
func (d *DB) MetricLogDates(ctx context.Context, userID string, m domain.MetricType, from, to time.Time) ([]time.Time, error) {
	var query string
	args := []any{userID, dateStr(from), dateStr(to)}

	switch m {
	case domain.MetricWeight, domain.MetricSteps, domain.MetricMood:
		// Column name comes from the closed metric set, never from input.
		query = fmt.Sprintf(
			`SELECT track_date FROM daily_tracking
			 WHERE user_id = ? AND track_date BETWEEN ? AND ? AND %s IS NOT NULL
			 ORDER BY track_date DESC`, string(m))
	case domain.MetricMeasurements, domain.MetricPhotos:
		query = `SELECT DISTINCT entry_date FROM progress_entries
			 WHERE user_id = ? AND entry_date BETWEEN ? AND ? AND kind = ?
			 ORDER BY entry_date DESC`
		args = append(args, string(m))
	default:
		return nil, domain.InvalidMetricType(string(m))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanDates(rows)
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
