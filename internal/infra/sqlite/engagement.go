package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
)

// ─── Activity Log ───────────────────────────────────────────────────────────

// InsertActivity appends an activity record.
// Returns false if the (user, date, type) row already existed (idempotent).
func (d *DB) InsertActivity(ctx context.Context, rec domain.ActivityRecord) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO activity_log (user_id, activity_date, activity_type, reference_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.UserID, dateStr(rec.Date), rec.Type, rec.ReferenceID, time.Now().Unix(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil // true = newly inserted
}

// ActivityDates returns the distinct days in [from, to] with any activity.
func (d *DB) ActivityDates(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT DISTINCT activity_date FROM activity_log
		 WHERE user_id = ? AND activity_date BETWEEN ? AND ?
		 ORDER BY activity_date DESC`,
		userID, dateStr(from), dateStr(to),
	)
	if err != nil {
		return nil, err
	}
	return scanDates(rows)
}

// HasActivityOn reports whether the user logged anything on day.
func (d *DB) HasActivityOn(ctx context.Context, userID string, day time.Time) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_log WHERE user_id = ? AND activity_date = ?`,
		userID, dateStr(day),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ActivitiesOn lists the records for one user and day.
func (d *DB) ActivitiesOn(ctx context.Context, userID string, day time.Time) ([]domain.ActivityRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, activity_date, activity_type, reference_id FROM activity_log
		 WHERE user_id = ? AND activity_date = ? ORDER BY activity_type`,
		userID, dateStr(day),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityRecord
	for rows.Next() {
		var rec domain.ActivityRecord
		var date string
		if err := rows.Scan(&rec.UserID, &date, &rec.Type, &rec.ReferenceID); err != nil {
			return nil, err
		}
		if rec.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ─── Engagement Streak State ────────────────────────────────────────────────

// GetEngagementStreak loads a user's streak row. Returns nil if absent.
func (d *DB) GetEngagementStreak(ctx context.Context, userID string) (*domain.EngagementStreak, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT user_id, current_streak, longest_streak, freezes_available, freezes_used_this_week,
		        last_engagement_date, auto_freeze_reset_date, paused, pause_start_date, pause_end_date,
		        last_claim_date, total_claims
		 FROM engagement_streaks WHERE user_id = ?`, userID,
	)
	return scanEngagementStreak(row)
}

// SaveEngagementStreak upserts a user's streak row.
func (d *DB) SaveEngagementStreak(ctx context.Context, s domain.EngagementStreak) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO engagement_streaks (user_id, current_streak, longest_streak, freezes_available,
		        freezes_used_this_week, last_engagement_date, auto_freeze_reset_date, paused,
		        pause_start_date, pause_end_date, last_claim_date, total_claims, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			current_streak=excluded.current_streak,
			longest_streak=excluded.longest_streak,
			freezes_available=excluded.freezes_available,
			freezes_used_this_week=excluded.freezes_used_this_week,
			last_engagement_date=excluded.last_engagement_date,
			auto_freeze_reset_date=excluded.auto_freeze_reset_date,
			paused=excluded.paused,
			pause_start_date=excluded.pause_start_date,
			pause_end_date=excluded.pause_end_date,
			last_claim_date=excluded.last_claim_date,
			total_claims=excluded.total_claims,
			updated_at=excluded.updated_at`,
		s.UserID, s.CurrentStreak, s.LongestStreak, s.FreezesAvailable, s.FreezesUsedThisWeek,
		nullableDate(s.LastEngagementDate), dateStr(s.AutoFreezeResetDate), s.Paused,
		nullableDate(s.PauseStartDate), nullableDate(s.PauseEndDate), nullableDate(s.LastClaimDate),
		s.TotalClaims, time.Now().Unix(),
	)
	return err
}

// ListStreakUsers returns every user with an engagement row.
func (d *DB) ListStreakUsers(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT user_id FROM engagement_streaks ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func scanEngagementStreak(s scanner) (*domain.EngagementStreak, error) {
	var st domain.EngagementStreak
	var lastEngagement, pauseStart, pauseEnd, lastClaim sql.NullString
	var resetDate string

	err := s.Scan(&st.UserID, &st.CurrentStreak, &st.LongestStreak, &st.FreezesAvailable,
		&st.FreezesUsedThisWeek, &lastEngagement, &resetDate, &st.Paused,
		&pauseStart, &pauseEnd, &lastClaim, &st.TotalClaims)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	if st.AutoFreezeResetDate, err = parseDate(resetDate); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{lastEngagement, &st.LastEngagementDate},
		{pauseStart, &st.PauseStartDate},
		{pauseEnd, &st.PauseEndDate},
		{lastClaim, &st.LastClaimDate},
	} {
		if *f.dst, err = parseNullDate(f.src); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

// ─── Frozen Days ────────────────────────────────────────────────────────────

// FrozenDays lists covered days in [from, to].
func (d *DB) FrozenDays(ctx context.Context, userID string, from, to time.Time) ([]domain.FrozenDay, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, frozen_date, source FROM streak_frozen_days
		 WHERE user_id = ? AND frozen_date BETWEEN ? AND ?
		 ORDER BY frozen_date DESC`,
		userID, dateStr(from), dateStr(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FrozenDay
	for rows.Next() {
		var fd domain.FrozenDay
		var date string
		if err := rows.Scan(&fd.UserID, &date, &fd.Source); err != nil {
			return nil, err
		}
		if fd.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, fd)
	}
	return out, rows.Err()
}

// AddFrozenDay marks a day covered. Returns false if it already was.
func (d *DB) AddFrozenDay(ctx context.Context, fd domain.FrozenDay) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO streak_frozen_days (user_id, frozen_date, source, created_at)
		 VALUES (?, ?, ?, ?)`,
		fd.UserID, dateStr(fd.Date), fd.Source, time.Now().Unix(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ─── Broken Days ────────────────────────────────────────────────────────────

// BrokenDays lists break markers in [from, to], newest first.
func (d *DB) BrokenDays(ctx context.Context, userID string, from, to time.Time) ([]domain.BrokenDay, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, broken_date, streak_before FROM streak_broken_days
		 WHERE user_id = ? AND broken_date BETWEEN ? AND ?
		 ORDER BY broken_date DESC`,
		userID, dateStr(from), dateStr(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BrokenDay
	for rows.Next() {
		var bd domain.BrokenDay
		var date string
		if err := rows.Scan(&bd.UserID, &date, &bd.StreakBefore); err != nil {
			return nil, err
		}
		if bd.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		out = append(out, bd)
	}
	return out, rows.Err()
}

// AddBrokenDay records a break. The first marker for a day wins.
func (d *DB) AddBrokenDay(ctx context.Context, bd domain.BrokenDay) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO streak_broken_days (user_id, broken_date, streak_before, created_at)
		 VALUES (?, ?, ?, ?)`,
		bd.UserID, dateStr(bd.Date), bd.StreakBefore, time.Now().Unix(),
	)
	return err
}

// ─── Pause Periods ──────────────────────────────────────────────────────────

// PausePeriods returns the user's closed pause intervals, oldest first.
func (d *DB) PausePeriods(ctx context.Context, userID string) ([]domain.PausePeriod, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, start_date, end_date FROM streak_pauses
		 WHERE user_id = ? ORDER BY start_date`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PausePeriod
	for rows.Next() {
		var p domain.PausePeriod
		var start, end string
		if err := rows.Scan(&p.UserID, &start, &end); err != nil {
			return nil, err
		}
		if p.Start, err = parseDate(start); err != nil {
			return nil, err
		}
		if p.End, err = parseDate(end); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddPausePeriod records a closed pause interval.
func (d *DB) AddPausePeriod(ctx context.Context, p domain.PausePeriod) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO streak_pauses (user_id, start_date, end_date) VALUES (?, ?, ?)`,
		p.UserID, dateStr(p.Start), dateStr(p.End),
	)
	return err
}
