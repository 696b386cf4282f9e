package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
)

// ─── Shield Balances ────────────────────────────────────────────────────────

// ListShields returns every shield row of a user.
func (d *DB) ListShields(ctx context.Context, userID string) ([]domain.StreakShield, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, shield_type, available_count, last_reset_at
		 FROM streak_shields WHERE user_id = ? ORDER BY shield_type`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StreakShield
	for rows.Next() {
		var s domain.StreakShield
		var typ string
		var reset sql.NullInt64
		if err := rows.Scan(&s.UserID, &typ, &s.AvailableCount, &reset); err != nil {
			return nil, err
		}
		s.Type = domain.ShieldType(typ)
		s.LastResetAt = unixPtr(reset)
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddShields adjusts a balance by delta, clamped to [0, max]. max <= 0
// means uncapped. Returns the new balance.
func (d *DB) AddShields(ctx context.Context, userID string, t domain.ShieldType, delta, max int) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT available_count FROM streak_shields WHERE user_id = ? AND shield_type = ?`,
		userID, string(t),
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	next := clampShields(current+delta, max)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO streak_shields (user_id, shield_type, available_count)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id, shield_type) DO UPDATE SET available_count=excluded.available_count`,
		userID, string(t), next,
	)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

// ConsumeShield spends one shield of type t. Returns false when the
// balance is empty or the row does not exist.
func (d *DB) ConsumeShield(ctx context.Context, userID string, t domain.ShieldType) (bool, error) {
	result, err := d.db.ExecContext(ctx,
		`UPDATE streak_shields SET available_count = available_count - 1
		 WHERE user_id = ? AND shield_type = ? AND available_count > 0`,
		userID, string(t),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ResetFreezeShield adds the weekly freeze shield, capped at max, and
// stamps last_reset_at.
func (d *DB) ResetFreezeShield(ctx context.Context, userID string, max int, at time.Time) (int, error) {
	count, err := d.AddShields(ctx, userID, domain.ShieldFreeze, 1, max)
	if err != nil {
		return 0, err
	}
	if _, err := d.db.ExecContext(ctx,
		`UPDATE streak_shields SET last_reset_at = ? WHERE user_id = ? AND shield_type = ?`,
		nullableUnix(&at), userID, string(domain.ShieldFreeze),
	); err != nil {
		return 0, fmt.Errorf("stamp reset: %w", err)
	}
	return count, nil
}

// ListShieldUsers returns every user with any shield row.
func (d *DB) ListShieldUsers(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM streak_shields ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func clampShields(n, max int) int {
	if n < 0 {
		return 0
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
