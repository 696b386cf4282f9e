package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
)

// ─── Streak Recoveries ──────────────────────────────────────────────────────

const recoveryColumns = `id, user_id, broken_date, recovery_type, recovery_status,
	actions_required, actions_completed, expires_at, created_at`

// InsertRecovery stores a new recovery attempt.
func (d *DB) InsertRecovery(ctx context.Context, r domain.StreakRecovery) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO streak_recoveries (`+recoveryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, dateStr(r.BrokenDate), string(r.Type), string(r.Status),
		r.ActionsRequired, r.ActionsCompleted, nullableUnix(r.ExpiresAt), r.CreatedAt.Unix(),
	)
	return err
}

// GetRecovery loads a recovery by id. Returns nil if absent.
func (d *DB) GetRecovery(ctx context.Context, id string) (*domain.StreakRecovery, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+recoveryColumns+` FROM streak_recoveries WHERE id = ?`, id)
	r, err := scanRecovery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// PendingRecovery returns the newest pending recovery for a broken day.
func (d *DB) PendingRecovery(ctx context.Context, userID string, brokenDate time.Time) (*domain.StreakRecovery, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+recoveryColumns+` FROM streak_recoveries
		 WHERE user_id = ? AND broken_date = ? AND recovery_status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID, dateStr(brokenDate), string(domain.RecoveryPending),
	)
	r, err := scanRecovery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListRecoveries returns a user's recoveries, newest first.
func (d *DB) ListRecoveries(ctx context.Context, userID string) ([]domain.StreakRecovery, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+recoveryColumns+` FROM streak_recoveries
		 WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StreakRecovery
	for rows.Next() {
		r, err := scanRecovery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateRecovery persists status and progress.
func (d *DB) UpdateRecovery(ctx context.Context, r domain.StreakRecovery) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE streak_recoveries
		 SET recovery_status = ?, actions_completed = ?, expires_at = ?
		 WHERE id = ?`,
		string(r.Status), r.ActionsCompleted, nullableUnix(r.ExpiresAt), r.ID,
	)
	return err
}

func scanRecovery(s scanner) (*domain.StreakRecovery, error) {
	var r domain.StreakRecovery
	var broken, typ, status string
	var expires sql.NullInt64
	var created int64
	if err := s.Scan(&r.ID, &r.UserID, &broken, &typ, &status,
		&r.ActionsRequired, &r.ActionsCompleted, &expires, &created); err != nil {
		return nil, err
	}
	var err error
	if r.BrokenDate, err = parseDate(broken); err != nil {
		return nil, err
	}
	r.Type = domain.RecoveryType(typ)
	r.Status = domain.RecoveryStatus(status)
	r.ExpiresAt = unixPtr(expires)
	r.CreatedAt = time.Unix(created, 0).UTC()
	return &r, nil
}
