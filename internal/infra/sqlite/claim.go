package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
)

// ─── Streak Claims ──────────────────────────────────────────────────────────

// InsertClaim stores a claim. A second claim for the same (user, day)
// fails with domain.ErrAlreadyClaimed.
func (d *DB) InsertClaim(ctx context.Context, c domain.StreakClaim) error {
	meta := c.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal claim metadata: %w", err)
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO streak_claims (id, user_id, claim_date, claimed_at, claim_method, timezone,
		        health_data_synced, metadata, settled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, dateStr(c.ClaimDate), c.ClaimedAt.Unix(), string(c.Method),
		c.Timezone, c.HealthDataSynced, string(raw), c.Settled,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return domain.ErrAlreadyClaimed
	}
	return err
}

// SettleClaim marks a claim's bookkeeping as done.
func (d *DB) SettleClaim(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, `UPDATE streak_claims SET settled = 1 WHERE id = ?`, id)
	return err
}

// GetClaim loads the claim for one day. Returns nil if unclaimed.
func (d *DB) GetClaim(ctx context.Context, userID string, day time.Time) (*domain.StreakClaim, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, user_id, claim_date, claimed_at, claim_method, timezone, health_data_synced, metadata, settled
		 FROM streak_claims WHERE user_id = ? AND claim_date = ?`,
		userID, dateStr(day),
	)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ClaimsBetween lists claims in [from, to], newest first.
func (d *DB) ClaimsBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.StreakClaim, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, claim_date, claimed_at, claim_method, timezone, health_data_synced, metadata, settled
		 FROM streak_claims
		 WHERE user_id = ? AND claim_date BETWEEN ? AND ?
		 ORDER BY claim_date DESC`,
		userID, dateStr(from), dateStr(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StreakClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanClaim(s scanner) (*domain.StreakClaim, error) {
	var c domain.StreakClaim
	var date, method, meta string
	var claimedAt int64
	if err := s.Scan(&c.ID, &c.UserID, &date, &claimedAt, &method, &c.Timezone,
		&c.HealthDataSynced, &meta, &c.Settled); err != nil {
		return nil, err
	}
	var err error
	if c.ClaimDate, err = parseDate(date); err != nil {
		return nil, err
	}
	c.ClaimedAt = time.Unix(claimedAt, 0).UTC()
	c.Method = domain.ClaimMethod(method)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode claim metadata: %w", err)
		}
	}
	return &c, nil
}
