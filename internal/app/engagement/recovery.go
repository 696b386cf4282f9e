package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pulsefit/streakd/internal/domain"
	"github.com/pulsefit/streakd/internal/infra/metrics"
)

// ─── Streak Recovery ────────────────────────────────────────────────────────
// Expiry is lazy: a pending recovery past expires_at is marked expired the
// next time anything reads it. There is no background timer.

// StartRecovery opens a recovery for a broken day.
func (c *ClaimEngine) StartRecovery(ctx context.Context, userID string, brokenDate time.Time, typ domain.RecoveryType) (domain.StreakRecovery, error) {
	var r domain.StreakRecovery
	if userID == "" {
		return r, domain.InvalidInput("user id is required")
	}
	if typ != domain.RecoveryWeekendWarrior && typ != domain.RecoveryPurchased {
		return r, domain.InvalidInput("unknown recovery type %q", typ)
	}
	broken := domain.Day(brokenDate)
	if broken.After(c.streaks.Today()) {
		return r, domain.InvalidInput("broken date %s is in the future", domain.FormatDate(broken))
	}

	now := c.now()
	pending, err := c.store.PendingRecovery(ctx, userID, broken)
	if err != nil {
		return r, fmt.Errorf("load pending recovery: %w", err)
	}
	if pending != nil {
		if !pending.IsExpiredAt(now) {
			return r, domain.ErrRecoveryInProgress
		}
		if err := c.expire(ctx, pending); err != nil {
			return r, err
		}
	}

	r = domain.StreakRecovery{
		ID:         uuid.NewString(),
		UserID:     userID,
		BrokenDate: broken,
		Type:       typ,
		CreatedAt:  now,
	}
	switch typ {
	case domain.RecoveryWeekendWarrior:
		expires := now.Add(time.Duration(c.rules.WeekendWarriorWindowHours) * time.Hour)
		r.Status = domain.RecoveryPending
		r.ActionsRequired = c.rules.WeekendWarriorActions
		r.ExpiresAt = &expires
	case domain.RecoveryPurchased:
		r.Status = domain.RecoveryCompleted
	}

	if err := c.store.InsertRecovery(ctx, r); err != nil {
		return r, fmt.Errorf("insert recovery: %w", err)
	}
	metrics.Recoveries.WithLabelValues(string(r.Type), string(r.Status)).Inc()
	c.logger.Info("recovery started",
		slog.String("user_id", userID),
		slog.String("recovery_id", r.ID),
		slog.String("type", string(typ)),
		slog.String("broken_date", domain.FormatDate(broken)))

	if r.Status == domain.RecoveryCompleted {
		if err := c.restore(ctx, r); err != nil {
			return r, err
		}
	}
	return r, nil
}

// CompleteRecoveryAction records one qualifying action. Returns true when
// this action completed the recovery and the broken day was restored.
func (c *ClaimEngine) CompleteRecoveryAction(ctx context.Context, userID, recoveryID string) (bool, error) {
	r, err := c.store.GetRecovery(ctx, recoveryID)
	if err != nil {
		return false, fmt.Errorf("load recovery: %w", err)
	}
	if r == nil || r.UserID != userID {
		return false, domain.ErrRecoveryNotFound
	}

	switch {
	case r.Status == domain.RecoveryExpired:
		return false, domain.ErrRecoveryExpired
	case r.Status == domain.RecoveryCompleted:
		return false, nil
	case r.IsExpiredAt(c.now()):
		if err := c.expire(ctx, r); err != nil {
			return false, err
		}
		return false, domain.ErrRecoveryExpired
	}

	r.ActionsCompleted++
	done := r.ActionsCompleted >= r.ActionsRequired
	if done {
		r.Status = domain.RecoveryCompleted
	}
	if err := c.store.UpdateRecovery(ctx, *r); err != nil {
		return false, fmt.Errorf("update recovery: %w", err)
	}
	if !done {
		return false, nil
	}

	metrics.Recoveries.WithLabelValues(string(r.Type), string(r.Status)).Inc()
	if err := c.restore(ctx, *r); err != nil {
		return false, err
	}
	return true, nil
}

// ListRecoveries returns the user's recoveries newest first, expiring
// stale pending ones on the way.
func (c *ClaimEngine) ListRecoveries(ctx context.Context, userID string) ([]domain.StreakRecovery, error) {
	rows, err := c.store.ListRecoveries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recoveries: %w", err)
	}
	now := c.now()
	for i := range rows {
		if rows[i].IsExpiredAt(now) {
			if err := c.expire(ctx, &rows[i]); err != nil {
				return nil, err
			}
		}
	}
	return rows, nil
}

func (c *ClaimEngine) expire(ctx context.Context, r *domain.StreakRecovery) error {
	r.Status = domain.RecoveryExpired
	if err := c.store.UpdateRecovery(ctx, *r); err != nil {
		return fmt.Errorf("expire recovery: %w", err)
	}
	metrics.Recoveries.WithLabelValues(string(r.Type), string(r.Status)).Inc()
	return nil
}

// restore covers the broken day and recomputes the streak.
func (c *ClaimEngine) restore(ctx context.Context, r domain.StreakRecovery) error {
	if _, err := c.streaks.FreezeDay(ctx, r.UserID, r.BrokenDate, domain.FrozenByRecovery); err != nil {
		return fmt.Errorf("restore %s: %w", domain.FormatDate(r.BrokenDate), err)
	}
	c.logger.Info("streak restored",
		slog.String("user_id", r.UserID),
		slog.String("recovery_id", r.ID),
		slog.String("broken_date", domain.FormatDate(r.BrokenDate)))
	return nil
}
