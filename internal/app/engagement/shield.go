package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
	"github.com/pulsefit/streakd/internal/infra/metrics"
)

// ─── Shield Economy ─────────────────────────────────────────────────────────
// Shields are a small per-user ledger: freeze shields refill weekly,
// milestone shields come from milestones, purchased ones from purchases.

// GetAvailableShields returns the user's balances. A user who never
// touched shields reports the default freeze allowance.
func (c *ClaimEngine) GetAvailableShields(ctx context.Context, userID string) (domain.ShieldStatus, error) {
	var st domain.ShieldStatus
	if userID == "" {
		return st, domain.InvalidInput("user id is required")
	}
	rows, err := c.store.ListShields(ctx, userID)
	if err != nil {
		return st, fmt.Errorf("list shields: %w", err)
	}
	st.Freeze = c.rules.DefaultFreezeShields
	for _, r := range rows {
		switch r.Type {
		case domain.ShieldFreeze:
			st.Freeze = r.AvailableCount
		case domain.ShieldMilestone:
			st.Milestone = r.AvailableCount
		case domain.ShieldPurchased:
			st.Purchased = r.AvailableCount
		}
	}
	st.Total = st.Freeze + st.Milestone + st.Purchased
	return st, nil
}

// ActivateFreeze spends one shield to protect day. Returns false without
// spending when the day is already covered by activity or a freeze.
func (c *ClaimEngine) ActivateFreeze(ctx context.Context, userID string, day time.Time) (bool, error) {
	if userID == "" {
		return false, domain.InvalidInput("user id is required")
	}
	d := domain.Day(day)
	if d.After(c.streaks.Today()) {
		return false, domain.InvalidInput("cannot freeze a future date")
	}

	covered, err := c.isCovered(ctx, userID, d)
	if err != nil {
		return false, err
	}
	if covered {
		return false, nil
	}

	shield, err := c.consumeShield(ctx, userID)
	if err != nil {
		return false, err
	}
	if _, err := c.streaks.FreezeDay(ctx, userID, d, domain.FrozenByShield); err != nil {
		return false, err
	}
	c.logger.Info("freeze activated",
		slog.String("user_id", userID),
		slog.String("date", domain.FormatDate(d)),
		slog.String("shield", string(shield)))
	return true, nil
}

// PurchaseShields credits n purchased shields.
func (c *ClaimEngine) PurchaseShields(ctx context.Context, userID string, n int) (domain.ShieldStatus, error) {
	if userID == "" {
		return domain.ShieldStatus{}, domain.InvalidInput("user id is required")
	}
	if n <= 0 {
		return domain.ShieldStatus{}, domain.InvalidInput("purchase count must be positive, got %d", n)
	}
	if _, err := c.grantShields(ctx, userID, domain.ShieldPurchased, n); err != nil {
		return domain.ShieldStatus{}, err
	}
	return c.GetAvailableShields(ctx, userID)
}

func (c *ClaimEngine) isCovered(ctx context.Context, userID string, d time.Time) (bool, error) {
	active, err := c.store.HasActivityOn(ctx, userID, d)
	if err != nil {
		return false, fmt.Errorf("check activity: %w", err)
	}
	if active {
		return true, nil
	}
	frozen, err := c.store.FrozenDays(ctx, userID, d, d)
	if err != nil {
		return false, fmt.Errorf("check frozen days: %w", err)
	}
	return len(frozen) > 0, nil
}

// consumeShield spends one shield in priority order.
func (c *ClaimEngine) consumeShield(ctx context.Context, userID string) (domain.ShieldType, error) {
	if err := c.ensureShields(ctx, userID); err != nil {
		return "", err
	}
	for _, t := range domain.ShieldPriority {
		ok, err := c.store.ConsumeShield(ctx, userID, t)
		if err != nil {
			return "", fmt.Errorf("consume %s shield: %w", t, err)
		}
		if ok {
			metrics.ShieldsConsumed.WithLabelValues(string(t)).Inc()
			return t, nil
		}
	}
	return "", domain.ErrNoShieldsAvailable
}

// grantShields adds n shields of type t. Non-purchased balances are
// capped at MaxTotalShields.
func (c *ClaimEngine) grantShields(ctx context.Context, userID string, t domain.ShieldType, n int) (int, error) {
	if err := c.ensureShields(ctx, userID); err != nil {
		return 0, err
	}
	limit := c.rules.MaxTotalShields
	if t == domain.ShieldPurchased {
		limit = 0
	}
	count, err := c.store.AddShields(ctx, userID, t, n, limit)
	if err != nil {
		return 0, fmt.Errorf("grant %s shields: %w", t, err)
	}
	metrics.ShieldsGranted.WithLabelValues(string(t)).Add(float64(n))
	return count, nil
}

// ensureShields materialises the default freeze row on first use.
func (c *ClaimEngine) ensureShields(ctx context.Context, userID string) error {
	rows, err := c.store.ListShields(ctx, userID)
	if err != nil {
		return fmt.Errorf("list shields: %w", err)
	}
	for _, r := range rows {
		if r.Type == domain.ShieldFreeze {
			return nil
		}
	}
	if _, err := c.store.AddShields(ctx, userID, domain.ShieldFreeze, c.rules.DefaultFreezeShields, c.rules.MaxTotalShields); err != nil {
		return fmt.Errorf("create freeze shields: %w", err)
	}
	return nil
}

// isNoShields reports whether err means every balance is empty.
func isNoShields(err error) bool {
	return errors.Is(err, domain.ErrNoShieldsAvailable)
}
