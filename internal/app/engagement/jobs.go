package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
	"github.com/pulsefit/streakd/internal/infra/metrics"
)

// ─── Scheduled Jobs ─────────────────────────────────────────────────────────
// Entry points for an external scheduler. Each takes now explicitly and
// keeps going past per-user failures.

const (
	JobWeeklyFreezeReset = "weekly_freeze_reset"
	JobBreakCheck        = "break_check"
)

// ResetWeeklyFreezes adds one freeze shield to every known user, capped
// at MaxTotalShields, and stamps last_reset_at.
func (c *ClaimEngine) ResetWeeklyFreezes(ctx context.Context, now time.Time) (domain.JobReport, error) {
	start := time.Now()
	report := domain.JobReport{Job: JobWeeklyFreezeReset, RanAt: now}

	users, err := c.allUsers(ctx)
	if err != nil {
		return report, err
	}
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++
		if err := c.resetUserFreezes(ctx, userID, now); err != nil {
			report.Failures = append(report.Failures, domain.UserFailure{UserID: userID, Error: err.Error()})
			metrics.JobUserFailures.WithLabelValues(JobWeeklyFreezeReset).Inc()
			c.logger.Warn("freeze reset failed", slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		report.Updated++
	}

	c.finishJob(report, start)
	return report, nil
}

func (c *ClaimEngine) resetUserFreezes(ctx context.Context, userID string, now time.Time) error {
	if err := c.ensureShields(ctx, userID); err != nil {
		return err
	}
	if _, err := c.store.ResetFreezeShield(ctx, userID, c.rules.MaxTotalShields, now); err != nil {
		return fmt.Errorf("reset freeze shield: %w", err)
	}
	metrics.ShieldsGranted.WithLabelValues(string(domain.ShieldFreeze)).Inc()
	return nil
}

// CheckAndBreakStreak is the daily check for one user. Yesterday counts as
// kept when it was claimed or has activity; otherwise a shield is spent,
// and failing that the current streak is zeroed.
func (c *ClaimEngine) CheckAndBreakStreak(ctx context.Context, userID string, now time.Time) (domain.BreakOutcome, error) {
	yesterday := domain.AddDays(domain.Day(now.In(c.loc)), -1)

	claim, err := c.store.GetClaim(ctx, userID, yesterday)
	if err != nil {
		return "", fmt.Errorf("load claim: %w", err)
	}
	if claim != nil {
		return domain.BreakClaimed, nil
	}
	covered, err := c.isCovered(ctx, userID, yesterday)
	if err != nil {
		return "", err
	}
	if covered {
		return domain.BreakCovered, nil
	}

	st, err := c.streaks.GetEngagementStreak(ctx, userID)
	if err != nil {
		return "", err
	}
	if st.Paused || st.CurrentStreak == 0 {
		return domain.BreakSkipped, nil
	}

	shield, err := c.consumeShield(ctx, userID)
	switch {
	case err == nil:
		if _, err := c.store.AddFrozenDay(ctx, domain.FrozenDay{
			UserID: userID, Date: yesterday, Source: domain.FrozenByShield,
		}); err != nil {
			return "", fmt.Errorf("record frozen day: %w", err)
		}
		c.logger.Info("shield preserved streak",
			slog.String("user_id", userID),
			slog.String("shield", string(shield)),
			slog.String("date", domain.FormatDate(yesterday)))
		return domain.BreakShieldUsed, nil

	case isNoShields(err):
		if _, err := c.streaks.BreakStreak(ctx, userID, yesterday); err != nil {
			return "", err
		}
		c.logger.Info("streak broken",
			slog.String("user_id", userID),
			slog.Int("was", st.CurrentStreak))
		return domain.BreakReset, nil

	default:
		return "", err
	}
}

// CheckAndBreakStreaks runs CheckAndBreakStreak for every user with
// engagement state.
func (c *ClaimEngine) CheckAndBreakStreaks(ctx context.Context, now time.Time) (domain.JobReport, error) {
	start := time.Now()
	report := domain.JobReport{
		Job:      JobBreakCheck,
		RanAt:    now,
		Outcomes: make(map[domain.BreakOutcome]int),
	}

	users, err := c.store.ListStreakUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list streak users: %w", err)
	}
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++
		outcome, err := c.CheckAndBreakStreak(ctx, userID, now)
		if err != nil {
			report.Failures = append(report.Failures, domain.UserFailure{UserID: userID, Error: err.Error()})
			metrics.JobUserFailures.WithLabelValues(JobBreakCheck).Inc()
			c.logger.Warn("break check failed", slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		report.Outcomes[outcome]++
		if outcome == domain.BreakShieldUsed || outcome == domain.BreakReset {
			report.Updated++
		}
	}

	c.finishJob(report, start)
	return report, nil
}

// allUsers is every user with streak state or shield rows.
func (c *ClaimEngine) allUsers(ctx context.Context) ([]string, error) {
	streakUsers, err := c.store.ListStreakUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list streak users: %w", err)
	}
	shieldUsers, err := c.store.ListShieldUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shield users: %w", err)
	}
	seen := make(map[string]bool, len(streakUsers)+len(shieldUsers))
	var users []string
	for _, u := range append(streakUsers, shieldUsers...) {
		if !seen[u] {
			seen[u] = true
			users = append(users, u)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (c *ClaimEngine) finishJob(report domain.JobReport, start time.Time) {
	metrics.JobRuns.WithLabelValues(report.Job).Inc()
	metrics.JobDuration.WithLabelValues(report.Job).Observe(time.Since(start).Seconds())
	c.logger.Info("job finished",
		slog.String("job", report.Job),
		slog.Int("processed", report.Processed),
		slog.Int("updated", report.Updated),
		slog.Int("failures", len(report.Failures)))
}
