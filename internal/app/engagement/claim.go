package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pulsefit/streakd/internal/domain"
	"github.com/pulsefit/streakd/internal/infra/metrics"
)

// ClaimEngine runs the retroactive claim workflow and the shield economy.
// It drives StreakEngine for every recomputation.
type ClaimEngine struct {
	store   domain.Store
	streaks *StreakEngine
	settings
}

// NewClaimEngine creates a claim engine. Pass the same options as the
// StreakEngine so both agree on the clock.
func NewClaimEngine(store domain.Store, streaks *StreakEngine, opts ...Option) *ClaimEngine {
	return &ClaimEngine{store: store, streaks: streaks, settings: newSettings(opts)}
}

// localNow resolves the user's zone and current instant in it.
func (c *ClaimEngine) localNow(timezone string) (time.Time, error) {
	loc, err := domain.LoadTimezone(timezone)
	if err != nil {
		return time.Time{}, err
	}
	return c.now().In(loc), nil
}

// CanClaimStreak validates a claim without writing anything.
// Checks run in a fixed order: future, window, already claimed, data.
func (c *ClaimEngine) CanClaimStreak(ctx context.Context, userID string, date time.Time, timezone string) (domain.CanClaimResult, error) {
	if userID == "" {
		return domain.CanClaimResult{}, domain.InvalidInput("user id is required")
	}
	now, err := c.localNow(timezone)
	if err != nil {
		return domain.CanClaimResult{}, err
	}
	res, _, err := c.evaluate(ctx, userID, domain.Day(date), now)
	return res, err
}

func (c *ClaimEngine) evaluate(ctx context.Context, userID string, target, localNow time.Time) (domain.CanClaimResult, *domain.HealthEntry, error) {
	var res domain.CanClaimResult
	today := domain.Day(localNow)
	age := domain.DaysBetween(target, today)

	if age < 0 {
		res.Reason = domain.ReasonFutureDate
		return res, nil, nil
	}
	if age > c.rules.RetroactiveWindowDays {
		res.Reason = domain.ReasonOutsideWindow
		return res, nil, nil
	}

	claim, err := c.store.GetClaim(ctx, userID, target)
	if err != nil {
		return res, nil, fmt.Errorf("load claim: %w", err)
	}
	if claim != nil {
		res.AlreadyClaimed = true
		res.Reason = domain.ReasonAlreadyClaimed
		return res, nil, nil
	}

	entry, err := c.store.GetHealthEntry(ctx, userID, target)
	if err != nil {
		return res, nil, fmt.Errorf("load health entry: %w", err)
	}
	if entry == nil || !entry.HasData() {
		res.Reason = domain.ReasonNoData
		return res, nil, nil
	}

	res.CanClaim = true
	res.GracePeriodActive = age == 1 && localNow.Hour() < c.rules.GraceCutoffHour
	return res, entry, nil
}

// ClaimStreak claims a day, recomputes the streak and pays out any
// milestone shields.
func (c *ClaimEngine) ClaimStreak(ctx context.Context, userID string, date time.Time, timezone string, method domain.ClaimMethod) (domain.ClaimResult, error) {
	var out domain.ClaimResult
	if userID == "" {
		return out, domain.InvalidInput("user id is required")
	}
	if method == "" {
		method = domain.ClaimExplicit
	}
	if !method.Valid() {
		return out, domain.InvalidInput("unknown claim method %q", method)
	}
	now, err := c.localNow(timezone)
	if err != nil {
		return out, err
	}
	target := domain.Day(date)

	check, entry, err := c.evaluate(ctx, userID, target, now)
	if err != nil {
		return out, err
	}
	if check.AlreadyClaimed {
		existing, err := c.store.GetClaim(ctx, userID, target)
		if err != nil {
			return out, fmt.Errorf("load claim: %w", err)
		}
		if existing != nil && !existing.Settled {
			c.logger.Info("finishing unsettled claim",
				slog.String("user_id", userID),
				slog.String("claim_id", existing.ID))
			return c.settle(ctx, *existing)
		}
		metrics.Claims.WithLabelValues(string(domain.CodeAlreadyClaimed)).Inc()
		return out, domain.ErrAlreadyClaimed
	}
	if !check.CanClaim {
		metrics.Claims.WithLabelValues(string(domain.CodeNotClaimable)).Inc()
		return out, domain.NotClaimable(check.Reason)
	}

	prev, err := c.streaks.GetEngagementStreak(ctx, userID)
	if err != nil {
		return out, err
	}

	claim := domain.StreakClaim{
		ID:               uuid.NewString(),
		UserID:           userID,
		ClaimDate:        target,
		ClaimedAt:        c.now(),
		Method:           method,
		Timezone:         timezone,
		HealthDataSynced: true,
		Metadata: map[string]any{
			"health_fields":       entry.PresentFields(),
			"grace_period_active": check.GracePeriodActive,
			"streak_before":       prev.CurrentStreak,
		},
	}
	if err := c.store.InsertClaim(ctx, claim); err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			metrics.Claims.WithLabelValues(string(domain.CodeAlreadyClaimed)).Inc()
			return out, domain.ErrAlreadyClaimed
		}
		return out, fmt.Errorf("insert claim: %w", err)
	}
	return c.settle(ctx, claim)
}

// settle does the streak bookkeeping for an inserted claim and marks it
// settled. A claim left unsettled by an error is finished by the next
// ClaimStreak for the same day.
func (c *ClaimEngine) settle(ctx context.Context, claim domain.StreakClaim) (domain.ClaimResult, error) {
	var out domain.ClaimResult
	userID := claim.UserID

	// Straight to the store: a claim for the user's local today may be
	// tomorrow for the engine's zone.
	if _, err := c.store.InsertActivity(ctx, domain.ActivityRecord{
		UserID: userID, Date: claim.ClaimDate, Type: domain.ActivityStreakClaim, ReferenceID: claim.ID,
	}); err != nil {
		return out, fmt.Errorf("insert claim activity: %w", err)
	}
	st, err := c.streaks.UpdateEngagementStreak(ctx, userID)
	if err != nil {
		return out, err
	}
	if st, err = c.streaks.RecordClaim(ctx, userID, claim.ClaimDate); err != nil {
		return out, err
	}
	if err := c.store.SettleClaim(ctx, claim.ID); err != nil {
		return out, fmt.Errorf("settle claim: %w", err)
	}
	claim.Settled = true

	milestone := CheckMilestone(st.CurrentStreak, streakBefore(claim))
	if milestone != nil {
		metrics.Milestones.WithLabelValues(milestone.Type).Inc()
		if milestone.ShieldsGranted > 0 {
			if _, err := c.grantShields(ctx, userID, domain.ShieldMilestone, milestone.ShieldsGranted); err != nil {
				return out, err
			}
		}
		c.logger.Info("milestone reached",
			slog.String("user_id", userID),
			slog.String("milestone", milestone.Type),
			slog.Int("shields_granted", milestone.ShieldsGranted))
	}

	metrics.Claims.WithLabelValues("ok").Inc()
	c.logger.Info("streak claimed",
		slog.String("user_id", userID),
		slog.String("date", domain.FormatDate(claim.ClaimDate)),
		slog.String("method", string(claim.Method)),
		slog.Int("streak", st.CurrentStreak))

	return domain.ClaimResult{
		Success:     true,
		StreakCount: st.CurrentStreak,
		Milestone:   milestone,
		Claim:       claim,
	}, nil
}

// streakBefore reads the pre-claim streak stamped into the metadata.
// Stored metadata decodes numbers as float64.
func streakBefore(claim domain.StreakClaim) int {
	switch v := claim.Metadata["streak_before"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// GetClaimableDays reports today and the previous RetroactiveWindowDays
// days, newest first.
func (c *ClaimEngine) GetClaimableDays(ctx context.Context, userID, timezone string) ([]domain.ClaimableDay, error) {
	if userID == "" {
		return nil, domain.InvalidInput("user id is required")
	}
	now, err := c.localNow(timezone)
	if err != nil {
		return nil, err
	}
	today := domain.Day(now)
	window := c.rules.RetroactiveWindowDays
	from := domain.AddDays(today, -window)

	claims, err := c.store.ClaimsBetween(ctx, userID, from, today)
	if err != nil {
		return nil, fmt.Errorf("load claims: %w", err)
	}
	claimed := make(DateSet, len(claims))
	for _, cl := range claims {
		claimed.Add(cl.ClaimDate)
	}
	entries, err := c.store.HealthEntries(ctx, userID, from, today)
	if err != nil {
		return nil, fmt.Errorf("load health entries: %w", err)
	}
	withData := make(DateSet, len(entries))
	for _, e := range entries {
		if e.HasData() {
			withData.Add(e.Date)
		}
	}

	days := make([]domain.ClaimableDay, 0, window+1)
	for i := 0; i <= window; i++ {
		d := domain.AddDays(today, -i)
		cd := domain.ClaimableDay{
			Date:          d,
			Claimed:       claimed.Has(d),
			HasHealthData: withData.Has(d),
		}
		switch {
		case cd.Claimed:
			cd.Reason = domain.ReasonAlreadyClaimed
		case !cd.HasHealthData:
			cd.Reason = domain.ReasonNoData
		default:
			cd.CanClaim = true
		}
		days = append(days, cd)
	}
	return days, nil
}
