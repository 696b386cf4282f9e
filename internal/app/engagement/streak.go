// Package engagement implements the streakd engagement engine.
// Streaks are recomputed from the activity log on every write rather than
// incremented, so a missed or duplicated update heals on the next call.
package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
	"github.com/pulsefit/streakd/internal/infra/metrics"
)

// StreakStore is the storage the engagement streak engine needs.
type StreakStore interface {
	domain.ActivityStore
	domain.EngagementStore
}

// StreakEngine manages the cross-activity engagement streak.
// A day counts if the user logged anything at all.
type StreakEngine struct {
	store StreakStore
	settings
}

// NewStreakEngine creates a streak engine.
func NewStreakEngine(store StreakStore, opts ...Option) *StreakEngine {
	return &StreakEngine{store: store, settings: newSettings(opts)}
}

// Rules returns the rules the engine runs with.
func (e *StreakEngine) Rules() domain.Rules { return e.rules }

// Today returns the engine's current calendar day.
func (e *StreakEngine) Today() time.Time { return e.today() }

// RecordActivity logs an activity and recomputes the streak.
// A zero date means today. Duplicate (user, date, type) records are
// ignored silently.
func (e *StreakEngine) RecordActivity(ctx context.Context, userID, activityType, referenceID string, date time.Time) (domain.EngagementStreak, error) {
	if userID == "" || activityType == "" {
		return domain.EngagementStreak{}, domain.InvalidInput("user id and activity type are required")
	}
	today := e.today()
	day := today
	if !date.IsZero() {
		day = domain.Day(date)
	}
	if day.After(today) {
		return domain.EngagementStreak{}, domain.InvalidInput("cannot record activity for a future date")
	}

	inserted, err := e.store.InsertActivity(ctx, domain.ActivityRecord{
		UserID:      userID,
		Date:        day,
		Type:        activityType,
		ReferenceID: referenceID,
	})
	if err != nil {
		return domain.EngagementStreak{}, fmt.Errorf("insert activity: %w", err)
	}
	outcome := "inserted"
	if !inserted {
		outcome = "duplicate"
	}
	metrics.ActivitiesRecorded.WithLabelValues(activityType, outcome).Inc()

	return e.UpdateEngagementStreak(ctx, userID)
}

// UpdateEngagementStreak recomputes the user's streak from the log.
// While paused the stored state is returned untouched, unless the planned
// resume date has arrived, in which case the pause ends first.
func (e *StreakEngine) UpdateEngagementStreak(ctx context.Context, userID string) (domain.EngagementStreak, error) {
	today := e.today()
	st, err := e.load(ctx, userID, today)
	if err != nil {
		return st, err
	}

	if st.Paused {
		if st.PauseEndDate == nil || today.Before(*st.PauseEndDate) {
			return st, nil
		}
		e.logger.Info("pause window elapsed, resuming streak",
			slog.String("user_id", userID),
			slog.String("pause_end", domain.FormatDatePtr(st.PauseEndDate)))
		if err := e.closePause(ctx, &st, *st.PauseEndDate); err != nil {
			return st, err
		}
	}

	prev := st.CurrentStreak
	e.applyWeeklyReset(&st, today)

	pauses, err := e.store.PausePeriods(ctx, userID)
	if err != nil {
		return st, fmt.Errorf("load pauses: %w", err)
	}
	from := WindowStart(today, e.rules.EngagementLookbackDays, pauses)

	dates, err := e.store.ActivityDates(ctx, userID, from, today)
	if err != nil {
		return st, fmt.Errorf("load activity: %w", err)
	}
	frozenDays, err := e.store.FrozenDays(ctx, userID, from, today)
	if err != nil {
		return st, fmt.Errorf("load frozen days: %w", err)
	}
	frozen := make(DateSet, len(frozenDays))
	for _, fd := range frozenDays {
		frozen.Add(fd.Date)
	}
	brokenDays, err := e.store.BrokenDays(ctx, userID, from, today)
	if err != nil {
		return st, fmt.Errorf("load broken days: %w", err)
	}
	broken := make(DateSet, len(brokenDays))
	streakBefore := make(map[time.Time]int, len(brokenDays))
	for _, bd := range brokenDays {
		broken.Add(bd.Date)
		streakBefore[domain.Day(bd.Date)] = bd.StreakBefore
	}

	active := NewDateSet(dates...)
	res := WalkEngagement(WalkInput{
		Active:           active,
		Frozen:           frozen,
		Broken:           broken,
		Pauses:           pauses,
		FreezesAvailable: st.FreezesAvailable,
		AsOf:             today,
		LookbackDays:     e.rules.EngagementLookbackDays,
	})

	// A healed break brings back a run whose freezes were already paid
	// out before the reset.
	for _, d := range res.Healed {
		prev = max(prev, streakBefore[d])
	}
	earned := res.Streak/7 - prev/7
	if earned < 0 {
		earned = 0
	}
	st.FreezesAvailable = min(e.rules.MaxStreakFreezes, st.FreezesAvailable-res.FreezesUsed+earned)
	st.FreezesUsedThisWeek += res.FreezesUsed
	st.CurrentStreak = res.Streak
	st.LongestStreak = max(st.LongestStreak, st.CurrentStreak)
	if latest := active.Latest(today); latest != nil {
		if st.LastEngagementDate == nil || latest.After(*st.LastEngagementDate) {
			st.LastEngagementDate = latest
		}
	}

	for _, d := range res.NewlyFrozen {
		if _, err := e.store.AddFrozenDay(ctx, domain.FrozenDay{
			UserID: userID, Date: d, Source: domain.FrozenByStreakFreeze,
		}); err != nil {
			return st, fmt.Errorf("record frozen day: %w", err)
		}
	}
	if err := e.store.SaveEngagementStreak(ctx, st); err != nil {
		return st, fmt.Errorf("save streak: %w", err)
	}

	metrics.StreakRecomputes.WithLabelValues("engagement").Inc()
	metrics.StreakLength.WithLabelValues("engagement").Observe(float64(st.CurrentStreak))
	if res.FreezesUsed > 0 {
		metrics.FreezesConsumed.Add(float64(res.FreezesUsed))
		e.logger.Debug("freezes bridged gaps",
			slog.String("user_id", userID),
			slog.Int("used", res.FreezesUsed),
			slog.Int("remaining", st.FreezesAvailable))
	}
	return st, nil
}

// GetEngagementStreak returns the stored state, or defaults for a user
// with no history. It never recomputes.
func (e *StreakEngine) GetEngagementStreak(ctx context.Context, userID string) (domain.EngagementStreak, error) {
	return e.load(ctx, userID, e.today())
}

// PauseStreak suspends the streak until resumeDate (default: the maximum
// pause length from today). Does not touch current_streak.
func (e *StreakEngine) PauseStreak(ctx context.Context, userID string, resumeDate *time.Time) (domain.EngagementStreak, error) {
	today := e.today()
	st, err := e.load(ctx, userID, today)
	if err != nil {
		return st, err
	}
	if st.Paused {
		return st, domain.ErrAlreadyPaused
	}

	maxDays := e.rules.MaxPauseDurationDays
	end := domain.AddDays(today, maxDays)
	if resumeDate != nil {
		end = domain.Day(*resumeDate)
	}
	days := domain.DaysBetween(today, end)
	if days <= 0 {
		return st, domain.InvalidInput("resume date %s must be after today", domain.FormatDate(end))
	}
	if days > maxDays {
		return st, domain.PauseTooLong(maxDays, days)
	}

	st.Paused = true
	st.PauseStartDate = &today
	st.PauseEndDate = &end
	if err := e.store.SaveEngagementStreak(ctx, st); err != nil {
		return st, fmt.Errorf("save streak: %w", err)
	}

	metrics.PauseTransitions.WithLabelValues("pause").Inc()
	e.logger.Info("streak paused",
		slog.String("user_id", userID),
		slog.Int("current_streak", st.CurrentStreak),
		slog.String("resume_date", domain.FormatDate(end)))
	return st, nil
}

// ResumeStreak ends a pause and recomputes. Days spent paused are skipped
// by the walk: they neither extend nor break the streak.
func (e *StreakEngine) ResumeStreak(ctx context.Context, userID string) (domain.EngagementStreak, error) {
	today := e.today()
	st, err := e.load(ctx, userID, today)
	if err != nil {
		return st, err
	}
	if !st.Paused {
		return st, domain.ErrNotPaused
	}
	if err := e.closePause(ctx, &st, today); err != nil {
		return st, err
	}
	if err := e.store.SaveEngagementStreak(ctx, st); err != nil {
		return st, fmt.Errorf("save streak: %w", err)
	}
	return e.UpdateEngagementStreak(ctx, userID)
}

// FreezeDay marks day as covered and recomputes. Returns false when the
// day was already covered.
func (e *StreakEngine) FreezeDay(ctx context.Context, userID string, day time.Time, source string) (bool, error) {
	added, err := e.store.AddFrozenDay(ctx, domain.FrozenDay{UserID: userID, Date: domain.Day(day), Source: source})
	if err != nil {
		return false, fmt.Errorf("record frozen day: %w", err)
	}
	if _, err := e.UpdateEngagementStreak(ctx, userID); err != nil {
		return added, err
	}
	return added, nil
}

// RecordClaim stamps last_claim_date and bumps total_claims.
func (e *StreakEngine) RecordClaim(ctx context.Context, userID string, day time.Time) (domain.EngagementStreak, error) {
	st, err := e.load(ctx, userID, e.today())
	if err != nil {
		return st, err
	}
	d := domain.Day(day)
	if st.LastClaimDate == nil || d.After(*st.LastClaimDate) {
		st.LastClaimDate = &d
	}
	st.TotalClaims++
	if err := e.store.SaveEngagementStreak(ctx, st); err != nil {
		return st, fmt.Errorf("save streak: %w", err)
	}
	return st, nil
}

// BreakStreak hard-resets current_streak to zero and marks day as broken,
// so later recomputes stop there instead of bridging it with a freeze.
// Longest is kept.
func (e *StreakEngine) BreakStreak(ctx context.Context, userID string, day time.Time) (domain.EngagementStreak, error) {
	st, err := e.load(ctx, userID, e.today())
	if err != nil {
		return st, err
	}
	if err := e.store.AddBrokenDay(ctx, domain.BrokenDay{
		UserID: userID, Date: domain.Day(day), StreakBefore: st.CurrentStreak,
	}); err != nil {
		return st, fmt.Errorf("record broken day: %w", err)
	}
	st.CurrentStreak = 0
	if err := e.store.SaveEngagementStreak(ctx, st); err != nil {
		return st, fmt.Errorf("save streak: %w", err)
	}
	return st, nil
}

// load returns the stored state or the lazily-created default.
func (e *StreakEngine) load(ctx context.Context, userID string, today time.Time) (domain.EngagementStreak, error) {
	if userID == "" {
		return domain.EngagementStreak{}, domain.InvalidInput("user id is required")
	}
	st, err := e.store.GetEngagementStreak(ctx, userID)
	if err != nil {
		return domain.EngagementStreak{}, fmt.Errorf("load streak: %w", err)
	}
	if st == nil {
		return domain.NewEngagementStreak(userID, today, e.rules), nil
	}
	return *st, nil
}

// applyWeeklyReset grants one freeze per elapsed week once the reset date
// is reached, capped at MaxStreakFreezes.
func (e *StreakEngine) applyWeeklyReset(st *domain.EngagementStreak, today time.Time) {
	if st.AutoFreezeResetDate.IsZero() {
		st.AutoFreezeResetDate = domain.AddDays(today, 7)
		return
	}
	if today.Before(st.AutoFreezeResetDate) {
		return
	}
	weeks := domain.DaysBetween(st.AutoFreezeResetDate, today)/7 + 1
	st.FreezesAvailable = min(e.rules.MaxStreakFreezes, st.FreezesAvailable+weeks)
	st.FreezesUsedThisWeek = 0
	st.AutoFreezeResetDate = domain.AddDays(st.AutoFreezeResetDate, 7*weeks)
}

// closePause records the closed period [start, resumeDay-1] and clears
// the pause fields. The caller saves.
func (e *StreakEngine) closePause(ctx context.Context, st *domain.EngagementStreak, resumeDay time.Time) error {
	if st.PauseStartDate != nil {
		last := domain.AddDays(resumeDay, -1)
		if !last.Before(*st.PauseStartDate) {
			if err := e.store.AddPausePeriod(ctx, domain.PausePeriod{
				UserID: st.UserID, Start: *st.PauseStartDate, End: last,
			}); err != nil {
				return fmt.Errorf("record pause period: %w", err)
			}
		}
	}
	st.Paused = false
	st.PauseStartDate = nil
	st.PauseEndDate = nil

	metrics.PauseTransitions.WithLabelValues("resume").Inc()
	e.logger.Info("streak resumed", slog.String("user_id", st.UserID))
	return nil
}
