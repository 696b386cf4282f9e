package engagement

import (
	"time"

	"github.com/pulsefit/streakd/internal/domain"
)

// ─── Pure Streak Calculations ───────────────────────────────────────────────
// Everything in this file is I/O free: callers load dates, these functions
// walk them.

// DefaultLookbackDays bounds the daily backward walk.
const DefaultLookbackDays = 90

// DateSet is a set of calendar days.
type DateSet map[time.Time]struct{}

// NewDateSet builds a set from dates, normalising each to a calendar day.
func NewDateSet(dates ...time.Time) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

// Add inserts a day.
func (s DateSet) Add(d time.Time) { s[domain.Day(d)] = struct{}{} }

// Has reports whether the day is in the set.
func (s DateSet) Has(d time.Time) bool {
	_, ok := s[domain.Day(d)]
	return ok
}

// Latest returns the most recent day not after asOf, or nil.
func (s DateSet) Latest(asOf time.Time) *time.Time {
	limit := domain.Day(asOf)
	var latest *time.Time
	for d := range s {
		if d.After(limit) {
			continue
		}
		if latest == nil || d.After(*latest) {
			day := d
			latest = &day
		}
	}
	return latest
}

// GraceResult is the outcome of a grace-streak walk.
type GraceResult struct {
	Streak      int
	FreezesUsed int
}

// ComputeStreak walks backward from asOf over the default lookback.
// Today without activity is skipped. An active day counts. A missed day
// spends a freeze and counts while freezes remain, otherwise the walk stops.
func ComputeStreak(active DateSet, freezesAvailable int, asOf time.Time) GraceResult {
	r := WalkEngagement(WalkInput{
		Active:           active,
		FreezesAvailable: freezesAvailable,
		AsOf:             asOf,
		LookbackDays:     DefaultLookbackDays,
	})
	return GraceResult{Streak: r.Streak, FreezesUsed: r.FreezesUsed}
}

// WalkInput parameterises the engagement walk.
type WalkInput struct {
	Active DateSet
	// Frozen days were paid for by an earlier freeze, shield or recovery.
	// They count without spending from FreezesAvailable.
	Frozen DateSet
	// Broken days end the walk unless active or frozen. No freeze is
	// spent on them.
	Broken           DateSet
	Pauses           []domain.PausePeriod
	FreezesAvailable int
	AsOf             time.Time
	LookbackDays     int
}

// WalkResult is the outcome of WalkEngagement.
type WalkResult struct {
	Streak      int
	FreezesUsed int
	// NewlyFrozen lists the gap days this walk spent a freeze on.
	NewlyFrozen []time.Time
	// Healed lists broken days the walk passed because they are covered now.
	Healed []time.Time
}

// WalkEngagement is the grace walk with frozen-day and pause awareness.
// A paused day without activity neither counts nor breaks, and it does
// not use up the lookback budget.
func WalkEngagement(in WalkInput) WalkResult {
	lookback := in.LookbackDays
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}

	var res WalkResult
	day := domain.Day(in.AsOf)
	counted := 0

walk:
	for i := 0; counted < lookback; i, day = i+1, day.AddDate(0, 0, -1) {
		active := in.Active.Has(day)
		if !active && inPause(in.Pauses, day) {
			continue
		}
		counted++

		covered := active || (in.Frozen != nil && in.Frozen.Has(day))
		broken := in.Broken != nil && in.Broken.Has(day)

		switch {
		case covered:
			res.Streak++
			if broken {
				res.Healed = append(res.Healed, day)
			}
		case broken:
			break walk
		case i == 0:
			// Today is still open.
		case res.FreezesUsed < in.FreezesAvailable:
			res.FreezesUsed++
			res.Streak++
			res.NewlyFrozen = append(res.NewlyFrozen, day)
		default:
			break walk
		}
	}
	return res
}

// WindowStart returns the earliest day the walk can reach: lookback
// counted days back from asOf, stretched by any pause days on the way.
func WindowStart(asOf time.Time, lookback int, pauses []domain.PausePeriod) time.Time {
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}
	day := domain.Day(asOf)
	counted := 0
	for {
		if !inPause(pauses, day) {
			counted++
			if counted == lookback {
				return day
			}
		}
		day = day.AddDate(0, 0, -1)
	}
}

func inPause(pauses []domain.PausePeriod, day time.Time) bool {
	for _, p := range pauses {
		if p.Contains(day) {
			return true
		}
	}
	return false
}

// ─── Metric Walks ───────────────────────────────────────────────────────────

// WeekStart returns the Sunday that opens day's Sun..Sat week.
func WeekStart(day time.Time) time.Time {
	d := domain.Day(day)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// DailyResult is the outcome of a daily metric walk.
type DailyResult struct {
	Streak            int
	GraceUsedThisWeek int
}

// ComputeDailyMetricStreak is the grace walk for daily metrics. The grace
// allotment is per calendar week: crossing back into an earlier week
// restores the full gracePerWeek regardless of what later weeks used.
func ComputeDailyMetricStreak(logged DateSet, gracePerWeek int, asOf time.Time, lookback int) DailyResult {
	if lookback <= 0 {
		lookback = DefaultLookbackDays
	}

	var res DailyResult
	day := domain.Day(asOf)
	currentWeek := WeekStart(day)
	graceWeek := currentWeek
	used := 0

walk:
	for i := 0; i < lookback; i, day = i+1, day.AddDate(0, 0, -1) {
		if ws := WeekStart(day); !ws.Equal(graceWeek) {
			graceWeek = ws
			used = 0
		}

		switch {
		case logged.Has(day):
			res.Streak++
		case i == 0:
		case used < gracePerWeek:
			used++
			res.Streak++
			if graceWeek.Equal(currentWeek) {
				res.GraceUsedThisWeek++
			}
		default:
			break walk
		}
	}
	return res
}

// ComputeWeeklyStreak counts consecutive qualifying weeks back from asOf's
// week. A week qualifies when any log inside it passes profile.Counts.
// The current week without a log is skipped; an earlier empty week breaks.
func ComputeWeeklyStreak(logs []time.Time, profile domain.MetricProfile, asOf time.Time, weeks int) int {
	qualifying := qualifyingWeeks(logs, profile, asOf)

	streak := 0
	ws := WeekStart(asOf)
	for i := 0; i < weeks; i, ws = i+1, ws.AddDate(0, 0, -7) {
		switch {
		case qualifying.Has(ws):
			streak++
		case i == 0:
		default:
			return streak
		}
	}
	return streak
}

func qualifyingWeeks(logs []time.Time, profile domain.MetricProfile, asOf time.Time) DateSet {
	limit := domain.Day(asOf)
	weeks := make(DateSet)
	for _, d := range logs {
		if domain.Day(d).After(limit) || !profile.Counts(d) {
			continue
		}
		weeks.Add(WeekStart(d))
	}
	return weeks
}

// LongestDailyRun returns the longest run of consecutive logged days
// in [from, to]. Grace is not applied.
func LongestDailyRun(logged DateSet, from, to time.Time) int {
	best, run := 0, 0
	for d := domain.Day(from); !d.After(domain.Day(to)); d = d.AddDate(0, 0, 1) {
		if logged.Has(d) {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}

// LongestWeeklyRun returns the longest run of consecutive qualifying weeks
// among the weeks ending at asOf's week, looking back at most weeks.
func LongestWeeklyRun(logs []time.Time, profile domain.MetricProfile, asOf time.Time, weeks int) int {
	qualifying := qualifyingWeeks(logs, profile, asOf)
	best, run := 0, 0
	start := WeekStart(asOf).AddDate(0, 0, -7*(weeks-1))
	for ws, i := start, 0; i < weeks; ws, i = ws.AddDate(0, 0, 7), i+1 {
		if qualifying.Has(ws) {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}
