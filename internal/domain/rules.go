package domain

// ─── Streak Rules ───────────────────────────────────────────────────────────

// Rules holds every tunable constant of the streak engine.
type Rules struct {
	MaxStreakFreezes       int
	DefaultStreakFreezes   int
	EngagementLookbackDays int
	WeeklyLookbackWeeks    int
	MaxPauseDurationDays   int

	RetroactiveWindowDays int
	GraceCutoffHour       int // local hour before which yesterday is still "today-ish"

	MaxTotalShields      int
	DefaultFreezeShields int

	WeekendWarriorActions     int
	WeekendWarriorWindowHours int

	// Grace days granted per calendar week to daily metrics.
	GraceDaysPerWeek map[MetricType]int
}

// DefaultRules returns the production defaults.
func DefaultRules() Rules {
	return Rules{
		MaxStreakFreezes:          3,
		DefaultStreakFreezes:      2,
		EngagementLookbackDays:    90,
		WeeklyLookbackWeeks:       52,
		MaxPauseDurationDays:      90,
		RetroactiveWindowDays:     7,
		GraceCutoffHour:           3,
		MaxTotalShields:           5,
		DefaultFreezeShields:      1,
		WeekendWarriorActions:     3,
		WeekendWarriorWindowHours: 48,
		GraceDaysPerWeek: map[MetricType]int{
			MetricWeight: 1,
			MetricSteps:  2,
			MetricMood:   1,
		},
	}
}

// GraceFor returns the weekly grace allotment of a daily metric.
func (r Rules) GraceFor(m MetricType) int {
	return r.GraceDaysPerWeek[m]
}
