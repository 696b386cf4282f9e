package engagement

import "github.com/pulsefit/streakd/internal/domain"

// ─── Milestones ─────────────────────────────────────────────────────────────

// StreakMilestones is the streak milestone catalog in descending threshold
// order. Evaluation order matters: the first crossed threshold wins, so a
// jump from 5 to 31 grants streak_30 only.
func StreakMilestones() []domain.Milestone {
	return []domain.Milestone{
		{Type: "streak_30", Threshold: 30, Title: "Monthly Machine", ShieldsGranted: 2},
		{Type: "streak_14", Threshold: 14, Title: "Fortnight Force", ShieldsGranted: 1},
		{Type: "streak_7", Threshold: 7, Title: "Week Warrior", ShieldsGranted: 1},
	}
}

// CheckMilestone returns the milestone crossed going from oldStreak to
// newStreak, or nil. Only upward crossings count.
func CheckMilestone(newStreak, oldStreak int) *domain.Milestone {
	for _, m := range StreakMilestones() {
		if oldStreak < m.Threshold && newStreak >= m.Threshold {
			hit := m
			return &hit
		}
	}
	return nil
}
