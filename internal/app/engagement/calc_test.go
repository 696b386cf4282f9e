package engagement

import (
	"testing"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
)

func d(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func dates(ss ...string) DateSet {
	set := make(DateSet, len(ss))
	for _, s := range ss {
		set.Add(d(s))
	}
	return set
}

// ─── Engagement Walk ────────────────────────────────────────────────────────

func TestComputeStreak_TodayDoesNotBreak(t *testing.T) {
	active := dates("2025-07-09", "2025-07-10")

	for _, freezes := range []int{0, 1, 2} {
		yesterday := ComputeStreak(active, freezes, d("2025-07-10"))
		today := ComputeStreak(active, freezes, d("2025-07-11"))
		if today.Streak != yesterday.Streak {
			t.Errorf("freezes=%d: streak today = %d, yesterday = %d, want equal",
				freezes, today.Streak, yesterday.Streak)
		}
	}

	got := ComputeStreak(active, 0, d("2025-07-11"))
	if got.Streak != 2 {
		t.Errorf("Streak = %d, want 2", got.Streak)
	}
}

func TestComputeStreak_GraceExhaustion(t *testing.T) {
	got := ComputeStreak(DateSet{}, 1, d("2025-07-11"))
	if got.Streak != 1 {
		t.Errorf("Streak = %d, want 1", got.Streak)
	}
	if got.FreezesUsed != 1 {
		t.Errorf("FreezesUsed = %d, want 1", got.FreezesUsed)
	}
}

func TestComputeStreak_FreezeAbsorbsGap(t *testing.T) {
	// Mon..Fri with Thursday missed.
	active := dates("2025-07-07", "2025-07-08", "2025-07-09", "2025-07-11")
	got := ComputeStreak(active, 1, d("2025-07-11"))
	if got.Streak != 5 {
		t.Errorf("Streak = %d, want 5", got.Streak)
	}
	if got.FreezesUsed != 1 {
		t.Errorf("FreezesUsed = %d, want 1", got.FreezesUsed)
	}
}

func TestComputeStreak_NoFreezesBreaksAtGap(t *testing.T) {
	active := dates("2025-07-07", "2025-07-08", "2025-07-09", "2025-07-11")
	got := ComputeStreak(active, 0, d("2025-07-11"))
	if got.Streak != 1 {
		t.Errorf("Streak = %d, want 1", got.Streak)
	}
}

func TestWalkEngagement_FrozenDaysAreFree(t *testing.T) {
	res := WalkEngagement(WalkInput{
		Active:           dates("2025-07-09", "2025-07-11"),
		Frozen:           dates("2025-07-10"),
		FreezesAvailable: 0,
		AsOf:             d("2025-07-11"),
		LookbackDays:     90,
	})
	if res.Streak != 3 {
		t.Errorf("Streak = %d, want 3", res.Streak)
	}
	if res.FreezesUsed != 0 || len(res.NewlyFrozen) != 0 {
		t.Errorf("FreezesUsed = %d, NewlyFrozen = %v, want none", res.FreezesUsed, res.NewlyFrozen)
	}
}

func TestWalkEngagement_NewlyFrozen(t *testing.T) {
	res := WalkEngagement(WalkInput{
		Active:           dates("2025-07-08", "2025-07-10"),
		FreezesAvailable: 1,
		AsOf:             d("2025-07-10"),
		LookbackDays:     90,
	})
	if res.Streak != 3 {
		t.Errorf("Streak = %d, want 3", res.Streak)
	}
	if len(res.NewlyFrozen) != 1 || !res.NewlyFrozen[0].Equal(d("2025-07-09")) {
		t.Errorf("NewlyFrozen = %v, want [2025-07-09]", res.NewlyFrozen)
	}
}

func TestWalkEngagement_BrokenDayStops(t *testing.T) {
	res := WalkEngagement(WalkInput{
		Active:           dates("2025-07-05", "2025-07-06", "2025-07-08"),
		Broken:           dates("2025-07-07"),
		FreezesAvailable: 3,
		AsOf:             d("2025-07-08"),
		LookbackDays:     90,
	})
	if res.Streak != 1 {
		t.Errorf("Streak = %d, want 1", res.Streak)
	}
	if res.FreezesUsed != 0 || len(res.NewlyFrozen) != 0 {
		t.Errorf("FreezesUsed = %d, NewlyFrozen = %v, want none", res.FreezesUsed, res.NewlyFrozen)
	}
}

func TestWalkEngagement_BrokenDayHealed(t *testing.T) {
	res := WalkEngagement(WalkInput{
		Active:       dates("2025-07-05", "2025-07-06", "2025-07-08"),
		Frozen:       dates("2025-07-07"),
		Broken:       dates("2025-07-07"),
		AsOf:         d("2025-07-08"),
		LookbackDays: 90,
	})
	if res.Streak != 4 {
		t.Errorf("Streak = %d, want 4", res.Streak)
	}
	if len(res.Healed) != 1 || !res.Healed[0].Equal(d("2025-07-07")) {
		t.Errorf("Healed = %v, want [2025-07-07]", res.Healed)
	}
}

func TestWalkEngagement_PauseDaysSkipped(t *testing.T) {
	res := WalkEngagement(WalkInput{
		Active: dates("2025-07-01", "2025-07-02", "2025-07-03"),
		Pauses: []domain.PausePeriod{
			{Start: d("2025-07-04"), End: d("2025-07-09")},
		},
		AsOf:         d("2025-07-10"),
		LookbackDays: 90,
	})
	if res.Streak != 3 {
		t.Errorf("Streak = %d, want 3", res.Streak)
	}
}

func TestWalkEngagement_ActivityInsidePauseCounts(t *testing.T) {
	res := WalkEngagement(WalkInput{
		Active: dates("2025-07-03", "2025-07-05"),
		Pauses: []domain.PausePeriod{
			{Start: d("2025-07-04"), End: d("2025-07-06")},
		},
		AsOf:         d("2025-07-07"),
		LookbackDays: 90,
	})
	if res.Streak != 2 {
		t.Errorf("Streak = %d, want 2", res.Streak)
	}
}

func TestWalkEngagement_LookbackBound(t *testing.T) {
	active := make(DateSet)
	for i := 0; i < 200; i++ {
		active.Add(d("2025-07-10").AddDate(0, 0, -i))
	}
	res := WalkEngagement(WalkInput{Active: active, AsOf: d("2025-07-10"), LookbackDays: 30})
	if res.Streak != 30 {
		t.Errorf("Streak = %d, want 30", res.Streak)
	}
}

func TestWindowStart_StretchedByPause(t *testing.T) {
	plain := WindowStart(d("2025-07-10"), 10, nil)
	if !plain.Equal(d("2025-07-01")) {
		t.Errorf("WindowStart = %v, want 2025-07-01", plain)
	}
	paused := WindowStart(d("2025-07-10"), 10, []domain.PausePeriod{
		{Start: d("2025-07-05"), End: d("2025-07-07")},
	})
	if !paused.Equal(d("2025-06-28")) {
		t.Errorf("WindowStart with pause = %v, want 2025-06-28", paused)
	}
}

// ─── Daily Metrics ──────────────────────────────────────────────────────────

func TestComputeDailyMetricStreak_WeightScenario(t *testing.T) {
	// Mon Jul 7..Fri Jul 11, Thursday missed; weight gets 1 grace day a week.
	logged := dates("2025-07-07", "2025-07-08", "2025-07-09", "2025-07-11")
	got := ComputeDailyMetricStreak(logged, 1, d("2025-07-11"), 90)
	if got.Streak != 5 {
		t.Errorf("Streak = %d, want 5", got.Streak)
	}
	if got.GraceUsedThisWeek != 1 {
		t.Errorf("GraceUsedThisWeek = %d, want 1", got.GraceUsedThisWeek)
	}
}

func TestComputeDailyMetricStreak_GraceResetsPerWeek(t *testing.T) {
	logged := dates(
		"2025-07-12", "2025-07-11", // Sat, Fri; Thu missed
		"2025-07-09", "2025-07-08", "2025-07-07", "2025-07-06",
		"2025-07-05", // previous week: Fri missed
		"2025-07-03", // Wed missed, no grace left
	)
	got := ComputeDailyMetricStreak(logged, 1, d("2025-07-12"), 90)
	if got.Streak != 10 {
		t.Errorf("Streak = %d, want 10", got.Streak)
	}
	if got.GraceUsedThisWeek != 1 {
		t.Errorf("GraceUsedThisWeek = %d, want 1", got.GraceUsedThisWeek)
	}
}

func TestLongestDailyRun(t *testing.T) {
	logged := dates("2025-07-01", "2025-07-02", "2025-07-03", "2025-07-05", "2025-07-06")
	if got := LongestDailyRun(logged, d("2025-07-01"), d("2025-07-10")); got != 3 {
		t.Errorf("LongestDailyRun = %d, want 3", got)
	}
}

// ─── Weekly Metrics ─────────────────────────────────────────────────────────

func TestComputeWeeklyStreak_PhotoWindow(t *testing.T) {
	photos := domain.ProfileFor(domain.MetricPhotos)
	asOf := d("2025-07-12") // Saturday

	wednesday := []time.Time{d("2025-07-09")}
	if got := ComputeWeeklyStreak(wednesday, photos, asOf, 52); got != 0 {
		t.Errorf("Wednesday photo streak = %d, want 0", got)
	}
	saturday := []time.Time{d("2025-07-12")}
	if got := ComputeWeeklyStreak(saturday, photos, asOf, 52); got != 1 {
		t.Errorf("Saturday photo streak = %d, want 1", got)
	}
}

func TestComputeWeeklyStreak_CurrentWeekOpen(t *testing.T) {
	measurements := domain.ProfileFor(domain.MetricMeasurements)
	logs := []time.Time{d("2025-07-02"), d("2025-06-25"), d("2025-06-11")}

	// Week of Jul 6 has nothing yet; Jul 2 and Jun 25 weeks count, Jun 15 week breaks.
	if got := ComputeWeeklyStreak(logs, measurements, d("2025-07-08"), 52); got != 2 {
		t.Errorf("streak = %d, want 2", got)
	}
	if got := LongestWeeklyRun(logs, measurements, d("2025-07-08"), 52); got != 2 {
		t.Errorf("longest = %d, want 2", got)
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		day, want string
	}{
		{"2025-07-06", "2025-07-06"},
		{"2025-07-09", "2025-07-06"},
		{"2025-07-12", "2025-07-06"},
		{"2025-07-13", "2025-07-13"},
	}
	for _, tt := range tests {
		if got := WeekStart(d(tt.day)); !got.Equal(d(tt.want)) {
			t.Errorf("WeekStart(%s) = %s, want %s", tt.day, domain.FormatDate(got), tt.want)
		}
	}
}

// ─── Milestones ─────────────────────────────────────────────────────────────

func TestCheckMilestone(t *testing.T) {
	tests := []struct {
		name     string
		newS     int
		oldS     int
		want     string
		wantGain int
	}{
		{"six to seven", 7, 6, "streak_7", 1},
		{"to fourteen", 14, 13, "streak_14", 1},
		{"jump past all", 31, 5, "streak_30", 2},
		{"no crossing", 8, 7, "", 0},
		{"downward", 6, 7, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := CheckMilestone(tt.newS, tt.oldS)
			if tt.want == "" {
				if m != nil {
					t.Errorf("CheckMilestone(%d, %d) = %s, want nil", tt.newS, tt.oldS, m.Type)
				}
				return
			}
			if m == nil {
				t.Fatalf("CheckMilestone(%d, %d) = nil, want %s", tt.newS, tt.oldS, tt.want)
			}
			if m.Type != tt.want || m.ShieldsGranted != tt.wantGain {
				t.Errorf("milestone = %s/%d, want %s/%d", m.Type, m.ShieldsGranted, tt.want, tt.wantGain)
			}
		})
	}
}

func TestApplyWeeklyReset(t *testing.T) {
	e := NewStreakEngine(nil, WithRules(domain.DefaultRules()))

	tests := []struct {
		name      string
		available int
		today     string
		want      int
		wantReset string
	}{
		{"before reset date", 0, "2025-07-09", 0, "2025-07-10"},
		{"on reset date", 0, "2025-07-10", 1, "2025-07-17"},
		{"three weeks late", 0, "2025-07-24", 3, "2025-07-31"},
		{"capped", 2, "2025-07-24", 3, "2025-07-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := domain.EngagementStreak{
				FreezesAvailable:    tt.available,
				FreezesUsedThisWeek: 2,
				AutoFreezeResetDate: d("2025-07-10"),
			}
			e.applyWeeklyReset(&st, d(tt.today))
			if st.FreezesAvailable != tt.want {
				t.Errorf("FreezesAvailable = %d, want %d", st.FreezesAvailable, tt.want)
			}
			if !st.AutoFreezeResetDate.Equal(d(tt.wantReset)) {
				t.Errorf("AutoFreezeResetDate = %s, want %s", domain.FormatDate(st.AutoFreezeResetDate), tt.wantReset)
			}
		})
	}
}
