package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func day(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "streakd.db")); os.IsNotExist(err) {
		t.Error("streakd.db should exist")
	}
}

func TestOpen_Pragmas(t *testing.T) {
	db := newTestDB(t)

	var mode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode error: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	var timeout, fk int
	if err := db.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout error: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
	if err := db.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("foreign_keys error: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	db.Close()

	// Migrations must be idempotent.
	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

// ─── Activity Log ───────────────────────────────────────────────────────────

func TestInsertActivity_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	rec := domain.ActivityRecord{UserID: "u1", Date: day("2025-07-10"), Type: "workout", ReferenceID: "w-1"}

	inserted, err := db.InsertActivity(ctx, rec)
	if err != nil {
		t.Fatalf("InsertActivity() error: %v", err)
	}
	if !inserted {
		t.Error("first insert should report inserted")
	}
	inserted, err = db.InsertActivity(ctx, rec)
	if err != nil {
		t.Fatalf("InsertActivity() error: %v", err)
	}
	if inserted {
		t.Error("duplicate insert should be a no-op")
	}

	recs, err := db.ActivitiesOn(ctx, "u1", day("2025-07-10"))
	if err != nil {
		t.Fatalf("ActivitiesOn() error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(recs))
	}
	if recs[0].ReferenceID != "w-1" {
		t.Errorf("ReferenceID = %q, want %q", recs[0].ReferenceID, "w-1")
	}
}

func TestActivityDates_DistinctNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, r := range []domain.ActivityRecord{
		{UserID: "u1", Date: day("2025-07-08"), Type: "workout"},
		{UserID: "u1", Date: day("2025-07-08"), Type: "meal"},
		{UserID: "u1", Date: day("2025-07-10"), Type: "workout"},
		{UserID: "u1", Date: day("2025-06-01"), Type: "workout"},
		{UserID: "u2", Date: day("2025-07-09"), Type: "workout"},
	} {
		if _, err := db.InsertActivity(ctx, r); err != nil {
			t.Fatalf("InsertActivity() error: %v", err)
		}
	}

	dates, err := db.ActivityDates(ctx, "u1", day("2025-07-01"), day("2025-07-31"))
	if err != nil {
		t.Fatalf("ActivityDates() error: %v", err)
	}
	if len(dates) != 2 {
		t.Fatalf("len(dates) = %d, want 2", len(dates))
	}
	if !dates[0].Equal(day("2025-07-10")) || !dates[1].Equal(day("2025-07-08")) {
		t.Errorf("dates = %v, want [2025-07-10 2025-07-08]", dates)
	}

	ok, err := db.HasActivityOn(ctx, "u1", day("2025-07-09"))
	if err != nil {
		t.Fatalf("HasActivityOn() error: %v", err)
	}
	if ok {
		t.Error("u1 has no activity on 2025-07-09")
	}
}

// ─── Engagement Streak State ────────────────────────────────────────────────

func TestEngagementStreak_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.GetEngagementStreak(ctx, "u1")
	if err != nil {
		t.Fatalf("GetEngagementStreak() error: %v", err)
	}
	if got != nil {
		t.Fatal("missing row should return nil")
	}

	last := day("2025-07-10")
	pauseStart := day("2025-07-11")
	st := domain.EngagementStreak{
		UserID:              "u1",
		CurrentStreak:       12,
		LongestStreak:       20,
		FreezesAvailable:    1,
		FreezesUsedThisWeek: 1,
		LastEngagementDate:  &last,
		AutoFreezeResetDate: day("2025-07-14"),
		Paused:              true,
		PauseStartDate:      &pauseStart,
		TotalClaims:         4,
	}
	if err := db.SaveEngagementStreak(ctx, st); err != nil {
		t.Fatalf("SaveEngagementStreak() error: %v", err)
	}

	st.CurrentStreak = 13
	if err := db.SaveEngagementStreak(ctx, st); err != nil {
		t.Fatalf("SaveEngagementStreak() update error: %v", err)
	}

	got, err = db.GetEngagementStreak(ctx, "u1")
	if err != nil {
		t.Fatalf("GetEngagementStreak() error: %v", err)
	}
	if got.CurrentStreak != 13 {
		t.Errorf("CurrentStreak = %d, want 13", got.CurrentStreak)
	}
	if got.LongestStreak != 20 {
		t.Errorf("LongestStreak = %d, want 20", got.LongestStreak)
	}
	if !got.Paused || got.PauseStartDate == nil || !got.PauseStartDate.Equal(pauseStart) {
		t.Errorf("pause state = %v %v, want paused from %v", got.Paused, got.PauseStartDate, pauseStart)
	}
	if got.PauseEndDate != nil {
		t.Errorf("PauseEndDate = %v, want nil", got.PauseEndDate)
	}
	if got.LastClaimDate != nil {
		t.Errorf("LastClaimDate = %v, want nil", got.LastClaimDate)
	}
	if !got.AutoFreezeResetDate.Equal(day("2025-07-14")) {
		t.Errorf("AutoFreezeResetDate = %v, want 2025-07-14", got.AutoFreezeResetDate)
	}

	users, err := db.ListStreakUsers(ctx)
	if err != nil {
		t.Fatalf("ListStreakUsers() error: %v", err)
	}
	if len(users) != 1 || users[0] != "u1" {
		t.Errorf("users = %v, want [u1]", users)
	}
}

func TestFrozenDays(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fd := domain.FrozenDay{UserID: "u1", Date: day("2025-07-09"), Source: domain.FrozenByShield}

	added, err := db.AddFrozenDay(ctx, fd)
	if err != nil {
		t.Fatalf("AddFrozenDay() error: %v", err)
	}
	if !added {
		t.Error("first AddFrozenDay should add")
	}
	added, err = db.AddFrozenDay(ctx, domain.FrozenDay{UserID: "u1", Date: day("2025-07-09"), Source: domain.FrozenByRecovery})
	if err != nil {
		t.Fatalf("AddFrozenDay() error: %v", err)
	}
	if added {
		t.Error("second AddFrozenDay for same day should be a no-op")
	}

	days, err := db.FrozenDays(ctx, "u1", day("2025-07-01"), day("2025-07-31"))
	if err != nil {
		t.Fatalf("FrozenDays() error: %v", err)
	}
	if len(days) != 1 || days[0].Source != domain.FrozenByShield {
		t.Errorf("frozen days = %+v, want one shield day", days)
	}
}

func TestBrokenDays(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, bd := range []domain.BrokenDay{
		{UserID: "u1", Date: day("2025-07-09"), StreakBefore: 40},
		{UserID: "u1", Date: day("2025-07-09"), StreakBefore: 0},
		{UserID: "u1", Date: day("2025-06-01"), StreakBefore: 3},
	} {
		if err := db.AddBrokenDay(ctx, bd); err != nil {
			t.Fatalf("AddBrokenDay() error: %v", err)
		}
	}

	days, err := db.BrokenDays(ctx, "u1", day("2025-07-01"), day("2025-07-31"))
	if err != nil {
		t.Fatalf("BrokenDays() error: %v", err)
	}
	if len(days) != 1 || days[0].StreakBefore != 40 {
		t.Errorf("broken days = %+v, want the first Jul 9 marker", days)
	}
}

func TestPausePeriods(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, p := range []domain.PausePeriod{
		{UserID: "u1", Start: day("2025-05-01"), End: day("2025-05-10")},
		{UserID: "u1", Start: day("2025-03-01"), End: day("2025-03-02")},
	} {
		if err := db.AddPausePeriod(ctx, p); err != nil {
			t.Fatalf("AddPausePeriod() error: %v", err)
		}
	}

	periods, err := db.PausePeriods(ctx, "u1")
	if err != nil {
		t.Fatalf("PausePeriods() error: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("len(periods) = %d, want 2", len(periods))
	}
	if !periods[0].Start.Equal(day("2025-03-01")) {
		t.Errorf("periods[0].Start = %v, want oldest first", periods[0].Start)
	}
}

// ─── Metric Streaks & Tracking ──────────────────────────────────────────────

func TestMetricStreak_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	got, err := db.GetMetricStreak(ctx, "u1", domain.MetricWeight)
	if err != nil {
		t.Fatalf("GetMetricStreak() error: %v", err)
	}
	if got != nil {
		t.Fatal("missing metric should return nil")
	}

	last := day("2025-07-10")
	ms := domain.MetricStreak{UserID: "u1", Metric: domain.MetricWeight, CurrentStreak: 5, LongestStreak: 9, GraceDaysAvailable: 1, LastLogDate: &last}
	if err := db.SaveMetricStreak(ctx, ms); err != nil {
		t.Fatalf("SaveMetricStreak() error: %v", err)
	}
	if err := db.SaveMetricStreak(ctx, domain.MetricStreak{UserID: "u1", Metric: domain.MetricSteps}); err != nil {
		t.Fatalf("SaveMetricStreak() error: %v", err)
	}

	got, err = db.GetMetricStreak(ctx, "u1", domain.MetricWeight)
	if err != nil {
		t.Fatalf("GetMetricStreak() error: %v", err)
	}
	if got.CurrentStreak != 5 || got.LongestStreak != 9 || got.GraceDaysAvailable != 1 {
		t.Errorf("metric streak = %+v", got)
	}
	if got.LastLogDate == nil || !got.LastLogDate.Equal(last) {
		t.Errorf("LastLogDate = %v, want %v", got.LastLogDate, last)
	}

	all, err := db.ListMetricStreaks(ctx, "u1")
	if err != nil {
		t.Fatalf("ListMetricStreaks() error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(metric streaks) = %d, want 2", len(all))
	}
}

func TestUpsertHealthEntry_MergesFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	w := 81.5
	steps := 9000
	mood := 4

	if err := db.UpsertHealthEntry(ctx, domain.HealthEntry{UserID: "u1", Date: day("2025-07-10"), Weight: &w}); err != nil {
		t.Fatalf("UpsertHealthEntry() error: %v", err)
	}
	if err := db.UpsertHealthEntry(ctx, domain.HealthEntry{UserID: "u1", Date: day("2025-07-10"), Steps: &steps, Mood: &mood}); err != nil {
		t.Fatalf("UpsertHealthEntry() error: %v", err)
	}

	e, err := db.GetHealthEntry(ctx, "u1", day("2025-07-10"))
	if err != nil {
		t.Fatalf("GetHealthEntry() error: %v", err)
	}
	if e == nil {
		t.Fatal("GetHealthEntry() returned nil")
	}
	if e.Weight == nil || *e.Weight != 81.5 {
		t.Errorf("Weight = %v, want 81.5 kept from first write", e.Weight)
	}
	if e.Steps == nil || *e.Steps != 9000 {
		t.Errorf("Steps = %v, want 9000", e.Steps)
	}
	if e.Energy != nil {
		t.Errorf("Energy = %v, want nil", e.Energy)
	}

	missing, err := db.GetHealthEntry(ctx, "u1", day("2025-07-11"))
	if err != nil {
		t.Fatalf("GetHealthEntry() error: %v", err)
	}
	if missing != nil {
		t.Error("unlogged day should return nil")
	}

	entries, err := db.HealthEntries(ctx, "u1", day("2025-07-01"), day("2025-07-31"))
	if err != nil {
		t.Fatalf("HealthEntries() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1", len(entries))
	}
}

func TestMetricLogDates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	w := 80.0
	mood := 3

	for _, e := range []domain.HealthEntry{
		{UserID: "u1", Date: day("2025-07-08"), Weight: &w},
		{UserID: "u1", Date: day("2025-07-09"), Mood: &mood},
		{UserID: "u1", Date: day("2025-07-10"), Weight: &w, Mood: &mood},
	} {
		if err := db.UpsertHealthEntry(ctx, e); err != nil {
			t.Fatalf("UpsertHealthEntry() error: %v", err)
		}
	}
	for i, p := range []domain.ProgressEntry{
		{UserID: "u1", Date: day("2025-07-11"), Kind: domain.ProgressPhotos},
		{UserID: "u1", Date: day("2025-07-11"), Kind: domain.ProgressPhotos},
		{UserID: "u1", Date: day("2025-07-05"), Kind: domain.ProgressMeasurements},
	} {
		p.ID = "p" + string(rune('0'+i))
		if err := db.InsertProgressEntry(ctx, p); err != nil {
			t.Fatalf("InsertProgressEntry() error: %v", err)
		}
	}

	tests := []struct {
		metric domain.MetricType
		want   int
	}{
		{domain.MetricWeight, 2},
		{domain.MetricMood, 2},
		{domain.MetricSteps, 0},
		{domain.MetricPhotos, 1},
		{domain.MetricMeasurements, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.metric), func(t *testing.T) {
			dates, err := db.MetricLogDates(ctx, "u1", tt.metric, day("2025-07-01"), day("2025-07-31"))
			if err != nil {
				t.Fatalf("MetricLogDates() error: %v", err)
			}
			if len(dates) != tt.want {
				t.Errorf("len(dates) = %d, want %d", len(dates), tt.want)
			}
		})
	}

	if _, err := db.MetricLogDates(ctx, "u1", "sleep", day("2025-07-01"), day("2025-07-31")); !errors.Is(err, domain.ErrInvalidMetricType) {
		t.Errorf("unknown metric error = %v, want ErrInvalidMetricType", err)
	}
}

// ─── Claims ─────────────────────────────────────────────────────────────────

func TestInsertClaim_UniquePerDay(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := domain.StreakClaim{
		ID:        "c1",
		UserID:    "u1",
		ClaimDate: day("2025-07-10"),
		ClaimedAt: time.Date(2025, 7, 10, 20, 0, 0, 0, time.UTC),
		Method:    domain.ClaimExplicit,
		Timezone:  "Europe/Berlin",
		Metadata:  map[string]any{"health_fields": []string{"weight"}},
	}
	if err := db.InsertClaim(ctx, c); err != nil {
		t.Fatalf("InsertClaim() error: %v", err)
	}

	c.ID = "c2"
	if err := db.InsertClaim(ctx, c); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("duplicate InsertClaim() error = %v, want ErrAlreadyClaimed", err)
	}

	got, err := db.GetClaim(ctx, "u1", day("2025-07-10"))
	if err != nil {
		t.Fatalf("GetClaim() error: %v", err)
	}
	if got == nil || got.ID != "c1" {
		t.Fatalf("GetClaim() = %+v, want c1", got)
	}
	if got.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q, want Europe/Berlin", got.Timezone)
	}
	if _, ok := got.Metadata["health_fields"]; !ok {
		t.Error("metadata should round-trip health_fields")
	}
	if got.Settled {
		t.Error("new claim should be unsettled")
	}
	if err := db.SettleClaim(ctx, "c1"); err != nil {
		t.Fatalf("SettleClaim() error: %v", err)
	}
	if got, _ = db.GetClaim(ctx, "u1", day("2025-07-10")); got == nil || !got.Settled {
		t.Errorf("GetClaim() after settle = %+v, want settled", got)
	}

	claims, err := db.ClaimsBetween(ctx, "u1", day("2025-07-01"), day("2025-07-31"))
	if err != nil {
		t.Fatalf("ClaimsBetween() error: %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("len(claims) = %d, want 1", len(claims))
	}
}

// ─── Shields ────────────────────────────────────────────────────────────────

func TestAddShields_Clamp(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n, err := db.AddShields(ctx, "u1", domain.ShieldMilestone, 7, 5)
	if err != nil {
		t.Fatalf("AddShields() error: %v", err)
	}
	if n != 5 {
		t.Errorf("balance = %d, want capped 5", n)
	}
	n, err = db.AddShields(ctx, "u1", domain.ShieldMilestone, -9, 5)
	if err != nil {
		t.Fatalf("AddShields() error: %v", err)
	}
	if n != 0 {
		t.Errorf("balance = %d, want floored 0", n)
	}
	n, err = db.AddShields(ctx, "u1", domain.ShieldPurchased, 12, 0)
	if err != nil {
		t.Fatalf("AddShields() error: %v", err)
	}
	if n != 12 {
		t.Errorf("uncapped balance = %d, want 12", n)
	}
}

func TestConsumeShield(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ok, err := db.ConsumeShield(ctx, "u1", domain.ShieldFreeze)
	if err != nil {
		t.Fatalf("ConsumeShield() error: %v", err)
	}
	if ok {
		t.Error("consuming a missing row should fail")
	}

	if _, err := db.AddShields(ctx, "u1", domain.ShieldFreeze, 1, 5); err != nil {
		t.Fatalf("AddShields() error: %v", err)
	}
	ok, _ = db.ConsumeShield(ctx, "u1", domain.ShieldFreeze)
	if !ok {
		t.Error("first consume should succeed")
	}
	ok, _ = db.ConsumeShield(ctx, "u1", domain.ShieldFreeze)
	if ok {
		t.Error("balance must never go negative")
	}
}

func TestResetFreezeShield(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2025, 7, 13, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		if _, err := db.ResetFreezeShield(ctx, "u1", 5, at); err != nil {
			t.Fatalf("ResetFreezeShield() error: %v", err)
		}
	}
	shields, err := db.ListShields(ctx, "u1")
	if err != nil {
		t.Fatalf("ListShields() error: %v", err)
	}
	if len(shields) != 1 {
		t.Fatalf("len(shields) = %d, want 1", len(shields))
	}
	if shields[0].AvailableCount != 5 {
		t.Errorf("AvailableCount = %d, want 5", shields[0].AvailableCount)
	}
	if shields[0].LastResetAt == nil || !shields[0].LastResetAt.Equal(at) {
		t.Errorf("LastResetAt = %v, want %v", shields[0].LastResetAt, at)
	}

	users, err := db.ListShieldUsers(ctx)
	if err != nil {
		t.Fatalf("ListShieldUsers() error: %v", err)
	}
	if len(users) != 1 || users[0] != "u1" {
		t.Errorf("users = %v, want [u1]", users)
	}
}

// ─── Recoveries ─────────────────────────────────────────────────────────────

func TestRecovery_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	created := time.Date(2025, 7, 12, 9, 0, 0, 0, time.UTC)
	expires := created.Add(48 * time.Hour)

	r := domain.StreakRecovery{
		ID:              "r1",
		UserID:          "u1",
		BrokenDate:      day("2025-07-11"),
		Type:            domain.RecoveryWeekendWarrior,
		Status:          domain.RecoveryPending,
		ActionsRequired: 3,
		ExpiresAt:       &expires,
		CreatedAt:       created,
	}
	if err := db.InsertRecovery(ctx, r); err != nil {
		t.Fatalf("InsertRecovery() error: %v", err)
	}

	pending, err := db.PendingRecovery(ctx, "u1", day("2025-07-11"))
	if err != nil {
		t.Fatalf("PendingRecovery() error: %v", err)
	}
	if pending == nil || pending.ID != "r1" {
		t.Fatalf("PendingRecovery() = %+v, want r1", pending)
	}
	if pending.ExpiresAt == nil || !pending.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", pending.ExpiresAt, expires)
	}

	r.ActionsCompleted = 3
	r.Status = domain.RecoveryCompleted
	if err := db.UpdateRecovery(ctx, r); err != nil {
		t.Fatalf("UpdateRecovery() error: %v", err)
	}

	pending, err = db.PendingRecovery(ctx, "u1", day("2025-07-11"))
	if err != nil {
		t.Fatalf("PendingRecovery() error: %v", err)
	}
	if pending != nil {
		t.Error("completed recovery should not be pending")
	}

	got, err := db.GetRecovery(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRecovery() error: %v", err)
	}
	if got.Status != domain.RecoveryCompleted || got.ActionsCompleted != 3 {
		t.Errorf("recovery = %+v, want completed 3/3", got)
	}

	missing, err := db.GetRecovery(ctx, "nope")
	if err != nil {
		t.Fatalf("GetRecovery() error: %v", err)
	}
	if missing != nil {
		t.Error("unknown id should return nil")
	}

	list, err := db.ListRecoveries(ctx, "u1")
	if err != nil {
		t.Fatalf("ListRecoveries() error: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len(recoveries) = %d, want 1", len(list))
	}
}
