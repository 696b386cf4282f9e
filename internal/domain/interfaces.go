package domain

import (
	"context"
	"time"
)

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.
// Lookups that find nothing return (nil, nil).

// ActivityStore is the append-only activity log.
type ActivityStore interface {
	// InsertActivity returns false when the record already existed.
	InsertActivity(ctx context.Context, rec ActivityRecord) (bool, error)
	ActivityDates(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error)
	HasActivityOn(ctx context.Context, userID string, day time.Time) (bool, error)
}

// EngagementStore persists engagement streak state and its ledgers.
type EngagementStore interface {
	GetEngagementStreak(ctx context.Context, userID string) (*EngagementStreak, error)
	SaveEngagementStreak(ctx context.Context, s EngagementStreak) error
	ListStreakUsers(ctx context.Context) ([]string, error)

	FrozenDays(ctx context.Context, userID string, from, to time.Time) ([]FrozenDay, error)
	// AddFrozenDay returns false when the day was already frozen.
	AddFrozenDay(ctx context.Context, fd FrozenDay) (bool, error)

	BrokenDays(ctx context.Context, userID string, from, to time.Time) ([]BrokenDay, error)
	// AddBrokenDay is a no-op when the day is already marked.
	AddBrokenDay(ctx context.Context, bd BrokenDay) error

	PausePeriods(ctx context.Context, userID string) ([]PausePeriod, error)
	AddPausePeriod(ctx context.Context, p PausePeriod) error
}

// MetricStore persists per-metric streak state.
type MetricStore interface {
	GetMetricStreak(ctx context.Context, userID string, m MetricType) (*MetricStreak, error)
	ListMetricStreaks(ctx context.Context, userID string) ([]MetricStreak, error)
	SaveMetricStreak(ctx context.Context, s MetricStreak) error
}

// HealthLog is the tracking history the metric and claim engines read.
type HealthLog interface {
	UpsertHealthEntry(ctx context.Context, e HealthEntry) error
	GetHealthEntry(ctx context.Context, userID string, day time.Time) (*HealthEntry, error)
	HealthEntries(ctx context.Context, userID string, from, to time.Time) ([]HealthEntry, error)
	InsertProgressEntry(ctx context.Context, e ProgressEntry) error
	MetricLogDates(ctx context.Context, userID string, m MetricType, from, to time.Time) ([]time.Time, error)
}

// ClaimStore persists streak claims. InsertClaim returns ErrAlreadyClaimed
// when (user, date) already has a claim.
type ClaimStore interface {
	InsertClaim(ctx context.Context, c StreakClaim) error
	SettleClaim(ctx context.Context, id string) error
	GetClaim(ctx context.Context, userID string, day time.Time) (*StreakClaim, error)
	ClaimsBetween(ctx context.Context, userID string, from, to time.Time) ([]StreakClaim, error)
}

// ShieldStore persists shield balances.
type ShieldStore interface {
	ListShields(ctx context.Context, userID string) ([]StreakShield, error)
	// AddShields adjusts a balance by delta, clamped to [0, max].
	AddShields(ctx context.Context, userID string, t ShieldType, delta, max int) (int, error)
	// ConsumeShield decrements a positive balance. Returns false when empty.
	ConsumeShield(ctx context.Context, userID string, t ShieldType) (bool, error)
	ResetFreezeShield(ctx context.Context, userID string, max int, at time.Time) (int, error)
	ListShieldUsers(ctx context.Context) ([]string, error)
}

// RecoveryStore persists recovery attempts.
type RecoveryStore interface {
	InsertRecovery(ctx context.Context, r StreakRecovery) error
	GetRecovery(ctx context.Context, id string) (*StreakRecovery, error)
	PendingRecovery(ctx context.Context, userID string, brokenDate time.Time) (*StreakRecovery, error)
	ListRecoveries(ctx context.Context, userID string) ([]StreakRecovery, error)
	UpdateRecovery(ctx context.Context, r StreakRecovery) error
}

// Store is everything the streak engines need.
type Store interface {
	ActivityStore
	EngagementStore
	MetricStore
	HealthLog
	ClaimStore
	ShieldStore
	RecoveryStore
}
