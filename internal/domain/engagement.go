// Package domain holds the pure types of the streak engine: activity
// records, streak state, claims, shields and recoveries.
// Nothing in here touches storage or the clock.
package domain

import "time"

// ─── Activity Types ─────────────────────────────────────────────────────────

// ActivityRecord is one logging event. Unique per (UserID, Date, Type);
// a duplicate insert is a no-op.
type ActivityRecord struct {
	UserID      string    `json:"user_id"`
	Date        time.Time `json:"date"`
	Type        string    `json:"activity_type"`
	ReferenceID string    `json:"reference_id,omitempty"`
}

// Activity types written by the engine itself.
const (
	ActivityStreakClaim = "streak_claim"
	ActivityHealthLog   = "health_log"
	ActivityProgressLog = "progress_log"
)

// ─── Engagement Streak ──────────────────────────────────────────────────────

// EngagementStreak is the per-user cross-activity streak state.
// LongestStreak is raised to CurrentStreak on every write and never
// decreases. FreezesAvailable never exceeds Rules.MaxStreakFreezes.
type EngagementStreak struct {
	UserID              string     `json:"user_id"`
	CurrentStreak       int        `json:"current_streak"`
	LongestStreak       int        `json:"longest_streak"`
	FreezesAvailable    int        `json:"freezes_available"`
	FreezesUsedThisWeek int        `json:"freezes_used_this_week"`
	LastEngagementDate  *time.Time `json:"last_engagement_date,omitempty"`
	AutoFreezeResetDate time.Time  `json:"auto_freeze_reset_date"`
	Paused              bool       `json:"paused"`
	PauseStartDate      *time.Time `json:"pause_start_date,omitempty"`
	PauseEndDate        *time.Time `json:"pause_end_date,omitempty"`
	LastClaimDate       *time.Time `json:"last_claim_date,omitempty"`
	TotalClaims         int        `json:"total_claims"`
}

// NewEngagementStreak returns the lazily-created default state.
func NewEngagementStreak(userID string, today time.Time, r Rules) EngagementStreak {
	return EngagementStreak{
		UserID:              userID,
		FreezesAvailable:    r.DefaultStreakFreezes,
		AutoFreezeResetDate: AddDays(today, 7),
	}
}

// FrozenDay marks a calendar day already covered by a freeze, shield or
// recovery. Recomputation treats it as present without spending again.
type FrozenDay struct {
	UserID string    `json:"user_id"`
	Date   time.Time `json:"date"`
	Source string    `json:"source"`
}

// Frozen day sources.
const (
	FrozenByStreakFreeze = "streak_freeze"
	FrozenByShield       = "shield"
	FrozenByRecovery     = "recovery"
)

// BrokenDay is a missed day the daily break check found uncovered. The
// engagement walk stops there until the day gains activity or is frozen
// (by a recovery, say). StreakBefore is the streak the break ended.
type BrokenDay struct {
	UserID       string    `json:"user_id"`
	Date         time.Time `json:"date"`
	StreakBefore int       `json:"streak_before"`
}

// PausePeriod is a closed pause interval, both ends inclusive.
type PausePeriod struct {
	UserID string    `json:"user_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Contains reports whether day falls inside the period.
func (p PausePeriod) Contains(day time.Time) bool {
	d := Day(day)
	return !d.Before(Day(p.Start)) && !d.After(Day(p.End))
}

// ─── Claims ─────────────────────────────────────────────────────────────────

// ClaimMethod records how a claim was made.
type ClaimMethod string

const (
	ClaimExplicit    ClaimMethod = "explicit"
	ClaimManualEntry ClaimMethod = "manual_entry"
	ClaimRetroactive ClaimMethod = "retroactive"
)

// Valid reports whether m is a known claim method.
func (m ClaimMethod) Valid() bool {
	switch m {
	case ClaimExplicit, ClaimManualEntry, ClaimRetroactive:
		return true
	}
	return false
}

// StreakClaim is one claimed calendar day. Unique per (UserID, ClaimDate).
type StreakClaim struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	ClaimDate        time.Time      `json:"claim_date"`
	ClaimedAt        time.Time      `json:"claimed_at"`
	Method           ClaimMethod    `json:"claim_method"`
	Timezone         string         `json:"timezone"`
	HealthDataSynced bool           `json:"health_data_synced"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	// Settled is set once the streak bookkeeping for the claim is done.
	// An unsettled claim is finished by the next claim attempt.
	Settled bool `json:"settled"`
}

// CanClaimResult is the outcome of claim validation.
type CanClaimResult struct {
	CanClaim          bool   `json:"can_claim"`
	AlreadyClaimed    bool   `json:"already_claimed"`
	Reason            string `json:"reason,omitempty"`
	GracePeriodActive bool   `json:"grace_period_active"`
}

// Claim rejection reasons shown to the user.
const (
	ReasonFutureDate     = "Cannot claim future dates"
	ReasonOutsideWindow  = "Date is outside the claim window"
	ReasonAlreadyClaimed = "Already claimed"
	ReasonNoData         = "No health data recorded for this date"
)

// ClaimResult is returned by a successful claim.
type ClaimResult struct {
	Success     bool        `json:"success"`
	StreakCount int         `json:"streak_count"`
	Milestone   *Milestone  `json:"milestone,omitempty"`
	Claim       StreakClaim `json:"claim"`
}

// ClaimableDay is one cell of the claim calendar strip.
type ClaimableDay struct {
	Date          time.Time `json:"date"`
	Claimed       bool      `json:"claimed"`
	HasHealthData bool      `json:"has_health_data"`
	CanClaim      bool      `json:"can_claim"`
	Reason        string    `json:"reason,omitempty"`
}

// ─── Shields ────────────────────────────────────────────────────────────────

// ShieldType is a kind of consumable streak protection.
type ShieldType string

const (
	ShieldFreeze    ShieldType = "freeze"
	ShieldMilestone ShieldType = "milestone_shield"
	ShieldPurchased ShieldType = "purchased"
)

// ShieldPriority is the consumption order: most renewable first.
var ShieldPriority = []ShieldType{ShieldFreeze, ShieldMilestone, ShieldPurchased}

// StreakShield is a per-user, per-type shield balance.
type StreakShield struct {
	UserID         string     `json:"user_id"`
	Type           ShieldType `json:"shield_type"`
	AvailableCount int        `json:"available_count"`
	LastResetAt    *time.Time `json:"last_reset_at,omitempty"`
}

// ShieldStatus summarises a user's shield balances.
type ShieldStatus struct {
	Freeze    int `json:"freeze"`
	Milestone int `json:"milestone_shield"`
	Purchased int `json:"purchased"`
	Total     int `json:"total"`
}

// ─── Recovery ───────────────────────────────────────────────────────────────

// RecoveryType selects how a broken streak is restored.
type RecoveryType string

const (
	RecoveryWeekendWarrior RecoveryType = "weekend_warrior"
	RecoveryPurchased      RecoveryType = "purchased"
)

// RecoveryStatus is the recovery state machine.
// pending → completed | expired.
type RecoveryStatus string

const (
	RecoveryPending   RecoveryStatus = "pending"
	RecoveryCompleted RecoveryStatus = "completed"
	RecoveryExpired   RecoveryStatus = "expired"
)

// StreakRecovery is a multi-step attempt to restore a broken day.
type StreakRecovery struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	BrokenDate       time.Time      `json:"broken_date"`
	Type             RecoveryType   `json:"recovery_type"`
	Status           RecoveryStatus `json:"recovery_status"`
	ActionsRequired  int            `json:"actions_required"`
	ActionsCompleted int            `json:"actions_completed"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// IsExpiredAt reports whether a pending recovery has run out of time.
func (r StreakRecovery) IsExpiredAt(now time.Time) bool {
	return r.Status == RecoveryPending && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// ─── Milestones ─────────────────────────────────────────────────────────────

// Milestone is a threshold crossing event.
type Milestone struct {
	Type           string `json:"type"`
	Threshold      int    `json:"threshold"`
	Title          string `json:"title"`
	ShieldsGranted int    `json:"shields_granted"`
}

// ─── Scheduled Jobs ─────────────────────────────────────────────────────────

// BreakOutcome is the per-user result of the daily break check.
type BreakOutcome string

const (
	BreakClaimed    BreakOutcome = "claimed"
	BreakCovered    BreakOutcome = "covered"
	BreakSkipped    BreakOutcome = "skipped"
	BreakShieldUsed BreakOutcome = "shield_used"
	BreakReset      BreakOutcome = "reset"
)

// UserFailure is one user a batch job could not process.
type UserFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// JobReport summarises a batch run. Failures never abort the batch.
type JobReport struct {
	Job       string               `json:"job"`
	RanAt     time.Time            `json:"ran_at"`
	Processed int                  `json:"processed"`
	Updated   int                  `json:"updated"`
	Outcomes  map[BreakOutcome]int `json:"outcomes,omitempty"`
	Failures  []UserFailure        `json:"failures,omitempty"`
}
