// Package metrics provides Prometheus metrics for streakd.
// Counters, gauges and histograms for activity intake, streak
// recomputation, claims, shields, scheduled jobs, HTTP and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "streakd"

// ─── Activity ───────────────────────────────────────────────────────────────

// ActivitiesRecorded counts activity inserts by type and outcome
// (inserted or duplicate).
var ActivitiesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "activities_recorded_total",
	Help:      "Activity log inserts by type and outcome.",
}, []string{"type", "outcome"})

// ─── Streaks ────────────────────────────────────────────────────────────────

// StreakRecomputes counts streak recomputations by kind
// (engagement or a metric name).
var StreakRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "streak_recomputes_total",
	Help:      "Streak recomputations by kind.",
}, []string{"kind"})

// StreakLength observes the current streak after each recomputation.
var StreakLength = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "streak_length_days",
	Help:      "Current streak length observed after recomputation.",
	Buckets:   []float64{0, 1, 3, 7, 14, 30, 60, 90},
}, []string{"kind"})

// FreezesConsumed counts engagement freezes spent bridging gaps.
var FreezesConsumed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "freezes_consumed_total",
	Help:      "Engagement streak freezes consumed by the grace walk.",
})

// PauseTransitions counts pause and resume operations.
var PauseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "pause_transitions_total",
	Help:      "Streak pause state transitions.",
}, []string{"transition"})

// ─── Claims ─────────────────────────────────────────────────────────────────

// Claims counts claim attempts by result code ("ok" on success).
var Claims = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "claims_total",
	Help:      "Streak claim attempts by result.",
}, []string{"result"})

// Milestones counts milestones reached.
var Milestones = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "milestones_total",
	Help:      "Milestones reached by type.",
}, []string{"milestone"})

// ─── Shields ────────────────────────────────────────────────────────────────

// ShieldsGranted counts shields added by type.
var ShieldsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "shields_granted_total",
	Help:      "Shields granted by type.",
}, []string{"type"})

// ShieldsConsumed counts shields spent by type.
var ShieldsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "shields_consumed_total",
	Help:      "Shields consumed by type.",
}, []string{"type"})

// Recoveries counts recovery transitions by type and status.
var Recoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "recoveries_total",
	Help:      "Recovery state transitions by type and status.",
}, []string{"type", "status"})

// ─── Jobs ───────────────────────────────────────────────────────────────────

// JobRuns counts scheduled job executions.
var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "job_runs_total",
	Help:      "Scheduled job executions.",
}, []string{"job"})

// JobUserFailures counts per-user failures inside batch jobs.
var JobUserFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "job_user_failures_total",
	Help:      "Per-user failures inside batch jobs.",
}, []string{"job"})

// JobDuration tracks batch job wall time.
var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "job_duration_seconds",
	Help:      "Batch job duration in seconds.",
	Buckets:   []float64{0.01, 0.05, 0.25, 1, 5, 30, 120},
}, []string{"job"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route pattern, method and status.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "http_requests_total",
	Help:      "API requests by route, method and status.",
}, []string{"route", "method", "status"})

// HTTPDuration tracks API latency by route pattern.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "http_request_duration_seconds",
	Help:      "API request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

// RateLimited counts requests rejected by the rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "http_rate_limited_total",
	Help:      "Requests rejected by the per-client rate limiter.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
