package domain

import "time"

// ─── Metric Streak Types ────────────────────────────────────────────────────

// MetricType is a tracked health metric with its own streak.
type MetricType string

const (
	MetricWeight       MetricType = "weight"
	MetricSteps        MetricType = "steps"
	MetricMood         MetricType = "mood"
	MetricMeasurements MetricType = "measurements"
	MetricPhotos       MetricType = "photos"
)

// AllMetrics lists every metric in display order.
func AllMetrics() []MetricType {
	return []MetricType{MetricWeight, MetricSteps, MetricMood, MetricMeasurements, MetricPhotos}
}

// ParseMetricType validates a metric key.
func ParseMetricType(s string) (MetricType, error) {
	m := MetricType(s)
	for _, known := range AllMetrics() {
		if m == known {
			return m, nil
		}
	}
	return "", InvalidMetricType(s)
}

// Cadence is how often a metric must be logged.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// MetricProfile describes how a metric's streak is computed.
type MetricProfile struct {
	Metric  MetricType
	Cadence Cadence
	// Window lists the weekdays that count toward a weekly metric.
	// Empty means the whole Sun..Sat week.
	Window []time.Weekday
}

// Counts reports whether a log on day qualifies for a weekly window.
func (p MetricProfile) Counts(day time.Time) bool {
	if len(p.Window) == 0 {
		return true
	}
	wd := day.Weekday()
	for _, w := range p.Window {
		if w == wd {
			return true
		}
	}
	return false
}

// ProfileFor returns the cadence profile of a metric.
func ProfileFor(m MetricType) MetricProfile {
	switch m {
	case MetricMeasurements:
		return MetricProfile{Metric: m, Cadence: CadenceWeekly}
	case MetricPhotos:
		return MetricProfile{Metric: m, Cadence: CadenceWeekly,
			Window: []time.Weekday{time.Friday, time.Saturday, time.Sunday}}
	default:
		return MetricProfile{Metric: m, Cadence: CadenceDaily}
	}
}

// MetricStreak is the per-user, per-metric streak state.
type MetricStreak struct {
	UserID             string     `json:"user_id"`
	Metric             MetricType `json:"metric_type"`
	CurrentStreak      int        `json:"current_streak"`
	LongestStreak      int        `json:"longest_streak"`
	GraceDaysAvailable int        `json:"grace_days_available"`
	LastLogDate        *time.Time `json:"last_log_date,omitempty"`
}

// ─── Tracking Data ──────────────────────────────────────────────────────────

// HealthEntry is one day of tracked health values. Nil means not logged.
type HealthEntry struct {
	UserID string    `json:"user_id"`
	Date   time.Time `json:"date"`
	Weight *float64  `json:"weight,omitempty"`
	Steps  *int      `json:"steps,omitempty"`
	Mood   *int      `json:"mood,omitempty"`
	Energy *int      `json:"energy,omitempty"`
}

// PresentFields lists which health fields carry a value.
func (h HealthEntry) PresentFields() []string {
	var fields []string
	if h.Weight != nil {
		fields = append(fields, "weight")
	}
	if h.Steps != nil {
		fields = append(fields, "steps")
	}
	if h.Mood != nil {
		fields = append(fields, "mood")
	}
	if h.Energy != nil {
		fields = append(fields, "energy")
	}
	return fields
}

// HasData reports whether any health field is present.
func (h HealthEntry) HasData() bool {
	return len(h.PresentFields()) > 0
}

// ProgressKind is a weekly progress record.
type ProgressKind string

const (
	ProgressMeasurements ProgressKind = "measurements"
	ProgressPhotos       ProgressKind = "photos"
)

// ProgressEntry is a logged body measurement set or progress photo.
type ProgressEntry struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Date      time.Time    `json:"date"`
	Kind      ProgressKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}
