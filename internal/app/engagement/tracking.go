package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pulsefit/streakd/internal/domain"
)

// Tracker is the intake path for health tracking data. Every log feeds
// the engagement streak and the streaks of the metrics it touches.
type Tracker struct {
	log     domain.HealthLog
	streaks *StreakEngine
	metrics *MetricEngine
	settings
}

// NewTracker wires the intake path.
func NewTracker(log domain.HealthLog, streaks *StreakEngine, metricEngine *MetricEngine, opts ...Option) *Tracker {
	return &Tracker{log: log, streaks: streaks, metrics: metricEngine, settings: newSettings(opts)}
}

// TrackingResult carries the streaks touched by one log.
type TrackingResult struct {
	Engagement domain.EngagementStreak `json:"engagement"`
	Metrics    []domain.MetricStreak   `json:"metrics"`
}

// LogHealth merges a day of health values into the tracking history.
// Nil fields leave stored values alone.
func (t *Tracker) LogHealth(ctx context.Context, e domain.HealthEntry) (TrackingResult, error) {
	var res TrackingResult
	if e.UserID == "" {
		return res, domain.InvalidInput("user id is required")
	}
	if !e.HasData() {
		return res, domain.InvalidInput("at least one of weight, steps, mood or energy is required")
	}
	day, err := t.resolveDay(e.Date)
	if err != nil {
		return res, err
	}
	e.Date = day

	if err := t.log.UpsertHealthEntry(ctx, e); err != nil {
		return res, fmt.Errorf("upsert health entry: %w", err)
	}

	res.Engagement, err = t.streaks.RecordActivity(ctx, e.UserID, domain.ActivityHealthLog, "", day)
	if err != nil {
		return res, err
	}

	var touched []domain.MetricType
	if e.Weight != nil {
		touched = append(touched, domain.MetricWeight)
	}
	if e.Steps != nil {
		touched = append(touched, domain.MetricSteps)
	}
	if e.Mood != nil {
		touched = append(touched, domain.MetricMood)
	}
	for _, m := range touched {
		ms, err := t.metrics.UpdateMetricStreak(ctx, e.UserID, m, day)
		if err != nil {
			return res, err
		}
		res.Metrics = append(res.Metrics, ms)
	}
	return res, nil
}

// AddProgressEntry logs a measurements set or a progress photo.
func (t *Tracker) AddProgressEntry(ctx context.Context, userID string, date time.Time, kind domain.ProgressKind) (TrackingResult, error) {
	var res TrackingResult
	if userID == "" {
		return res, domain.InvalidInput("user id is required")
	}
	var metric domain.MetricType
	switch kind {
	case domain.ProgressMeasurements:
		metric = domain.MetricMeasurements
	case domain.ProgressPhotos:
		metric = domain.MetricPhotos
	default:
		return res, domain.InvalidMetricType(string(kind))
	}
	day, err := t.resolveDay(date)
	if err != nil {
		return res, err
	}

	entry := domain.ProgressEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      day,
		Kind:      kind,
		CreatedAt: t.now(),
	}
	if err := t.log.InsertProgressEntry(ctx, entry); err != nil {
		return res, fmt.Errorf("insert progress entry: %w", err)
	}

	res.Engagement, err = t.streaks.RecordActivity(ctx, userID, domain.ActivityProgressLog, entry.ID, day)
	if err != nil {
		return res, err
	}
	ms, err := t.metrics.UpdateMetricStreak(ctx, userID, metric, day)
	if err != nil {
		return res, err
	}
	res.Metrics = append(res.Metrics, ms)
	return res, nil
}

func (t *Tracker) resolveDay(date time.Time) (time.Time, error) {
	today := t.today()
	if date.IsZero() {
		return today, nil
	}
	day := domain.Day(date)
	if day.After(today) {
		return time.Time{}, domain.InvalidInput("cannot log data for a future date")
	}
	return day, nil
}
