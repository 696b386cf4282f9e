package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
	"github.com/pulsefit/streakd/internal/infra/metrics"
)

// MetricStore is the storage the metric streak engine needs.
type MetricStore interface {
	domain.MetricStore
	domain.HealthLog
}

// MetricEngine keeps one independent streak per tracked metric.
// Daily metrics get a weekly grace allotment; weekly metrics count weeks.
type MetricEngine struct {
	store MetricStore
	settings
}

// NewMetricEngine creates a metric streak engine.
func NewMetricEngine(store MetricStore, opts ...Option) *MetricEngine {
	return &MetricEngine{store: store, settings: newSettings(opts)}
}

// UpdateMetricStreak recomputes one metric's streak as of today.
// logDate, when set, must not be in the future; the walk always starts
// from today so a back-filled log is picked up wherever it lands.
func (e *MetricEngine) UpdateMetricStreak(ctx context.Context, userID string, metric domain.MetricType, logDate time.Time) (domain.MetricStreak, error) {
	if _, err := domain.ParseMetricType(string(metric)); err != nil {
		return domain.MetricStreak{}, err
	}
	if userID == "" {
		return domain.MetricStreak{}, domain.InvalidInput("user id is required")
	}
	today := e.today()
	if !logDate.IsZero() && domain.Day(logDate).After(today) {
		return domain.MetricStreak{}, domain.InvalidInput("log date %s is in the future", domain.FormatDate(logDate))
	}

	existing, err := e.store.GetMetricStreak(ctx, userID, metric)
	if err != nil {
		return domain.MetricStreak{}, fmt.Errorf("load %s streak: %w", metric, err)
	}
	st := domain.MetricStreak{UserID: userID, Metric: metric}
	if existing != nil {
		st = *existing
	}

	profile := domain.ProfileFor(metric)
	var (
		from       time.Time
		current    int
		longestWin int
		graceLeft  int
		logged     []time.Time
	)

	switch profile.Cadence {
	case domain.CadenceWeekly:
		weeks := e.rules.WeeklyLookbackWeeks
		from = WeekStart(today).AddDate(0, 0, -7*(weeks-1))
		logged, err = e.store.MetricLogDates(ctx, userID, metric, from, today)
		if err != nil {
			return st, fmt.Errorf("load %s logs: %w", metric, err)
		}
		current = ComputeWeeklyStreak(logged, profile, today, weeks)
		longestWin = LongestWeeklyRun(logged, profile, today, weeks)

	default:
		lookback := e.rules.EngagementLookbackDays
		grace := e.rules.GraceFor(metric)
		from = domain.AddDays(today, -(lookback - 1))
		logged, err = e.store.MetricLogDates(ctx, userID, metric, from, today)
		if err != nil {
			return st, fmt.Errorf("load %s logs: %w", metric, err)
		}
		set := NewDateSet(logged...)
		res := ComputeDailyMetricStreak(set, grace, today, lookback)
		current = res.Streak
		longestWin = LongestDailyRun(set, from, today)
		graceLeft = grace - res.GraceUsedThisWeek
	}

	if existing == nil && len(logged) == 0 {
		// Never logged: nothing to create yet.
		return st, nil
	}

	st.CurrentStreak = current
	st.LongestStreak = max(st.LongestStreak, current, longestWin)
	st.GraceDaysAvailable = graceLeft
	if latest := NewDateSet(logged...).Latest(today); latest != nil {
		if st.LastLogDate == nil || latest.After(*st.LastLogDate) {
			st.LastLogDate = latest
		}
	}

	if err := e.store.SaveMetricStreak(ctx, st); err != nil {
		return st, fmt.Errorf("save %s streak: %w", metric, err)
	}

	metrics.StreakRecomputes.WithLabelValues(string(metric)).Inc()
	metrics.StreakLength.WithLabelValues(string(metric)).Observe(float64(current))
	e.logger.Debug("metric streak updated",
		slog.String("user_id", userID),
		slog.String("metric", string(metric)),
		slog.Int("current", st.CurrentStreak),
		slog.Int("longest", st.LongestStreak))
	return st, nil
}

// GetMetricStreaks returns every known metric as a key; metrics the user
// never logged map to nil.
func (e *MetricEngine) GetMetricStreaks(ctx context.Context, userID string) (map[domain.MetricType]*domain.MetricStreak, error) {
	out := make(map[domain.MetricType]*domain.MetricStreak, len(domain.AllMetrics()))
	for _, m := range domain.AllMetrics() {
		out[m] = nil
	}
	rows, err := e.store.ListMetricStreaks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list metric streaks: %w", err)
	}
	for i := range rows {
		if _, known := out[rows[i].Metric]; known {
			out[rows[i].Metric] = &rows[i]
		}
	}
	return out, nil
}
