// Package scheduler runs the batch jobs in-process on a wall-clock schedule.
// It is optional: deployments with cron or a k8s CronJob call the job
// routes or `streakd jobs` instead.
//
// Core concepts:
//   - Schedule: a cron.Schedule computing the next fire time after an instant
//   - Job: a named schedule plus the function to run
//   - Retry: a failed run is retried with exponential backoff, capped at
//     MaxRetries, after which the job waits for its next regular slot
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// RetryConfig configures backoff after a failed run.
type RetryConfig struct {
	MaxRetries int           // Retry attempts before giving up until the next slot
	BaseDelay  time.Duration // Initial backoff delay (doubles each retry)
	MaxDelay   time.Duration // Cap on backoff delay
}

// DefaultRetryConfig returns production retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		BaseDelay:  30 * time.Second,
		MaxDelay:   15 * time.Minute,
	}
}

// Backoff returns the delay before retry attempt n (1-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > c.MaxDelay {
			return c.MaxDelay
		}
	}
	return delay
}

// ─── Schedules ──────────────────────────────────────────────────────────────

// ParseSchedule parses a standard five-field cron spec ("5 0 * * *",
// "10 0 * * MON") evaluated in loc. A nil loc means UTC.
func ParseSchedule(spec string, loc *time.Location) (cron.Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	spec = strings.TrimSpace(spec)
	if strings.HasPrefix(spec, "CRON_TZ=") || strings.HasPrefix(spec, "TZ=") {
		return nil, fmt.Errorf("schedule %q: set the zone with jobs.timezone", spec)
	}
	sched, err := cron.ParseStandard("CRON_TZ=" + loc.String() + " " + spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return sched, nil
}

// ─── Jobs ───────────────────────────────────────────────────────────────────

// Job is one scheduled batch.
type Job struct {
	Name     string
	Schedule cron.Schedule
	Run      func(ctx context.Context, now time.Time) error
}

type jobState struct {
	job     Job
	next    time.Time
	attempt int // consecutive failures of the current slot
}

// Status is a snapshot of one job for diagnostics.
type Status struct {
	Name      string    `json:"name"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Retrying  bool      `json:"retrying"`
}

// ─── Scheduler ──────────────────────────────────────────────────────────────

// Scheduler fires jobs at their scheduled times.
type Scheduler struct {
	mu     sync.Mutex
	retry  RetryConfig
	jobs   []*jobState
	status map[string]*Status
	now    func() time.Time
	logger *slog.Logger
}

// New creates a scheduler. A nil logger falls back to slog.Default().
func New(retry RetryConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		retry:  retry,
		status: make(map[string]*Status),
		now:    time.Now,
		logger: logger,
	}
}

// SetClock overrides time.Now.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Add registers a job. Its first run is the first slot after now.
func (s *Scheduler) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := job.Schedule.Next(s.now())
	s.jobs = append(s.jobs, &jobState{job: job, next: next})
	s.status[job.Name] = &Status{Name: job.Name, NextRun: next}
}

// Run fires jobs until ctx ends. Call in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		wait := s.untilNext()
		if wait < 0 {
			return // nothing registered
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunDue(ctx)
		}
	}
}

func (s *Scheduler) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return -1
	}
	earliest := s.jobs[0].next
	for _, js := range s.jobs[1:] {
		if js.next.Before(earliest) {
			earliest = js.next
		}
	}
	d := earliest.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return d
}

// RunDue runs every job whose next fire time has passed and returns the
// names of the jobs that ran. Jobs run sequentially: the engines share one
// sqlite connection.
func (s *Scheduler) RunDue(ctx context.Context) []string {
	now := s.now()

	s.mu.Lock()
	var due []*jobState
	for _, js := range s.jobs {
		if !js.next.After(now) {
			due = append(due, js)
		}
	}
	s.mu.Unlock()

	var ran []string
	for _, js := range due {
		if ctx.Err() != nil {
			break
		}
		err := js.job.Run(ctx, now)
		ran = append(ran, js.job.Name)
		s.finish(js, now, err)
	}
	return ran
}

func (s *Scheduler) finish(js *jobState, now time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status[js.job.Name]
	st.LastRun = now
	if err == nil {
		js.attempt = 0
		js.next = js.job.Schedule.Next(now)
		st.LastError = ""
		st.Retrying = false
		st.NextRun = js.next
		return
	}

	st.LastError = err.Error()
	js.attempt++
	if js.attempt > s.retry.MaxRetries {
		s.logger.Error("scheduled job exhausted retries",
			slog.String("job", js.job.Name),
			slog.Int("attempts", js.attempt),
			slog.String("error", err.Error()))
		js.attempt = 0
		js.next = js.job.Schedule.Next(now)
		st.Retrying = false
		st.NextRun = js.next
		return
	}
	delay := s.retry.Backoff(js.attempt)
	js.next = now.Add(delay)
	st.Retrying = true
	st.NextRun = js.next
	s.logger.Warn("scheduled job failed, retrying",
		slog.String("job", js.job.Name),
		slog.Int("attempt", js.attempt),
		slog.Duration("backoff", delay),
		slog.String("error", err.Error()))
}

// Statuses returns a snapshot of every job, sorted by name.
func (s *Scheduler) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
