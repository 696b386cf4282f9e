package engagement

import (
	"log/slog"
	"time"

	"github.com/pulsefit/streakd/internal/domain"
)

// Option configures an engine.
type Option func(*settings)

type settings struct {
	rules  domain.Rules
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

func newSettings(opts []Option) settings {
	s := settings{
		rules:  domain.DefaultRules(),
		now:    time.Now,
		loc:    time.UTC,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// WithRules overrides the streak rules.
func WithRules(r domain.Rules) Option {
	return func(s *settings) { s.rules = r }
}

// WithClock injects the time source. Tests pin it to a fixed instant.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone in which the engine decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *settings) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the structured logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// today is the current calendar day in the engine's zone.
func (s settings) today() time.Time {
	return domain.Day(s.now().In(s.loc))
}
