// Package api provides the HTTP server for streakd.
// Every user-scoped route lives under /api/v1/users/{userID}; batch jobs
// live under /api/v1/jobs behind a bearer token.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsefit/streakd/internal/app/engagement"
	"github.com/pulsefit/streakd/internal/domain"
	"github.com/pulsefit/streakd/internal/health"
	"github.com/pulsefit/streakd/internal/infra/metrics"
)

// Services bundles the engines the handlers call into.
type Services struct {
	Streaks *engagement.StreakEngine
	Metrics *engagement.MetricEngine
	Claims  *engagement.ClaimEngine
	Tracker *engagement.Tracker
}

// HealthReporter is satisfied by *health.Checker.
type HealthReporter interface {
	IsHealthy() bool
	Statuses() []health.Status
}

// Server is the streakd HTTP API server.
type Server struct {
	svc            Services
	logger         *slog.Logger
	health         HealthReporter
	limiter        *rateLimiter
	jobsToken      string
	metricsEnabled bool
	mcpHandler     http.Handler
	now            func() time.Time
}

// NewServer creates a new API server.
func NewServer(svc Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, logger: logger, now: time.Now}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetMCPHandler mounts an MCP Streamable HTTP handler at /mcp.
func (s *Server) SetMCPHandler(h http.Handler) { s.mcpHandler = h }

// SetHealth wires the checker behind /health.
func (s *Server) SetHealth(h HealthReporter) { s.health = h }

// SetJobsToken sets the bearer token for /api/v1/jobs. Empty disables the
// job routes.
func (s *Server) SetJobsToken(token string) { s.jobsToken = token }

// SetRateLimit enables per-client rate limiting on the API routes.
func (s *Server) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = newRateLimiter(rps, burst)
}

// SetClock overrides the default "now" used by the job routes.
func (s *Server) SetClock(now func() time.Time) { s.now = now }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if s.mcpHandler != nil {
		r.Handle("/mcp", s.mcpHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/activities", s.handleRecordActivity)

			r.Get("/streak", s.handleGetStreak)
			r.Post("/streak/recompute", s.handleRecomputeStreak)
			r.Post("/streak/pause", s.handlePause)
			r.Post("/streak/resume", s.handleResume)

			r.Get("/metrics", s.handleGetMetricStreaks)
			r.Post("/metrics/{metric}/recompute", s.handleRecomputeMetric)

			r.Post("/tracking", s.handleLogHealth)
			r.Post("/progress", s.handleAddProgress)

			r.Get("/claims/check", s.handleCanClaim)
			r.Post("/claims", s.handleClaim)
			r.Get("/claims/days", s.handleClaimableDays)

			r.Get("/shields", s.handleGetShields)
			r.Post("/shields/activate", s.handleActivateFreeze)
			r.Post("/shields/purchase", s.handlePurchaseShields)

			r.Get("/recoveries", s.handleListRecoveries)
			r.Post("/recoveries", s.handleStartRecovery)
			r.Post("/recoveries/{recoveryID}/actions", s.handleRecoveryAction)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Use(s.requireJobsToken)
			r.Post("/weekly-freeze-reset", s.handleWeeklyFreezeReset)
			r.Post("/break-check", s.handleBreakCheck)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// instrument records per-route request metrics and a debug log line.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("elapsed", elapsed),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// requireJobsToken guards the batch job routes.
func (s *Server) requireJobsToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.jobsToken == "" {
			writeError(w, http.StatusNotFound, "not_found", "job routes are disabled")
			return
		}
		got := []byte(r.Header.Get("Authorization"))
		want := []byte("Bearer " + s.jobsToken)
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
			"type":    "error",
		},
	})
}

// fail maps an engine error onto an HTTP response. Domain errors keep
// their code; anything else is logged and reported as a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		s.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	body := map[string]any{
		"code":    string(de.Code),
		"message": de.Message,
		"type":    "error",
	}
	if de.Code == domain.CodePauseTooLong {
		body["max_days"] = de.MaxDays
		body["requested_days"] = de.RequestedDays
	}
	writeJSON(w, statusFor(de.Code), map[string]any{"error": body})
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeNotClaimable:
		return http.StatusUnprocessableEntity
	case domain.CodeAlreadyClaimed, domain.CodeAlreadyPaused, domain.CodeNotPaused,
		domain.CodeNoShieldsAvailable, domain.CodeRecoveryInProgress:
		return http.StatusConflict
	case domain.CodeRecoveryExpired:
		return http.StatusGone
	case domain.CodeRecoveryNotFound:
		return http.StatusNotFound
	case domain.CodePauseTooLong, domain.CodeInvalidInput,
		domain.CodeInvalidMetricType, domain.CodeInvalidTimezone:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
