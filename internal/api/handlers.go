package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulsefit/streakd/internal/domain"
)

// ─── Request Types ──────────────────────────────────────────────────────────

type activityRequest struct {
	ActivityType string `json:"activity_type"`
	ReferenceID  string `json:"reference_id,omitempty"`
	Date         string `json:"date,omitempty"`
}

type pauseRequest struct {
	ResumeDate string `json:"resume_date,omitempty"`
}

type recomputeMetricRequest struct {
	LogDate string `json:"log_date,omitempty"`
}

type healthRequest struct {
	Date   string   `json:"date,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
	Steps  *int     `json:"steps,omitempty"`
	Mood   *int     `json:"mood,omitempty"`
	Energy *int     `json:"energy,omitempty"`
}

type progressRequest struct {
	Date string              `json:"date,omitempty"`
	Kind domain.ProgressKind `json:"kind"`
}

type claimRequest struct {
	Date     string             `json:"date"`
	Timezone string             `json:"timezone,omitempty"`
	Method   domain.ClaimMethod `json:"claim_method,omitempty"`
}

type freezeRequest struct {
	Date string `json:"date,omitempty"`
}

type purchaseRequest struct {
	Count int `json:"count"`
}

type recoveryRequest struct {
	BrokenDate string              `json:"broken_date"`
	Type       domain.RecoveryType `json:"recovery_type"`
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return domain.InvalidInput("invalid JSON body: %v", err)
	}
	return nil
}

// optionalDate parses a YYYY-MM-DD string; "" yields the zero time.
func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, domain.InvalidInput("%v", err)
	}
	return d, nil
}

func requiredDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, domain.InvalidInput("%s is required", field)
	}
	return optionalDate(s)
}

// ─── Engagement Streak ──────────────────────────────────────────────────────

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	date, err := optionalDate(req.Date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.svc.Streaks.RecordActivity(r.Context(), chi.URLParam(r, "userID"), req.ActivityType, req.ReferenceID, date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Streaks.GetEngagementStreak(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRecomputeStreak(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Streaks.UpdateEngagementStreak(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var resume *time.Time
	if req.ResumeDate != "" {
		d, err := optionalDate(req.ResumeDate)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resume = &d
	}
	st, err := s.svc.Streaks.PauseStreak(r.Context(), chi.URLParam(r, "userID"), resume)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Streaks.ResumeStreak(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ─── Metric Streaks & Tracking ──────────────────────────────────────────────

func (s *Server) handleGetMetricStreaks(w http.ResponseWriter, r *http.Request) {
	streaks, err := s.svc.Metrics.GetMetricStreaks(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streaks)
}

func (s *Server) handleRecomputeMetric(w http.ResponseWriter, r *http.Request) {
	var req recomputeMetricRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	metric, err := domain.ParseMetricType(chi.URLParam(r, "metric"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	logDate, err := optionalDate(req.LogDate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.svc.Metrics.UpdateMetricStreak(r.Context(), chi.URLParam(r, "userID"), metric, logDate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLogHealth(w http.ResponseWriter, r *http.Request) {
	var req healthRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	date, err := optionalDate(req.Date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Tracker.LogHealth(r.Context(), domain.HealthEntry{
		UserID: chi.URLParam(r, "userID"),
		Date:   date,
		Weight: req.Weight,
		Steps:  req.Steps,
		Mood:   req.Mood,
		Energy: req.Energy,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleAddProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	date, err := optionalDate(req.Date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Tracker.AddProgressEntry(r.Context(), chi.URLParam(r, "userID"), date, req.Kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ─── Claims ─────────────────────────────────────────────────────────────────

func (s *Server) handleCanClaim(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := requiredDate("date", q.Get("date"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Claims.CanClaimStreak(r.Context(), chi.URLParam(r, "userID"), date, q.Get("timezone"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	date, err := requiredDate("date", req.Date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Method == "" {
		req.Method = domain.ClaimExplicit
	}
	res, err := s.svc.Claims.ClaimStreak(r.Context(), chi.URLParam(r, "userID"), date, req.Timezone, req.Method)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleClaimableDays(w http.ResponseWriter, r *http.Request) {
	days, err := s.svc.Claims.GetClaimableDays(r.Context(), chi.URLParam(r, "userID"), r.URL.Query().Get("timezone"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

// ─── Shields ────────────────────────────────────────────────────────────────

func (s *Server) handleGetShields(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Claims.GetAvailableShields(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleActivateFreeze(w http.ResponseWriter, r *http.Request) {
	var req freezeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	day, err := optionalDate(req.Date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if day.IsZero() {
		day = domain.AddDays(s.svc.Streaks.Today(), -1)
	}
	userID := chi.URLParam(r, "userID")
	activated, err := s.svc.Claims.ActivateFreeze(r.Context(), userID, day)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	shields, err := s.svc.Claims.GetAvailableShields(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activated": activated,
		"date":      domain.FormatDate(day),
		"shields":   shields,
	})
}

func (s *Server) handlePurchaseShields(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.svc.Claims.PurchaseShields(r.Context(), chi.URLParam(r, "userID"), req.Count)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ─── Recovery ───────────────────────────────────────────────────────────────

func (s *Server) handleListRecoveries(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Claims.ListRecoveries(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []domain.StreakRecovery{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleStartRecovery(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	broken, err := requiredDate("broken_date", req.BrokenDate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.svc.Claims.StartRecovery(r.Context(), chi.URLParam(r, "userID"), broken, req.Type)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleRecoveryAction(w http.ResponseWriter, r *http.Request) {
	done, err := s.svc.Claims.CompleteRecoveryAction(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "recoveryID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": done})
}

// ─── Jobs ───────────────────────────────────────────────────────────────────

// jobTime reads the optional ?now=RFC3339 override.
func (s *Server) jobTime(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("now")
	if raw == "" {
		return s.now(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.InvalidInput("now must be RFC3339: %v", err)
	}
	return t, nil
}

func (s *Server) handleWeeklyFreezeReset(w http.ResponseWriter, r *http.Request) {
	now, err := s.jobTime(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := s.svc.Claims.ResetWeeklyFreezes(r.Context(), now)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleBreakCheck(w http.ResponseWriter, r *http.Request) {
	now, err := s.jobTime(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := s.svc.Claims.CheckAndBreakStreaks(r.Context(), now)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
