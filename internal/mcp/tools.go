package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pulsefit/streakd/internal/domain"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_streak",
		Description: "Get a user's engagement streak, freezes and pause state",
	}, s.handleGetStreak)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "record_activity",
		Description: "Record an activity (workout, meal, check-in) and recompute the streak",
	}, s.handleRecordActivity)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "claim_streak",
		Description: "Claim a day with logged health data toward the streak",
	}, s.handleClaimStreak)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "claimable_days",
		Description: "List the days in the claim window and whether each can be claimed",
	}, s.handleClaimableDays)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_shields",
		Description: "Get a user's shield balances by type",
	}, s.handleGetShields)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "metric_streaks",
		Description: "Get the per-metric streaks (weight, steps, mood, measurements, photos)",
	}, s.handleMetricStreaks)
}

// Tool input/output types

type userInput struct {
	UserID string `json:"user_id" jsonschema:"the user to look up"`
}

type recordActivityInput struct {
	UserID       string `json:"user_id" jsonschema:"the user who did the activity"`
	ActivityType string `json:"activity_type" jsonschema:"kind of activity, e.g. workout or meal_log"`
	ReferenceID  string `json:"reference_id,omitempty" jsonschema:"optional id of the source record"`
	Date         string `json:"date,omitempty" jsonschema:"YYYY-MM-DD, defaults to today"`
}

type claimInput struct {
	UserID   string `json:"user_id" jsonschema:"the claiming user"`
	Date     string `json:"date" jsonschema:"YYYY-MM-DD day to claim"`
	Timezone string `json:"timezone,omitempty" jsonschema:"IANA timezone of the user, defaults to UTC"`
}

type claimableDaysInput struct {
	UserID   string `json:"user_id" jsonschema:"the user to look up"`
	Timezone string `json:"timezone,omitempty" jsonschema:"IANA timezone of the user, defaults to UTC"`
}

type streakOutput struct {
	UserID             string `json:"user_id"`
	CurrentStreak      int    `json:"current_streak"`
	LongestStreak      int    `json:"longest_streak"`
	FreezesAvailable   int    `json:"freezes_available"`
	LastEngagementDate string `json:"last_engagement_date,omitempty"`
	Paused             bool   `json:"paused"`
	PauseEndDate       string `json:"pause_end_date,omitempty"`
	TotalClaims        int    `json:"total_claims"`
}

type claimOutput struct {
	Success        bool   `json:"success"`
	StreakCount    int    `json:"streak_count"`
	Milestone      string `json:"milestone,omitempty"`
	ShieldsGranted int    `json:"shields_granted"`
	Message        string `json:"message"`
}

type dayOutput struct {
	Date          string `json:"date"`
	Claimed       bool   `json:"claimed"`
	HasHealthData bool   `json:"has_health_data"`
	CanClaim      bool   `json:"can_claim"`
	Reason        string `json:"reason,omitempty"`
}

type claimableDaysOutput struct {
	Days []dayOutput `json:"days"`
}

type metricOutput struct {
	Metric             string `json:"metric"`
	CurrentStreak      int    `json:"current_streak"`
	LongestStreak      int    `json:"longest_streak"`
	GraceDaysAvailable int    `json:"grace_days_available"`
	LastLogDate        string `json:"last_log_date,omitempty"`
}

type metricStreaksOutput struct {
	Streaks []metricOutput `json:"streaks"`
}

func toStreakOutput(st domain.EngagementStreak) streakOutput {
	return streakOutput{
		UserID:             st.UserID,
		CurrentStreak:      st.CurrentStreak,
		LongestStreak:      st.LongestStreak,
		FreezesAvailable:   st.FreezesAvailable,
		LastEngagementDate: domain.FormatDatePtr(st.LastEngagementDate),
		Paused:             st.Paused,
		PauseEndDate:       domain.FormatDatePtr(st.PauseEndDate),
		TotalClaims:        st.TotalClaims,
	}
}

// Tool handlers

func (s *Server) handleGetStreak(ctx context.Context, req *mcp.CallToolRequest, input userInput) (*mcp.CallToolResult, streakOutput, error) {
	st, err := s.svc.Streaks.GetEngagementStreak(ctx, input.UserID)
	if err != nil {
		return nil, streakOutput{}, fmt.Errorf("get streak: %w", err)
	}
	return nil, toStreakOutput(st), nil
}

func (s *Server) handleRecordActivity(ctx context.Context, req *mcp.CallToolRequest, input recordActivityInput) (*mcp.CallToolResult, streakOutput, error) {
	date, err := parseOptionalDate(input.Date)
	if err != nil {
		return nil, streakOutput{}, err
	}
	st, err := s.svc.Streaks.RecordActivity(ctx, input.UserID, input.ActivityType, input.ReferenceID, date)
	if err != nil {
		return nil, streakOutput{}, fmt.Errorf("record activity: %w", err)
	}
	return nil, toStreakOutput(st), nil
}

func (s *Server) handleClaimStreak(ctx context.Context, req *mcp.CallToolRequest, input claimInput) (*mcp.CallToolResult, claimOutput, error) {
	if input.Date == "" {
		return nil, claimOutput{}, domain.InvalidInput("date is required")
	}
	date, err := parseOptionalDate(input.Date)
	if err != nil {
		return nil, claimOutput{}, err
	}
	res, err := s.svc.Claims.ClaimStreak(ctx, input.UserID, date, input.Timezone, domain.ClaimExplicit)
	if err != nil {
		return nil, claimOutput{}, fmt.Errorf("claim %s: %w", input.Date, err)
	}
	out := claimOutput{
		Success:     res.Success,
		StreakCount: res.StreakCount,
		Message:     fmt.Sprintf("Claimed %s, streak is now %d", input.Date, res.StreakCount),
	}
	if res.Milestone != nil {
		out.Milestone = res.Milestone.Title
		out.ShieldsGranted = res.Milestone.ShieldsGranted
		out.Message += fmt.Sprintf(" (%s)", res.Milestone.Title)
	}
	return nil, out, nil
}

func (s *Server) handleClaimableDays(ctx context.Context, req *mcp.CallToolRequest, input claimableDaysInput) (*mcp.CallToolResult, claimableDaysOutput, error) {
	days, err := s.svc.Claims.GetClaimableDays(ctx, input.UserID, input.Timezone)
	if err != nil {
		return nil, claimableDaysOutput{}, fmt.Errorf("claimable days: %w", err)
	}
	out := claimableDaysOutput{Days: make([]dayOutput, 0, len(days))}
	for _, d := range days {
		out.Days = append(out.Days, dayOutput{
			Date:          domain.FormatDate(d.Date),
			Claimed:       d.Claimed,
			HasHealthData: d.HasHealthData,
			CanClaim:      d.CanClaim,
			Reason:        d.Reason,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetShields(ctx context.Context, req *mcp.CallToolRequest, input userInput) (*mcp.CallToolResult, domain.ShieldStatus, error) {
	st, err := s.svc.Claims.GetAvailableShields(ctx, input.UserID)
	if err != nil {
		return nil, domain.ShieldStatus{}, fmt.Errorf("get shields: %w", err)
	}
	return nil, st, nil
}

func (s *Server) handleMetricStreaks(ctx context.Context, req *mcp.CallToolRequest, input userInput) (*mcp.CallToolResult, metricStreaksOutput, error) {
	streaks, err := s.svc.Metrics.GetMetricStreaks(ctx, input.UserID)
	if err != nil {
		return nil, metricStreaksOutput{}, fmt.Errorf("metric streaks: %w", err)
	}
	out := metricStreaksOutput{Streaks: []metricOutput{}}
	for _, m := range domain.AllMetrics() {
		ms := streaks[m]
		if ms == nil {
			continue
		}
		out.Streaks = append(out.Streaks, metricOutput{
			Metric:             string(m),
			CurrentStreak:      ms.CurrentStreak,
			LongestStreak:      ms.LongestStreak,
			GraceDaysAvailable: ms.GraceDaysAvailable,
			LastLogDate:        domain.FormatDatePtr(ms.LastLogDate),
		})
	}
	return nil, out, nil
}

func parseOptionalDate(s string) (t time.Time, err error) {
	if s == "" {
		return t, nil
	}
	t, err = domain.ParseDate(s)
	if err != nil {
		return t, domain.InvalidInput("%v", err)
	}
	return t, nil
}
