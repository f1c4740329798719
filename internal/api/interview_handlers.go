package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/BTreeMap/ReviewPipe/internal/flow"
	"github.com/BTreeMap/ReviewPipe/internal/models"
	"github.com/BTreeMap/ReviewPipe/internal/store"
)

type interviewResponse struct {
	Interview   models.InterviewDetail `json:"interview"`
	SessionInfo *models.SessionInfo    `json:"session_info,omitempty"`
}

func (s *Server) interviewDetail(ctx context.Context, iv models.Interview) (models.InterviewDetail, error) {
	sums, err := s.records.ListStageSummaries(ctx, iv.ID)
	if err != nil {
		return models.InterviewDetail{}, err
	}
	if sums == nil {
		sums = []models.StageSummary{}
	}
	return models.InterviewDetail{Interview: iv, StageSummaries: sums}, nil
}

// interviewBySessionHandler handles GET /interviews/session/{sid}.
func (s *Server) interviewBySessionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := r.PathValue("sid")
	iv, err := s.records.GetInterviewBySession(ctx, sid)
	if err != nil {
		writeStoreError(w, "Failed to retrieve interview", err)
		return
	}
	detail, err := s.interviewDetail(ctx, *iv)
	if err != nil {
		writeStoreError(w, "Failed to retrieve interview", err)
		return
	}
	resp := interviewResponse{Interview: detail}
	if sess, err := s.sessions.GetSession(ctx, sid); err == nil {
		info := sess.Info()
		resp.SessionInfo = &info
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// completeInterviewHandler handles POST /interviews/session/{sid}/complete.
// Without an explicit score the live session's stage metrics are averaged.
func (s *Server) completeInterviewHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteInterviewRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.OverallScore != nil && (*req.OverallScore < 0 || math.IsNaN(*req.OverallScore)) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("overall_score must be non-negative"))
		return
	}

	ctx := r.Context()
	sid := r.PathValue("sid")
	unlock := s.locks.Lock(sid)
	defer unlock()

	iv, err := s.records.GetInterviewBySession(ctx, sid)
	if err != nil {
		writeStoreError(w, "Failed to complete interview", err)
		return
	}
	score := req.OverallScore
	if score == nil {
		sess, err := s.sessions.GetSession(ctx, sid)
		switch {
		case err == nil:
			score = flow.OverallScore(sess.State, s.cfg)
		case !errors.Is(err, store.ErrSessionNotFound):
			slog.Warn("Server.completeInterviewHandler: session lookup failed", "error", err, "sessionID", sid)
		}
	}
	done, err := s.records.CompleteInterview(ctx, iv.ID, score)
	if err != nil {
		slog.Error("Server.completeInterviewHandler: complete failed", "error", err, "interviewID", iv.ID)
		writeStoreError(w, "Failed to complete interview", err)
		return
	}
	slog.Info("Server.completeInterviewHandler: interview completed", "interviewID", iv.ID, "sessionID", sid)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Interview completed successfully", done))
}

// statisticsHandler handles GET /statistics/overview.
func (s *Server) statisticsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	emps, err := s.records.ListEmployees(ctx)
	if err != nil {
		writeStoreError(w, "Failed to retrieve statistics", err)
		return
	}
	ivs, err := s.records.ListInterviews(ctx, 0)
	if err != nil {
		writeStoreError(w, "Failed to retrieve statistics", err)
		return
	}
	sessions, err := s.sessions.ListSessions(ctx)
	if err != nil {
		writeStoreError(w, "Failed to retrieve statistics", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Statistics retrieved successfully", overview(len(emps), ivs, len(sessions))))
}

// overview aggregates interview counters. Rates and averages are rounded to
// two decimals; the average is nil when no completed interview has a score.
func overview(employees int, ivs []models.Interview, activeSessions int) models.StatisticsOverview {
	out := models.StatisticsOverview{
		TotalEmployees:  employees,
		TotalInterviews: len(ivs),
		InterviewsByStatus: map[models.InterviewStatus]int{
			models.InterviewStatusInProgress: 0,
			models.InterviewStatusCompleted:  0,
			models.InterviewStatusCancelled:  0,
		},
		ActiveSessions: activeSessions,
	}
	var total float64
	scored := 0
	for _, iv := range ivs {
		out.InterviewsByStatus[iv.Status]++
		if iv.Status == models.InterviewStatusCompleted && iv.OverallScore != nil {
			total += *iv.OverallScore
			scored++
		}
	}
	if len(ivs) > 0 {
		out.CompletionRate = round2(float64(out.InterviewsByStatus[models.InterviewStatusCompleted]) / float64(len(ivs)) * 100)
	}
	if scored > 0 {
		avg := round2(total / float64(scored))
		out.AverageOverallScore = &avg
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
