package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/ReviewPipe/internal/flow"
	"github.com/BTreeMap/ReviewPipe/internal/models"
	"github.com/BTreeMap/ReviewPipe/internal/review"
	"github.com/BTreeMap/ReviewPipe/internal/store"
	"github.com/BTreeMap/ReviewPipe/internal/util"
)

// stageInfo describes a stage for API clients.
type stageInfo struct {
	Stage      review.StageID      `json:"stage"`
	Label      string              `json:"label"`
	Context    string              `json:"context"`
	IsTerminal bool                `json:"is_terminal"`
	Progress   review.ProgressInfo `json:"progress"`
}

func (s *Server) stageInfo(id review.StageID) stageInfo {
	sd := s.cfg.Stage(id)
	return stageInfo{
		Stage:      id,
		Label:      sd.Label,
		Context:    sd.Context,
		IsTerminal: s.cfg.IsTerminal(id),
		Progress:   review.Progress(id, s.cfg),
	}
}

type sessionResponse struct {
	SessionInfo    models.SessionInfo        `json:"session_info"`
	InitialMessage string                    `json:"initial_message,omitempty"`
	StageInfo      stageInfo                 `json:"stage_info"`
	Metrics        *review.CompletionMetrics `json:"metrics,omitempty"`
	Employee       *models.Employee          `json:"employee,omitempty"`
	Interview      *models.Interview         `json:"interview,omitempty"`
}

type stageTransition struct {
	From      review.StageID `json:"from"`
	To        review.StageID `json:"to"`
	StageInfo stageInfo      `json:"stage_info"`
}

type messageResponse struct {
	AssistantResponse review.Message           `json:"assistant_response"`
	SessionInfo       models.SessionInfo       `json:"session_info"`
	StageInfo         stageInfo                `json:"stage_info"`
	StageTransition   *stageTransition         `json:"stage_transition"`
	IsComplete        bool                     `json:"is_complete"`
	Metrics           review.CompletionMetrics `json:"metrics"`
	Decision          review.Decision          `json:"decision"`
	ToolResults       []models.ToolResult      `json:"tool_results,omitempty"`
}

type summaryResponse struct {
	Summary     string             `json:"summary"`
	SessionInfo models.SessionInfo `json:"session_info"`
	Interview   *models.Interview  `json:"interview,omitempty"`
}

type deleteSessionRequest struct {
	PreserveInterview *bool `json:"preserve_interview,omitempty"`
}

// writeStoreError maps store sentinel errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
	case errors.Is(err, store.ErrEmployeeNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Employee not found"))
	case errors.Is(err, store.ErrInterviewNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Interview not found"))
	case errors.Is(err, store.ErrDuplicateSession):
		writeJSONResponse(w, http.StatusConflict, models.ErrorWithDetail(message, err))
	default:
		writeJSONResponse(w, http.StatusInternalServerError, models.ErrorWithDetail(message, err))
	}
}

// loadSession fetches the session named by the {id} path value and writes
// the error response itself when it cannot.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	id := r.PathValue("id")
	if !util.IsValidSessionID(id) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid session ID"))
		return nil, false
	}
	sess, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrSessionNotFound) {
			slog.Error("Server.loadSession: failed to load session", "error", err, "sessionID", id)
		}
		writeStoreError(w, "Failed to load session", err)
		return nil, false
	}
	return sess, true
}

// openSession creates a session, and an interview record when employeeID is
// set.
func (s *Server) openSession(ctx context.Context, employeeID int64) (*sessionResponse, error) {
	id := util.NewSessionID()
	var emp *models.Employee
	ectx := flow.EmployeeContext{}
	if employeeID != 0 {
		e, err := s.records.GetEmployee(ctx, employeeID)
		if err != nil {
			return nil, err
		}
		emp = e
		ectx = flow.EmployeeContext{Name: e.FullName(), Position: e.Position, Experience: e.ExperienceLevel}
	}

	sess := s.flow.NewSession(id, ectx)
	var iv *models.Interview
	if emp != nil {
		sess.AttachEmployee(*emp)
		created, err := s.records.CreateInterview(ctx, emp.ID, id)
		if err != nil {
			return nil, err
		}
		iv = &created
		sess.State.InterviewID = created.ID
	}
	if err := s.sessions.PutSession(ctx, sess); err != nil {
		return nil, err
	}
	slog.Info("Server.openSession: session created", "sessionID", id, "employeeID", employeeID, "interviewID", sess.State.InterviewID)

	resp := &sessionResponse{
		SessionInfo: sess.Info(),
		StageInfo:   s.stageInfo(sess.State.CurrentStage),
		Employee:    emp,
		Interview:   iv,
	}
	if n := len(sess.State.Messages); n > 0 {
		resp.InitialMessage = sess.State.Messages[n-1].Content
	}
	return resp, nil
}

// healthHandler reports liveness and the active stage order.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"status":    "healthy",
		"stages":    s.cfg.StageOrder,
		"timestamp": s.now(),
	}))
}

// createSessionHandler handles POST /sessions.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.createSessionHandler invoked", "method", r.Method, "path", r.URL.Path)
	var req models.CreateSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		slog.Warn("Server.createSessionHandler: invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.EmployeeID < 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid employee ID"))
		return
	}
	resp, err := s.openSession(r.Context(), req.EmployeeID)
	if err != nil {
		slog.Error("Server.createSessionHandler: failed to create session", "error", err, "employeeID", req.EmployeeID)
		writeStoreError(w, "Failed to create session", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Session created successfully", resp))
}

// getSessionHandler handles GET /sessions/{id}.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	resp := sessionResponse{
		SessionInfo: sess.Info(),
		StageInfo:   s.stageInfo(sess.State.CurrentStage),
	}
	if m, ok := sess.State.StageMetrics[sess.State.CurrentStage]; ok {
		resp.Metrics = &m
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// deleteSessionHandler handles DELETE /sessions/{id}. The linked interview
// record is always kept; asking to drop it is refused.
func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req deleteSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	unlock := s.locks.Lock(r.PathValue("id"))
	defer unlock()

	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	linked := sess.State.InterviewID != 0
	if linked && req.PreserveInterview != nil && !*req.PreserveInterview {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Cannot delete session with linked interview. Complete the interview first."))
		return
	}
	if err := s.sessions.DeleteSession(r.Context(), sess.ID); err != nil {
		slog.Error("Server.deleteSessionHandler: delete failed", "error", err, "sessionID", sess.ID)
		writeStoreError(w, "Failed to delete session", err)
		return
	}
	slog.Info("Server.deleteSessionHandler: session deleted", "sessionID", sess.ID, "interviewPreserved", linked)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session deleted successfully", map[string]interface{}{
		"session_id":          sess.ID,
		"interview_preserved": linked,
	}))
}

// sendMessageHandler handles POST /sessions/{id}/messages.
func (s *Server) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req models.MessageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		slog.Warn("Server.sendMessageHandler: invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	unlock := s.locks.Lock(r.PathValue("id"))
	defer unlock()

	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	res, err := s.flow.ProcessSessionMessage(r.Context(), *sess, req.Message)
	if err != nil {
		slog.Error("Server.sendMessageHandler: turn failed", "error", err, "sessionID", sess.ID)
		writeJSONResponse(w, http.StatusBadGateway, models.ErrorWithDetail("Failed to process message", err))
		return
	}

	sess.State = res.State
	sess.LastActivity = s.now()
	if err := s.sessions.PutSession(r.Context(), *sess); err != nil {
		slog.Error("Server.sendMessageHandler: failed to save session", "error", err, "sessionID", sess.ID)
		writeStoreError(w, "Failed to save session", err)
		return
	}

	resp := messageResponse{
		SessionInfo: sess.Info(),
		StageInfo:   s.stageInfo(res.CurrentStage),
		IsComplete:  s.cfg.IsTerminal(res.CurrentStage),
		Metrics:     res.Metrics,
		Decision:    res.Decision,
		ToolResults: res.ToolResults,
	}
	if n := len(res.State.Messages); n > 0 {
		resp.AssistantResponse = res.State.Messages[n-1]
	}
	if res.Transitioned {
		resp.StageTransition = &stageTransition{
			From:      res.PreviousStage,
			To:        res.CurrentStage,
			StageInfo: s.stageInfo(res.CurrentStage),
		}
		slog.Info("Server.sendMessageHandler: stage transition", "sessionID", sess.ID, "from", res.PreviousStage, "to", res.CurrentStage, "reason", res.Decision.Reason)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// listMessagesHandler handles GET /sessions/{id}/messages.
func (s *Server) listMessagesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	msgs := sess.State.Messages
	if msgs == nil {
		msgs = []review.Message{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"messages":     msgs,
		"total_count":  len(msgs),
		"session_info": sess.Info(),
	}))
}

// summaryHandler handles GET /sessions/{id}/summary. The summary is built
// once, when the session first reaches the terminal stage, and the linked
// interview is closed at the same time.
func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	unlock := s.locks.Lock(r.PathValue("id"))
	defer unlock()

	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if !s.cfg.IsTerminal(sess.State.CurrentStage) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Summary not available yet. Complete all stages first."))
		return
	}

	ctx := r.Context()
	interviewID := sess.State.InterviewID
	if sess.Summary == "" {
		var notes []models.StageSummary
		if interviewID != 0 {
			list, err := s.records.ListStageSummaries(ctx, interviewID)
			if err != nil {
				slog.Warn("Server.summaryHandler: failed to load stage summaries", "error", err, "interviewID", interviewID)
			}
			notes = list
		}
		sess.Summary = s.summaries.Build(ctx, *sess, notes)
		sess.LastActivity = s.now()
		if err := s.sessions.PutSession(ctx, *sess); err != nil {
			slog.Error("Server.summaryHandler: failed to save session", "error", err, "sessionID", sess.ID)
			writeStoreError(w, "Failed to save session", err)
			return
		}
	}

	resp := summaryResponse{Summary: sess.Summary, SessionInfo: sess.Info()}
	if interviewID != 0 {
		resp.Interview = s.closeInterview(ctx, *sess)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// closeInterview records the final summary stage and completes the linked
// interview if it is still open. Failures are logged and the current
// interview record (if any) is returned.
func (s *Server) closeInterview(ctx context.Context, sess models.Session) *models.Interview {
	id := sess.State.InterviewID
	iv, err := s.records.GetInterview(ctx, id)
	if err != nil {
		slog.Warn("Server.closeInterview: interview lookup failed", "error", err, "interviewID", id)
		return nil
	}
	if iv.Status == models.InterviewStatusCompleted {
		return iv
	}

	now := s.now()
	terminal := sess.State.CurrentStage
	_, err = s.records.UpsertStageSummary(ctx, models.StageSummary{
		InterviewID:      id,
		StageName:        terminal,
		StageOrder:       s.cfg.StageIndex(terminal),
		SummaryText:      sess.Summary,
		KeyPoints:        []string{"Final summary generated"},
		CompletionScore:  1,
		InteractionCount: len(sess.State.StageResponses(terminal)),
		StartedAt:        now,
		CompletedAt:      &now,
	})
	if err != nil {
		slog.Warn("Server.closeInterview: failed to save summary stage", "error", err, "interviewID", id)
	}

	done, err := s.records.CompleteInterview(ctx, id, flow.OverallScore(sess.State, s.cfg))
	if err != nil {
		slog.Warn("Server.closeInterview: failed to complete interview", "error", err, "interviewID", id)
		return iv
	}
	slog.Info("Server.closeInterview: interview completed", "interviewID", id, "sessionID", sess.ID)
	return done
}

// helpHandler handles GET /sessions/{id}/help.
func (s *Server) helpHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Help information retrieved", map[string]interface{}{
		"help":         helpFor(sess.State.CurrentStage),
		"stage_info":   s.stageInfo(sess.State.CurrentStage),
		"session_info": sess.Info(),
	}))
}
