package models

import (
	"strings"
	"time"

	"github.com/BTreeMap/ReviewPipe/internal/review"
)

// Employee is a person whose performance is being reviewed.
type Employee struct {
	ID              int64     `json:"id"`
	FirstName       string    `json:"firstname"`
	LastName        string    `json:"lastname"`
	Position        string    `json:"poste_equiped"`
	ExperienceLevel string    `json:"level_of_experience"`
	InterviewsCount int       `json:"interviews_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// FullName returns "First Last".
func (e Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// EmployeeRequest is the payload for creating an employee.
type EmployeeRequest struct {
	FirstName       string `json:"firstname"`
	LastName        string `json:"lastname"`
	Position        string `json:"poste_equiped"`
	ExperienceLevel string `json:"level_of_experience"`
}

// Validate normalizes and checks an EmployeeRequest.
func (r *EmployeeRequest) Validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Position = strings.TrimSpace(r.Position)
	r.ExperienceLevel = strings.TrimSpace(r.ExperienceLevel)
	switch {
	case r.FirstName == "":
		return ErrEmptyFirstName
	case r.LastName == "":
		return ErrEmptyLastName
	case r.Position == "":
		return ErrEmptyPosition
	case r.ExperienceLevel == "":
		return ErrEmptyExperience
	}
	for _, f := range []struct {
		v   string
		max int
	}{
		{r.FirstName, MaxNameLength},
		{r.LastName, MaxNameLength},
		{r.Position, MaxPositionLength},
		{r.ExperienceLevel, MaxExperienceLength},
	} {
		if err := checkLength(f.v, f.max); err != nil {
			return err
		}
	}
	return nil
}

// Employee builds a new Employee record from the request.
func (r EmployeeRequest) Employee(now time.Time) Employee {
	return Employee{
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Position:        r.Position,
		ExperienceLevel: r.ExperienceLevel,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// EmployeeUpdate represents the payload for updating an employee.
// Nil fields are left untouched.
type EmployeeUpdate struct {
	FirstName       *string `json:"firstname,omitempty"`
	LastName        *string `json:"lastname,omitempty"`
	Position        *string `json:"poste_equiped,omitempty"`
	ExperienceLevel *string `json:"level_of_experience,omitempty"`
}

// ApplyTo merges the update into e and validates the result.
func (u EmployeeUpdate) ApplyTo(e *Employee) error {
	req := EmployeeRequest{
		FirstName:       e.FirstName,
		LastName:        e.LastName,
		Position:        e.Position,
		ExperienceLevel: e.ExperienceLevel,
	}
	if u.FirstName != nil {
		req.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		req.LastName = *u.LastName
	}
	if u.Position != nil {
		req.Position = *u.Position
	}
	if u.ExperienceLevel != nil {
		req.ExperienceLevel = *u.ExperienceLevel
	}
	if err := req.Validate(); err != nil {
		return err
	}
	e.FirstName = req.FirstName
	e.LastName = req.LastName
	e.Position = req.Position
	e.ExperienceLevel = req.ExperienceLevel
	return nil
}

// InterviewStatus is the lifecycle state of an interview.
type InterviewStatus string

const (
	// InterviewStatusInProgress indicates the conversation is still running.
	InterviewStatusInProgress InterviewStatus = "in_progress"
	// InterviewStatusCompleted indicates the interview was closed with a score.
	InterviewStatusCompleted InterviewStatus = "completed"
	// InterviewStatusCancelled indicates the interview was abandoned.
	InterviewStatusCancelled InterviewStatus = "cancelled"
)

// IsValidInterviewStatus checks if the given interview status is valid.
func IsValidInterviewStatus(s InterviewStatus) bool {
	switch s {
	case InterviewStatusInProgress, InterviewStatusCompleted, InterviewStatusCancelled:
		return true
	default:
		return false
	}
}

// Interview links an employee to one review session.
type Interview struct {
	ID                  int64           `json:"id"`
	EmployeeID          int64           `json:"employee_id"`
	SessionID           string          `json:"session_id"`
	InterviewDate       time.Time       `json:"interview_date"`
	Status              InterviewStatus `json:"status"`
	OverallScore        *float64        `json:"overall_score"`
	CreatedAt           time.Time       `json:"created_at"`
	CompletedAt         *time.Time      `json:"completed_at"`
	StageSummariesCount int             `json:"stage_summaries_count"`
}

// StageSummary is the documented outcome of one interview stage.
type StageSummary struct {
	ID               int64          `json:"id"`
	InterviewID      int64          `json:"interview_id"`
	StageName        review.StageID `json:"stage_name"`
	StageOrder       int            `json:"stage_order"`
	SummaryText      string         `json:"summary_text"`
	KeyPoints        []string       `json:"key_points"`
	CompletionScore  float64        `json:"completion_score"`
	InteractionCount int            `json:"interaction_count"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at"`
	DurationMinutes  *float64       `json:"duration_minutes"`
}

// InterviewDetail is an interview with its stage summaries.
type InterviewDetail struct {
	Interview
	StageSummaries []StageSummary `json:"stage_summaries"`
}

// EmployeeHistory is the full review history of one employee.
type EmployeeHistory struct {
	Employee   Employee          `json:"employee"`
	Interviews []InterviewDetail `json:"interviews"`
}

// CompleteInterviewRequest is the payload for closing an interview.
type CompleteInterviewRequest struct {
	OverallScore *float64 `json:"overall_score,omitempty"`
}

// StatisticsOverview aggregates counters across all interviews.
type StatisticsOverview struct {
	TotalEmployees      int                     `json:"total_employees"`
	TotalInterviews     int                     `json:"total_interviews"`
	InterviewsByStatus  map[InterviewStatus]int `json:"interviews_by_status"`
	CompletionRate      float64                 `json:"completion_rate"`
	AverageOverallScore *float64                `json:"average_overall_score"`
	ActiveSessions      int                     `json:"active_sessions"`
}

// Session is a live review conversation together with the employee context
// it was opened for.
type Session struct {
	ID                 string                   `json:"session_id"`
	EmployeeID         int64                    `json:"employee_id,omitempty"`
	EmployeeName       string                   `json:"employee_name,omitempty"`
	EmployeePosition   string                   `json:"employee_position,omitempty"`
	EmployeeExperience string                   `json:"employee_experience,omitempty"`
	State              review.ConversationState `json:"state"`
	Summary            string                   `json:"summary,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
	LastActivity       time.Time                `json:"last_activity"`
}

// AttachEmployee copies the employee context into the session.
func (s *Session) AttachEmployee(e Employee) {
	s.EmployeeID = e.ID
	s.EmployeeName = e.FullName()
	s.EmployeePosition = e.Position
	s.EmployeeExperience = e.ExperienceLevel
}

// SessionInfo is the summary view of a session returned by the API.
type SessionInfo struct {
	SessionID        string         `json:"session_id"`
	CurrentStage     review.StageID `json:"current_stage"`
	InteractionCount int            `json:"interaction_count"`
	MessageCount     int            `json:"message_count"`
	InterviewID      int64          `json:"interview_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	LastActivity     time.Time      `json:"last_activity"`
}

// Info returns the summary view of the session.
func (s Session) Info() SessionInfo {
	return SessionInfo{
		SessionID:        s.ID,
		CurrentStage:     s.State.CurrentStage,
		InteractionCount: s.State.InteractionCount,
		MessageCount:     len(s.State.Messages),
		InterviewID:      s.State.InterviewID,
		CreatedAt:        s.CreatedAt,
		LastActivity:     s.LastActivity,
	}
}

// MessageRequest is the payload for sending a user turn.
type MessageRequest struct {
	Message string `json:"message"`
}

// Validate checks a MessageRequest.
func (r MessageRequest) Validate() error {
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// CreateSessionRequest is the payload for opening a session.
type CreateSessionRequest struct {
	EmployeeID int64 `json:"employee_id,omitempty"`
}
