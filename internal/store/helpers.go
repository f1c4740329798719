package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BTreeMap/ReviewPipe/internal/models"
	"github.com/BTreeMap/ReviewPipe/internal/review"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// nullTime converts an optional time into a nullable column value.
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// nullFloat converts an optional float into a nullable column value.
func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func scanEmployee(row rowScanner) (models.Employee, error) {
	var e models.Employee
	err := row.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Position, &e.ExperienceLevel,
		&e.CreatedAt, &e.UpdatedAt, &e.InterviewsCount)
	return e, err
}

func scanInterview(row rowScanner) (models.Interview, error) {
	var (
		iv        models.Interview
		status    string
		score     sql.NullFloat64
		completed sql.NullTime
	)
	err := row.Scan(&iv.ID, &iv.EmployeeID, &iv.SessionID, &iv.InterviewDate, &status, &score,
		&iv.CreatedAt, &completed, &iv.StageSummariesCount)
	if err != nil {
		return iv, err
	}
	iv.Status = models.InterviewStatus(status)
	iv.OverallScore = floatPtr(score)
	iv.CompletedAt = timePtr(completed)
	return iv, nil
}

func scanStageSummary(row rowScanner) (models.StageSummary, error) {
	var (
		sum       models.StageSummary
		stage     string
		keyPoints string
		completed sql.NullTime
		duration  sql.NullFloat64
	)
	err := row.Scan(&sum.ID, &sum.InterviewID, &stage, &sum.StageOrder, &sum.SummaryText, &keyPoints,
		&sum.CompletionScore, &sum.InteractionCount, &sum.StartedAt, &completed, &duration)
	if err != nil {
		return sum, err
	}
	sum.StageName = review.StageID(stage)
	sum.CompletedAt = timePtr(completed)
	sum.DurationMinutes = floatPtr(duration)
	if keyPoints != "" {
		if err := json.Unmarshal([]byte(keyPoints), &sum.KeyPoints); err != nil {
			return sum, fmt.Errorf("failed to decode key points: %w", err)
		}
	}
	return sum, nil
}

func decodeSession(payload string) (*models.Session, error) {
	var sess models.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}
