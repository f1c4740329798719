package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/ReviewPipe/internal/models"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// sqlStore implements Store and SessionStore on top of database/sql. The
// SQLite and PostgreSQL backends share it and differ only in driver name,
// migrations and placeholder syntax.
type sqlStore struct {
	db     *sql.DB
	driver string
	name   string // used as the log prefix
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *sqlStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports whether err is a unique-constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

const employeeColumns = `e.id, e.firstname, e.lastname, e.poste_equiped, e.level_of_experience, e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM interviews i WHERE i.employee_id = e.id)`

func (s *sqlStore) CreateEmployee(ctx context.Context, e models.Employee) (models.Employee, error) {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	query := s.rebind(`INSERT INTO employees (firstname, lastname, poste_equiped, level_of_experience, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.QueryRowContext(ctx, query, e.FirstName, e.LastName, e.Position, e.ExperienceLevel, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
	if err != nil {
		slog.Error(s.name+".CreateEmployee failed", "error", err)
		return e, fmt.Errorf("failed to insert employee: %w", err)
	}
	e.InterviewsCount = 0
	slog.Debug(s.name+".CreateEmployee succeeded", "employeeID", e.ID)
	return e, nil
}

func (s *sqlStore) GetEmployee(ctx context.Context, id int64) (*models.Employee, error) {
	query := s.rebind(`SELECT ` + employeeColumns + ` FROM employees e WHERE e.id = ?`)
	e, err := scanEmployee(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		slog.Error(s.name+".GetEmployee failed", "error", err, "employeeID", id)
		return nil, fmt.Errorf("failed to get employee %d: %w", id, err)
	}
	return &e, nil
}

func (s *sqlStore) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees e ORDER BY e.id`)
	if err != nil {
		slog.Error(s.name+".ListEmployees query failed", "error", err)
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	out := []models.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employee rows: %w", err)
	}
	return out, nil
}

func (s *sqlStore) UpdateEmployee(ctx context.Context, e models.Employee) error {
	e.UpdatedAt = time.Now().UTC()
	query := s.rebind(`UPDATE employees SET firstname = ?, lastname = ?, poste_equiped = ?, level_of_experience = ?, updated_at = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, e.FirstName, e.LastName, e.Position, e.ExperienceLevel, e.UpdatedAt, e.ID)
	if err != nil {
		slog.Error(s.name+".UpdateEmployee failed", "error", err, "employeeID", e.ID)
		return fmt.Errorf("failed to update employee %d: %w", e.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (s *sqlStore) DeleteEmployee(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM stage_summaries WHERE interview_id IN (SELECT id FROM interviews WHERE employee_id = ?)`,
		`DELETE FROM interviews WHERE employee_id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, s.rebind(q), id); err != nil {
			slog.Error(s.name+".DeleteEmployee cascade failed", "error", err, "employeeID", id)
			return fmt.Errorf("failed to delete employee %d records: %w", id, err)
		}
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM employees WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete employee %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEmployeeNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit employee deletion: %w", err)
	}
	slog.Debug(s.name+".DeleteEmployee succeeded", "employeeID", id)
	return nil
}

const interviewColumns = `i.id, i.employee_id, i.session_id, i.interview_date, i.status, i.overall_score, i.created_at, i.completed_at,
	(SELECT COUNT(*) FROM stage_summaries s WHERE s.interview_id = i.id)`

func (s *sqlStore) CreateInterview(ctx context.Context, employeeID int64, sessionID string) (models.Interview, error) {
	if _, err := s.GetEmployee(ctx, employeeID); err != nil {
		return models.Interview{}, err
	}
	now := time.Now().UTC()
	iv := models.Interview{
		EmployeeID:    employeeID,
		SessionID:     sessionID,
		InterviewDate: now,
		Status:        models.InterviewStatusInProgress,
		CreatedAt:     now,
	}
	query := s.rebind(`INSERT INTO interviews (employee_id, session_id, interview_date, status, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.QueryRowContext(ctx, query, employeeID, sessionID, iv.InterviewDate, string(iv.Status), iv.CreatedAt).Scan(&iv.ID)
	if isUniqueViolation(err) {
		return iv, ErrDuplicateSession
	}
	if err != nil {
		slog.Error(s.name+".CreateInterview failed", "error", err, "employeeID", employeeID, "sessionID", sessionID)
		return iv, fmt.Errorf("failed to insert interview: %w", err)
	}
	slog.Debug(s.name+".CreateInterview succeeded", "interviewID", iv.ID, "sessionID", sessionID)
	return iv, nil
}

func (s *sqlStore) getInterviewWhere(ctx context.Context, where string, arg interface{}) (*models.Interview, error) {
	query := s.rebind(`SELECT ` + interviewColumns + ` FROM interviews i WHERE ` + where)
	iv, err := scanInterview(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInterviewNotFound
	}
	if err != nil {
		slog.Error(s.name+".getInterview failed", "error", err, "where", where)
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}
	return &iv, nil
}

func (s *sqlStore) GetInterview(ctx context.Context, id int64) (*models.Interview, error) {
	return s.getInterviewWhere(ctx, "i.id = ?", id)
}

func (s *sqlStore) GetInterviewBySession(ctx context.Context, sessionID string) (*models.Interview, error) {
	return s.getInterviewWhere(ctx, "i.session_id = ?", sessionID)
}

func (s *sqlStore) ListInterviews(ctx context.Context, employeeID int64) ([]models.Interview, error) {
	query := `SELECT ` + interviewColumns + ` FROM interviews i`
	var args []interface{}
	if employeeID != 0 {
		query += ` WHERE i.employee_id = ?`
		args = append(args, employeeID)
	}
	query += ` ORDER BY i.interview_date DESC, i.id DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		slog.Error(s.name+".ListInterviews query failed", "error", err, "employeeID", employeeID)
		return nil, fmt.Errorf("failed to query interviews: %w", err)
	}
	defer rows.Close()

	out := []models.Interview{}
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interview row: %w", err)
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interview rows: %w", err)
	}
	return out, nil
}

func (s *sqlStore) CompleteInterview(ctx context.Context, id int64, overallScore *float64) (*models.Interview, error) {
	var score interface{}
	if overallScore != nil {
		score = *overallScore
	}
	query := s.rebind(`UPDATE interviews SET status = ?, completed_at = ?, overall_score = COALESCE(?, overall_score) WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, string(models.InterviewStatusCompleted), time.Now().UTC(), score, id)
	if err != nil {
		slog.Error(s.name+".CompleteInterview failed", "error", err, "interviewID", id)
		return nil, fmt.Errorf("failed to complete interview %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrInterviewNotFound
	}
	return s.GetInterview(ctx, id)
}

func (s *sqlStore) UpsertStageSummary(ctx context.Context, sum models.StageSummary) (models.StageSummary, error) {
	keyPoints, err := json.Marshal(sum.KeyPoints)
	if err != nil {
		return sum, fmt.Errorf("failed to encode key points: %w", err)
	}
	if sum.KeyPoints == nil {
		keyPoints = []byte("[]")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sum, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var startedAt time.Time
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT id, started_at FROM stage_summaries WHERE interview_id = ? AND stage_name = ?`),
		sum.InterviewID, string(sum.StageName)).Scan(&sum.ID, &startedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		var exists int
		if err := tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM interviews WHERE id = ?`), sum.InterviewID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sum, ErrInterviewNotFound
			}
			return sum, fmt.Errorf("failed to check interview %d: %w", sum.InterviewID, err)
		}
		if sum.StartedAt.IsZero() {
			sum.StartedAt = time.Now().UTC()
		}
		sum.DurationMinutes = durationMinutes(sum.StartedAt, sum.CompletedAt)
		query := s.rebind(`INSERT INTO stage_summaries (interview_id, stage_name, stage_order, summary_text, key_points,
			completion_score, interaction_count, started_at, completed_at, duration_minutes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		err = tx.QueryRowContext(ctx, query, sum.InterviewID, string(sum.StageName), sum.StageOrder, sum.SummaryText,
			string(keyPoints), sum.CompletionScore, sum.InteractionCount, sum.StartedAt, nullTime(sum.CompletedAt),
			nullFloat(sum.DurationMinutes)).Scan(&sum.ID)
		if err != nil {
			slog.Error(s.name+".UpsertStageSummary insert failed", "error", err, "interviewID", sum.InterviewID, "stage", sum.StageName)
			return sum, fmt.Errorf("failed to insert stage summary: %w", err)
		}
	case err != nil:
		return sum, fmt.Errorf("failed to look up stage summary: %w", err)
	default:
		sum.StartedAt = startedAt
		sum.DurationMinutes = durationMinutes(sum.StartedAt, sum.CompletedAt)
		query := s.rebind(`UPDATE stage_summaries SET stage_order = ?, summary_text = ?, key_points = ?, completion_score = ?,
			interaction_count = ?, completed_at = ?, duration_minutes = ? WHERE id = ?`)
		_, err = tx.ExecContext(ctx, query, sum.StageOrder, sum.SummaryText, string(keyPoints), sum.CompletionScore,
			sum.InteractionCount, nullTime(sum.CompletedAt), nullFloat(sum.DurationMinutes), sum.ID)
		if err != nil {
			slog.Error(s.name+".UpsertStageSummary update failed", "error", err, "summaryID", sum.ID)
			return sum, fmt.Errorf("failed to update stage summary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sum, fmt.Errorf("failed to commit stage summary: %w", err)
	}
	slog.Debug(s.name+".UpsertStageSummary succeeded", "interviewID", sum.InterviewID, "stage", sum.StageName)
	return sum, nil
}

func (s *sqlStore) ListStageSummaries(ctx context.Context, interviewID int64) ([]models.StageSummary, error) {
	query := s.rebind(`SELECT id, interview_id, stage_name, stage_order, summary_text, key_points, completion_score,
		interaction_count, started_at, completed_at, duration_minutes
		FROM stage_summaries WHERE interview_id = ? ORDER BY stage_order, id`)
	rows, err := s.db.QueryContext(ctx, query, interviewID)
	if err != nil {
		slog.Error(s.name+".ListStageSummaries query failed", "error", err, "interviewID", interviewID)
		return nil, fmt.Errorf("failed to query stage summaries: %w", err)
	}
	defer rows.Close()

	out := []models.StageSummary{}
	for rows.Next() {
		sum, err := scanStageSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage summary row: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stage summary rows: %w", err)
	}
	return out, nil
}

// GetSession loads a session from the review_sessions table.
func (s *sqlStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT payload FROM review_sessions WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		slog.Error(s.name+".GetSession failed", "error", err, "sessionID", id)
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return decodeSession(payload)
}

// PutSession inserts or replaces a session.
func (s *sqlStore) PutSession(ctx context.Context, sess models.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.ID, err)
	}
	query := s.rebind(`INSERT INTO review_sessions (id, payload, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, sess.ID, string(payload), sess.CreatedAt.UTC(), sess.LastActivity.UTC()); err != nil {
		slog.Error(s.name+".PutSession failed", "error", err, "sessionID", sess.ID)
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *sqlStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM review_sessions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *sqlStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM review_sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	out := []models.Session{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sess, err := decodeSession(payload)
		if err != nil {
			slog.Warn(s.name+".ListSessions skipping undecodable session", "error", err)
			continue
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *sqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	slog.Debug(s.name + ".Close: closing database connection")
	return s.db.Close()
}

// compile-time interface checks
var (
	_ Store        = (*SQLiteStore)(nil)
	_ SessionStore = (*SQLiteStore)(nil)
	_ Store        = (*PostgresStore)(nil)
	_ SessionStore = (*PostgresStore)(nil)
	_ Store        = (*InMemoryStore)(nil)
	_ SessionStore = (*InMemoryStore)(nil)
	_ SessionStore = (*RedisSessionStore)(nil)
)
