package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/ReviewPipe/internal/models"
)

// InMemoryStore keeps every record in process memory. It implements both
// Store and SessionStore and is safe for concurrent use.
type InMemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	employees  map[int64]models.Employee
	interviews map[int64]models.Interview
	summaries  map[int64][]models.StageSummary // by interview id
	sessions   map[string]models.Session
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		employees:  make(map[int64]models.Employee),
		interviews: make(map[int64]models.Interview),
		summaries:  make(map[int64][]models.StageSummary),
		sessions:   make(map[string]models.Session),
	}
}

func (s *InMemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *InMemoryStore) CreateEmployee(_ context.Context, e models.Employee) (models.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	e.InterviewsCount = 0
	s.employees[e.ID] = e
	return e, nil
}

func (s *InMemoryStore) GetEmployee(_ context.Context, id int64) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return nil, ErrEmployeeNotFound
	}
	e.InterviewsCount = s.interviewCount(id)
	return &e, nil
}

func (s *InMemoryStore) interviewCount(employeeID int64) int {
	n := 0
	for _, iv := range s.interviews {
		if iv.EmployeeID == employeeID {
			n++
		}
	}
	return n
}

func (s *InMemoryStore) ListEmployees(_ context.Context) ([]models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		e.InterviewsCount = s.interviewCount(e.ID)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) UpdateEmployee(_ context.Context, e models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.employees[e.ID]
	if !ok {
		return ErrEmployeeNotFound
	}
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	s.employees[e.ID] = e
	return nil
}

func (s *InMemoryStore) DeleteEmployee(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[id]; !ok {
		return ErrEmployeeNotFound
	}
	delete(s.employees, id)
	for ivID, iv := range s.interviews {
		if iv.EmployeeID == id {
			delete(s.interviews, ivID)
			delete(s.summaries, ivID)
		}
	}
	return nil
}

func (s *InMemoryStore) CreateInterview(_ context.Context, employeeID int64, sessionID string) (models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[employeeID]; !ok {
		return models.Interview{}, ErrEmployeeNotFound
	}
	for _, iv := range s.interviews {
		if iv.SessionID == sessionID {
			return models.Interview{}, ErrDuplicateSession
		}
	}
	now := time.Now().UTC()
	iv := models.Interview{
		ID:            s.id(),
		EmployeeID:    employeeID,
		SessionID:     sessionID,
		InterviewDate: now,
		Status:        models.InterviewStatusInProgress,
		CreatedAt:     now,
	}
	s.interviews[iv.ID] = iv
	return iv, nil
}

func (s *InMemoryStore) withCount(iv models.Interview) *models.Interview {
	iv.StageSummariesCount = len(s.summaries[iv.ID])
	return &iv
}

func (s *InMemoryStore) GetInterview(_ context.Context, id int64) (*models.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.interviews[id]
	if !ok {
		return nil, ErrInterviewNotFound
	}
	return s.withCount(iv), nil
}

func (s *InMemoryStore) GetInterviewBySession(_ context.Context, sessionID string) (*models.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, iv := range s.interviews {
		if iv.SessionID == sessionID {
			return s.withCount(iv), nil
		}
	}
	return nil, ErrInterviewNotFound
}

func (s *InMemoryStore) ListInterviews(_ context.Context, employeeID int64) ([]models.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Interview{}
	for _, iv := range s.interviews {
		if employeeID == 0 || iv.EmployeeID == employeeID {
			out = append(out, *s.withCount(iv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].InterviewDate.Equal(out[j].InterviewDate) {
			return out[i].InterviewDate.After(out[j].InterviewDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) CompleteInterview(_ context.Context, id int64, overallScore *float64) (*models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.interviews[id]
	if !ok {
		return nil, ErrInterviewNotFound
	}
	now := time.Now().UTC()
	iv.Status = models.InterviewStatusCompleted
	iv.CompletedAt = &now
	if overallScore != nil {
		v := *overallScore
		iv.OverallScore = &v
	}
	s.interviews[id] = iv
	return s.withCount(iv), nil
}

func (s *InMemoryStore) UpsertStageSummary(_ context.Context, sum models.StageSummary) (models.StageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.interviews[sum.InterviewID]; !ok {
		return models.StageSummary{}, ErrInterviewNotFound
	}
	list := s.summaries[sum.InterviewID]
	for i, existing := range list {
		if existing.StageName == sum.StageName {
			sum.ID = existing.ID
			sum.StartedAt = existing.StartedAt
			sum.DurationMinutes = durationMinutes(sum.StartedAt, sum.CompletedAt)
			list[i] = sum
			return sum, nil
		}
	}
	sum.ID = s.id()
	if sum.StartedAt.IsZero() {
		sum.StartedAt = time.Now().UTC()
	}
	sum.DurationMinutes = durationMinutes(sum.StartedAt, sum.CompletedAt)
	s.summaries[sum.InterviewID] = append(list, sum)
	return sum, nil
}

func (s *InMemoryStore) ListStageSummaries(_ context.Context, interviewID int64) ([]models.StageSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.StageSummary{}, s.summaries[interviewID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StageOrder < out[j].StageOrder })
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

// GetSession returns a copy of the stored session.
func (s *InMemoryStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.State = sess.State.Clone()
	return &sess, nil
}

// PutSession stores a deep copy of sess so later mutations by the caller
// are not visible to other readers.
func (s *InMemoryStore) PutSession(_ context.Context, sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.State = sess.State.Clone()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *InMemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) ListSessions(_ context.Context) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sess.State = sess.State.Clone()
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// durationMinutes returns the elapsed minutes between start and end, or nil
// when end is unset.
func durationMinutes(start time.Time, end *time.Time) *float64 {
	if end == nil || start.IsZero() {
		return nil
	}
	d := end.Sub(start).Minutes()
	if d < 0 {
		d = 0
	}
	return &d
}
