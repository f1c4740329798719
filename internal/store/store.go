// Package store provides storage backends for ReviewPipe.
//
// Store persists employees, interviews and stage summaries. SessionStore
// holds live conversation sessions. Both come in an in-memory flavour and
// database-backed flavours (SQLite, PostgreSQL, and Redis for sessions).
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BTreeMap/ReviewPipe/internal/models"
)

// Sentinel errors returned by every backend.
var (
	ErrEmployeeNotFound  = errors.New("employee not found")
	ErrInterviewNotFound = errors.New("interview not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrDuplicateSession  = errors.New("an interview already exists for this session")
)

// Store persists the review records.
type Store interface {
	CreateEmployee(ctx context.Context, e models.Employee) (models.Employee, error)
	GetEmployee(ctx context.Context, id int64) (*models.Employee, error)
	ListEmployees(ctx context.Context) ([]models.Employee, error)
	UpdateEmployee(ctx context.Context, e models.Employee) error
	// DeleteEmployee removes the employee together with its interviews and
	// their stage summaries.
	DeleteEmployee(ctx context.Context, id int64) error

	CreateInterview(ctx context.Context, employeeID int64, sessionID string) (models.Interview, error)
	GetInterview(ctx context.Context, id int64) (*models.Interview, error)
	GetInterviewBySession(ctx context.Context, sessionID string) (*models.Interview, error)
	// ListInterviews returns the interviews of one employee, newest first.
	// An employeeID of 0 lists every interview.
	ListInterviews(ctx context.Context, employeeID int64) ([]models.Interview, error)
	CompleteInterview(ctx context.Context, id int64, overallScore *float64) (*models.Interview, error)

	// UpsertStageSummary inserts or updates the summary identified by
	// (InterviewID, StageName). StartedAt is preserved on update and
	// DurationMinutes is derived from it when CompletedAt is set.
	UpsertStageSummary(ctx context.Context, s models.StageSummary) (models.StageSummary, error)
	ListStageSummaries(ctx context.Context, interviewID int64) ([]models.StageSummary, error)

	Close() error
}

// SessionStore holds live conversation sessions by id.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	PutSession(ctx context.Context, s models.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context) ([]models.Session, error)
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN        string // database connection string
	RedisURL   string // redis://host:port/db for the Redis session store
	KeyPrefix  string // Redis key prefix
	SessionTTL time.Duration
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisURL sets the Redis connection URL for the session store.
func WithRedisURL(url string) Option {
	return func(o *Opts) { o.RedisURL = url }
}

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *Opts) { o.KeyPrefix = prefix }
}

// WithSessionTTL sets how long an idle session is kept by stores that
// support expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.SessionTTL = ttl }
}

// DetectDSNType returns the database/sql driver name for dsn: "postgres"
// for PostgreSQL URLs and keyword DSNs, "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// Open builds the record store selected by opts: PostgreSQL or SQLite when a
// DSN is set, in-memory otherwise.
func Open(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		return NewInMemoryStore(), nil
	case DetectDSNType(cfg.DSN) == "postgres":
		return NewPostgresStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}

// OpenSessionStore picks the session backend: Redis when a RedisURL is set,
// otherwise records itself when it can hold sessions, otherwise a fresh
// in-memory store.
func OpenSessionStore(ctx context.Context, records Store, opts ...Option) (SessionStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RedisURL != "" {
		return NewRedisSessionStore(ctx, opts...)
	}
	if ss, ok := records.(SessionStore); ok {
		return ss, nil
	}
	return NewInMemoryStore(), nil
}
