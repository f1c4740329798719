// Package api provides the HTTP server for ReviewPipe.
//
// It exposes RESTful endpoints for review sessions, employees, interviews
// and statistics, and runs the session janitor alongside the listener.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BTreeMap/ReviewPipe/internal/flow"
	"github.com/BTreeMap/ReviewPipe/internal/genai"
	"github.com/BTreeMap/ReviewPipe/internal/review"
	"github.com/BTreeMap/ReviewPipe/internal/store"
)

// Default configuration constants
const (
	// DefaultServerAddress is the default HTTP server address
	DefaultServerAddress = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown of the HTTP server
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultReadHeaderTimeout guards against slow clients
	DefaultReadHeaderTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr             string
	StageConfigPath  string
	SystemPromptFile string
	HistoryLimit     int
	SessionMaxAge    time.Duration
	JanitorInterval  time.Duration
	ShutdownTimeout  time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithStageConfig loads the stage definitions from a YAML file.
func WithStageConfig(path string) Option {
	return func(o *Opts) { o.StageConfigPath = path }
}

// WithSystemPromptFile replaces the built-in system prompt with the file contents.
func WithSystemPromptFile(path string) Option {
	return func(o *Opts) { o.SystemPromptFile = path }
}

// WithHistoryLimit caps how many transcript messages are sent to the LLM.
func WithHistoryLimit(n int) Option {
	return func(o *Opts) { o.HistoryLimit = n }
}

// WithSessionMaxAge sets how long an idle session survives.
func WithSessionMaxAge(d time.Duration) Option {
	return func(o *Opts) { o.SessionMaxAge = d }
}

// WithJanitorInterval sets how often idle sessions are swept.
func WithJanitorInterval(d time.Duration) Option {
	return func(o *Opts) { o.JanitorInterval = d }
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ShutdownTimeout = d }
}

// Server holds all dependencies for the API handlers.
type Server struct {
	flow      *flow.InterviewFlow
	records   store.Store
	sessions  store.SessionStore
	summaries *flow.SummaryBuilder
	cfg       *review.Config
	locks     *sessionLocks
	opts      Opts
	now       func() time.Time
}

// NewServer wires a server around an existing flow and stores.
func NewServer(f *flow.InterviewFlow, records store.Store, sessions store.SessionStore, summaries *flow.SummaryBuilder, opts ...Option) *Server {
	cfg := Opts{
		Addr:            DefaultServerAddress,
		SessionMaxAge:   store.DefaultSessionMaxAge,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		flow:      f,
		records:   records,
		sessions:  sessions,
		summaries: summaries,
		cfg:       f.Config(),
		locks:     newSessionLocks(),
		opts:      cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("DELETE /sessions/{id}", s.deleteSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/messages", s.sendMessageHandler)
	mux.HandleFunc("GET /sessions/{id}/messages", s.listMessagesHandler)
	mux.HandleFunc("GET /sessions/{id}/summary", s.summaryHandler)
	mux.HandleFunc("GET /sessions/{id}/help", s.helpHandler)

	mux.HandleFunc("POST /employees", s.createEmployeeHandler)
	mux.HandleFunc("GET /employees", s.listEmployeesHandler)
	mux.HandleFunc("GET /employees/{id}", s.getEmployeeHandler)
	mux.HandleFunc("PUT /employees/{id}", s.updateEmployeeHandler)
	mux.HandleFunc("DELETE /employees/{id}", s.deleteEmployeeHandler)
	mux.HandleFunc("POST /employees/{id}/interviews", s.startInterviewHandler)
	mux.HandleFunc("GET /employees/{id}/interviews", s.listInterviewsHandler)
	mux.HandleFunc("GET /employees/{id}/history", s.employeeHistoryHandler)

	mux.HandleFunc("GET /interviews/session/{sid}", s.interviewBySessionHandler)
	mux.HandleFunc("POST /interviews/session/{sid}/complete", s.completeInterviewHandler)

	mux.HandleFunc("GET /statistics/overview", s.statisticsHandler)

	return logRequests(mux)
}

// logRequests logs every request at debug level with its duration.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Server.request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

// Serve runs the HTTP listener and the session janitor until ctx is
// cancelled or either of them fails.
func (s *Server) Serve(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	janitor := store.NewSessionJanitor(s.sessions, s.opts.SessionMaxAge, s.opts.JanitorInterval)
	janitor.SetLocker(s.locks.Lock)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server.Serve: API listening", "addr", s.opts.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		slog.Info("Server.Serve: shutting down API server")
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		janitor.Run(gctx)
		return nil
	})
	return g.Wait()
}

// Run builds every module from the given options and serves until ctx is
// cancelled.
func Run(ctx context.Context, storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	var opts Opts
	for _, opt := range apiOpts {
		opt(&opts)
	}

	cfg := review.DefaultConfig()
	if opts.StageConfigPath != "" {
		loaded, err := review.LoadConfig(opts.StageConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load stage config: %w", err)
		}
		cfg = loaded
	}
	for _, w := range cfg.Warnings() {
		slog.Warn("api.Run: stage configuration warning", "warning", w)
	}

	records, err := store.Open(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if cerr := records.Close(); cerr != nil {
			slog.Error("api.Run: failed to close store", "error", cerr)
		}
	}()

	sessions, err := store.OpenSessionStore(ctx, records, storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	if rs, ok := sessions.(*store.RedisSessionStore); ok {
		defer rs.Close()
	}

	llm, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to create GenAI client: %w", err)
	}

	f := flow.NewInterviewFlow(llm, records, cfg)
	if opts.SystemPromptFile != "" {
		if err := f.LoadSystemPrompt(opts.SystemPromptFile); err != nil {
			return err
		}
	}
	if opts.HistoryLimit > 0 {
		f.SetHistoryLimit(opts.HistoryLimit)
	}

	srv := NewServer(f, records, sessions, flow.NewSummaryBuilder(llm, cfg), apiOpts...)
	return srv.Serve(ctx)
}
