package store

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultSessionMaxAge is how long a session may stay idle before the
// janitor removes it.
const DefaultSessionMaxAge = 24 * time.Hour

// SessionJanitor periodically removes sessions whose last activity is older
// than maxAge.
type SessionJanitor struct {
	sessions     SessionStore
	maxAge       time.Duration
	pollInterval time.Duration
	now          func() time.Time
	lock         func(id string) func()
}

// NewSessionJanitor creates a janitor. Non-positive durations fall back to
// DefaultSessionMaxAge and a poll interval of one tenth of maxAge (at most
// ten minutes).
func NewSessionJanitor(sessions SessionStore, maxAge, pollInterval time.Duration) *SessionJanitor {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	if pollInterval <= 0 {
		pollInterval = maxAge / 10
		if pollInterval > 10*time.Minute {
			pollInterval = 10 * time.Minute
		}
	}
	return &SessionJanitor{
		sessions:     sessions,
		maxAge:       maxAge,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// SetLocker makes the janitor hold lock(id) while it re-checks and deletes a
// session, so a sweep never races a turn that is writing the same session.
func (j *SessionJanitor) SetLocker(lock func(id string) func()) {
	j.lock = lock
}

// Run starts the sweep loop. It blocks until the context is cancelled.
func (j *SessionJanitor) Run(ctx context.Context) {
	slog.Info("SessionJanitor.Run: starting session janitor", "maxAge", j.maxAge, "pollInterval", j.pollInterval)

	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("SessionJanitor.Run: stopping")
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				slog.Error("SessionJanitor.Run: sweep failed", "error", err)
			}
		}
	}
}

// Sweep removes every expired session once and returns how many were removed.
func (j *SessionJanitor) Sweep(ctx context.Context) (int, error) {
	sessions, err := j.sessions.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	for _, sess := range sessions {
		if !sess.LastActivity.Before(cutoff) {
			continue
		}
		ok, err := j.expire(ctx, sess.ID, cutoff)
		if err != nil {
			slog.Error("SessionJanitor.Sweep: delete failed", "sessionID", sess.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		removed++
		slog.Debug("SessionJanitor.Sweep: removed idle session", "sessionID", sess.ID, "lastActivity", sess.LastActivity)
	}
	if removed > 0 {
		slog.Info("SessionJanitor.Sweep: removed idle sessions", "count", removed)
	}
	return removed, nil
}

// expire deletes id if it is still idle past cutoff once the session lock is
// held. A session touched after the listing is kept.
func (j *SessionJanitor) expire(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	if j.lock != nil {
		unlock := j.lock(id)
		defer unlock()
	}
	sess, err := j.sessions.GetSession(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !sess.LastActivity.Before(cutoff) {
		return false, nil
	}
	if err := j.sessions.DeleteSession(ctx, id); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
