package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pipelinereview/internal/config"
	"pipelinereview/internal/infrastructure"
	"pipelinereview/internal/review"
)

type session struct {
	state    review.FilterState
	hasState bool
	lastSeen time.Time
}

// SessionStore keeps each browser session's FilterState in memory. Sessions
// idle for longer than the TTL are evicted lazily on access; when the store is
// full the least recently seen session makes room for a new one.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	max      int
	now      func() time.Time

	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// NewSessionStore creates an empty store.
func NewSessionStore(cfg config.SessionConfig, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *SessionStore {
	if cfg.TTL <= 0 {
		cfg.TTL = config.DefaultSessionTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = config.DefaultMaxSessions
	}
	return &SessionStore{
		sessions: make(map[string]*session),
		ttl:      cfg.TTL,
		max:      cfg.MaxSessions,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "sessions")),
		metrics:  metrics,
	}
}

// Create starts a new session and returns its ID.
func (s *SessionStore) Create(ctx context.Context) string {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictExpiredLocked(ctx, now)
	if len(s.sessions) >= s.max {
		s.evictOldestLocked(ctx)
	}
	s.sessions[id] = &session{lastSeen: now}
	s.metrics.ActiveSessions.Add(ctx, 1)

	s.logger.DebugContext(ctx, "session created", slog.String("session_id", id))
	return id
}

// Touch marks a session as seen and reports whether it is still live.
func (s *SessionStore) Touch(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveLocked(ctx, id)
	if ok {
		sess.lastSeen = s.now()
	}
	return ok
}

// Get returns a copy of the session's filter state. ok is false when the
// session is unknown or has never stored a state.
func (s *SessionStore) Get(ctx context.Context, id string) (review.FilterState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveLocked(ctx, id)
	if !ok || !sess.hasState {
		return review.FilterState{}, false
	}
	sess.lastSeen = s.now()
	return sess.state.Clone(), true
}

// Put stores a copy of state for the session.
func (s *SessionStore) Put(ctx context.Context, id string, state review.FilterState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveLocked(ctx, id)
	if !ok {
		return ErrSessionNotFound
	}
	sess.state = state.Clone()
	sess.hasState = true
	sess.lastSeen = s.now()
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(ctx, id)
}

// Len returns the number of sessions held, expired ones included until the
// next eviction.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) liveLocked(ctx context.Context, id string) (*session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.now().Sub(sess.lastSeen) > s.ttl {
		s.removeLocked(ctx, id)
		return nil, false
	}
	return sess, true
}

func (s *SessionStore) evictExpiredLocked(ctx context.Context, now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			s.removeLocked(ctx, id)
		}
	}
}

func (s *SessionStore) evictOldestLocked(ctx context.Context) {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		if oldestID == "" || sess.lastSeen.Before(oldest) {
			oldestID, oldest = id, sess.lastSeen
		}
	}
	if oldestID != "" {
		s.logger.InfoContext(ctx, "session store full, evicting oldest session",
			slog.Int("max_sessions", s.max))
		s.removeLocked(ctx, oldestID)
	}
}

func (s *SessionStore) removeLocked(ctx context.Context, id string) {
	if _, ok := s.sessions[id]; !ok {
		return
	}
	delete(s.sessions, id)
	s.metrics.ActiveSessions.Add(ctx, -1)
}
