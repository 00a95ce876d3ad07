package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"pipelinereview/internal/config"
)

type sessionKey struct{}

// SessionMiddleware binds every request to a review session carried in the
// review_session cookie. Unknown or expired IDs get a fresh session.
type SessionMiddleware struct {
	store  SessionManager
	ttl    time.Duration
	secure bool
	logger *slog.Logger
}

// NewSessionMiddleware creates the cookie middleware. secure marks the cookie
// HTTPS-only.
func NewSessionMiddleware(store SessionManager, cfg config.SessionConfig, secure bool, logger *slog.Logger) *SessionMiddleware {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = config.DefaultSessionTTL
	}
	return &SessionMiddleware{
		store:  store,
		ttl:    ttl,
		secure: secure,
		logger: logger.With(slog.String("component", "session_middleware")),
	}
}

// Handler resolves or creates the session and stores its ID in the context.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id := ""
		if c, err := r.Cookie(config.SessionCookieName); err == nil && c.Value != "" {
			if m.store.Touch(ctx, c.Value) {
				id = c.Value
			}
		}
		if id == "" {
			id = m.store.Create(ctx)
			m.logger.DebugContext(ctx, "session started", slog.String("session_id", id))
		}

		http.SetCookie(w, &http.Cookie{
			Name:     config.SessionCookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(m.ttl / time.Second),
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(WithSessionID(ctx, id)))
	})
}

// WithSessionID returns a context carrying the session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session ID stored by SessionMiddleware.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
