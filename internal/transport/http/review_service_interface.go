package http

import (
	"context"
	"io"

	"pipelinereview/internal/exporter"
	"pipelinereview/internal/review"
	"pipelinereview/internal/services"
)

// ReviewServiceInterface defines the review operations the handlers need
type ReviewServiceInterface interface {
	Domain(ctx context.Context) (review.Domain, error)

	// Per-session filter state
	Filters(ctx context.Context, sessionID string) (review.FilterState, error)
	SetFilters(ctx context.Context, sessionID string, state review.FilterState) (review.FilterState, error)
	ResetFilters(ctx context.Context, sessionID string) (review.FilterState, error)

	View(ctx context.Context, state review.FilterState, opts services.ViewOptions) (*services.View, error)
	Trials(ctx context.Context, symbol string) (*services.TrialsView, error)
	Selection(ctx context.Context, label string) (*services.TrialsView, error)
	Export(ctx context.Context, w io.Writer, state review.FilterState, opts services.ViewOptions, format exporter.Format) error
}

// SessionManager issues and refreshes review sessions
type SessionManager interface {
	Create(ctx context.Context) string
	Touch(ctx context.Context, id string) bool
}
