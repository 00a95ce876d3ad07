package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "pipelinereview/internal/errors"
	"pipelinereview/internal/exporter"
	"pipelinereview/internal/middleware"
)

const maxSymbolLength = 32

// ReviewHandler serves the JSON review API with RFC 7807 errors
type ReviewHandler struct {
	service      ReviewServiceInterface
	sessions     *SessionMiddleware
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	now          func() time.Time
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(
	service ReviewServiceInterface,
	sessions *SessionMiddleware,
	validator *middleware.Validator,
	logger *slog.Logger,
	errorHandler *apierrors.ErrorHandler,
) *ReviewHandler {
	return &ReviewHandler{
		service:      service,
		sessions:     sessions,
		validator:    validator,
		logger:       logger.With(slog.String("component", "review_handler")),
		errorHandler: errorHandler,
		now:          time.Now,
	}
}

// Routes returns the review routes, mounted under /api
func (h *ReviewHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(h.sessions.Handler)

	r.Get("/domain", h.GetDomain)

	r.Route("/filters", func(r chi.Router) {
		r.Get("/", h.GetFilters)
		r.With(middleware.ContentTypeValidator(h.errorHandler, "application/json")).Put("/", h.PutFilters)
		r.Delete("/", h.ResetFilters)
	})

	r.Route("/companies", func(r chi.Router) {
		r.Get("/", h.GetCompanies)
		r.Get("/export", h.ExportCompanies)
		r.Route("/{symbol}", func(r chi.Router) {
			r.Use(h.SymbolCtx)
			r.Get("/trials", h.GetTrials)
		})
	})

	r.Get("/selection", h.GetSelection)

	return r
}

// SymbolCtx middleware validates the symbol parameter
func (h *ReviewHandler) SymbolCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimSpace(chi.URLParam(r, "symbol"))
		if symbol == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("symbol", "Symbol is required"))
			return
		}
		if len(symbol) > maxSymbolLength {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("symbol", "Invalid symbol format"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetDomain handles GET /api/domain
func (h *ReviewHandler) GetDomain(w http.ResponseWriter, r *http.Request) {
	domain, err := h.service.Domain(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}
	render.JSON(w, r, domain)
}

// GetFilters handles GET /api/filters
func (h *ReviewHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Filters(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}
	render.JSON(w, r, state)
}

// PutFilters handles PUT /api/filters
func (h *ReviewHandler) PutFilters(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	sessionID := SessionID(r.Context())
	state, err := h.service.SetFilters(r.Context(), sessionID, req.State())
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "filters saved",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("session_id", sessionID))
	render.JSON(w, r, state)
}

// ResetFilters handles DELETE /api/filters
func (h *ReviewHandler) ResetFilters(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.ResetFilters(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}
	render.JSON(w, r, state)
}

// GetCompanies handles GET /api/companies. Query parameters override the
// session filters for this request only.
func (h *ReviewHandler) GetCompanies(w http.ResponseWriter, r *http.Request) {
	q, err := parseViewQuery(r.URL.Query(), h.validator)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	state, err := h.service.Filters(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}

	state, err = q.apply(state)
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}

	view, err := h.service.View(r.Context(), state, q.options())
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}
	render.JSON(w, r, view)
}

// ExportCompanies handles GET /api/companies/export?format=csv|xlsx. The file
// is rendered to a buffer first so failures still produce a problem response.
func (h *ReviewHandler) ExportCompanies(w http.ResponseWriter, r *http.Request) {
	formatParam := r.URL.Query().Get("format")
	format, err := exporter.ParseFormat(formatParam)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.UnsupportedFormat(formatParam, exporter.SupportedFormats))
		return
	}

	q, err := parseViewQuery(r.URL.Query(), h.validator)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	state, err := h.service.Filters(r.Context(), SessionID(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}

	state, err = q.apply(state)
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf, state, q.options(), format); err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}

	filename := exporter.Filename("companies", format, h.now())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export download interrupted",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
	}
}

// GetTrials handles GET /api/companies/{symbol}/trials
func (h *ReviewHandler) GetTrials(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(chi.URLParam(r, "symbol"))

	view, err := h.service.Trials(r.Context(), symbol)
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}
	render.JSON(w, r, view)
}

// GetSelection handles GET /api/selection?label=...
func (h *ReviewHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	label := strings.TrimSpace(r.URL.Query().Get("label"))
	if label == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("label", "label is required"))
		return
	}

	view, err := h.service.Selection(r.Context(), label)
	if err != nil {
		h.errorHandler.HandleError(w, r, toAPIError(err))
		return
	}
	render.JSON(w, r, view)
}
