package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	apierrors "pipelinereview/internal/errors"
	"pipelinereview/internal/middleware"
	"pipelinereview/internal/review"
	"pipelinereview/internal/services"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

const dashboardTitle = "Company Pipeline & Trials Review"

// DashboardHandler renders the HTML review page
type DashboardHandler struct {
	service   ReviewServiceInterface
	sessions  *SessionMiddleware
	validator *middleware.Validator
	templates *template.Template
	liveURL   string
	logger    *slog.Logger
}

type dashboardPage struct {
	Title           string
	LiveURL         string
	Filters         review.FilterState
	Domain          review.Domain
	Summary         review.Summary
	AvgMarketCap    string
	MarketedOptions []string
	Columns         []columnHeader
	Rows            [][]string
	Desc            bool
	Options         []services.CompanyOption
	Selected        string
	Trials          *trialsSection
}

type columnHeader struct {
	Name    string
	SortURL string
	Active  bool
}

type trialsSection struct {
	Company review.Company
	Count   int
	Message string
	Columns []string
	Rows    []trialRow
}

type trialRow struct {
	Cells []string
	Link  string
}

type noticePage struct {
	Title   string
	Message string
	TraceID string
}

// NewDashboardHandler parses the embedded templates. liveURL is the websocket
// path the page connects to; empty disables live updates.
func NewDashboardHandler(service ReviewServiceInterface, sessions *SessionMiddleware, validator *middleware.Validator, liveURL string, logger *slog.Logger) (*DashboardHandler, error) {
	tmpl, err := template.New("dashboard").Funcs(template.FuncMap{
		"has": func(list []string, v string) bool { return slices.Contains(list, v) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &DashboardHandler{
		service:   service,
		sessions:  sessions,
		validator: validator,
		templates: tmpl,
		liveURL:   liveURL,
		logger:    logger.With(slog.String("handler", "dashboard")),
	}, nil
}

// Assets serves the stylesheet and script under /assets/.
func Assets() http.Handler {
	sub, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/assets/", http.FileServer(http.FS(sub)))
}

// ServeHTTP handles GET /. A submitted filter form (apply=1) or reset=1
// updates the session before rendering.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.sessions.Handler(http.HandlerFunc(h.render)).ServeHTTP(w, r)
}

func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := SessionID(ctx)
	query := r.URL.Query()

	q, err := parseViewQuery(query, h.validator)
	if err != nil {
		h.notice(w, r, err)
		return
	}

	var state review.FilterState
	switch {
	case query.Get("reset") != "":
		state, err = h.service.ResetFilters(ctx, sessionID)
	case query.Get("apply") != "":
		state, err = h.service.Filters(ctx, sessionID)
		if err == nil {
			state = formState(q, state)
			state, err = h.service.SetFilters(ctx, sessionID, state)
		}
	default:
		state, err = h.service.Filters(ctx, sessionID)
	}
	if err != nil {
		h.notice(w, r, toAPIError(err))
		return
	}

	view, err := h.service.View(ctx, state, q.options())
	if err != nil {
		h.notice(w, r, toAPIError(err))
		return
	}

	page := dashboardPage{
		Title:           dashboardTitle,
		LiveURL:         h.liveURL,
		Filters:         view.Filters,
		Domain:          view.Domain,
		Summary:         view.Summary,
		AvgMarketCap:    view.Summary.AvgMarketCapLabel(),
		MarketedOptions: []string{string(review.MarketedAll), string(review.MarketedYes), string(review.MarketedNo)},
		Desc:            q.Desc,
		Options:         view.Options,
		Selected:        query.Get("company"),
	}

	for _, name := range view.Companies.Columns() {
		page.Columns = append(page.Columns, columnHeader{
			Name:    name,
			SortURL: sortURL(query, name, q),
			Active:  name == q.Sort,
		})
	}
	for i := 0; i < view.Companies.Len(); i++ {
		page.Rows = append(page.Rows, view.Companies.Strings(i))
	}

	if page.Selected != "" {
		trials, err := h.service.Selection(ctx, page.Selected)
		if err != nil {
			h.notice(w, r, toAPIError(err))
			return
		}
		page.Trials = newTrialsSection(trials)
	}

	h.execute(w, r, http.StatusOK, "dashboard.html", page)
}

// formState builds the state of a submitted form. Unchecked boxes are absent
// from the query, so missing lists mean no restriction.
func formState(q viewQuery, current review.FilterState) review.FilterState {
	state := q.merge(current)
	state.TherapeuticAreas = append([]string{}, q.TherapeuticAreas...)
	state.Phases = append([]string{}, q.Phases...)
	if q.Marketed == "" {
		state.MarketedDrug = review.MarketedAll
	}
	return state
}

func sortURL(query url.Values, column string, q viewQuery) string {
	next := url.Values{}
	if company := query.Get("company"); company != "" {
		next.Set("company", company)
	}
	next.Set("sort", column)
	next.Set("desc", strconv.FormatBool(column == q.Sort && !q.Desc))
	return "/?" + next.Encode()
}

func newTrialsSection(view *services.TrialsView) *trialsSection {
	section := &trialsSection{
		Company: view.Company,
		Count:   view.Count,
		Message: view.Message,
	}

	columns := view.Trials.Columns()
	link := slices.Index(columns, review.ColNCTLink)
	for i, name := range columns {
		if i != link {
			section.Columns = append(section.Columns, name)
		}
	}
	for i := 0; i < view.Trials.Len(); i++ {
		cells := view.Trials.Strings(i)
		row := trialRow{}
		if link >= 0 {
			row.Link = cells[link]
			cells = slices.Delete(cells, link, link+1)
		}
		row.Cells = cells
		section.Rows = append(section.Rows, row)
	}
	return section
}

// notice renders the error page. API errors keep their status and message.
func (h *DashboardHandler) notice(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "An unexpected error occurred while loading the review"

	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
		message = apiErr.Message
		if apiErr.ErrorCode == apierrors.CodeValidationFailed {
			message = validationMessage(apiErr)
		}
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "dashboard unavailable",
		slog.String("error", err.Error()),
		slog.Int("status", status))

	h.execute(w, r, status, "notice.html", noticePage{
		Title:   dashboardTitle,
		Message: message,
		TraceID: middleware.GetRequestID(r.Context()),
	})
}

func validationMessage(apiErr *apierrors.APIError) string {
	details, ok := apiErr.Details.(apierrors.ValidationErrors)
	if !ok || len(details.Errors) == 0 {
		return apiErr.Message
	}
	return details.Errors[0].Message
}

func (h *DashboardHandler) execute(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.ErrorContext(r.Context(), "template execution failed",
			slog.String("template", name),
			slog.String("error", err.Error()))
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
