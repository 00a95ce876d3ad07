package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"pipelinereview/internal/config"
	"pipelinereview/internal/datastore"
	"pipelinereview/internal/exporter"
	"pipelinereview/internal/infrastructure"
	"pipelinereview/internal/review"
)

// Source names used in logs and metrics.
const (
	SummarySourceName = "summary"
	TrialsSourceName  = "trials"
)

// SummarySource describes the company pipeline summary at path.
func SummarySource(path string) datastore.Source {
	return datastore.Source{Name: SummarySourceName, Path: path, Numeric: review.SummaryNumericColumns}
}

// TrialsSource describes the enriched clinical trials table at path.
func TrialsSource(path string) datastore.Source {
	return datastore.Source{Name: TrialsSourceName, Path: path, Numeric: review.TrialNumericColumns}
}

// Dataset is one consistent read of both sources.
type Dataset struct {
	Summary *datastore.Table
	Trials  *datastore.Table
	Domain  review.Domain
}

// CompanyOption is one entry of the company selector.
type CompanyOption struct {
	review.Company
	Label string `json:"label"`
}

// ViewOptions controls ordering of the company table.
type ViewOptions struct {
	Sort string
	Desc bool
}

// View is everything the dashboard shows for one filter state.
type View struct {
	Filters   review.FilterState `json:"filters"`
	Domain    review.Domain      `json:"domain"`
	Summary   review.Summary     `json:"summary"`
	Companies *datastore.Table   `json:"companies"`
	Options   []CompanyOption    `json:"options"`
}

// TrialsView is the trials of one selected company.
type TrialsView struct {
	Company review.Company   `json:"company"`
	Count   int              `json:"count"`
	Trials  *datastore.Table `json:"trials"`
	Message string           `json:"message,omitempty"`
}

// ReviewService runs the filter-and-join engine over the cached sources and
// owns per-session filter state.
type ReviewService struct {
	cache    *datastore.Cache
	summary  datastore.Source
	trials   datastore.Source
	sessions *SessionStore
	exporter *exporter.Exporter

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// NewReviewService creates the service for the resolved data paths.
func NewReviewService(
	paths *config.Paths,
	cache *datastore.Cache,
	sessions *SessionStore,
	exp *exporter.Exporter,
	providers *infrastructure.OTelProviders,
	metrics *infrastructure.BusinessMetrics,
	logger *slog.Logger,
) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("ReviewService initialized",
		slog.String("summary_file", paths.SummaryFile),
		slog.String("trials_file", paths.TrialsFile))

	return &ReviewService{
		cache:    cache,
		summary:  SummarySource(paths.SummaryFile),
		trials:   TrialsSource(paths.TrialsFile),
		sessions: sessions,
		exporter: exp,
		logger:   logger.With(slog.String("component", "review_service")),
		tracer:   providers.Tracer,
		metrics:  metrics,
	}
}

// Sessions exposes the session store to the transport layer.
func (s *ReviewService) Sessions() *SessionStore {
	return s.sessions
}

// Dataset loads both sources. It fails with a *SummaryUnavailableError when the
// summary is absent or empty and with a *SchemaMismatchError when required
// columns are missing. An absent trials source is not an error.
func (s *ReviewService) Dataset(ctx context.Context) (*Dataset, error) {
	ctx, span := s.tracer.Start(ctx, "review.dataset")
	defer span.End()

	summary, err := s.cache.Load(ctx, s.summary)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrSourceLoad, SummarySourceName, err)
	}
	if summary.IsEmpty() {
		return nil, &SummaryUnavailableError{File: filepath.Base(s.summary.Path)}
	}
	if missing := review.ValidateColumns(summary); len(missing) > 0 {
		s.logger.ErrorContext(ctx, "summary schema mismatch",
			slog.Any("missing_columns", missing))
		return nil, &SchemaMismatchError{Missing: missing}
	}

	trials := datastore.Empty()
	if s.trials.Path != "" {
		if trials, err = s.cache.Load(ctx, s.trials); err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrSourceLoad, TrialsSourceName, err)
		}
	}

	return &Dataset{
		Summary: summary,
		Trials:  trials,
		Domain:  review.DeriveDomain(summary),
	}, nil
}

// Domain returns the filter domain of the current summary.
func (s *ReviewService) Domain(ctx context.Context) (review.Domain, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return review.Domain{}, err
	}
	return ds.Domain, nil
}

// Filters returns the session's filter state, or the defaults of the current
// domain when the session has not stored one yet.
func (s *ReviewService) Filters(ctx context.Context, sessionID string) (review.FilterState, error) {
	if state, ok := s.sessions.Get(ctx, sessionID); ok {
		return state, nil
	}
	domain, err := s.Domain(ctx)
	if err != nil {
		return review.FilterState{}, err
	}
	return review.DefaultState(domain), nil
}

// SetFilters normalizes and stores a filter state for the session.
func (s *ReviewService) SetFilters(ctx context.Context, sessionID string, state review.FilterState) (review.FilterState, error) {
	state, err := NormalizeFilters(state)
	if err != nil {
		return review.FilterState{}, err
	}
	if err := s.sessions.Put(ctx, sessionID, state); err != nil {
		return review.FilterState{}, err
	}

	s.logger.DebugContext(ctx, "filters updated",
		slog.String("session_id", sessionID),
		slog.Float64("mcap_min", state.MarketCapMin),
		slog.Float64("mcap_max", state.MarketCapMax),
		slog.Int("therapeutic_areas", len(state.TherapeuticAreas)),
		slog.Int("phases", len(state.Phases)),
		slog.String("marketed_drug", string(state.MarketedDrug)))
	return state, nil
}

// ResetFilters replaces the session's state with the domain defaults.
func (s *ReviewService) ResetFilters(ctx context.Context, sessionID string) (review.FilterState, error) {
	domain, err := s.Domain(ctx)
	if err != nil {
		return review.FilterState{}, err
	}
	state := review.DefaultState(domain)
	if err := s.sessions.Put(ctx, sessionID, state); err != nil {
		return review.FilterState{}, err
	}
	return state, nil
}

// NormalizeFilters fills unset lists and marketed status and rejects an
// inverted market-cap range.
func NormalizeFilters(state review.FilterState) (review.FilterState, error) {
	state = state.Clone()
	marketed, err := review.ParseMarketedDrug(string(state.MarketedDrug))
	if err != nil {
		return review.FilterState{}, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	state.MarketedDrug = marketed
	if state.MarketCapMin < 0 {
		return review.FilterState{}, fmt.Errorf("%w: mcap_min must not be negative", ErrInvalidFilter)
	}
	if state.MarketCapMax < state.MarketCapMin {
		return review.FilterState{}, fmt.Errorf("%w: mcap_max must be greater than or equal to mcap_min", ErrInvalidFilter)
	}
	return state, nil
}

// View filters the summary with state and builds the formatted company table,
// the headline metrics and the selector options.
func (s *ReviewService) View(ctx context.Context, state review.FilterState, opts ViewOptions) (*View, error) {
	ctx, span := s.tracer.Start(ctx, "review.view")
	defer span.End()

	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, ds, state, opts)
}

func (s *ReviewService) buildView(ctx context.Context, ds *Dataset, state review.FilterState, opts ViewOptions) (*View, error) {
	filtered := review.Apply(ds.Summary, state)
	companies := review.FormatCompanies(filtered)
	if opts.Sort != "" {
		if !companies.HasColumn(opts.Sort) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSort, opts.Sort)
		}
		companies = review.SortBy(companies, opts.Sort, opts.Desc)
	}

	listed := review.ListCompanies(filtered)
	options := make([]CompanyOption, len(listed))
	for i, c := range listed {
		options[i] = CompanyOption{Company: c, Label: c.Label()}
	}

	s.metrics.FilterEvaluations.Add(ctx, 1)
	s.metrics.FilteredRows.Record(ctx, int64(filtered.Len()))
	s.logger.DebugContext(ctx, "filters applied",
		slog.Int("summary_rows", ds.Summary.Len()),
		slog.Int("filtered_rows", filtered.Len()))

	return &View{
		Filters:   state,
		Domain:    ds.Domain,
		Summary:   review.Summarize(filtered),
		Companies: companies,
		Options:   options,
	}, nil
}

// SessionView is View over the session's current filters.
func (s *ReviewService) SessionView(ctx context.Context, sessionID string, opts ViewOptions) (*View, error) {
	state, err := s.Filters(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.View(ctx, state, opts)
}

// Trials joins a symbol to the trials source. The company name is taken from
// the first summary row with that symbol.
func (s *ReviewService) Trials(ctx context.Context, symbol string) (*TrialsView, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}

	company := review.Company{Symbol: symbol}
	for i := 0; i < ds.Summary.Len(); i++ {
		if sym, ok := ds.Summary.Text(i, review.ColSymbol); ok && sym == symbol {
			company.Name, _ = ds.Summary.Text(i, review.ColName)
			break
		}
	}
	return s.trialsFor(ctx, ds, company), nil
}

// Selection resolves a selector label and returns that company's trials. A
// label without separator is taken whole as the symbol.
func (s *ReviewService) Selection(ctx context.Context, label string) (*TrialsView, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return s.trialsFor(ctx, ds, review.ParseLabel(label)), nil
}

func (s *ReviewService) trialsFor(ctx context.Context, ds *Dataset, company review.Company) *TrialsView {
	ctx, span := s.tracer.Start(ctx, "review.trials",
		trace.WithAttributes(attribute.String("company.symbol", company.Symbol)))
	defer span.End()

	trials := review.FormatTrials(review.TrialsFor(company.Symbol, ds.Trials))
	view := &TrialsView{
		Company: company,
		Count:   trials.Len(),
		Trials:  trials,
	}
	if view.Count == 0 {
		view.Message = review.NoTrialsMessage
	}

	s.metrics.TrialLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("found", view.Count > 0)))
	return view
}

// Export writes the filtered company table to w.
func (s *ReviewService) Export(ctx context.Context, w io.Writer, state review.FilterState, opts ViewOptions, format exporter.Format) error {
	view, err := s.View(ctx, state, opts)
	if err != nil {
		return err
	}
	if err := s.exporter.Write(ctx, w, view.Companies, format); err != nil {
		return fmt.Errorf("failed to export companies: %w", err)
	}
	s.metrics.Exports.Add(ctx, 1,
		metric.WithAttributes(attribute.String("format", string(format))))
	return nil
}

// SourceStatus describes one data source for health reporting.
type SourceStatus struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// Sources reports where the service reads from and whether the files exist.
func (s *ReviewService) Sources() []SourceStatus {
	return []SourceStatus{
		{Name: s.summary.Name, Path: s.summary.Path, Exists: config.FileExists(s.summary.Path)},
		{Name: s.trials.Name, Path: s.trials.Path, Exists: config.FileExists(s.trials.Path)},
	}
}

// DataSources returns the summary and trials sources in that order.
func (s *ReviewService) DataSources() []datastore.Source {
	return []datastore.Source{s.summary, s.trials}
}

// CacheStats returns the dataset cache counters.
func (s *ReviewService) CacheStats() datastore.CacheStats {
	return s.cache.Stats()
}
