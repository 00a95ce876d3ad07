// Package services implements the business logic layer of the pipeline review.
// It sits between the HTTP handlers and the datastore/review packages so that
// handlers stay thin and the filter rules live in one place.
//
// # Available Services
//
// The package provides these services:
//
//	- ReviewService: loads both datasets through the shared cache, applies
//	  filter states, builds the company view, joins trials and exports
//	- SessionStore: holds each browser session's FilterState in memory with
//	  idle expiry
//	- HealthService: liveness, readiness and version reporting
//
// # Common Service Pattern
//
//	func (s *ReviewService) View(ctx context.Context, state review.FilterState, opts ViewOptions) (*View, error) {
//	    ds, err := s.Dataset(ctx)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return s.buildView(ctx, ds, state, opts)
//	}
//
// # Error Handling
//
// Services return sentinel errors (see errors.go) wrapped with %w. Two typed
// errors carry details the transport layer needs:
//
//	- *SummaryUnavailableError (matches ErrSummaryUnavailable) names the file
//	- *SchemaMismatchError (matches ErrSchemaMismatch) lists missing columns
//
// Handlers map them to RFC 7807 problem responses with errors.As / errors.Is.
//
// # Testing
//
// Services are tested against fixture CSV files written to t.TempDir() and
// no-op OpenTelemetry providers:
//
//	logger, _ := testutil.NewTestLogger(t)
//	providers := infrastructure.NoopProviders(logger)
//	metrics := infrastructure.MustBusinessMetrics(providers.Meter)
package services
