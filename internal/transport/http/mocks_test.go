package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"pipelinereview/internal/config"
	"pipelinereview/internal/datastore"
	apierrors "pipelinereview/internal/errors"
	"pipelinereview/internal/exporter"
	"pipelinereview/internal/middleware"
	"pipelinereview/internal/review"
	"pipelinereview/internal/services"
	"pipelinereview/internal/shared/testutil"
)

const testSession = "session-1"

// MockReviewService is a mock implementation of ReviewServiceInterface
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Domain(ctx context.Context) (review.Domain, error) {
	args := m.Called()
	return args.Get(0).(review.Domain), args.Error(1)
}

func (m *MockReviewService) Filters(ctx context.Context, sessionID string) (review.FilterState, error) {
	args := m.Called(sessionID)
	return args.Get(0).(review.FilterState), args.Error(1)
}

func (m *MockReviewService) SetFilters(ctx context.Context, sessionID string, state review.FilterState) (review.FilterState, error) {
	args := m.Called(sessionID, state)
	return args.Get(0).(review.FilterState), args.Error(1)
}

func (m *MockReviewService) ResetFilters(ctx context.Context, sessionID string) (review.FilterState, error) {
	args := m.Called(sessionID)
	return args.Get(0).(review.FilterState), args.Error(1)
}

func (m *MockReviewService) View(ctx context.Context, state review.FilterState, opts services.ViewOptions) (*services.View, error) {
	args := m.Called(state, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.View), args.Error(1)
}

func (m *MockReviewService) Trials(ctx context.Context, symbol string) (*services.TrialsView, error) {
	args := m.Called(symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TrialsView), args.Error(1)
}

func (m *MockReviewService) Selection(ctx context.Context, label string) (*services.TrialsView, error) {
	args := m.Called(label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TrialsView), args.Error(1)
}

func (m *MockReviewService) Export(ctx context.Context, w io.Writer, state review.FilterState, opts services.ViewOptions, format exporter.Format) error {
	args := m.Called(w, state, opts, format)
	return args.Error(0)
}

// MockSessions is a mock implementation of SessionManager
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Create(ctx context.Context) string {
	return m.Called().String(0)
}

func (m *MockSessions) Touch(ctx context.Context, id string) bool {
	return m.Called(id).Bool(0)
}

// staticSessions always resolves to testSession.
type staticSessions struct{}

func (staticSessions) Create(context.Context) string           { return testSession }
func (staticSessions) Touch(_ context.Context, id string) bool { return id == testSession }

func testSessions(logger *slog.Logger) *SessionMiddleware {
	return NewSessionMiddleware(staticSessions{}, config.SessionConfig{}, false, logger)
}

func newTestReviewHandler(t *testing.T, svc ReviewServiceInterface) (http.Handler, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	h := NewReviewHandler(svc, testSessions(logger), middleware.NewValidator(logger), logger, apierrors.NewErrorHandler(logger, false))
	h.now = func() time.Time { return time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC) }
	return h.Routes(), handler
}

func testDomain() review.Domain {
	return review.Domain{
		MarketCapMin:      0.8,
		MarketCapMax:      150,
		MarketCapInputMax: 150,
		TherapeuticAreas:  []string{"Immunology", "Neurology", "Oncology"},
		Phases:            []string{"PHASE3", "PHASE2", "PHASE1"},
	}
}

func companiesTable() *datastore.Table {
	t := datastore.NewTable(review.ColSymbol, review.ColName, review.ColMarketCapB)
	t.AppendText("ABC", "Acme Corp", "2.50")
	t.AppendText("XYZ", "Xylo Bio", "0.80")
	return t
}

func testView(state review.FilterState) *services.View {
	return &services.View{
		Filters:   state,
		Domain:    testDomain(),
		Summary:   review.Summary{Rows: 2, UniqueCompanies: 2, AvgMarketCapB: datastore.Num(1.65)},
		Companies: companiesTable(),
		Options: []services.CompanyOption{
			{Company: review.Company{Symbol: "ABC", Name: "Acme Corp"}, Label: "ABC — Acme Corp"},
			{Company: review.Company{Symbol: "XYZ", Name: "Xylo Bio"}, Label: "XYZ — Xylo Bio"},
		},
	}
}

func trialsView() *services.TrialsView {
	t := datastore.NewTable(review.ColNCTId, review.ColPhases, review.ColNCTLink)
	t.AppendText("NCT00123456", "PHASE3", "https://clinicaltrials.gov/study/NCT00123456")
	return &services.TrialsView{
		Company: review.Company{Symbol: "ABC", Name: "Acme Corp"},
		Count:   1,
		Trials:  t,
	}
}
