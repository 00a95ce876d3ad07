package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pipelinereview/internal/middleware"
	"pipelinereview/internal/review"
	"pipelinereview/internal/services"
	"pipelinereview/internal/shared/testutil"
)

func newTestDashboard(t *testing.T, svc ReviewServiceInterface) *DashboardHandler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h, err := NewDashboardHandler(svc, testSessions(logger), middleware.NewValidator(logger), "/ws", logger)
	require.NoError(t, err)
	return h
}

func getPage(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestDashboardHandler_Render(t *testing.T) {
	state := review.DefaultState(testDomain())
	svc := new(MockReviewService)
	svc.On("Filters", testSession).Return(state, nil)
	svc.On("View", state, services.ViewOptions{}).Return(testView(state), nil)
	h := newTestDashboard(t, svc)

	rec := getPage(h, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	page := rec.Body.String()
	assert.Contains(t, page, "Trials Review")
	assert.Contains(t, page, "<td>Acme Corp</td>")
	assert.Contains(t, page, "$1.65B")
	assert.Contains(t, page, `<option value="XYZ — Xylo Bio">`)
	assert.Contains(t, page, `value="Oncology"`)
	assert.Contains(t, page, `data-live="/ws"`)
	assert.NotContains(t, page, "Open</a>")
	svc.AssertExpectations(t)
}

func TestDashboardHandler_SelectedCompany(t *testing.T) {
	state := review.DefaultState(testDomain())
	svc := new(MockReviewService)
	svc.On("Filters", testSession).Return(state, nil)
	svc.On("View", state, services.ViewOptions{}).Return(testView(state), nil)
	svc.On("Selection", "ABC — Acme Corp").Return(trialsView(), nil)
	h := newTestDashboard(t, svc)

	rec := getPage(h, "/?company="+url.QueryEscape("ABC — Acme Corp"))

	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, `<option value="ABC — Acme Corp" selected>`)
	assert.Contains(t, page, `<a href="https://clinicaltrials.gov/study/NCT00123456" target="_blank" rel="noopener">Open</a>`)
	assert.Contains(t, page, "<td>NCT00123456</td>")
	assert.NotContains(t, page, "<th>"+review.ColNCTLink+"</th>")
}

func TestDashboardHandler_NoTrialsMessage(t *testing.T) {
	state := review.DefaultState(testDomain())
	empty := &services.TrialsView{
		Company: review.Company{Symbol: "XYZ", Name: "Xylo Bio"},
		Trials:  trialsView().Trials.Filter(func(int) bool { return false }),
		Message: review.NoTrialsMessage,
	}
	svc := new(MockReviewService)
	svc.On("Filters", testSession).Return(state, nil)
	svc.On("View", state, services.ViewOptions{}).Return(testView(state), nil)
	svc.On("Selection", "XYZ — Xylo Bio").Return(empty, nil)
	h := newTestDashboard(t, svc)

	rec := getPage(h, "/?company="+url.QueryEscape("XYZ — Xylo Bio"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No trials found for this company")
}

func TestDashboardHandler_ApplyForm(t *testing.T) {
	current := review.DefaultState(testDomain())
	current.Phases = []string{"PHASE3"}

	submitted := current.Clone()
	submitted.MarketCapMin = 1
	submitted.TherapeuticAreas = []string{"Oncology"}
	// The form omits unchecked phases, which clears them.
	submitted.Phases = []string{}

	svc := new(MockReviewService)
	svc.On("Filters", testSession).Return(current, nil)
	svc.On("SetFilters", testSession, submitted).Return(submitted, nil)
	svc.On("View", submitted, services.ViewOptions{}).Return(testView(submitted), nil)
	h := newTestDashboard(t, svc)

	rec := getPage(h, "/?apply=1&mcap_min=1&ta=Oncology")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Oncology" checked`)
	svc.AssertExpectations(t)
}

func TestDashboardHandler_Reset(t *testing.T) {
	state := review.DefaultState(testDomain())
	svc := new(MockReviewService)
	svc.On("ResetFilters", testSession).Return(state, nil)
	svc.On("View", state, services.ViewOptions{}).Return(testView(state), nil)
	h := newTestDashboard(t, svc)

	rec := getPage(h, "/?reset=1")

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertNotCalled(t, "Filters", mock.Anything)
}

func TestDashboardHandler_SortLinks(t *testing.T) {
	state := review.DefaultState(testDomain())
	opts := services.ViewOptions{Sort: review.ColSymbol}
	svc := new(MockReviewService)
	svc.On("Filters", testSession).Return(state, nil)
	svc.On("View", state, opts).Return(testView(state), nil)
	h := newTestDashboard(t, svc)

	rec := getPage(h, "/?sort=Symbol")

	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	// The active column toggles to descending, the others start ascending.
	assert.Contains(t, page, `href="/?desc=true&amp;sort=Symbol"`)
	assert.Contains(t, page, `href="/?desc=false&amp;sort=Name"`)
}

func TestDashboardHandler_Notices(t *testing.T) {
	t.Run("summary unavailable", func(t *testing.T) {
		svc := new(MockReviewService)
		svc.On("Filters", testSession).Return(review.FilterState{},
			&services.SummaryUnavailableError{File: "Company_Pipeline_Summary.csv"})
		h := newTestDashboard(t, svc)

		rec := getPage(h, "/")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "Company_Pipeline_Summary.csv not found. Run the pipeline first.")
		assert.NotContains(t, rec.Body.String(), "<table>")
	})

	t.Run("schema mismatch", func(t *testing.T) {
		state := review.DefaultState(testDomain())
		svc := new(MockReviewService)
		svc.On("Filters", testSession).Return(state, nil)
		svc.On("View", state, services.ViewOptions{}).Return(nil,
			&services.SchemaMismatchError{Missing: []string{review.ColHasMarketedDrug}})
		h := newTestDashboard(t, svc)

		rec := getPage(h, "/")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), review.ColHasMarketedDrug)
	})

	t.Run("invalid bound", func(t *testing.T) {
		svc := new(MockReviewService)
		h := newTestDashboard(t, svc)

		rec := getPage(h, "/?apply=1&mcap_min=lots")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "mcap_min must be a number"))
	})
}

func TestAssets(t *testing.T) {
	rec := httptest.NewRecorder()
	Assets().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/live.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "data_update")
}
