package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pipelinereview/internal/config"
	"pipelinereview/internal/infrastructure"
	"pipelinereview/internal/middleware"
	"pipelinereview/internal/review"
	"pipelinereview/internal/services"
	"pipelinereview/internal/shared/testutil"
	ws "pipelinereview/internal/websocket"
)

type liveMessage struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

// dialLive starts the handler behind a test server and connects to it. The
// logger is detached from t because client goroutines outlive assertions.
func dialLive(t *testing.T, svc ReviewServiceInterface) *websocket.Conn {
	t.Helper()
	return dialLiveThrough(t, svc, middleware.RequestID, nil)
}

func dialLiveThrough(t *testing.T, svc ReviewServiceInterface, wrap func(http.Handler) http.Handler, header http.Header) *websocket.Conn {
	t.Helper()
	logger := slog.New(testutil.NewBufferedSlogHandler(nil))
	providers := infrastructure.NoopProviders(logger)
	hub := ws.NewHub(logger, infrastructure.MustBusinessMetrics(providers.Meter))
	hub.Start()

	h := NewLiveHandler(svc, hub, testSessions(logger), middleware.NewValidator(logger), nil, logger)
	server := httptest.NewServer(wrap(h))

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == config.SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "upgrade response must carry the session cookie")
	assert.Equal(t, testSession, cookie.Value)

	t.Cleanup(func() {
		conn.Close()
		hub.Stop()
		server.Close()
	})
	return conn
}

func readLive(t *testing.T, conn *websocket.Conn) liveMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg liveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestLiveHandler_Connects(t *testing.T) {
	conn := dialLive(t, new(MockReviewService))

	msg := readLive(t, conn)
	assert.Equal(t, ws.TypeConnection, msg.Type)
	assert.NotEmpty(t, msg.TraceID)

	var data map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, testSession, data["session_id"])
}

func TestLiveHandler_TraceID(t *testing.T) {
	t.Run("request id", func(t *testing.T) {
		header := http.Header{middleware.RequestIDHeader: {"req-42"}}
		conn := dialLiveThrough(t, new(MockReviewService), middleware.RequestID, header)

		assert.Equal(t, "req-42", readLive(t, conn).TraceID)
	})

	t.Run("generated without request id", func(t *testing.T) {
		bare := func(h http.Handler) http.Handler { return h }
		conn := dialLiveThrough(t, new(MockReviewService), bare, nil)

		assert.NotEmpty(t, readLive(t, conn).TraceID)
	})
}

func TestLiveHandler_FiltersMessage(t *testing.T) {
	state := review.DefaultState(testDomain())
	state.MarketCapMin = 1
	state.TherapeuticAreas = []string{"Oncology"}
	state.MarketedDrug = review.MarketedYes

	submitted := review.FilterState{
		MarketCapMin:     1,
		MarketCapMax:     150,
		TherapeuticAreas: []string{"Oncology"},
		Phases:           []string{},
		MarketedDrug:     "Yes",
	}

	svc := new(MockReviewService)
	svc.On("SetFilters", testSession, submitted).Return(state, nil)
	svc.On("Filters", testSession).Return(state, nil)
	svc.On("View", state, services.ViewOptions{}).Return(testView(state), nil)
	conn := dialLive(t, svc)
	readLive(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "filters",
		"data": map[string]interface{}{
			"mcap_min":          1,
			"mcap_max":          150,
			"therapeutic_areas": []string{"Oncology"},
			"phases":            []string{},
			"marketed_drug":     "Yes",
		},
	}))

	msg := readLive(t, conn)
	require.Equal(t, ws.TypeFilters, msg.Type)
	var saved review.FilterState
	require.NoError(t, json.Unmarshal(msg.Data, &saved))
	assert.Equal(t, review.MarketedYes, saved.MarketedDrug)

	msg = readLive(t, conn)
	require.Equal(t, ws.TypeView, msg.Type)
	var view struct {
		Summary review.Summary `json:"summary"`
		Options []struct {
			Label string `json:"label"`
		} `json:"options"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	assert.Equal(t, 2, view.Summary.Rows)
	assert.Equal(t, "ABC — Acme Corp", view.Options[0].Label)
}

func TestLiveHandler_SelectMessage(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("Selection", "ABC — Acme Corp").Return(trialsView(), nil)
	conn := dialLive(t, svc)
	readLive(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "select",
		"data": map[string]string{"label": "ABC — Acme Corp"},
	}))

	msg := readLive(t, conn)
	require.Equal(t, ws.TypeTrials, msg.Type)
	var trials struct {
		Count   int            `json:"count"`
		Company review.Company `json:"company"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &trials))
	assert.Equal(t, 1, trials.Count)
	assert.Equal(t, "ABC", trials.Company.Symbol)
}

func TestLiveHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		message map[string]interface{}
		setup   func(svc *MockReviewService)
		code    string
	}{
		{
			name:    "invalid filter",
			message: map[string]interface{}{"type": "filters", "data": map[string]interface{}{"mcap_min": -1, "mcap_max": 1}},
			code:    "VALIDATION_FAILED",
		},
		{
			name:    "missing label",
			message: map[string]interface{}{"type": "select", "data": map[string]string{}},
			code:    "VALIDATION_FAILED",
		},
		{
			name:    "unknown type",
			message: map[string]interface{}{"type": "explode"},
			code:    "VALIDATION_FAILED",
		},
		{
			name:    "summary unavailable",
			message: map[string]interface{}{"type": "reset"},
			setup: func(svc *MockReviewService) {
				svc.On("ResetFilters", testSession).Return(review.FilterState{},
					&services.SummaryUnavailableError{File: "Company_Pipeline_Summary.csv"})
			},
			code: "SUMMARY_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockReviewService)
			if tt.setup != nil {
				tt.setup(svc)
			}
			conn := dialLive(t, svc)
			readLive(t, conn)

			require.NoError(t, conn.WriteJSON(tt.message))

			msg := readLive(t, conn)
			require.Equal(t, ws.TypeError, msg.Type)
			var data map[string]interface{}
			require.NoError(t, json.Unmarshal(msg.Data, &data))
			assert.Equal(t, tt.code, data["code"])
			assert.Equal(t, tt.message["type"], data["request"])
			svc.AssertNotCalled(t, "View", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://review.local/ws", nil)
	assert.True(t, checkOrigin(req, nil), "no origin header")

	req.Header.Set("Origin", "http://review.local")
	assert.True(t, checkOrigin(req, nil), "same host")

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, checkOrigin(req, []string{"http://localhost:8080"}))
	assert.True(t, checkOrigin(req, []string{"http://evil.example"}))
	assert.True(t, checkOrigin(req, []string{"*"}))
}
