package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "pipelinereview/internal/errors"
	"pipelinereview/internal/infrastructure"
	"pipelinereview/internal/shared/testutil"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestRequestID(t *testing.T) {
	t.Run("generates id", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("keeps caller id", func(t *testing.T) {
		var traceID string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID = infrastructure.GetTraceID(r.Context())
		}))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, "req-123", traceID)
		assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	})
}

func TestStructuredLogger(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)

	h := StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/companies", nil))

	require.Equal(t, 1, logs.Count())
	rec := logs.GetRecords()[0]
	assert.Equal(t, "request completed", rec.Message)
	assert.True(t, logs.ContainsAttr("path", "/api/companies"))
	assert.True(t, logs.ContainsAttr("component", "http"))
	testutil.AssertLogContains(t, logs, rec.Level, "request completed")
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.001, 1, logger)
	h := rl.Handler(okHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.True(t, logs.ContainsMessage("rate limit exceeded"))
}

func TestTimeout(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	eh := apierrors.NewErrorHandler(logger, false)

	t.Run("writes 504 when handler gives up", func(t *testing.T) {
		h := Timeout(10*time.Millisecond, eh)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/companies", nil))
		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	})

	t.Run("passes through fast handlers", func(t *testing.T) {
		h := Timeout(time.Second, eh)(okHandler)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}})(okHandler)

	t.Run("preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/api/filters", nil)
		r.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
		assert.Equal(t, "300", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/domain", nil)
		r.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "connect-src 'self' ws: wss:")
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

type filterBody struct {
	MarketCapMin *float64 `json:"mcap_min" validate:"omitempty,gte=0"`
	Marketed     string   `json:"marketed_drug" validate:"omitempty,marketed"`
	Areas        []string `json:"therapeutic_areas" validate:"omitempty,dive,required"`
}

func TestValidator_ValidateStruct(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewValidator(logger)

	neg := -1.0
	err := v.ValidateStruct(filterBody{MarketCapMin: &neg, Marketed: "maybe", Areas: []string{""}})
	require.Error(t, err)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	details := apiErr.Details.(apierrors.ValidationErrors)

	fields := map[string]string{}
	for _, fe := range details.Errors {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "mcap_min must be greater than or equal to 0", fields["mcap_min"])
	assert.Equal(t, "marketed_drug must be one of: All, Yes, No", fields["marketed_drug"])
	assert.Contains(t, fields, "therapeutic_areas[0]")

	assert.NoError(t, v.ValidateStruct(filterBody{Marketed: "yes"}))
}

func TestValidator_DecodeJSON(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewValidator(logger)

	t.Run("valid", func(t *testing.T) {
		var body filterBody
		r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"mcap_min": 1.5, "marketed_drug": "No"}`))
		require.NoError(t, v.DecodeJSON(r, &body))
		assert.Equal(t, 1.5, *body.MarketCapMin)
	})

	t.Run("unknown field", func(t *testing.T) {
		var body filterBody
		r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"colour": "red"}`))
		err := v.DecodeJSON(r, &body)

		var apiErr *apierrors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestContentTypeValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := ContentTypeValidator(apierrors.NewErrorHandler(logger, false), "application/json")(okHandler)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPut, "/api/filters", strings.NewReader("x"))
	r.Header.Set("Content-Type", "text/plain")
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPut, "/api/filters", strings.NewReader("{}"))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/filters", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOTelMiddleware(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	providers := infrastructure.NoopProviders(logger)
	m := NewOTelMiddleware(providers, infrastructure.MustBusinessMetrics(providers.Meter))

	router := chi.NewRouter()
	router.Use(m.Handler)
	router.Get("/api/companies/{symbol}/trials", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"symbol": chi.URLParam(r, "symbol")})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/companies/ABC/trials", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, logs.ContainsAttr("route", "/api/companies/{symbol}/trials"))
}

func TestGetRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", GetRealIP(r))

	r.Header.Set("X-Real-IP", "172.16.0.9")
	assert.Equal(t, "172.16.0.9", GetRealIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", GetRealIP(r))
}

func TestGetRequestID_FallsBackToTraceID(t *testing.T) {
	ctx := infrastructure.WithTraceID(context.Background(), "trace-1")
	assert.Equal(t, "trace-1", GetRequestID(ctx))
}
