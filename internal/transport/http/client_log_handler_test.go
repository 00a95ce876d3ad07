package http

import (
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apierrors "pipelinereview/internal/errors"
	"pipelinereview/internal/middleware"
	"pipelinereview/internal/shared/testutil"
)

func TestClientLogHandler_Handle(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedLevel  slog.Level
		expectedLog    string
		expectedSource string
	}{
		{
			name:           "error report",
			body:           `{"level":"error","message":"live update failed","source":"dashboard","data":{"line":12}}`,
			expectedStatus: http.StatusAccepted,
			expectedLevel:  slog.LevelError,
			expectedLog:    "live update failed",
			expectedSource: "dashboard",
		},
		{
			name:           "default level",
			body:           `{"message":"page loaded"}`,
			expectedStatus: http.StatusAccepted,
			expectedLevel:  slog.LevelInfo,
			expectedLog:    "page loaded",
		},
		{
			name:           "unknown level",
			body:           `{"level":"fatal","message":"boom"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing message",
			body:           `{"level":"info"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewClientLogHandler(middleware.NewValidator(logger), apierrors.NewErrorHandler(logger, false), logger)

			rec := doRequest(http.HandlerFunc(h.Handle), http.MethodPost, "/api/logs", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedLog != "" {
				testutil.AssertLogContains(t, logs, tt.expectedLevel, tt.expectedLog)
				assert.True(t, logs.ContainsAttr("client_source", tt.expectedSource))
			}
		})
	}
}
