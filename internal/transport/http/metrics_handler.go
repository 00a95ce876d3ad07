package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	"pipelinereview/internal/datastore"
)

// HubReporter exposes live connection counters
type HubReporter interface {
	GetHubMetrics() map[string]interface{}
}

// CacheReporter exposes dataset cache counters
type CacheReporter interface {
	CacheStats() datastore.CacheStats
}

// MetricsHandler serves the Prometheus exposition and a JSON runtime snapshot
type MetricsHandler struct {
	prometheus http.Handler
	hub        HubReporter
	cache      CacheReporter
}

// NewMetricsHandler creates a new metrics handler. prometheus may be nil when
// the metric exporter is disabled.
func NewMetricsHandler(prometheus http.Handler, hub HubReporter, cache CacheReporter) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus, hub: hub, cache: cache}
}

// Prometheus handles GET /metrics
func (h *MetricsHandler) Prometheus(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		http.Error(w, "metrics exporter disabled", http.StatusNotFound)
		return
	}
	h.prometheus.ServeHTTP(w, r)
}

// GetStats handles GET /api/stats
func (h *MetricsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.hub != nil {
		response["websocket"] = h.hub.GetHubMetrics()
	}
	if h.cache != nil {
		response["cache"] = h.cache.CacheStats()
	}
	render.JSON(w, r, response)
}
