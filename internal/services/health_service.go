package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"pipelinereview/internal/datastore"
)

// SourceReporter is the part of ReviewService the health checks read.
type SourceReporter interface {
	Sources() []SourceStatus
	CacheStats() datastore.CacheStats
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	sources   SourceReporter
	sessions  *SessionStore
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a new health service. sources and sessions may be
// nil in tests.
func NewHealthService(version, buildTime string, sources SourceReporter, sessions *SessionStore, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		sources:   sources,
		sessions:  sessions,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	if hs.sources != nil {
		status.Services["sources"] = hs.sources.Sources()
		status.Services["cache"] = hs.sources.CacheStats()
	}
	if hs.sessions != nil {
		status.Services["sessions"] = map[string]int{"active": hs.sessions.Len()}
	}

	hs.logger.DebugContext(ctx, "health check completed",
		slog.String("status", status.Status))
	return status
}

// ReadinessCheck reports ready once the summary source exists. A missing
// trials source degrades the view but does not block it.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["data"] = hs.checkDataHealth()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "readiness check failed",
			slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}

	return result
}

// checkDataHealth checks that the summary source is on disk
func (hs *HealthService) checkDataHealth() ServiceHealth {
	if hs.sources == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "data sources not configured",
		}
	}

	for _, src := range hs.sources.Sources() {
		if src.Name == SummarySourceName && !src.Exists {
			return ServiceHealth{
				Status:  "not_ready",
				Message: fmt.Sprintf("Summary source not found: %s", src.Path),
			}
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "Data sources are available",
		Uptime:  time.Since(hs.startTime).String(),
	}
}
