package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"pipelinereview/internal/config"
	"pipelinereview/internal/datastore"
	apierrors "pipelinereview/internal/errors"
	"pipelinereview/internal/exporter"
	"pipelinereview/internal/infrastructure"
	customMiddleware "pipelinereview/internal/middleware"
	"pipelinereview/internal/services"
	handlers "pipelinereview/internal/transport/http"
	"pipelinereview/internal/watcher"
	ws "pipelinereview/internal/websocket"
)

const (
	AppName = "Company Pipeline & Trials Review"

	liveRoute = "/ws"
)

// BuildTime is set at link time with -ldflags "-X pipelinereview/internal/app.BuildTime=..."
var BuildTime = "dev"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics

	Cache         *datastore.Cache
	Sessions      *services.SessionStore
	ReviewService *services.ReviewService
	HealthService *services.HealthService
	WebSocketHub  *ws.Hub
	Watcher       *watcher.SourceWatcher
	ErrorHandler  *apierrors.ErrorHandler
}

// NewApplication loads configuration, initializes logging and telemetry and
// wires every component.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", config.AppVersion))

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	return New(cfg, logger, providers)
}

// New wires the application from an already loaded configuration. Tests use
// it with noop telemetry providers.
func New(cfg *config.Config, logger *slog.Logger, providers *infrastructure.OTelProviders) (*Application, error) {
	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	paths.LogPathResolution(logger)

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       infrastructure.MustBusinessMetrics(providers.Meter),
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Telemetry.Environment == "development"),
	}

	app.initializeServices()
	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up routes: %w", err)
	}
	app.createServer()

	return app, nil
}

// initializeServices creates the data layer, services, hub and watcher
func (a *Application) initializeServices() {
	a.Cache = datastore.NewCache(a.Logger, a.OTelProviders, a.Metrics)
	a.Sessions = services.NewSessionStore(a.Config.Session, a.Logger, a.Metrics)
	a.ReviewService = services.NewReviewService(
		a.Paths,
		a.Cache,
		a.Sessions,
		exporter.New(a.Logger),
		a.OTelProviders,
		a.Metrics,
		a.Logger,
	)
	a.HealthService = services.NewHealthService(config.AppVersion, BuildTime, a.ReviewService, a.Sessions, a.Logger)
	a.WebSocketHub = ws.NewHub(a.Logger, a.Metrics)
	a.Watcher = watcher.NewSourceWatcher(
		a.ReviewService.DataSources(),
		a.Config.Data.WatchInterval,
		a.sourceChanged,
		a.Logger,
	)
}

// sourceChanged drops the cached copy of src and tells live clients to
// recompute their view.
func (a *Application) sourceChanged(ctx context.Context, src datastore.Source) {
	a.Cache.Invalidate(src.Path)
	a.WebSocketHub.BroadcastRefresh(src.Name)
	a.Logger.InfoContext(ctx, "Cache invalidated after source change",
		slog.String("source", src.Name),
		slog.Int("live_clients", a.WebSocketHub.ClientCount()))
}

// setupRouter configures all routes and middleware
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	// Applied to every route, including the websocket upgrade.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	validator := customMiddleware.NewValidator(a.Logger)
	secure := a.Config.Telemetry.Environment == "production"
	sessions := handlers.NewSessionMiddleware(a.Sessions, a.Config.Session, secure, a.Logger)

	dashboard, err := handlers.NewDashboardHandler(a.ReviewService, sessions, validator, liveRoute, a.Logger)
	if err != nil {
		return err
	}
	review := handlers.NewReviewHandler(a.ReviewService, sessions, validator, a.Logger, a.ErrorHandler)
	health := handlers.NewHealthHandler(a.HealthService, a.Logger)
	clientLogs := handlers.NewClientLogHandler(validator, a.ErrorHandler, a.Logger)
	metrics := handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.WebSocketHub, a.ReviewService)
	live := handlers.NewLiveHandler(a.ReviewService, a.WebSocketHub, sessions, validator, a.Config.Security.AllowedOrigins, a.Logger)

	// The websocket stays outside the group: Timeout and the response
	// wrappers would break the hijacked connection.
	r.Handle(liveRoute, live)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins:   a.Config.Security.AllowedOrigins,
				ExposedHeaders:   []string{customMiddleware.RequestIDHeader, "Content-Disposition"},
				AllowCredentials: true,
				Logger:           a.Logger,
			}))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.ErrorHandler))

		r.Handle("/assets/*", handlers.Assets())
		r.Method(http.MethodGet, "/", dashboard)

		r.Route("/api", func(r chi.Router) {
			health.Routes(r)
			r.Post("/logs", clientLogs.Handle)
			r.Get("/stats", metrics.GetStats)
			r.Mount("/", review.Routes())
		})
	})

	r.Get("/metrics", metrics.Prometheus)

	a.Router = r
	return nil
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the background services and the HTTP server. cancel is called
// if the server fails after startup.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()
	a.Watcher.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	for _, status := range a.ReviewService.Sources() {
		if !status.Exists {
			a.Logger.WarnContext(ctx, "Data source not found",
				slog.String("source", status.Name),
				slog.String("path", status.Path))
		}
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Watcher.Stop()
	a.WebSocketHub.Stop()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return infrastructure.CloseLogFile()
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	// ctx may already be cancelled; shutdown gets a fresh deadline.
	stopCtx, stop := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer stop()
	return a.Stop(stopCtx)
}
