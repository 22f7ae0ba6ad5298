package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"surveycli/internal/config"
	apierrors "surveycli/internal/errors"
	"surveycli/internal/infrastructure"
	customMiddleware "surveycli/internal/middleware"
	"surveycli/internal/services"
	"surveycli/internal/storage"
	handlers "surveycli/internal/transport/http"
)

var (
	// BuildTime is recorded when the process starts
	BuildTime = time.Now().Format(time.RFC3339)

	// BuildID ties health and version payloads to one binary
	BuildID = generateBuildID()
)

// generateBuildID derives a short identifier from the version and the
// current date. Restarts on the same day report the same ID.
func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(config.AppVersion))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application wires configuration, storage, services and telemetry
// together behind one HTTP server.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Store         storage.TableStore
	SurveyService *services.SurveyService
	HealthService *services.HealthService
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	SystemMetrics *infrastructure.SystemMetricsCollector
}

// NewApplication loads configuration and assembles storage, services,
// telemetry and the HTTP surface. The returned instance is idle until
// Run or Start is called.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("service starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("storage_backend", cfg.Storage.Backend))

	// Resolve and prepare the executable-relative directory layout
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	config.LogPathResolution("exports", cfg.GetExportDir())
	config.LogPathResolution("reports", cfg.GetReportDir())

	otelProviders, err := infrastructure.InitializeOTel(otelConfigFrom(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// otelConfigFrom maps the observability section onto the OTel setup,
// keeping the service identity from the infrastructure defaults.
func otelConfigFrom(cfg *config.Config) *infrastructure.OTelConfig {
	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.EnableTracing = cfg.Observability.EnableTracing
	otelCfg.EnableMetrics = cfg.Observability.EnableMetrics
	if cfg.Observability.TraceExporter != "" {
		otelCfg.TraceExporter = cfg.Observability.TraceExporter
	}
	if cfg.Observability.MetricExporter != "" {
		otelCfg.MetricExporter = cfg.Observability.MetricExporter
	}
	if cfg.Observability.SampleRatio > 0 {
		otelCfg.SampleRatio = cfg.Observability.SampleRatio
	}
	return otelCfg
}

// initializeServices opens the storage backend and builds the service
// layer on top of it. Metric construction failures degrade to nil sets
// instead of aborting startup.
func (a *Application) initializeServices() error {
	ctx := context.Background()

	store, err := storage.OpenStore(ctx, a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}
	a.Store = store

	// The meter is absent when the metric exporter is configured off;
	// a nil metric set disables recording
	if a.OTelProviders.Meter != nil {
		metrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
		if err != nil {
			a.Logger.Warn("business metrics unavailable", slog.String("error", err.Error()))
		}
		a.Metrics = metrics

		collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, 30*time.Second)
		if err != nil {
			a.Logger.Warn("system metrics unavailable", slog.String("error", err.Error()))
		}
		a.SystemMetrics = collector
	}

	surveyService, err := services.NewSurveyService(a.Config, store, a.Metrics, a.Logger)
	if err != nil {
		return fmt.Errorf("initialize survey service: %w", err)
	}
	a.SurveyService = surveyService

	a.HealthService = services.NewHealthServiceWithBuildInfo(
		config.AppVersion, BuildTime, BuildID, a.Config, store, a.Logger)

	return nil
}

// setupRouter assembles the middleware chain and mounts every route.
// Identity middleware runs first so all later stages and handlers see
// the request ID.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	errorHandler := apierrors.NewErrorHandler(a.Logger, a.isDevelopmentMode())

	// Unmatched routes and wrong verbs answer with problem documents
	// too. Registered before any Mount so subrouters inherit them.
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)
	r.Use(customMiddleware.Compress(5))

	r.Group(func(r chi.Router) {
		// OpenTelemetry middleware needs both providers; either being
		// absent means its exporter was configured off
		if a.OTelProviders.Tracer != nil && a.OTelProviders.Meter != nil {
			otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
			if err != nil {
				a.Logger.Error("otel middleware unavailable", slog.String("error", err.Error()))
			} else {
				r.Use(otelMiddleware.Handler)
			}
		}

		r.Use(customMiddleware.BusinessMetricsMiddleware(a.Metrics))
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		a.setupAPIRoutes(r, errorHandler)
	})

	// Prometheus exposition stays outside the middleware group; scrapes
	// should not show up in request logs or traces
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes hangs the health probes and the survey pipeline off
// the API base path, all under one timeout budget.
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *apierrors.ErrorHandler) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.HTTP.ReadTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/health/detailed", healthHandler.DetailedHealth)
		r.Get("/health/stats", healthHandler.SystemStats)
		r.Get("/version", healthHandler.Version)

		// Survey handler carries the five pipeline operations
		surveyHandler := handlers.NewSurveyHandler(
			a.SurveyService, a.Config.Report.TopN, a.Logger, errorHandler).
			WithMetrics(a.Metrics).
			WithWebhookGuards(a.webhookGuards(errorHandler)...)
		r.Mount("/", surveyHandler.Routes())
	})
}

// webhookGuards builds the middleware chain for the response webhook
// route. The delivery log wraps everything so rejected deliveries are
// captured with their payload; auth runs before the rate limiter so a
// flood of bad-secret deliveries cannot drain the token bucket for
// legitimate ones. The body check comes last because it is the only
// guard that has to read the payload.
func (a *Application) webhookGuards(errorHandler *apierrors.ErrorHandler) []func(http.Handler) http.Handler {
	guards := []func(http.Handler) http.Handler{
		apierrors.NewDeliveryLog(errorHandler, a.Logger).Handler,
		customMiddleware.ContentTypeValidator("application/json"),
	}

	if a.Config.Security.WebhookSecret != "" {
		guards = append(guards, customMiddleware.WebhookAuth(a.Config.Security.WebhookSecret, a.Logger))
	} else {
		a.Logger.Warn("webhook secret not configured; response deliveries are unauthenticated")
	}

	if a.Config.Security.RateLimit.Enabled {
		limiter := customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).WithMetrics(a.Metrics)
		guards = append(guards, limiter.Handler)
	}

	validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)
	guards = append(guards, validation.ValidateRequest)

	return guards
}

// getCORSConfig assembles the CORS policy for browser dashboards.
// Development runs additionally admit the local frontend ports.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	isDevelopment := a.isDevelopmentMode()

	corsConfig := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
			customMiddleware.WebhookSecretHeader,
		},
		ExposedHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	corsConfig.AllowedOrigins = append(corsConfig.AllowedOrigins, a.Config.Security.AllowedOrigins...)
	if isDevelopment {
		corsConfig.AllowedOrigins = append(corsConfig.AllowedOrigins,
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		)
	}

	a.Logger.Info("cors policy assembled",
		slog.Bool("development", isDevelopment),
		slog.Any("allowed_origins", corsConfig.AllowedOrigins))

	return corsConfig
}

// isDevelopmentMode reports whether this looks like a development run.
// Explicit GO_ENV or ENVIRONMENT settings win over the working
// directory heuristic.
func (a *Application) isDevelopmentMode() bool {
	if env := os.Getenv("GO_ENV"); env == "development" {
		return true
	}
	if env := os.Getenv("ENVIRONMENT"); env == "development" {
		return true
	}

	if wd, err := os.Getwd(); err == nil {
		if strings.Contains(wd, "dev") || strings.Contains(wd, "development") {
			return true
		}
	}

	return false
}

// createServer applies the configured port and timeout budget to the
// router. Nothing listens yet.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.HTTP.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.HTTP.ReadTimeout,
		WriteTimeout:   a.Config.HTTP.WriteTimeout,
		IdleTimeout:    a.Config.HTTP.IdleTimeout,
		MaxHeaderBytes: a.Config.HTTP.MaxHeaderBytes,
	}
}

// Start brings up the listener and the background collectors without
// blocking. A listener failure cancels the supplied context so Run can
// unwind the rest of the process.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "http server starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.Int("port", a.Config.HTTP.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	// Periodic runtime gauges (goroutines, heap, GC pauses)
	if a.SystemMetrics != nil {
		go a.SystemMetrics.Start(ctx)
	}

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "startup check reported warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "service ready",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.HTTP.Port)),
		slog.String("webhook_endpoint", config.ResponsesEndpoint))

	return nil
}

// Stop drains in-flight requests, then releases the storage backend
// and flushes telemetry. Telemetry goes last so the drain itself is
// still recorded.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutdown started")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.HTTP.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("drain http server: %w", err)
	}

	if a.SystemMetrics != nil {
		a.SystemMetrics.Stop()
	}

	// Release backend resources (workbook handles, connection pools)
	if closer, ok := a.Store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "storage close failed", slog.String("error", err.Error()))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "shutdown complete")
	return nil
}

// Run starts the application and blocks until an interrupt arrives or
// the listener dies, then drains with the configured timeout.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGINT from a terminal, SIGTERM from an orchestrator
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "interrupt received")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "listener exited before interrupt")
	}

	// The run context may already be canceled; drain on a fresh one
	return a.Stop(context.Background())
}

// performStartupHealthCheck writes a probe file into each artifact
// directory so permission problems surface at boot instead of on the
// first delivery.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	paths, err := config.GetPaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	var warnings []string

	directories := map[string]string{
		"Data":    paths.DataDir,
		"Exports": a.Config.GetExportDir(),
		"Reports": a.Config.GetReportDir(),
		"Logs":    paths.LogsDir,
	}

	for name, dir := range directories {
		probe := filepath.Join(dir, ".writecheck")
		if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("cannot write to %s directory: %s", name, dir))
		} else {
			os.Remove(probe)
		}
	}

	// Optional files only rate a log line
	configFiles := map[string]string{
		"Policy":      a.Config.Policy.File,
		"Credentials": a.Config.GetCredentialsFile(),
	}

	for name, file := range configFiles {
		if file != "" && !config.FileExists(file) {
			a.Logger.InfoContext(ctx, "optional file missing",
				slog.String("file", name),
				slog.String("path", file))
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "startup check passed")
	return nil
}
