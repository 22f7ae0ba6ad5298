package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveycli/internal/config"
	apierrors "surveycli/internal/errors"
	"surveycli/internal/infrastructure"
	customMiddleware "surveycli/internal/middleware"
)

// setupTestEnvironment pins the env so tests cannot collide with a
// developer's local settings
func setupTestEnvironment(t *testing.T) func() {
	t.Helper()

	// Dedicated port, quiet stderr logging and no span dumps on stdout
	os.Setenv("SURVEY_HTTP_PORT", "8097")
	os.Setenv("SURVEY_LOGGING_LEVEL", "error")
	os.Setenv("SURVEY_LOGGING_OUTPUT", "stderr")
	os.Setenv("SURVEY_OBSERVABILITY_TRACE_EXPORTER", "none")

	return func() {
		os.Unsetenv("SURVEY_HTTP_PORT")
		os.Unsetenv("SURVEY_LOGGING_LEVEL")
		os.Unsetenv("SURVEY_LOGGING_OUTPUT")
		os.Unsetenv("SURVEY_OBSERVABILITY_TRACE_EXPORTER")
	}
}

// createTestLogger discards output so assertions stay about behavior
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func TestGenerateBuildID(t *testing.T) {
	id := generateBuildID()

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{12}$`), id)
	assert.Equal(t, id, generateBuildID(), "build ID should be stable within a build")
}

// TestOtelConfigFrom tests the observability config bridge
func TestOtelConfigFrom(t *testing.T) {
	tests := []struct {
		name               string
		mutate             func(*config.Config)
		wantTracing        bool
		wantMetrics        bool
		wantTraceExporter  string
		wantMetricExporter string
		wantSampleRatio    float64
	}{
		{
			name:               "defaults map through",
			mutate:             func(cfg *config.Config) {},
			wantTracing:        true,
			wantMetrics:        true,
			wantTraceExporter:  "stdout",
			wantMetricExporter: "prometheus",
			wantSampleRatio:    1.0,
		},
		{
			name: "exporters overridden",
			mutate: func(cfg *config.Config) {
				cfg.Observability.TraceExporter = "none"
				cfg.Observability.MetricExporter = "none"
			},
			wantTracing:        true,
			wantMetrics:        true,
			wantTraceExporter:  "none",
			wantMetricExporter: "none",
			wantSampleRatio:    1.0,
		},
		{
			name: "disabled signals",
			mutate: func(cfg *config.Config) {
				cfg.Observability.EnableTracing = false
				cfg.Observability.EnableMetrics = false
			},
			wantTracing:        false,
			wantMetrics:        false,
			wantTraceExporter:  "stdout",
			wantMetricExporter: "prometheus",
			wantSampleRatio:    1.0,
		},
		{
			name: "zero sample ratio keeps the default",
			mutate: func(cfg *config.Config) {
				cfg.Observability.SampleRatio = 0
			},
			wantTracing:        true,
			wantMetrics:        true,
			wantTraceExporter:  "stdout",
			wantMetricExporter: "prometheus",
			wantSampleRatio:    1.0,
		},
		{
			name: "partial sample ratio",
			mutate: func(cfg *config.Config) {
				cfg.Observability.SampleRatio = 0.25
			},
			wantTracing:        true,
			wantMetrics:        true,
			wantTraceExporter:  "stdout",
			wantMetricExporter: "prometheus",
			wantSampleRatio:    0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			otelCfg := otelConfigFrom(cfg)

			assert.Equal(t, tt.wantTracing, otelCfg.EnableTracing)
			assert.Equal(t, tt.wantMetrics, otelCfg.EnableMetrics)
			assert.Equal(t, tt.wantTraceExporter, otelCfg.TraceExporter)
			assert.Equal(t, tt.wantMetricExporter, otelCfg.MetricExporter)
			assert.Equal(t, tt.wantSampleRatio, otelCfg.SampleRatio)

			// Service identity comes from the infrastructure defaults
			assert.Equal(t, infrastructure.DefaultOTelConfig().ServiceName, otelCfg.ServiceName)
		})
	}
}

// TestNewApplication drives the constructor through good and bad
// configuration
func TestNewApplication(t *testing.T) {
	tests := []struct {
		name          string
		setupEnv      func()
		cleanupEnv    func()
		wantErr       bool
		errorContains string
	}{
		{
			name:     "successful initialization",
			setupEnv: func() {},
			wantErr:  false,
		},
		{
			name: "initialization with invalid port",
			setupEnv: func() {
				os.Setenv("SURVEY_HTTP_PORT", "-1")
			},
			cleanupEnv: func() {
				os.Setenv("SURVEY_HTTP_PORT", "8097")
			},
			wantErr:       true,
			errorContains: "config validation failed",
		},
		{
			name: "sheets backend without spreadsheet id",
			setupEnv: func() {
				os.Setenv("SURVEY_STORAGE_BACKEND", "sheets")
			},
			cleanupEnv: func() {
				os.Unsetenv("SURVEY_STORAGE_BACKEND")
			},
			wantErr:       true,
			errorContains: "spreadsheet_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestEnvironment(t)
			defer cleanup()

			tt.setupEnv()
			if tt.cleanupEnv != nil {
				defer tt.cleanupEnv()
			}

			app, err := NewApplication()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				assert.Nil(t, app)
			} else {
				assert.NoError(t, err)
				if assert.NotNil(t, app) {
					assert.NotNil(t, app.Config)
					assert.NotNil(t, app.Logger)
					assert.NotNil(t, app.Router)
					assert.NotNil(t, app.Server)
					assert.NotNil(t, app.Store)
					assert.NotNil(t, app.SurveyService)
					assert.NotNil(t, app.HealthService)
					assert.NotNil(t, app.OTelProviders)
					assert.Equal(t, ":8097", app.Server.Addr)
				}
			}
		})
	}
}

// TestApplication_initializeServices checks the wired service graph
func TestApplication_initializeServices(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	app, err := NewApplication()
	require.NoError(t, err)
	require.NotNil(t, app)

	t.Run("all services initialized", func(t *testing.T) {
		assert.NotNil(t, app.Store)
		assert.NotNil(t, app.SurveyService)
		assert.NotNil(t, app.HealthService)
		assert.NotNil(t, app.Metrics, "prometheus exporter is on by default")
	})

	t.Run("memory backend selected by default", func(t *testing.T) {
		assert.Equal(t, "memory", app.Config.Storage.Backend)
	})
}

// TestApplication_setupRouter tests route registration end to end
func TestApplication_setupRouter(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	app, err := NewApplication()
	require.NoError(t, err)
	require.NotNil(t, app.Router)

	testServer := httptest.NewServer(app.Router)
	defer testServer.Close()

	t.Run("health endpoints registered", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/api/v1/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = http.Get(testServer.URL + "/api/v1/health/live")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("version endpoint carries build info", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/api/v1/version")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "build_id")
	})

	t.Run("metrics endpoint registered outside the api group", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("report without aggregation returns problem details", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/api/v1/report")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, string(body), "AGGREGATED_TABLE_NOT_FOUND")
	})

	t.Run("webhook route reachable without secret configured", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, testServer.URL+"/api/v1/responses", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		// An empty store means the source table does not exist yet
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, string(body), "SOURCE_NOT_FOUND")
	})

	t.Run("unknown route returns 404 problem", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/api/v1/unknown")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, string(body), "/errors/not-found")
	})

	t.Run("wrong verb returns 405 problem", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, testServer.URL+"/api/v1/report", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Contains(t, string(body), "Method DELETE is not allowed")
	})
}

// TestApplication_webhookGuards tests the guard chain assembly
func TestApplication_webhookGuards(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*config.Config)
		wantGuards int
	}{
		{
			name:       "defaults: delivery log, content type, rate limit and body check",
			mutate:     func(cfg *config.Config) {},
			wantGuards: 4,
		},
		{
			name: "secret adds webhook auth",
			mutate: func(cfg *config.Config) {
				cfg.Security.WebhookSecret = "s3cret"
			},
			wantGuards: 5,
		},
		{
			name: "rate limiting disabled",
			mutate: func(cfg *config.Config) {
				cfg.Security.RateLimit.Enabled = false
			},
			wantGuards: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			app := &Application{Config: cfg, Logger: createTestLogger()}
			errorHandler := apierrors.NewErrorHandler(createTestLogger(), false)

			assert.Len(t, app.webhookGuards(errorHandler), tt.wantGuards)
		})
	}
}

// TestApplication_getCORSConfig checks the browser policy in both
// deployment modes
func TestApplication_getCORSConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Security.AllowedOrigins = []string{"https://dashboard.example.com"}
	app := &Application{Config: cfg, Logger: createTestLogger()}

	t.Run("configured origins always included", func(t *testing.T) {
		corsConfig := app.getCORSConfig()

		assert.Contains(t, corsConfig.AllowedOrigins, "https://dashboard.example.com")
		assert.Contains(t, corsConfig.AllowedMethods, "POST")
		assert.Contains(t, corsConfig.AllowedHeaders, customMiddleware.WebhookSecretHeader)
		assert.Contains(t, corsConfig.ExposedHeaders, "X-Request-ID")
		assert.Equal(t, 300, corsConfig.MaxAge)
	})

	t.Run("development mode adds localhost origins", func(t *testing.T) {
		old := os.Getenv("GO_ENV")
		os.Setenv("GO_ENV", "development")
		defer func() {
			if old == "" {
				os.Unsetenv("GO_ENV")
			} else {
				os.Setenv("GO_ENV", old)
			}
		}()

		corsConfig := app.getCORSConfig()

		assert.Contains(t, corsConfig.AllowedOrigins, "http://localhost:3000")
		assert.Contains(t, corsConfig.AllowedOrigins, "https://dashboard.example.com")
	})
}

// TestApplication_isDevelopmentMode pins the env precedence rules
func TestApplication_isDevelopmentMode(t *testing.T) {
	app := &Application{}

	tests := []struct {
		name string
		key  string
	}{
		{name: "GO_ENV development", key: "GO_ENV"},
		{name: "ENVIRONMENT development", key: "ENVIRONMENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := os.Getenv(tt.key)
			os.Setenv(tt.key, "development")
			defer func() {
				if old == "" {
					os.Unsetenv(tt.key)
				} else {
					os.Setenv(tt.key, old)
				}
			}()

			assert.True(t, app.isDevelopmentMode())
		})
	}
}

// TestApplication_createServer tests HTTP server construction
func TestApplication_createServer(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Port = 9123
	app := &Application{Config: cfg}

	app.createServer()

	require.NotNil(t, app.Server)
	assert.Equal(t, ":9123", app.Server.Addr)
	assert.Equal(t, cfg.HTTP.ReadTimeout, app.Server.ReadTimeout)
	assert.Equal(t, cfg.HTTP.WriteTimeout, app.Server.WriteTimeout)
	assert.Equal(t, cfg.HTTP.IdleTimeout, app.Server.IdleTimeout)
	assert.Equal(t, cfg.HTTP.MaxHeaderBytes, app.Server.MaxHeaderBytes)
}

// TestApplication_StartStop tests the server lifecycle
func TestApplication_StartStop(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	os.Setenv("SURVEY_HTTP_PORT", "8098")
	defer os.Setenv("SURVEY_HTTP_PORT", "8097")

	app, err := NewApplication()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.Start(ctx, cancel))

	// Wait for the listener to come up
	url := fmt.Sprintf("http://localhost:%d/api/v1/health/live", app.Config.HTTP.Port)
	var resp *http.Response
	for i := 0; i < 20; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.NoError(t, err, "server did not start listening")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Stop(context.Background()))

	// The listener should be gone after shutdown
	_, err = http.Get(url)
	assert.Error(t, err)
}

// TestApplication_Run tests the main run loop with an interrupt
func TestApplication_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sending interrupts to the current process is not supported on windows")
	}

	cleanup := setupTestEnvironment(t)
	defer cleanup()

	os.Setenv("SURVEY_HTTP_PORT", "8096")
	defer os.Setenv("SURVEY_HTTP_PORT", "8097")

	app, err := NewApplication()
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() {
		runErr <- app.Run()
	}()

	// Wait until the server is accepting requests before interrupting
	url := fmt.Sprintf("http://localhost:%d/api/v1/health/live", app.Config.HTTP.Port)
	for i := 0; i < 20; i++ {
		resp, getErr := http.Get(url)
		if getErr == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	proc, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, proc.Signal(os.Interrupt))

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("application did not shut down after interrupt")
	}
}

// TestApplication_performStartupHealthCheck runs the boot probe against
// the real layout
func TestApplication_performStartupHealthCheck(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	app, err := NewApplication()
	require.NoError(t, err)

	err = app.performStartupHealthCheck(context.Background())
	// A non-writable directory surfaces as a warning error, not a fatal one
	if err != nil {
		assert.Contains(t, err.Error(), "warnings")
	}
}
