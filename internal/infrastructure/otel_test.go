package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// newTestProviders initializes the full telemetry stack and tears it down
// with the test
func newTestProviders(t *testing.T) *OTelProviders {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, providers.Shutdown(ctx))
	})
	return providers
}

func TestInitializeOTel_NilConfigUsesDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	providers, err := InitializeOTel(nil, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestInitializeOTel_ExporterSelection(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name        string
		config      *OTelConfig
		wantTracing bool
		wantMetrics bool
		wantErr     bool
	}{
		{
			name: "both pipelines enabled",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "stdout",
				MetricExporter: "prometheus",
				EnableTracing:  true,
				EnableMetrics:  true,
				SampleRatio:    1.0,
			},
			wantTracing: true,
			wantMetrics: true,
		},
		{
			name: "tracing disabled",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "none",
				MetricExporter: "prometheus",
				EnableTracing:  false,
				EnableMetrics:  true,
			},
			wantMetrics: true,
		},
		{
			name: "metrics disabled",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "stdout",
				MetricExporter: "none",
				EnableTracing:  true,
				EnableMetrics:  false,
				SampleRatio:    1.0,
			},
			wantTracing: true,
		},
		{
			name: "unsupported trace exporter",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "jaeger",
				MetricExporter: "none",
				EnableTracing:  true,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.config, logger)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			if tt.wantTracing {
				assert.NotNil(t, providers.Tracer)
			} else {
				assert.Nil(t, providers.Tracer, "disabled tracing must leave Tracer nil")
			}
			if tt.wantMetrics {
				assert.NotNil(t, providers.Meter)
			} else {
				assert.Nil(t, providers.Meter, "disabled metrics must leave Meter nil")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			assert.NoError(t, providers.Shutdown(ctx))
		})
	}
}

func TestTraceCorrelation(t *testing.T) {
	newTestProviders(t)

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)

	// The logging context key round-trips the same ID
	ctx = WithTraceID(ctx, traceID)
	assert.Equal(t, traceID, GetTraceID(ctx))
}

func TestTraceIDFromContext_NoSpan(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestCreateBusinessMetrics(t *testing.T) {
	providers := newTestProviders(t)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	assert.NotNil(t, metrics.HTTPRequestsTotal)
	assert.NotNil(t, metrics.HTTPRequestDuration)
	assert.NotNil(t, metrics.HTTPActiveRequests)

	assert.NotNil(t, metrics.AggregationRunsTotal)
	assert.NotNil(t, metrics.AggregationRunDuration)
	assert.NotNil(t, metrics.AggregationRowsProcessed)
	assert.NotNil(t, metrics.AggregationFailures)

	assert.NotNil(t, metrics.ExportArtifactsTotal)
	assert.NotNil(t, metrics.ExportArtifactBytes)
	assert.NotNil(t, metrics.ExportDuration)
	assert.NotNil(t, metrics.ReportRequestsTotal)

	assert.NotNil(t, metrics.WebhookEventsTotal)
	assert.NotNil(t, metrics.WebhookThrottledTotal)

	assert.NotNil(t, metrics.SystemErrors)
	assert.NotNil(t, metrics.SystemUptime)
}

func TestRecordRunMetrics(t *testing.T) {
	providers := newTestProviders(t)
	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()

	// Successful run records rows
	RecordRunMetrics(ctx, metrics, "run-1", "responses", 120*time.Millisecond, 42, nil)

	// Failed run records a failure instead of rows
	RecordRunMetrics(ctx, metrics, "run-2", "responses", 10*time.Millisecond, 0, fmt.Errorf("schema mismatch"))

	// Export, report and webhook helpers
	RecordExportMetrics(ctx, metrics, "aggregate.csv", 2048, 5*time.Millisecond)
	RecordReportRequest(ctx, metrics, "markdown", 10)
	RecordWebhookEvent(ctx, metrics, "form-1", false)
	RecordWebhookEvent(ctx, metrics, "form-1", true)

	// Nil metrics are a no-op
	RecordRunMetrics(ctx, nil, "run-3", "responses", 0, 0, nil)
	RecordExportMetrics(ctx, nil, "aggregate.csv", 0, 0)
	RecordReportRequest(ctx, nil, "json", 5)
	RecordWebhookEvent(ctx, nil, "form-1", false)
}

func TestSpanHelpers(t *testing.T) {
	newTestProviders(t)

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	SetSpanAttributes(ctx, map[string]interface{}{
		"string_attr": "test_value",
		"int_attr":    42,
		"int64_attr":  int64(7),
		"float_attr":  3.14,
		"bool_attr":   true,
		"other_attr":  time.Second,
	})
	AddSpanEvent(ctx, "test.event", map[string]interface{}{
		"event_data": "test_event_value",
	})
	RecordError(ctx, assert.AnError)

	assert.True(t, span.IsRecording())

	// Without a recording span the helpers are no-ops
	bare := context.Background()
	SetSpanAttributes(bare, map[string]interface{}{"ignored": true})
	AddSpanEvent(bare, "ignored.event", nil)
	RecordError(bare, assert.AnError)
}

func TestPrometheusEndpoint(t *testing.T) {
	providers := newTestProviders(t)

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

func TestTracePropagation(t *testing.T) {
	newTestProviders(t)

	tracer := otel.Tracer("propagation-test")

	ctx, parentSpan := tracer.Start(context.Background(), "parent-operation")
	defer parentSpan.End()

	_, childSpan := tracer.Start(ctx, "child-operation")
	defer childSpan.End()

	assert.Equal(t, parentSpan.SpanContext().TraceID(), childSpan.SpanContext().TraceID(),
		"child span should share the parent trace")
	assert.NotEqual(t, parentSpan.SpanContext().SpanID(), childSpan.SpanContext().SpanID())
}

func BenchmarkMetricOperations(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(b, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(b, err)

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.Run("counter_increment", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			metrics.HTTPRequestsTotal.Add(ctx, 1)
		}
	})

	b.Run("histogram_record", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			metrics.HTTPRequestDuration.Record(ctx, float64(i)*0.001)
		}
	})

	b.Run("updown_counter", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if i%2 == 0 {
				metrics.HTTPActiveRequests.Add(ctx, 1)
			} else {
				metrics.HTTPActiveRequests.Add(ctx, -1)
			}
		}
	})
}
