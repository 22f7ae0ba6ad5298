package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "survey-aggregation-service"
	ServiceVersion = "v0.3.0"
	MeterName      = "surveycli"
)

// OTelConfig selects exporters for the telemetry pipelines. The supported
// trace exporters are "stdout" and "none"; metric exporters are
// "prometheus" and "none".
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string
	MetricExporter string
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders bundles the live telemetry handles. Tracer and Meter stay
// nil when the corresponding pipeline is disabled; callers must check.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig traces to stdout and serves metrics over Prometheus,
// sampling everything. Production deployments dial SampleRatio down via
// the observability config.
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
	}
}

// InitializeOTel wires up tracing and metrics per the config and installs
// the global propagator. A nil config gets the defaults.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()
	logger.InfoContext(ctx, "telemetry starting",
		slog.String("service", cfg.ServiceName), slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing), slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", instanceID()),
	)

	providers := &OTelProviders{Logger: logger}

	if cfg.EnableTracing && cfg.TraceExporter != "none" {
		tp, err := newTracerProvider(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("tracing setup: %w", err)
		}
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetTracerProvider(tp)

		logger.InfoContext(ctx, "tracing pipeline up",
			slog.String("exporter", cfg.TraceExporter), slog.Float64("sample_ratio", cfg.SampleRatio))
	}

	if cfg.EnableMetrics && cfg.MetricExporter != "none" {
		mp, scrape, err := newMeterProvider(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("metrics setup: %w", err)
		}
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		providers.PrometheusHTTP = scrape
		otel.SetMeterProvider(mp)

		logger.InfoContext(ctx, "metrics pipeline up", slog.String("exporter", cfg.MetricExporter))
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// newTracerProvider builds the span pipeline for the configured exporter
func newTracerProvider(cfg *OTelConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	if cfg.TraceExporter != "stdout" {
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	), nil
}

// newMeterProvider builds the metric pipeline plus the scrape handler
func newMeterProvider(cfg *OTelConfig, res *resource.Resource) (*sdkmetric.MeterProvider, http.Handler, error) {
	if cfg.MetricExporter != "prometheus" {
		return nil, nil, fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	return mp, promhttp.Handler(), nil
}

// Shutdown flushes and stops both provider pipelines
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		errs = append(errs, p.TracerProvider.Shutdown(ctx))
	}
	if p.MeterProvider != nil {
		errs = append(errs, p.MeterProvider.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("opentelemetry shutdown: %w", err)
	}

	p.Logger.InfoContext(ctx, "telemetry stopped")
	return nil
}

// instanceID distinguishes restarts of the same host in target_info
func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// BusinessMetrics holds the domain instruments. The recording helpers
// below treat a nil *BusinessMetrics as a no-op so callers without a
// meter skip instrumentation instead of branching.
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	AggregationRunsTotal     metric.Int64Counter
	AggregationRunDuration   metric.Float64Histogram
	AggregationRowsProcessed metric.Int64Counter
	AggregationFailures      metric.Int64Counter

	ExportArtifactsTotal metric.Int64Counter
	ExportArtifactBytes  metric.Int64Counter
	ExportDuration       metric.Float64Histogram

	ReportRequestsTotal metric.Int64Counter

	WebhookEventsTotal    metric.Int64Counter
	WebhookThrottledTotal metric.Int64Counter

	SystemErrors metric.Int64Counter
	SystemUptime metric.Float64UpDownCounter
}

// metricBuilder creates instruments and remembers the first failure, so
// CreateBusinessMetrics reads as one declaration instead of a page of
// error checks.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func (b *metricBuilder) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.keep(err)
	return c
}

func (b *metricBuilder) counterBytes(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("By"))
	b.keep(err)
	return c
}

func (b *metricBuilder) seconds(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	b.keep(err)
	return h
}

func (b *metricBuilder) upDown(name, desc string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.keep(err)
	return c
}

func (b *metricBuilder) upDownSeconds(name, desc string) metric.Float64UpDownCounter {
	c, err := b.meter.Float64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit("s"))
	b.keep(err)
	return c
}

func (b *metricBuilder) keep(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

// CreateBusinessMetrics registers the domain instruments on the meter
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	b := &metricBuilder{meter: meter}

	m := &BusinessMetrics{
		HTTPRequestsTotal:   b.counter("http_requests_total", "Total number of HTTP requests"),
		HTTPRequestDuration: b.seconds("http_request_duration_seconds", "HTTP request duration in seconds"),
		HTTPActiveRequests:  b.upDown("http_active_requests", "Number of active HTTP requests"),

		AggregationRunsTotal:     b.counter("aggregation_runs_total", "Total number of aggregation pipeline runs"),
		AggregationRunDuration:   b.seconds("aggregation_run_duration_seconds", "Aggregation run duration in seconds"),
		AggregationRowsProcessed: b.counter("aggregation_rows_processed_total", "Total number of response rows written to the aggregate"),
		AggregationFailures:      b.counter("aggregation_failures_total", "Total number of failed aggregation runs"),

		ExportArtifactsTotal: b.counter("export_artifacts_total", "Total number of exported artifacts"),
		ExportArtifactBytes:  b.counterBytes("export_artifact_bytes", "Total bytes written to exported artifacts"),
		ExportDuration:       b.seconds("export_duration_seconds", "Export duration in seconds"),

		ReportRequestsTotal: b.counter("report_requests_total", "Total number of statistics report requests"),

		WebhookEventsTotal:    b.counter("webhook_events_total", "Total number of received form response events"),
		WebhookThrottledTotal: b.counter("webhook_throttled_total", "Total number of rate limited form response events"),

		SystemErrors: b.counter("system_errors_total", "Total number of system errors"),
		SystemUptime: b.upDownSeconds("system_uptime_seconds", "System uptime in seconds"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// TraceIDFromContext reads the active span's trace ID, or "" when no
// sampled span is present
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// toAttributes converts a loose attribute map to typed OTel attributes
func toAttributes(attributes map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return attrs
}

// AddSpanEvent attaches an event to the active span, if one is recording
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

// SetSpanAttributes sets attributes on the active span, if one is recording
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(toAttributes(attributes)...)
}

// RecordError marks the active span failed with the error attached
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// RecordRunMetrics records one aggregation run. A failed run counts a
// failure instead of processed rows; duration is recorded either way,
// labeled by outcome.
func RecordRunMetrics(ctx context.Context, metrics *BusinessMetrics, runID, source string, duration time.Duration, rows int, err error) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID),
		attribute.String("run.source", source),
	}
	metrics.AggregationRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.AggregationRunDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(append(attrs, attribute.String("status", status))...))

	if err != nil {
		metrics.AggregationFailures.Add(ctx, 1,
			metric.WithAttributes(append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))...))
		return
	}

	metrics.AggregationRowsProcessed.Add(ctx, int64(rows), metric.WithAttributes(attrs...))
	AddSpanEvent(ctx, "aggregation.metrics_recorded", map[string]interface{}{
		"run.id":           runID,
		"rows":             rows,
		"duration_seconds": duration.Seconds(),
	})
}

// RecordExportMetrics records one produced export artifact
func RecordExportMetrics(ctx context.Context, metrics *BusinessMetrics, artifact string, size int64, duration time.Duration) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("artifact", artifact)}
	metrics.ExportArtifactsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.ExportArtifactBytes.Add(ctx, size, metric.WithAttributes(attrs...))
	metrics.ExportDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordReportRequest records one served statistics report
func RecordReportRequest(ctx context.Context, metrics *BusinessMetrics, format string, topN int) {
	if metrics == nil {
		return
	}

	metrics.ReportRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("format", format),
		attribute.Int("top_n", topN),
	))
}

// RecordWebhookEvent records one received form response event; throttled
// deliveries count on both instruments
func RecordWebhookEvent(ctx context.Context, metrics *BusinessMetrics, formID string, throttled bool) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("form.id", formID)}
	metrics.WebhookEventsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if throttled {
		metrics.WebhookThrottledTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
