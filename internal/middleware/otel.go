package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"surveycli/internal/infrastructure"
)

// metricsCtxKey keys BusinessMetrics in the request context
type metricsCtxKey struct{}

// OTelMiddleware opens one server span per request and feeds the HTTP
// request metrics. Log correlation comes for free: the span's trace ID
// is seeded into the context the trace-aware log handler reads.
type OTelMiddleware struct {
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// NewOTelMiddleware creates the instrumentation middleware from live
// providers. Callers must not pass providers whose exporters were
// configured off.
func NewOTelMiddleware(providers *infrastructure.OTelProviders) (*OTelMiddleware, error) {
	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create business metrics: %w", err)
	}

	return &OTelMiddleware{
		tracer:  providers.Tracer,
		metrics: metrics,
	}, nil
}

// Handler instruments the request. Request logging itself stays with
// StructuredLogger; this layer only produces telemetry.
func (m *OTelMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Honor trace context propagated by the form platform or a proxy
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := m.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(r.URL.Path),
				semconv.ServerAddressKey.String(r.Host),
				semconv.UserAgentOriginalKey.String(r.UserAgent()),
				semconv.HTTPRequestBodySizeKey.Int64(r.ContentLength),
				semconv.ClientAddressKey.String(r.RemoteAddr),
			),
		)
		defer span.End()

		ctx = infrastructure.WithTraceID(ctx, span.SpanContext().TraceID().String())
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		m.metrics.HTTPActiveRequests.Add(ctx, 1)
		defer m.metrics.HTTPActiveRequests.Add(ctx, -1)

		begin := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(begin)

		// The chi route pattern keeps metric cardinality bounded even
		// when callers probe random paths
		measured := []attribute.KeyValue{
			attribute.String("method", r.Method),
			attribute.String("route", routePattern(r)),
			attribute.Int("status_code", rec.status),
		}
		m.metrics.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(measured...))
		m.metrics.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(measured...))

		span.SetAttributes(
			semconv.HTTPResponseStatusCodeKey.Int(rec.status),
			semconv.HTTPResponseBodySizeKey.Int64(rec.written),
		)
		if rec.status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

// statusRecorder captures the status and body size the handler wrote
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

// routePattern resolves the matched chi pattern, falling back to the
// raw path before routing has happened
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// BusinessMetricsMiddleware stashes the metrics handle in the request
// context so deep handler code can count domain events without plumbing
// the handle through every constructor. A nil handle is fine; recording
// helpers treat absence as a no-op.
func BusinessMetricsMiddleware(metrics *infrastructure.BusinessMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), metricsCtxKey{}, metrics)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsFromContext returns the metrics handle seeded by
// BusinessMetricsMiddleware, or nil outside an instrumented request
func MetricsFromContext(ctx context.Context) *infrastructure.BusinessMetrics {
	metrics, _ := ctx.Value(metricsCtxKey{}).(*infrastructure.BusinessMetrics)
	return metrics
}

// RecordSystemError counts an unexpected component failure. Handlers
// call it on 500-class paths so operators can alert on failure rate
// without parsing logs.
func RecordSystemError(ctx context.Context, errorType, component string) {
	metrics := MetricsFromContext(ctx)
	if metrics == nil || metrics.SystemErrors == nil {
		return
	}
	metrics.SystemErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_type", errorType),
		attribute.String("component", component),
	))
}
