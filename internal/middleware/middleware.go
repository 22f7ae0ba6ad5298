package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	apierrors "surveycli/internal/errors"
	"surveycli/internal/infrastructure"
)

// ctxKeyRequestID is the context key type for the request ID, distinct
// from every other package's keys.
type ctxKeyRequestID int

// RequestIDKey is the context key for the request ID.
const RequestIDKey ctxKeyRequestID = 0

// RequestID assigns every request an ID, honoring one the caller sent
// in X-Request-ID. Form platforms include their delivery ID there, which
// makes webhook retries traceable across both systems. Must run first
// in the chain.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		// The request ID doubles as the trace_id for log correlation
		// unless a live span already carries one
		traceID := requestID
		if span := trace.SpanFromContext(r.Context()); span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		}

		ctx := infrastructure.WithTraceID(context.WithValue(r.Context(), RequestIDKey, requestID), traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetReqID retrieves the request ID from the context.
func GetReqID(ctx context.Context) string {
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// traceIDFor resolves the ID an error response or log line should
// carry: the trace ID when one is set, the request ID otherwise.
func traceIDFor(ctx context.Context) string {
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		return traceID
	}
	return GetReqID(ctx)
}

// writeProblem answers with an RFC 7807 document from middleware that
// runs outside the render stack. Callers set extra headers first.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	problem := apierrors.NewProblemDetails(status, problemType, title, detail, r.URL.Path).
		WithExtension("trace_id", traceIDFor(r.Context()))

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// StructuredLogger logs one line per request start and completion with
// the trace ID attached. Runs after RequestID and RealIP so both are
// populated.
func StructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			reqLog := logger
			if traceID := traceIDFor(ctx); traceID != "" {
				reqLog = logger.With("trace_id", traceID)
			}

			// ww records status and byte count for the completion line
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			startAttrs := []any{
				"method", r.Method, "path", r.URL.Path,
				"remote_addr", r.RemoteAddr, "user_agent", r.UserAgent(),
			}
			// Report format and top_n selections come in as query params
			if r.URL.RawQuery != "" {
				startAttrs = append(startAttrs, "query", r.URL.RawQuery)
			}
			reqLog.InfoContext(ctx, "request started", startAttrs...)

			next.ServeHTTP(ww, r)

			reqLog.InfoContext(ctx, "request completed",
				"method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "bytes", ww.BytesWritten(),
				"duration", time.Since(start).String())
		})
	}
}

// Recoverer turns handler panics into RFC 7807 internal-error responses
// and logs the stack.
func Recoverer(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.ErrorContext(r.Context(), "panic recovered",
						"panic", rvr, "stack", string(debug.Stack()),
						"method", r.Method, "path", r.URL.Path)

					writeProblem(w, r, http.StatusInternalServerError,
						"/errors/internal-server-error", "Internal Server Error",
						"An unexpected error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter throttles the response webhook route. One process-wide
// token bucket is enough: the pipeline serializes runs anyway, the
// limiter only keeps a misfiring form integration from queueing
// thousands of redundant re-aggregations.
type RateLimiter struct {
	limiter *rate.Limiter
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewRateLimiter creates a limiter allowing rps sustained requests with
// the given burst headroom.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst), logger: logger}
}

// WithMetrics registers throttle counting for rejected requests
func (rl *RateLimiter) WithMetrics(metrics *infrastructure.BusinessMetrics) *RateLimiter {
	rl.metrics = metrics
	return rl
}

// Handler rejects requests once the bucket is empty.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !rl.limiter.Allow() {
			rl.logger.WarnContext(ctx, "rate limit exceeded",
				"method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

			// The form id is unknown here; the limiter rejects before
			// the body is read.
			infrastructure.RecordWebhookEvent(ctx, rl.metrics, "", true)

			w.Header().Set("Retry-After", "60")
			writeProblem(w, r, http.StatusTooManyRequests,
				"/errors/rate-limit-exceeded", "Too Many Requests",
				"Rate limit exceeded. Please retry after 60 seconds")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Timeout bounds request handling. Aggregation runs synchronously inside
// webhook and trigger requests, so the bound here is effectively the
// pipeline's time budget.
func Timeout(timeout time.Duration, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			go func() {
				next.ServeHTTP(w, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
				// Completed inside the budget
			case <-ctx.Done():
				logger.ErrorContext(r.Context(), "request timeout",
					"method", r.Method, "path", r.URL.Path, "timeout", timeout.String())

				writeProblem(w, r, http.StatusGatewayTimeout,
					"/errors/request-timeout", "Request Timeout",
					"The request took too long to process")
			}
		})
	}
}

// CORSConfig controls which browser origins may call the API.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
	Logger           *slog.Logger
}

// CORS middleware for browser dashboards that read reports directly.
// The API is GET and POST only, so the defaults stay that narrow.
func CORS(config CORSConfig) func(next http.Handler) http.Handler {
	if len(config.AllowedMethods) == 0 {
		config.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(config.AllowedHeaders) == 0 {
		config.AllowedHeaders = []string{"Accept", "Content-Type", "X-Request-ID"}
	}
	if config.MaxAge == 0 {
		config.MaxAge = 300
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := originAllowed(config.AllowedOrigins, origin)

			switch {
			case allowed && origin != "":
				w.Header().Set("Access-Control-Allow-Origin", origin)
			case len(config.AllowedOrigins) > 0 && config.AllowedOrigins[0] == "*":
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
			if len(config.ExposedHeaders) > 0 {
				w.Header().Set("Access-Control-Expose-Headers", strings.Join(config.ExposedHeaders, ", "))
			}
			if config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))

			if r.Method == http.MethodOptions {
				if config.Logger != nil {
					config.Logger.DebugContext(r.Context(), "CORS preflight request",
						"origin", origin, "allowed", allowed)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed applies the wildcard and case-insensitivity rules
// browsers expect. An empty allowlist admits every origin.
func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	return slices.ContainsFunc(allowed, func(candidate string) bool {
		return candidate == "*" || strings.EqualFold(candidate, origin)
	})
}

// SecurityHeaders adds security-related headers. The CSP is the strict
// API form; nothing served here embeds scripts or styles.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// HSTS only applies when serving TLS
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// Compress gzips responses. Rendered reports and export envelopes are
// highly repetitive text, so this is worth the CPU.
func Compress(level int) func(next http.Handler) http.Handler {
	return middleware.Compress(level)
}

// RealIP resolves the client address from proxy forwarding headers
func RealIP(next http.Handler) http.Handler {
	return middleware.RealIP(next)
}

// StripSlashes tolerates trailing slashes; some form platforms append
// one to the configured webhook URL
func StripSlashes(next http.Handler) http.Handler {
	return middleware.StripSlashes(next)
}
