package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-chi/render"

	"surveycli/internal/infrastructure"
)

// Problem type URIs, RFC 7807. Relative references so they survive
// host renames.
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeServiceDown     = "/errors/service-unavailable"
	TypeTimeout         = "/errors/timeout"
	TypePayloadTooLarge = "/errors/payload-too-large"
)

// Problem types specific to the aggregation domain.
const (
	TypeSourceNotFound    = "/errors/source-not-found"
	TypeAggregateNotFound = "/errors/aggregated-table-not-found"
	TypeSchemaMismatch    = "/errors/schema-mismatch"
	TypeStorageFailure    = "/errors/storage"
)

// ErrorHandler turns any error raised by a handler into a problem
// document, logs it once and renders it. One instance is shared by
// every route.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler builds the shared error responder. includeStack puts
// stack traces into responses and belongs off outside development.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err and answers with its RFC 7807 form. A nil err
// writes nothing, so callers may invoke it unconditionally.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := infrastructure.GetTraceID(r.Context())
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()), slog.String("request_id", reqID),
		slog.String("method", r.Method), slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr))

	problem := h.ErrorToProblem(err, r).WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", string(debug.Stack()))
	}

	render.Render(w, r, problem)
}

// ErrorToProblem classifies err. Typed errors carry their own mapping;
// anything else is sorted by message text as a last resort.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled", r.URL.Path)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return h.appErrorToProblem(appErr, r)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	return plainToProblem(err, r.URL.Path)
}

// problemClass fixes the HTTP shape of one AppError category.
type problemClass struct {
	status int
	typ    string
	title  string
}

var appProblems = map[ErrorType]problemClass{
	ErrTypeSourceNotFound:          {http.StatusNotFound, TypeSourceNotFound, "Source Not Found"},
	ErrTypeAggregatedTableNotFound: {http.StatusNotFound, TypeAggregateNotFound, "Aggregated Table Not Found"},
	ErrTypeSchemaMismatch:          {http.StatusUnprocessableEntity, TypeSchemaMismatch, "Schema Mismatch"},
	ErrTypeValidation:              {http.StatusBadRequest, TypeValidation, "Validation Failed"},
	ErrTypeNotFound:                {http.StatusNotFound, TypeNotFound, "Resource Not Found"},
	ErrTypeStorage:                 {http.StatusInternalServerError, TypeStorageFailure, "Storage Failure"},
	ErrTypeParsing:                 {http.StatusInternalServerError, TypeStorageFailure, "Storage Failure"},
}

// appErrorToProblem maps the pipeline's error taxonomy onto problem
// documents. The AppError context rides along as extensions, so the
// source or output name a failure refers to reaches the client.
func (h *ErrorHandler) appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	class, ok := appProblems[appErr.Type]
	if !ok {
		class = problemClass{http.StatusInternalServerError, TypeInternal, "Internal Server Error"}
	}

	detail := appErr.Message
	if appErr.Type == ErrTypeSchemaMismatch {
		// The wrapped cause names the offending row
		detail = appErr.Error()
	}

	problem := NewProblemDetails(class.status, class.typ, class.title, detail, r.URL.Path).
		WithExtension("error_code", string(appErr.Type))
	for k, v := range appErr.Context {
		problem.WithExtension(k, v)
	}
	return problem
}

// apiErrorToProblem keeps an APIError's status and message and derives
// the problem type from its code.
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "INVALID_PARAMETER", "INVALID_JSON":
		problemType = TypeValidation
	case "NOT_FOUND", "SOURCE_NOT_FOUND", "AGGREGATED_TABLE_NOT_FOUND":
		problemType = TypeNotFound
	case "SCHEMA_MISMATCH":
		problemType = TypeSchemaMismatch
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(apiErr.StatusCode, problemType, http.StatusText(apiErr.StatusCode),
		apiErr.Message, r.URL.Path).WithExtension("error_code", apiErr.ErrorCode)
	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// plainToProblem sorts errors that carry no type of their own by their
// message. Storage drivers and the standard library produce most of
// these.
func plainToProblem(err error, instance string) *ProblemDetails {
	msg := err.Error()
	switch {
	case IsSchemaMismatch(err):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeSchemaMismatch, "Schema Mismatch", msg, instance)

	case strings.Contains(msg, "not found"):
		return NewProblemDetails(http.StatusNotFound, TypeNotFound, "Resource Not Found", msg, instance)

	case strings.Contains(msg, "rate limit"):
		return NewProblemDetails(http.StatusTooManyRequests, TypeRateLimit, "Rate Limit Exceeded",
			"Too many requests. Please try again later.", instance).WithExtension("retry_after", 60)

	default:
		return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
			"An unexpected error occurred while processing your request", instance)
	}
}

// HandlePanic reports a recovered panic as an opaque 500. The stack
// always reaches the log and reaches the response only in development.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := infrastructure.GetTraceID(r.Context())
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered), slog.String("request_id", reqID),
		slog.String("method", r.Method), slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())))

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred", r.URL.Path).WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", string(debug.Stack()))
	}

	render.Render(w, r, problem)
}

// NotFound answers unmatched routes; wired into the chi router.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found", r.URL.Path).
		WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed answers wrong-verb requests; wired into the chi
// router.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(http.StatusMethodNotAllowed, TypeInternal, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method), r.URL.Path).
		WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))

	render.Render(w, r, problem)
}

// Middleware recovers panics and logs every error status that passes
// through, including ones handlers wrote directly.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &errorResponseWriter{ResponseWriter: w, handler: h, request: r}

		defer func() {
			if rec := recover(); rec != nil {
				h.HandlePanic(ww, r, rec)
			}
		}()

		next.ServeHTTP(ww, r)
	})
}

// errorResponseWriter notes the first status written so error replies
// get a log line even when a handler bypassed HandleError.
type errorResponseWriter struct {
	http.ResponseWriter
	handler *ErrorHandler
	request *http.Request
	written bool
}

func (w *errorResponseWriter) WriteHeader(status int) {
	if w.written {
		return
	}
	w.written = true

	if status >= http.StatusBadRequest {
		w.handler.logger.WarnContext(w.request.Context(), "error response",
			slog.Int("status", status), slog.String("method", w.request.Method),
			slog.String("path", w.request.URL.Path))
	}

	w.ResponseWriter.WriteHeader(status)
}

func (w *errorResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
