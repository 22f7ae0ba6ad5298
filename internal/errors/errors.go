// Package errors defines the error taxonomy shared by the aggregation
// pipeline and the HTTP API: AppError for domain failures, APIError for
// wire responses and RFC 7807 problem details for the render stack.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the wire form of a failed request: an HTTP status, a
// stable machine-readable code and a human-readable message. Clients
// match on ErrorCode; messages may change between releases.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error returns the message so an APIError travels as a plain error.
func (e *APIError) Error() string {
	return e.Message
}

// Render sets the response status for chi's render pipeline.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// WithDetails returns a copy of the error carrying details. The
// receiver is left untouched so shared sentinels never accumulate
// request state.
func (e *APIError) WithDetails(details interface{}) *APIError {
	clone := *e
	clone.Details = details
	return &clone
}

// New builds an APIError without details.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// NewWithDetails builds an APIError carrying structured details.
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	err := New(statusCode, errorCode, message)
	err.Details = details
	return err
}

// Sentinels for the failures handlers report repeatedly.
var (
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")

	ErrNotFound          = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrSourceNotFound    = New(http.StatusNotFound, "SOURCE_NOT_FOUND", "Source table not found")
	ErrAggregateNotFound = New(http.StatusNotFound, "AGGREGATED_TABLE_NOT_FOUND", "Aggregated table not found; run aggregation first")

	ErrSchemaMismatchAPI = New(http.StatusUnprocessableEntity, "SCHEMA_MISMATCH", "Row width disagrees with header count")

	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	ErrInternalServer     = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
)

// ValidationError reports one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every rejected field of one request, so a
// client can fix the whole payload in a single round trip.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// PanicRecovery is the detail payload for a recovered panic.
type PanicRecovery struct {
	Message string `json:"message"`
}

// ErrValidation rejects a single field.
func ErrValidation(field, message string) *APIError {
	return ErrValidationFailed.WithDetails(ValidationError{Field: field, Message: message})
}

// NewValidationErrors rejects a request over several fields at once.
func NewValidationErrors(fields []ValidationError) *APIError {
	return ErrValidationFailed.WithDetails(ValidationErrors{Errors: fields})
}

// InvalidRequestWithError attaches the decode failure to the standard
// invalid-request error.
func InvalidRequestWithError(err error) *APIError {
	return ErrInvalidRequest.WithDetails(err.Error())
}

// NotFoundError reports a missing resource by name. The name rides in
// Details so clients can tell which lookup failed.
func NotFoundError(resource string) *APIError {
	err := New(http.StatusNotFound, "NOT_FOUND", resource+" not found")
	err.Details = resource
	return err
}

// ErrPanic converts a recovered panic value into a response-safe error.
// The stack stays in the log; only the panic message leaves the process.
func ErrPanic(rec interface{}) *APIError {
	return ErrInternalServer.WithDetails(PanicRecovery{Message: fmt.Sprintf("%v", rec)})
}

// ErrorResponse is the envelope for endpoints that answer outside the
// problem-details pipeline.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse wraps err in the standard envelope.
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: err}
}

// Render sets the envelope's status from the wrapped error.
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// WriteError responds with the envelope directly, for code paths that
// run before or outside the render stack.
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(err))
}
