package errors

import (
	"errors"
	"fmt"

	"surveycli/pkg/contracts/domain"
)

// ErrorType classifies pipeline failures. The values double as the
// error_code member of rendered problem documents.
type ErrorType string

const (
	ErrTypeSourceNotFound          ErrorType = "SOURCE_NOT_FOUND"
	ErrTypeEmptySource             ErrorType = "EMPTY_SOURCE"
	ErrTypeSchemaMismatch          ErrorType = "SCHEMA_MISMATCH"
	ErrTypeAggregatedTableNotFound ErrorType = "AGGREGATED_TABLE_NOT_FOUND"
	ErrTypeStorage                 ErrorType = "STORAGE"
	ErrTypeParsing                 ErrorType = "PARSING"
	ErrTypeValidation              ErrorType = "VALIDATION"
	ErrTypeNotFound                ErrorType = "NOT_FOUND"
	ErrTypeConfig                  ErrorType = "CONFIG"
)

// AppError is the error the pipeline raises. Type drives the HTTP
// mapping; Context carries structured attributes for logs and problem
// extensions.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error renders as "[TYPE] message", with the cause appended when
// one is set.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a structured attribute and returns e for
// chaining.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError builds an AppError with an empty context map.
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewSourceNotFoundError reports a configured source table that does not
// exist in the storage backend. Fatal: the run aborts.
func NewSourceNotFoundError(name string) *AppError {
	return NewAppError(ErrTypeSourceNotFound,
		fmt.Sprintf("source table %q not found", name), nil).
		WithContext("source", name)
}

// NewEmptySourceError reports a source with a header row but no data rows.
// The condition is non-fatal: aggregation completes with zero rows and a
// warning instead of surfacing this error.
func NewEmptySourceError(name string) *AppError {
	return NewAppError(ErrTypeEmptySource,
		fmt.Sprintf("source table %q has headers but no data rows", name), nil).
		WithContext("source", name)
}

// NewSchemaMismatchError reports a row whose cell count disagrees with the
// header count. Fatal for the run; nothing is written.
func NewSchemaMismatchError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSchemaMismatch, message, cause)
}

// NewAggregatedTableNotFoundError reports an export or report requested
// before any aggregation run has persisted the output table.
func NewAggregatedTableNotFoundError(name string) *AppError {
	return NewAppError(ErrTypeAggregatedTableNotFound,
		fmt.Sprintf("aggregated table %q not found; run aggregation first", name), nil).
		WithContext("output", name)
}

// NewStorageError wraps a failure from the storage backend. Fatal for
// the run.
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewParsingError wraps a workbook or CSV decode failure.
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewAppValidationError reports invalid input caught outside the HTTP
// layer, such as CLI flag values.
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError reports a missing resource other than the source and
// aggregate tables, which have their own constructors.
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError reports unusable configuration discovered at startup.
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

func errorType(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsSourceNotFound reports whether err is a missing-source failure.
func IsSourceNotFound(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeSourceNotFound
}

// IsEmptySource reports whether err is the non-fatal empty-source condition.
func IsEmptySource(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeEmptySource
}

// IsSchemaMismatch reports whether err is a row-alignment failure, whether
// wrapped as an AppError or raised directly by the domain layer.
func IsSchemaMismatch(err error) bool {
	if t, ok := errorType(err); ok && t == ErrTypeSchemaMismatch {
		return true
	}
	return errors.Is(err, domain.ErrSchemaMismatch)
}

// IsAggregatedTableNotFound reports whether err signals that no aggregation
// run has succeeded yet.
func IsAggregatedTableNotFound(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeAggregatedTableNotFound
}
