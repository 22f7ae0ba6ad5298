package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveycli/pkg/contracts/domain"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{
			name:     "source not found error type",
			errType:  ErrTypeSourceNotFound,
			expected: "SOURCE_NOT_FOUND",
		},
		{
			name:     "empty source error type",
			errType:  ErrTypeEmptySource,
			expected: "EMPTY_SOURCE",
		},
		{
			name:     "schema mismatch error type",
			errType:  ErrTypeSchemaMismatch,
			expected: "SCHEMA_MISMATCH",
		},
		{
			name:     "aggregated table not found error type",
			errType:  ErrTypeAggregatedTableNotFound,
			expected: "AGGREGATED_TABLE_NOT_FOUND",
		},
		{
			name:     "storage error type",
			errType:  ErrTypeStorage,
			expected: "STORAGE",
		},
		{
			name:     "parsing error type",
			errType:  ErrTypeParsing,
			expected: "PARSING",
		},
		{
			name:     "validation error type",
			errType:  ErrTypeValidation,
			expected: "VALIDATION",
		},
		{
			name:     "not found error type",
			errType:  ErrTypeNotFound,
			expected: "NOT_FOUND",
		},
		{
			name:     "config error type",
			errType:  ErrTypeConfig,
			expected: "CONFIG",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeSourceNotFound,
				Message: "source table \"Responses\" not found",
				Cause:   nil,
			},
			wantMessage: "[SOURCE_NOT_FOUND] source table \"Responses\" not found",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeStorage,
				Message: "writing aggregated table",
				Cause:   fmt.Errorf("disk full"),
			},
			wantMessage: "[STORAGE] writing aggregated table: disk full",
		},
		{
			name: "error with empty message",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "",
				Cause:   nil,
			},
			wantMessage: "[VALIDATION] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("original error")
	withCause := NewStorageError("write failed", cause)
	assert.Equal(t, cause, withCause.Unwrap())
	assert.True(t, errors.Is(withCause, cause))

	withoutCause := NewAppValidationError("bad input")
	assert.Nil(t, withoutCause.Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	err := NewStorageError("write failed", nil).
		WithContext("table", "Aggregated").
		WithContext("rows", 42)

	assert.Equal(t, "Aggregated", err.Context["table"])
	assert.Equal(t, 42, err.Context["rows"])
}

func TestDomainErrorConstructors(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantType    ErrorType
		wantMessage string
		contextKey  string
	}{
		{
			name:        "source not found",
			err:         NewSourceNotFoundError("Form Responses"),
			wantType:    ErrTypeSourceNotFound,
			wantMessage: `source table "Form Responses" not found`,
			contextKey:  "source",
		},
		{
			name:        "empty source",
			err:         NewEmptySourceError("Form Responses"),
			wantType:    ErrTypeEmptySource,
			wantMessage: `source table "Form Responses" has headers but no data rows`,
			contextKey:  "source",
		},
		{
			name:        "aggregated table not found",
			err:         NewAggregatedTableNotFoundError("Aggregated"),
			wantType:    ErrTypeAggregatedTableNotFound,
			wantMessage: `aggregated table "Aggregated" not found; run aggregation first`,
			contextKey:  "output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMessage, tt.err.Message)
			assert.Contains(t, tt.err.Context, tt.contextKey)
		})
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("report artifact")

	assert.Equal(t, ErrTypeNotFound, err.Type)
	assert.Equal(t, "report artifact not found", err.Message)
	assert.Nil(t, err.Cause)
}

func TestClassificationHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		matcher func(error) bool
		want    bool
	}{
		{
			name:    "source not found matches",
			err:     NewSourceNotFoundError("x"),
			matcher: IsSourceNotFound,
			want:    true,
		},
		{
			name:    "wrapped source not found matches",
			err:     fmt.Errorf("run failed: %w", NewSourceNotFoundError("x")),
			matcher: IsSourceNotFound,
			want:    true,
		},
		{
			name:    "empty source matches",
			err:     NewEmptySourceError("x"),
			matcher: IsEmptySource,
			want:    true,
		},
		{
			name:    "empty source does not match source not found",
			err:     NewEmptySourceError("x"),
			matcher: IsSourceNotFound,
			want:    false,
		},
		{
			name:    "schema mismatch app error matches",
			err:     NewSchemaMismatchError("projecting table", nil),
			matcher: IsSchemaMismatch,
			want:    true,
		},
		{
			name:    "raw domain schema error matches",
			err:     fmt.Errorf("%w: row 3", domain.ErrSchemaMismatch),
			matcher: IsSchemaMismatch,
			want:    true,
		},
		{
			name:    "aggregated table not found matches",
			err:     NewAggregatedTableNotFoundError("out"),
			matcher: IsAggregatedTableNotFound,
			want:    true,
		},
		{
			name:    "plain error matches nothing",
			err:     errors.New("boom"),
			matcher: IsSourceNotFound,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.matcher(tt.err))
		})
	}
}
