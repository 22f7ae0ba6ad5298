package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "surveycli/internal/errors"
	"surveycli/internal/shared/testutil"
	api "surveycli/pkg/contracts/api/v1"
)

func newValidationMiddleware(t *testing.T) *ValidationMiddleware {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false))
}

func TestValidateRequest_PassesValidJSON(t *testing.T) {
	m := newValidationMiddleware(t)

	var seenBody string
	handler := m.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		seenBody = string(buf)
	}))

	body := `{"form_id":"fm-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/responses", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, seenBody, "body must be restored for the handler")
}

func TestValidateRequest_RejectsInvalidJSON(t *testing.T) {
	m := newValidationMiddleware(t)
	handler := m.ValidateRequest(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/responses", strings.NewReader(`{"form_id":`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_JSON")
}

func TestValidateRequest_RejectsOversizedBody(t *testing.T) {
	m := newValidationMiddleware(t)
	handler := m.ValidateRequest(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/responses", strings.NewReader("{}"))
	req.ContentLength = 2 * 1024 * 1024
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")
}

func TestValidateRequest_SkipsGET(t *testing.T) {
	m := newValidationMiddleware(t)
	handler := m.ValidateRequest(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateStruct(t *testing.T) {
	m := newValidationMiddleware(t)

	tests := []struct {
		name    string
		input   interface{}
		wantErr string
	}{
		{
			name:  "valid report query",
			input: &api.ReportQuery{TopN: 5, Format: "json"},
		},
		{
			name:    "top_n too large",
			input:   &api.ReportQuery{TopN: 500, Format: "json"},
			wantErr: "top_n must be at most 100",
		},
		{
			name:    "unknown format",
			input:   &api.ReportQuery{TopN: 5, Format: "pdf"},
			wantErr: "format must be one of: json, text, markdown, html",
		},
		{
			name:    "bad timestamp",
			input:   &api.ResponseEvent{FormID: "fm-1", SubmittedAt: "yesterday"},
			wantErr: "submitted_at must be a valid RFC 3339 timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateStruct(tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

			details, ok := apiErr.Details.(apierrors.ValidationErrors)
			require.True(t, ok)
			require.NotEmpty(t, details.Errors)
			assert.Equal(t, tt.wantErr, details.Errors[0].Message)
		})
	}
}

func TestContentTypeValidator(t *testing.T) {
	handler := ContentTypeValidator("application/json")(okHandler())

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{"json accepted", http.MethodPost, "application/json", "{}", http.StatusOK},
		{"json with charset accepted", http.MethodPost, "application/json; charset=utf-8", "{}", http.StatusOK},
		{"xml rejected", http.MethodPost, "text/xml", "<a/>", http.StatusUnsupportedMediaType},
		{"missing content type rejected", http.MethodPost, "", "{}", http.StatusBadRequest},
		{"empty body needs no content type", http.MethodPost, "", "", http.StatusOK},
		{"GET skipped", http.MethodGet, "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/responses", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestQueryParamValidator_ValidateInt(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	tests := []struct {
		name      string
		query     string
		want      int
		wantOK    bool
		wantInMsg string
	}{
		{"missing uses default", "", 5, true, ""},
		{"valid value", "top_n=10", 10, true, ""},
		{"lower bound", "top_n=1", 1, true, ""},
		{"upper bound", "top_n=100", 100, true, ""},
		{"below minimum", "top_n=0", 0, false, "top_n must be between 1 and 100"},
		{"above maximum", "top_n=250", 0, false, "top_n must be between 1 and 100"},
		{"not a number", "top_n=many", 0, false, "top_n must be a valid integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/report?"+tt.query, nil)
			rec := httptest.NewRecorder()

			got, ok := v.ValidateInt(rec, req, "top_n", 1, 100, 5)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantInMsg != "" {
				assert.Contains(t, rec.Body.String(), tt.wantInMsg)
			}
		})
	}
}

func TestQueryParamValidator_ValidateEnum(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))
	allowed := []string{"json", "text", "markdown", "html"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/report?format=markdown", nil)
	got, ok := v.ValidateEnum(httptest.NewRecorder(), req, "format", allowed, "json")
	assert.True(t, ok)
	assert.Equal(t, "markdown", got)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/report", nil)
	got, ok = v.ValidateEnum(httptest.NewRecorder(), req, "format", allowed, "json")
	assert.True(t, ok)
	assert.Equal(t, "json", got)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/report?format=pdf", nil)
	rec := httptest.NewRecorder()
	got, ok = v.ValidateEnum(rec, req, "format", allowed, "json")
	assert.False(t, ok)
	assert.Empty(t, got)
	assert.Contains(t, rec.Body.String(), "format must be one of: json, text, markdown, html")
}
