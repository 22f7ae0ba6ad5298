package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails is the RFC 7807 body every API error renders to.
// Extension members live in Extensions and are flattened into the
// top-level object on marshal.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// NewProblemDetails builds a problem document with an empty extension set.
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type: problemType, Title: title, Status: status,
		Detail: detail, Instance: instance,
		Extensions: map[string]interface{}{},
	}
}

// WithExtension sets an extension member and returns pd for chaining.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// Render reports the document's own status to the render stack.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens Extensions next to the standard members, which
// is where RFC 7807 expects extension fields on the wire.
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	doc := map[string]interface{}{
		"type":   pd.Type,
		"title":  pd.Title,
		"status": pd.Status,
	}
	if pd.Detail != "" {
		doc["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		doc["instance"] = pd.Instance
	}
	maps.Copy(doc, pd.Extensions)
	return json.Marshal(doc)
}

// MapPipelineError turns an aggregation pipeline failure into the
// problem document handlers answer with. EmptySource never reaches
// here: it is non-fatal and handlers report it as a successful
// zero-row run.
func MapPipelineError(err error, traceID string) render.Renderer {
	instance := fmt.Sprintf("/api/v1#trace-%s", traceID)

	status, typ, title := http.StatusInternalServerError, "/errors/internal-error", "Internal Server Error"
	detail := "An unexpected error occurred while processing your request."
	code := "INTERNAL_ERROR"

	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		class, ok := appProblems[appErr.Type]
		if !ok {
			break
		}
		status, typ, title = class.status, class.typ, class.title
		code = string(appErr.Type)
		switch appErr.Type {
		case ErrTypeSchemaMismatch:
			// The wrapped cause names the offending row
			detail = appErr.Error()
		case ErrTypeAggregatedTableNotFound:
			detail = "No aggregation run has succeeded yet. Run aggregation before requesting exports or reports."
		default:
			detail = appErr.Message
		}
	case IsSchemaMismatch(err):
		status, typ, title = http.StatusUnprocessableEntity, TypeSchemaMismatch, "Schema Mismatch"
		detail = err.Error()
		code = string(ErrTypeSchemaMismatch)
	}

	return NewProblemDetails(status, typ, title, detail, instance).
		WithExtension("trace_id", traceID).WithExtension("error_code", code)
}
