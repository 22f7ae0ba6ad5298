// Package api contains API contract definitions for the survey aggregation
// service. Version v1 represents the current stable API version.
package api

// ResponseEvent is the webhook payload delivered when a new survey response
// arrives. The pipeline ignores everything except for logging; aggregation
// always recomputes from the full current dataset, so the event carries no
// row data.
type ResponseEvent struct {
	EventID     string `json:"event_id,omitempty"`
	FormID      string `json:"form_id,omitempty"`
	SubmittedAt string `json:"submitted_at,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// ReportQuery holds the query parameters of a stats-report request.
type ReportQuery struct {
	TopN   int    `json:"top_n" query:"top_n" validate:"omitempty,min=1,max=100"`
	Format string `json:"format" query:"format" validate:"omitempty,oneof=json text markdown html"`
}
