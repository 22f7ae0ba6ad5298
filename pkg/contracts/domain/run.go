package domain

import "time"

// RunSummary describes one aggregation run: what was read, what was written,
// and how much data flowed through.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Source      string        `json:"source"`
	Output      string        `json:"output"`
	RowCount    int           `json:"row_count"`
	ColumnCount int           `json:"column_count"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// ExportResult locates one CSV artifact created by an export call. Every call
// creates a new artifact; prior exports are never deleted by the pipeline.
type ExportResult struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
