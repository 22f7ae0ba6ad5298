package domain

import "time"

// StatsReport is the per-column frequency summary of the aggregated table,
// columns in header order.
type StatsReport struct {
	Table       string        `json:"table"`
	RowCount    int           `json:"row_count"`
	ColumnCount int           `json:"column_count"`
	TopN        int           `json:"top_n"`
	GeneratedAt time.Time     `json:"generated_at"`
	Columns     []ColumnStats `json:"columns"`
}

// ColumnStats carries one column's ranked distribution plus the optional
// extras: a NumericSummary when every non-empty cell parses as a number, and
// the multiselect flag when the column was counted per split answer.
type ColumnStats struct {
	Header       string                `json:"header"`
	NonEmpty     int                   `json:"non_empty"`
	Distribution FrequencyDistribution `json:"distribution"`
	Numeric      *NumericSummary       `json:"numeric,omitempty"`
	Multiselect  bool                  `json:"multiselect,omitempty"`
}

// AuditReport is the dataset-quality summary of the aggregated table.
type AuditReport struct {
	Table         string        `json:"table"`
	RowCount      int           `json:"row_count"`
	ColumnCount   int           `json:"column_count"`
	DuplicateRows int           `json:"duplicate_rows"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Columns       []ColumnAudit `json:"columns"`
}

// ColumnAudit flags data-quality signals for one column. Completeness is the
// non-empty share of all rows as a percentage, one decimal place. Constant
// means exactly one distinct non-empty value. HighCardinality means the
// distinct count exceeds 80% of the non-empty count with at least 10 distinct
// values, the usual signature of free-text or identifier columns.
type ColumnAudit struct {
	Header          string  `json:"header"`
	NonEmpty        int     `json:"non_empty"`
	Completeness    float64 `json:"completeness"`
	Distinct        int     `json:"distinct"`
	Constant        bool    `json:"constant"`
	HighCardinality bool    `json:"high_cardinality"`
}
