package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"surveycli/pkg/contracts/domain"
)

func TestFormatAudit(t *testing.T) {
	report := domain.AuditReport{
		Table:         "aggregate",
		RowCount:      6,
		ColumnCount:   3,
		DuplicateRows: 1,
		GeneratedAt:   time.Date(2025, 7, 1, 12, 30, 0, 0, time.UTC),
		Columns: []domain.ColumnAudit{
			{Header: "q1_overall", NonEmpty: 6, Completeness: 100.0, Distinct: 3},
			{Header: "respondent_id", NonEmpty: 6, Completeness: 100.0, Distinct: 6, HighCardinality: true},
			{Header: "wave", NonEmpty: 5, Completeness: 83.3, Distinct: 1, Constant: true},
		},
	}

	got := formatAudit(report)

	assert.Contains(t, got, "Audit: aggregate")
	assert.Contains(t, got, "Rows: 6  Columns: 3  Duplicate rows: 1")
	assert.Contains(t, got, "Generated: 2025-07-01 12:30:00")
	assert.Contains(t, got, "q1_overall")
	assert.Contains(t, got, "high-cardinality")
	assert.Contains(t, got, "constant")
	assert.Contains(t, got, "83.3%")
}

func TestColumnFlags(t *testing.T) {
	tests := []struct {
		name string
		col  domain.ColumnAudit
		want string
	}{
		{name: "no flags", col: domain.ColumnAudit{}, want: ""},
		{name: "constant only", col: domain.ColumnAudit{Constant: true}, want: "constant"},
		{name: "high cardinality only", col: domain.ColumnAudit{HighCardinality: true}, want: "high-cardinality"},
		{
			name: "both joined",
			col:  domain.ColumnAudit{Constant: true, HighCardinality: true},
			want: "constant, high-cardinality",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, columnFlags(tt.col))
		})
	}
}
