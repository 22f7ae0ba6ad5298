package testutil

import (
	"fmt"
	"testing"

	"surveycli/pkg/contracts/domain"
)

// UTF8BOM is the byte order mark expected at the start of exported CSV
// artifacts.
var UTF8BOM = []byte{0xEF, 0xBB, 0xBF}

// ResponsesGrid returns a small raw survey grid in source order. The
// first row is the header row; values mirror a typical form export with
// a timestamp column, two answer columns and a free-text column.
func ResponsesGrid() [][]string {
	return [][]string{
		{"Timestamp", "How satisfied are you?", "Would you recommend us?", "Comments"},
		{"2025-06-01 09:15:02", "Very satisfied", "Yes", "Great course"},
		{"2025-06-01 09:18:40", "Satisfied", "Yes", ""},
		{"2025-06-01 09:22:11", "Very satisfied", "No", "Too fast"},
		{"2025-06-02 10:01:57", "Neutral", "Yes", ""},
		{"2025-06-02 10:05:33", "Very satisfied", "Yes", "Loved it"},
		{"2025-06-03 11:45:09", "Satisfied", "", ""},
	}
}

// ResponsesTable returns ResponsesGrid parsed into a domain Table,
// failing the test on construction errors.
func ResponsesTable(t *testing.T) domain.Table {
	t.Helper()

	table, err := domain.NewTable(ResponsesGrid())
	if err != nil {
		t.Fatalf("building fixture table: %v", err)
	}
	return table
}

// DefaultPolicy returns the projection policy the fixtures are written
// against: the timestamp column is dropped and the question columns are
// renamed to short report labels.
func DefaultPolicy() domain.ColumnPolicy {
	return domain.ColumnPolicy{
		Exclude: []string{"Timestamp"},
		Rename: map[string]string{
			"How satisfied are you?":  "satisfaction",
			"Would you recommend us?": "recommend",
			"Comments":                "comments",
		},
	}
}

// NumericGrid returns a grid with a numeric answer column, used by the
// summary statistics tests.
func NumericGrid() [][]string {
	return [][]string{
		{"respondent", "score"},
		{"r1", "4"},
		{"r2", "5"},
		{"r3", "3"},
		{"r4", "5"},
		{"r5", "4"},
		{"r6", ""},
	}
}

// MultiselectGrid returns a grid whose answer column holds delimited
// multi-select values, including full-width delimiters.
func MultiselectGrid() [][]string {
	return [][]string{
		{"respondent", "channels"},
		{"r1", "Email、SNS"},
		{"r2", "Email"},
		{"r3", "SNS; Search"},
		{"r4", "Email，Search"},
		{"r5", ""},
	}
}

// GridDiff returns a readable description of the first difference
// between two grids, or the empty string when they are equal.
func GridDiff(want, got [][]string) string {
	if len(want) != len(got) {
		return fmt.Sprintf("row count mismatch: want %d, got %d", len(want), len(got))
	}
	for i := range want {
		if len(want[i]) != len(got[i]) {
			return fmt.Sprintf("row %d length mismatch: want %d, got %d", i, len(want[i]), len(got[i]))
		}
		for j := range want[i] {
			if want[i][j] != got[i][j] {
				return fmt.Sprintf("cell [%d][%d] mismatch: want %q, got %q", i, j, want[i][j], got[i][j])
			}
		}
	}
	return ""
}
