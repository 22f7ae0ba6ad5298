package frequency

import (
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	"surveycli/pkg/contracts/domain"
)

// NumericSummarize returns descriptive statistics for the column when every
// non-empty cell parses as a number, nil otherwise. Cells are whitespace-
// trimmed before parsing; empty cells are skipped.
func NumericSummarize(cells []string) *domain.NumericSummary {
	data := make([]float64, 0, len(cells))
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return nil
		}
		data = append(data, v)
	}
	if len(data) == 0 {
		return nil
	}

	// A single observation is its own center and spread
	if len(data) == 1 {
		v := data[0]
		return &domain.NumericSummary{
			Count: 1, Mean: v, Min: v, Max: v, Median: v, Q1: v, Q3: v,
		}
	}

	summary := &domain.NumericSummary{Count: len(data)}
	var err error
	if summary.Mean, err = stats.Mean(data); err != nil {
		return nil
	}
	if summary.StdDev, err = stats.StandardDeviation(data); err != nil {
		return nil
	}
	if summary.Min, err = stats.Min(data); err != nil {
		return nil
	}
	if summary.Max, err = stats.Max(data); err != nil {
		return nil
	}

	quartiles, err := stats.Quartile(data)
	if err != nil {
		return nil
	}
	summary.Q1 = quartiles.Q1
	summary.Median = quartiles.Q2
	summary.Q3 = quartiles.Q3

	return summary
}
