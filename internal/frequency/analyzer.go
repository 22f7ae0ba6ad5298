package frequency

import (
	"math"
	"sort"

	"surveycli/pkg/contracts/domain"
)

// Analyzer computes ranked value distributions for survey columns.
type Analyzer struct {
	multiselect map[string]struct{}
}

// NewAnalyzer creates an analyzer. Cells of columns whose header appears in
// multiselect are split into individual answers before counting.
func NewAnalyzer(multiselect []string) *Analyzer {
	set := make(map[string]struct{}, len(multiselect))
	for _, header := range multiselect {
		set[header] = struct{}{}
	}
	return &Analyzer{multiselect: set}
}

// Analyze returns each column's ranked distribution keyed by header. topN
// caps each distribution's length; zero or negative means unlimited.
func (a *Analyzer) Analyze(table domain.Table, topN int) map[string]domain.FrequencyDistribution {
	result := make(map[string]domain.FrequencyDistribution, len(table.Headers))
	for _, col := range a.AnalyzeColumns(table, topN) {
		result[col.Header] = col.Distribution
	}
	return result
}

// AnalyzeColumns returns per-column statistics in header order: the ranked
// distribution, the non-empty count, and a numeric summary when every
// non-empty cell parses as a number. Every call recomputes from scratch.
func (a *Analyzer) AnalyzeColumns(table domain.Table, topN int) []domain.ColumnStats {
	columns := make([]domain.ColumnStats, 0, len(table.Headers))
	for i, header := range table.Headers {
		columns = append(columns, a.analyzeColumn(header, table.Column(i), topN))
	}
	return columns
}

func (a *Analyzer) analyzeColumn(header string, cells []string, topN int) domain.ColumnStats {
	_, multiselect := a.multiselect[header]

	nonEmpty := 0
	values := make([]string, 0, len(cells))
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		nonEmpty++
		if multiselect {
			values = append(values, SplitAnswers(cell)...)
		} else {
			values = append(values, cell)
		}
	}

	col := domain.ColumnStats{
		Header:   header,
		NonEmpty: nonEmpty,
		// The denominator stays the respondent count even for multiselect
		// columns, so their percentages may sum past 100.
		Distribution: rank(values, nonEmpty, topN),
		Multiselect:  multiselect,
	}
	if !multiselect {
		col.Numeric = NumericSummarize(cells)
	}
	return col
}

// rank counts distinct values and orders them count descending, ties broken
// by first appearance. A column with no values yields an empty distribution.
func rank(values []string, denominator, topN int) domain.FrequencyDistribution {
	counts := make(map[string]int, len(values))
	order := make([]string, 0, len(values))
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if topN > 0 && len(order) > topN {
		order = order[:topN]
	}

	dist := make(domain.FrequencyDistribution, 0, len(order))
	for _, v := range order {
		dist = append(dist, domain.FrequencyEntry{
			Value:      v,
			Count:      counts[v],
			Percentage: percentage(counts[v], denominator),
		})
	}
	return dist
}

// percentage returns count's share of total as a percentage rounded to one
// decimal place.
func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}
