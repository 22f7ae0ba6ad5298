package domain

// FrequencyEntry is one ranked value in a column's frequency distribution.
// Percentage is the entry's share of the column's non-empty cells, rounded to
// one decimal place.
type FrequencyEntry struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// FrequencyDistribution is the ordered value ranking for one column: count
// descending, ties broken by first appearance in the data. Empty-string cells
// are excluded from both the entries and the percentage denominator.
type FrequencyDistribution []FrequencyEntry

// Total returns the summed count across all entries.
func (d FrequencyDistribution) Total() int {
	total := 0
	for _, e := range d {
		total += e.Count
	}
	return total
}

// NumericSummary holds descriptive statistics for a column whose non-empty
// cells all parse as numbers.
type NumericSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
}
