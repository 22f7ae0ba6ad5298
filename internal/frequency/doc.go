// Package frequency computes per-column value distributions for aggregated
// survey tables.
//
// For every column the analyzer counts distinct non-empty values, ranks them
// count descending with ties broken by first appearance, truncates to the
// requested top N, and expresses each count as a percentage of the column's
// non-empty cells rounded to one decimal place.
//
// Columns configured as multiselect have each cell split on the survey
// platforms' answer delimiters before counting; the percentage denominator
// stays the respondent count, so multiselect percentages may sum past 100.
//
// Columns whose non-empty cells all parse as numbers additionally get a
// NumericSummary with mean, standard deviation, extremes and quartiles.
package frequency
