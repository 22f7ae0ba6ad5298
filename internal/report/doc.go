// Package report builds per-column statistics reports over the aggregated
// survey table.
//
// Reporter reads the aggregated table, ranks every column's values through
// the frequency analyzer, and returns a StatsReport. Renderers turn the
// report into plain text for terminals, markdown for persisted artifacts,
// and HTML for the web view; the JSON shape is the StatsReport contract
// itself. Reporting is read-only.
package report
