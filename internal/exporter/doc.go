// Package exporter turns aggregated survey tables into portable CSV
// artifacts.
//
// This package contains two main components:
//
// Serialize: renders a table as one CSV document with a UTF-8 BOM prefix
// for spreadsheet compatibility, RFC 4180 quoting, and a choice of LF or
// CRLF line endings.
//
// Controller: reads the aggregated table from storage, serializes it, and
// persists the bytes as a timestamped artifact. Each Export call creates a
// new file; earlier artifacts stay in place.
//
// Example usage:
//
//	ctrl := exporter.NewController(store, sink, exporter.Options{
//		OutputName: "aggregate",
//		BaseName:   "aggregate",
//		Serialize:  exporter.DefaultSerializeOptions(),
//	}, logger)
//
//	result, err := ctrl.Export(ctx)
package exporter
