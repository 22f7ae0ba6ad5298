// Package storage defines the capability interfaces the pipeline reads
// tables through and writes tables and artifacts through, plus the adapters
// implementing them.
//
// # Interfaces
//
// Three narrow capabilities keep the core independent of any backend:
//
//	TableSource  ReadTable(ctx, name)        - fetch one named table
//	TableSink    WriteTable(ctx, name, tbl)  - replace one named table wholesale
//	FileSink     WriteFile(ctx, name, data)  - persist one artifact, return its locator
//
// A missing table surfaces as a SourceNotFound application error so callers
// can distinguish "aggregate first" from backend failures.
//
// # Adapters
//
// Four TableStore backends are selected by storage.backend:
//
//	memory    process-local map, the test and development default
//	xlsx      one workbook file, a sheet per table (excelize)
//	sheets    one Google spreadsheet, a tab per table (Sheets API)
//	postgres  snapshot table, one row per table name with JSON cells (sqlx)
//
// Each write is all-or-nothing within its backend's limits: memory swaps
// under a lock, xlsx saves to a temp file and renames over the target,
// postgres upserts inside a transaction. The sheets adapter clears then
// updates in two API calls; a reader between them sees an empty tab.
//
// Artifacts (CSV exports, markdown reports) go through DirectoryFileSink,
// which writes into a flat local directory.
package storage
