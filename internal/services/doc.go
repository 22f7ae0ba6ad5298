// Package services is the seam between the HTTP handlers and the
// aggregation machinery. Handlers decode and validate requests; the
// services decide what each operation means and drive the pipeline and
// storage packages to make it happen.
//
// SurveyService carries the five pipeline operations over one shared
// storage backend, appending to the audit trail on every mutating run.
// HealthService answers the probes from the same backend so readiness
// reflects what the pipeline would actually see.
//
// # Run Serialization
//
// The aggregation pipeline executes run-to-completion with no internal
// locking. SurveyService owns the mutual exclusion: Aggregate and
// OnNewResponse share one mutex, so overlapping triggers queue rather
// than interleave. Read operations bypass the lock and observe whatever
// aggregate snapshot storage currently holds.
//
// Failures surface as typed errors from the errors package; handlers
// map them onto problem documents rather than inventing status codes
// here.
package services
