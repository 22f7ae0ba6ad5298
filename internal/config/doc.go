// Package config provides centralized configuration management for the
// survey aggregation service. It handles loading configuration from multiple
// sources, validation, and provides a type-safe API for accessing
// configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// Defaults are materialized first, the YAML file is overlaid on top, and
// environment processing runs last so that only variables actually set in
// the environment override file values.
//
// # Environment Variables
//
// All environment variables follow the pattern SURVEY_* for namespacing:
//
//	SURVEY_HTTP_PORT=8080
//	SURVEY_SOURCE_NAME=responses
//	SURVEY_OUTPUT_NAME=aggregate
//	SURVEY_STORAGE_BACKEND=xlsx
//	SURVEY_POLICY_EXCLUDE=Timestamp,Email
//	SURVEY_REPORT_TOP_N=5
//	SURVEY_LOGGING_LEVEL=info
//
// # Column Policy
//
// The projection policy (columns to exclude, headers to rename) can be
// declared inline under the policy section or in a standalone YAML file:
//
//	policy:
//	  exclude: [Timestamp]
//	  rename:
//	    "How satisfied are you?": satisfaction
//
// LoadPolicy resolves the effective policy, preferring the external file
// when policy.file is set.
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which handles all file system paths relative to the executable location:
//
//	paths, err := config.GetPaths()
//	exportPath := paths.GetExportPath("aggregate_20250101.csv")
//	reportPath := paths.GetReportPath("stats.md")
//
// # Validation
//
// All configuration is validated at load time. Validate collects every
// problem it finds (tag violations, backend settings missing for the
// selected storage backend, source and output naming the same table) and
// reports them in a single error.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
