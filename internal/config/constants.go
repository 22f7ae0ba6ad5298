package config

import "time"

// Application constants - hardcoded values shared across binaries
const (
	// Application Info
	AppName    = "Survey Pulse"
	AppVersion = "0.3.0"

	// Survey Tables
	DefaultSourceName = "responses"
	DefaultOutputName = "aggregate"

	// Reporting
	DefaultTopN = 5
	MaxTopN     = 100

	// Webhook Rate Limiting
	DefaultWebhookRPS   = 5.0
	DefaultWebhookBurst = 10

	// Network Timeouts
	DefaultHTTPTimeout = 30 * time.Second

	// File Paths (relative to executable)
	DefaultDataDir      = "data"
	DefaultLogsDir      = "logs"
	DefaultExportsDir   = "data/exports"
	DefaultReportsDir   = "data/reports"
	DefaultWorkbookFile = "data/survey.xlsx"

	// Export Artifacts
	DefaultExportBaseName = "aggregate"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// API Endpoints (internal)
const (
	APIBasePath       = "/api/v1"
	ResponsesEndpoint = "/api/v1/responses"
	AggregateEndpoint = "/api/v1/aggregate"
	ExportEndpoint    = "/api/v1/export"
	ReportEndpoint    = "/api/v1/report"
	AuditEndpoint     = "/api/v1/audit"
	HealthEndpoint    = "/api/v1/health"
	VersionEndpoint   = "/api/v1/version"
	MetricsEndpoint   = "/metrics"
)
