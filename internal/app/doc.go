// Package app wires the survey aggregation service together and runs
// it. It owns the lifecycle: configuration is read, the storage backend
// opened, services constructed, the chi router assembled, and the HTTP
// server started and later drained, all from this package.
//
// # Startup
//
// NewApplication performs the whole assembly in order:
//
//	1. Read configuration (environment first, then config.yaml)
//	2. Install the structured logger and OpenTelemetry providers
//	3. Open the storage backend named by the config (memory, workbook,
//	   Google Sheets or Postgres)
//	4. Load the survey policy and build the aggregation pipeline
//	5. Construct the survey and health services
//	6. Assemble the router and its middleware chains
//
// Every step returns an error instead of exiting, so main decides how
// failures are reported.
//
// # Serving
//
// Run starts the HTTP server and blocks until SIGINT or SIGTERM. On
// shutdown the server drains in-flight requests within the configured
// timeout, then the storage backend is closed and telemetry flushed.
//
//	app, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Routing
//
// API routes live under /api/v1. The webhook route carries guards the
// read-only report and export routes do not need: delivery logging,
// content-type and payload validation, optional shared-secret auth and
// rate limiting. Unmatched paths and wrong verbs answer with RFC 7807
// problem documents like every other error in the API.
package app
