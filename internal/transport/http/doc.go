// Package http holds the HTTP handlers of the survey aggregation
// service. Handlers stay thin: they decode and validate the request,
// call a service method and shape the response. Aggregation, reporting
// and export logic all live behind the service layer.
//
// # Request Flow
//
// chi routes a request through the middleware chains assembled in the
// app package, then into a handler here, which calls into the survey or
// health service and renders whatever comes back:
//
//	router → middleware → handler → service → pipeline/storage
//
// # Responses
//
// Success bodies are JSON envelopes rendered with go-chi/render. The
// one exception is GET /api/v1/report: its format query parameter
// selects json, text, markdown or html, and the response carries the
// rendered document under its own content type.
//
// Errors are RFC 7807 problem documents:
//
//	{
//	    "type": "/errors/aggregated-table-not-found",
//	    "title": "Aggregated Table Not Found",
//	    "status": 404,
//	    "detail": "No aggregation run has succeeded yet. Run aggregation before requesting exports or reports.",
//	    "instance": "/api/v1#trace-6f1a",
//	    "error_code": "AGGREGATED_TABLE_NOT_FOUND",
//	    "trace_id": "6f1a"
//	}
//
// Domain failures map to problem types in the errors package; handlers
// never invent status codes inline.
//
// # Testing
//
// Handler tests run against httptest servers backed by the in-memory
// store, so they exercise the full decode, service and render path
// without touching disk.
package http
