package services

import "errors"

// ErrUnknownReportFormat reports a format selection outside json, text,
// markdown and html. Handlers and the report CLI both branch on it.
var ErrUnknownReportFormat = errors.New("unknown report format")
