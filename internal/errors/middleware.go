package errors

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"surveycli/internal/infrastructure"
)

// maxCapturedBody bounds how much of a delivery body is retained for
// logging. Form platforms send one response per event, well under this.
const maxCapturedBody = 64 * 1024

// DeliveryLog records failed webhook deliveries together with a
// sanitized copy of the event body. The general request log never sees
// bodies, and a delivery rejected by validation, auth or rate limiting
// is exactly the case where the payload is needed to debug the form
// platform's retry loop.
type DeliveryLog struct {
	handler *ErrorHandler
	logger  *slog.Logger
}

// NewDeliveryLog creates the delivery logging middleware for the
// response webhook route.
func NewDeliveryLog(handler *ErrorHandler, logger *slog.Logger) *DeliveryLog {
	return &DeliveryLog{
		handler: handler,
		logger:  logger.With(slog.String("component", "delivery_log")),
	}
}

// Handler wraps the webhook route. It sits outside the guard chain so
// deliveries the guards reject are captured too.
func (d *DeliveryLog) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && r.ContentLength > 0 && r.ContentLength <= maxCapturedBody {
			body, _ = io.ReadAll(io.LimitReader(r.Body, maxCapturedBody))
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			if rec := recover(); rec != nil {
				d.handler.HandlePanic(ww, r, rec)
			}
		}()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status < http.StatusBadRequest {
			return
		}

		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("request_id", infrastructure.GetTraceID(r.Context())),
		}
		if len(body) > 0 {
			attrs = append(attrs, slog.String("event_body", SanitizeEventBody(body)))
		}

		d.logger.LogAttrs(r.Context(), level, "webhook delivery rejected", attrs...)
	})
}

// SanitizeEventBody redacts respondent PII and credentials from a
// delivery payload before it reaches the log. Non-JSON bodies pass
// through with only truncation.
func SanitizeEventBody(body []byte) string {
	var event map[string]interface{}
	if err := json.Unmarshal(body, &event); err == nil {
		for _, field := range []string{
			"respondent_id", "email", "phone",
			"password", "token", "secret", "api_key",
			"answers",
		} {
			if _, ok := event[field]; ok {
				event[field] = "[REDACTED]"
			}
		}
		if clean, err := json.Marshal(event); err == nil {
			body = clean
		}
	}

	const logLimit = 500
	if len(body) > logLimit {
		return string(body[:logLimit]) + "..."
	}
	return string(body)
}
