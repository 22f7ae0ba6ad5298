package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// WebhookSecretHeader carries the shared secret form vendors attach to
// response event deliveries.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookAuth verifies the shared webhook secret on response event
// deliveries. An empty configured secret disables the check, which is
// the development default.
func WebhookAuth(secret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get(WebhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				logger.WarnContext(r.Context(), "webhook secret mismatch",
					"method", r.Method, "path", r.URL.Path,
					"remote_addr", r.RemoteAddr, "secret_present", presented != "")

				writeProblem(w, r, http.StatusUnauthorized, "/errors/unauthorized",
					"Unauthorized", "Missing or invalid webhook secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditLog records one entry before and one after each state-changing
// request. Aggregation and export calls rewrite stored artifacts, so
// every trigger leaves a trail naming its origin.
func AuditLog(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger.InfoContext(ctx, "audit log",
				"event_type", "api_access",
				"method", r.Method, "path", r.URL.Path,
				"query", r.URL.Query().Encode(),
				"remote_addr", r.RemoteAddr, "user_agent", r.UserAgent())

			next.ServeHTTP(ww, r)

			logger.InfoContext(ctx, "audit log complete",
				"event_type", "api_response",
				"method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "duration", time.Since(start).String())
		})
	}
}
