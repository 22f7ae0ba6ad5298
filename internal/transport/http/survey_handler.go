package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"surveycli/internal/config"
	apierrors "surveycli/internal/errors"
	"surveycli/internal/infrastructure"
	mw "surveycli/internal/middleware"
	"surveycli/internal/services"
	api "surveycli/pkg/contracts/api/v1"
)

// SurveyHandler handles survey aggregation HTTP requests with RFC 7807 compliance
type SurveyHandler struct {
	service       SurveyServiceInterface
	validation    *mw.ValidationMiddleware
	params        *mw.QueryParamValidator
	metrics       *infrastructure.BusinessMetrics
	defaultTopN   int
	logger        *slog.Logger
	errorHandler  *apierrors.ErrorHandler
	webhookGuards []func(http.Handler) http.Handler
}

// NewSurveyHandler creates a new survey handler with RFC 7807 error handling
func NewSurveyHandler(service SurveyServiceInterface, defaultTopN int, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SurveyHandler {
	return &SurveyHandler{
		service:      service,
		validation:   mw.NewValidationMiddleware(logger, errorHandler),
		params:       mw.NewQueryParamValidator(logger, errorHandler),
		defaultTopN:  defaultTopN,
		logger:       logger.With(slog.String("component", "survey_handler")),
		errorHandler: errorHandler,
	}
}

// WithMetrics attaches business metrics recording to the handler
func (h *SurveyHandler) WithMetrics(metrics *infrastructure.BusinessMetrics) *SurveyHandler {
	h.metrics = metrics
	return h
}

// WithWebhookGuards sets the middleware chain that protects the webhook
// route. Auth and rate limiting apply only there; the manual trigger and
// read endpoints stay open.
func (h *SurveyHandler) WithWebhookGuards(guards ...func(http.Handler) http.Handler) *SurveyHandler {
	h.webhookGuards = guards
	return h
}

// Routes returns the survey routes with proper Chi patterns
func (h *SurveyHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Use render for consistent JSON responses
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// Webhook entry point for form platform deliveries
	r.With(h.webhookGuards...).Post("/responses", h.ReceiveResponse)

	// Manual pipeline triggers, audit-logged because they mutate
	// stored tables and the filesystem
	r.With(mw.AuditLog(h.logger)).Post("/aggregate", h.TriggerAggregate)
	r.With(mw.AuditLog(h.logger)).Post("/export", h.ExportCSV)

	// Read-only statistics
	r.Get("/report", h.GetReport)
	r.Get("/audit", h.GetAudit)

	return r
}

// ReceiveResponse handles POST /api/v1/responses. The form platform calls
// it once per submitted response; the body is informational only because
// aggregation always recomputes from the full stored dataset.
func (h *SurveyHandler) ReceiveResponse(w http.ResponseWriter, r *http.Request) {
	reqID := mw.GetReqID(r.Context())

	var event api.ResponseEvent
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &event); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusBadRequest,
				"INVALID_REQUEST",
				"Invalid response event body",
				map[string]interface{}{
					"error": err.Error(),
				},
			))
			return
		}

		if err := h.validation.ValidateStruct(&event); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
	}

	h.logger.InfoContext(r.Context(), "response event received",
		slog.String("request_id", reqID),
		slog.String("event_id", event.EventID),
		slog.String("form_id", event.FormID),
	)

	infrastructure.SetSpanAttributes(r.Context(), map[string]interface{}{
		"form.id":  event.FormID,
		"event.id": event.EventID,
	})

	// The delivery is counted even if the re-aggregation fails
	infrastructure.RecordWebhookEvent(r.Context(), h.metrics, event.FormID, false)

	summary, err := h.service.OnNewResponse(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "webhook aggregation failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("event_id", event.EventID),
		)

		// Missing source is survey state, not a system fault
		if !apierrors.IsSourceNotFound(err) {
			mw.RecordSystemError(r.Context(), "pipeline_failure", "webhook")
		}
		render.Render(w, r, apierrors.MapPipelineError(err, reqID))
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"status":   "accepted",
		"event_id": event.EventID,
		"form_id":  event.FormID,
		"data":     summary,
	})
}

// TriggerAggregate handles POST /api/v1/aggregate with RFC 7807 errors
func (h *SurveyHandler) TriggerAggregate(w http.ResponseWriter, r *http.Request) {
	reqID := mw.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "manual aggregation requested",
		slog.String("request_id", reqID),
	)

	summary, err := h.service.Aggregate(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "aggregation failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if !apierrors.IsSourceNotFound(err) {
			mw.RecordSystemError(r.Context(), "pipeline_failure", "aggregate")
		}
		render.Render(w, r, apierrors.MapPipelineError(err, reqID))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   summary,
	})
}

// ExportCSV handles POST /api/v1/export with RFC 7807 errors
func (h *SurveyHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	reqID := mw.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "export requested",
		slog.String("request_id", reqID),
	)

	result, err := h.service.Export(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if !apierrors.IsAggregatedTableNotFound(err) {
			mw.RecordSystemError(r.Context(), "export_failure", "export")
		}
		render.Render(w, r, apierrors.MapPipelineError(err, reqID))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// GetReport handles GET /api/v1/report. The format query parameter selects
// the representation; the response body is the rendered report itself, not
// a JSON envelope.
func (h *SurveyHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	reqID := mw.GetReqID(r.Context())

	topN, ok := h.params.ValidateInt(w, r, "top_n", 1, config.MaxTopN, h.defaultTopN)
	if !ok {
		return
	}

	format, ok := h.params.ValidateEnum(w, r, "format",
		[]string{
			services.ReportFormatJSON,
			services.ReportFormatText,
			services.ReportFormatMarkdown,
			services.ReportFormatHTML,
		},
		services.ReportFormatJSON,
	)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "report requested",
		slog.String("request_id", reqID),
		slog.Int("top_n", topN),
		slog.String("format", format),
	)

	doc, err := h.service.RenderedReport(r.Context(), topN, format)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "report generation failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrUnknownReportFormat) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format", "Unknown report format"))
			return
		}

		render.Render(w, r, apierrors.MapPipelineError(err, reqID))
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Body)
}

// GetAudit handles GET /api/v1/audit with RFC 7807 errors
func (h *SurveyHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	reqID := mw.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "audit requested",
		slog.String("request_id", reqID),
	)

	audit, err := h.service.Audit(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		render.Render(w, r, apierrors.MapPipelineError(err, reqID))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   audit,
		"count":  len(audit.Columns),
	})
}
