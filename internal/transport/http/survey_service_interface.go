package http

import (
	"context"

	"surveycli/internal/services"
	"surveycli/pkg/contracts/domain"
)

// SurveyServiceInterface defines the survey operations the handlers depend on
type SurveyServiceInterface interface {
	OnNewResponse(ctx context.Context) (domain.RunSummary, error)
	Aggregate(ctx context.Context) (domain.RunSummary, error)
	Export(ctx context.Context) (domain.ExportResult, error)
	RenderedReport(ctx context.Context, topN int, format string) (*services.ReportDocument, error)
	Audit(ctx context.Context) (domain.AuditReport, error)
}
