package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"surveycli/internal/audit"
	"surveycli/internal/config"
	"surveycli/internal/exporter"
	"surveycli/internal/frequency"
	"surveycli/internal/infrastructure"
	"surveycli/internal/pipeline"
	"surveycli/internal/report"
	"surveycli/internal/storage"
	"surveycli/pkg/contracts/domain"
)

// Report output formats accepted by RenderedReport.
const (
	ReportFormatJSON     = "json"
	ReportFormatText     = "text"
	ReportFormatMarkdown = "markdown"
	ReportFormatHTML     = "html"
)

// SurveyService is the business facade over the aggregation pipeline and
// its read models. Handlers and commands talk to this type only.
//
// The pipeline itself carries no locking, so the service serializes runs:
// webhook bursts and manual aggregate calls queue on runMu and execute one
// at a time. Reads (export, report, audit) do not take the lock; they see
// whichever aggregate snapshot the storage backend currently holds.
type SurveyService struct {
	pipeline *pipeline.Pipeline
	exports  *exporter.Controller
	reports  *report.Reporter
	auditor  *audit.Auditor
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger

	runMu sync.Mutex
}

// NewSurveyService wires the full pipeline from configuration: column
// policy, export and report sinks, and the frequency analyzer all come
// from cfg. The store is injected so callers control backend lifecycle.
func NewSurveyService(cfg *config.Config, store storage.TableStore, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) (*SurveyService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := cfg.LoadPolicy()
	if err != nil {
		return nil, fmt.Errorf("failed to load column policy: %w", err)
	}

	run := pipeline.New(store, pipeline.Options{
		Source: cfg.Source.Name,
		Output: cfg.Output.Name,
		Policy: policy,
	}, logger, metrics)

	exports := exporter.NewController(store, storage.NewDirectoryFileSink(cfg.GetExportDir(), logger), exporter.Options{
		OutputName: cfg.Output.Name,
		BaseName:   cfg.Export.BaseName,
		Serialize: exporter.SerializeOptions{
			IncludeBOM: cfg.IncludeBOM(),
			UseCRLF:    cfg.Export.CRLF,
		},
	}, logger)

	reports := report.NewReporter(store, storage.NewDirectoryFileSink(cfg.GetReportDir(), logger),
		frequency.NewAnalyzer(cfg.Report.Multiselect), report.Options{
			OutputName: cfg.Output.Name,
			TopN:       cfg.Report.TopN,
		}, logger)

	auditor := audit.NewAuditor(store, cfg.Output.Name, logger)

	logger.Info("survey service ready",
		slog.String("source", cfg.Source.Name),
		slog.String("output", cfg.Output.Name),
		slog.String("backend", cfg.Storage.Backend),
		slog.Int("policy_exclusions", len(policy.Exclude)),
		slog.Int("multiselect_columns", len(cfg.Report.Multiselect)))

	return &SurveyService{
		pipeline: run,
		exports:  exports,
		reports:  reports,
		auditor:  auditor,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// NewSurveyServiceWithComponents assembles a service from prebuilt parts.
// Tests use it to substitute individual components.
func NewSurveyServiceWithComponents(run *pipeline.Pipeline, exports *exporter.Controller, reports *report.Reporter, auditor *audit.Auditor, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *SurveyService {
	if logger == nil {
		logger = slog.Default()
	}

	return &SurveyService{
		pipeline: run,
		exports:  exports,
		reports:  reports,
		auditor:  auditor,
		metrics:  metrics,
		logger:   logger,
	}
}

// Aggregate executes one aggregation run and returns its summary.
// Concurrent calls queue: the second caller blocks until the first run
// finishes, then runs against the updated source.
func (s *SurveyService) Aggregate(ctx context.Context) (domain.RunSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	return s.pipeline.Run(ctx)
}

// OnNewResponse handles a form response event by re-running the
// aggregation. It shares the run lock with Aggregate, so a webhook burst
// produces a sequence of whole runs rather than interleaved ones.
func (s *SurveyService) OnNewResponse(ctx context.Context) (domain.RunSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	return s.pipeline.OnNewResponse(ctx)
}

// Export writes a new CSV artifact of the current aggregated table.
func (s *SurveyService) Export(ctx context.Context) (domain.ExportResult, error) {
	startedAt := time.Now()

	result, err := s.exports.Export(ctx)
	if err != nil {
		return domain.ExportResult{}, err
	}

	infrastructure.RecordExportMetrics(ctx, s.metrics, result.Name, result.Size, time.Since(startedAt))
	return result, nil
}

// Report computes the per-column statistics over the aggregated table.
// topN values of zero or below fall back to the configured default.
func (s *SurveyService) Report(ctx context.Context, topN int) (domain.StatsReport, error) {
	return s.reports.Report(ctx, topN)
}

// ReportDocument is a rendered statistics report together with the media
// type of its body.
type ReportDocument struct {
	Report      domain.StatsReport
	Body        []byte
	ContentType string
}

// RenderedReport computes the statistics report and renders it in the
// requested format. An empty format means JSON; unknown formats return
// ErrUnknownReportFormat.
func (s *SurveyService) RenderedReport(ctx context.Context, topN int, format string) (*ReportDocument, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatJSON
	}

	rep, err := s.reports.Report(ctx, topN)
	if err != nil {
		return nil, err
	}

	doc := &ReportDocument{Report: rep}
	switch format {
	case ReportFormatJSON:
		body, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode report: %w", err)
		}
		doc.Body = body
		doc.ContentType = "application/json; charset=utf-8"
	case ReportFormatText:
		doc.Body = []byte(report.RenderText(rep))
		doc.ContentType = "text/plain; charset=utf-8"
	case ReportFormatMarkdown:
		doc.Body = []byte(report.RenderMarkdown(rep))
		doc.ContentType = "text/markdown; charset=utf-8"
	case ReportFormatHTML:
		doc.Body = report.RenderHTML(rep)
		doc.ContentType = "text/html; charset=utf-8"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownReportFormat, format)
	}

	infrastructure.RecordReportRequest(ctx, s.metrics, format, rep.TopN)
	return doc, nil
}

// SaveReportMarkdown computes the statistics report and persists it as a
// markdown artifact, returning the report and the artifact path.
func (s *SurveyService) SaveReportMarkdown(ctx context.Context, topN int) (domain.StatsReport, string, error) {
	rep, err := s.reports.Report(ctx, topN)
	if err != nil {
		return domain.StatsReport{}, "", err
	}

	path, err := s.reports.SaveMarkdown(ctx, rep)
	if err != nil {
		return domain.StatsReport{}, "", err
	}

	return rep, path, nil
}

// Audit computes the data-quality report over the aggregated table.
func (s *SurveyService) Audit(ctx context.Context) (domain.AuditReport, error) {
	return s.auditor.Audit(ctx)
}
