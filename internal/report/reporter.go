package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"surveycli/internal/config"
	apperrors "surveycli/internal/errors"
	"surveycli/internal/frequency"
	"surveycli/internal/storage"
	"surveycli/pkg/contracts/domain"
)

const timestampLayout = "20060102_150405"

// Options configures which table is reported on and the default ranking
// depth.
type Options struct {
	OutputName string // aggregated table to report on
	TopN       int    // default ranking depth when a request passes none
}

// Reporter computes per-column statistics reports over the aggregated table.
// It is read-only: it never writes tables, only report artifacts.
type Reporter struct {
	source   storage.TableSource
	sink     storage.FileSink
	analyzer *frequency.Analyzer
	opts     Options
	logger   *slog.Logger
}

// NewReporter creates a reporter reading from source. sink receives markdown
// artifacts and may be nil when persistence is not needed. Empty option
// fields fall back to the application defaults.
func NewReporter(source storage.TableSource, sink storage.FileSink, analyzer *frequency.Analyzer, opts Options, logger *slog.Logger) *Reporter {
	if opts.OutputName == "" {
		opts.OutputName = config.DefaultOutputName
	}
	if opts.TopN <= 0 {
		opts.TopN = config.DefaultTopN
	}
	if analyzer == nil {
		analyzer = frequency.NewAnalyzer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		source:   source,
		sink:     sink,
		analyzer: analyzer,
		opts:     opts,
		logger:   logger,
	}
}

// Report reads the aggregated table and ranks every column's values. topN
// caps each column's distribution; zero or negative falls back to the
// configured default. Reporting before any successful aggregation run fails
// with AggregatedTableNotFound.
func (r *Reporter) Report(ctx context.Context, topN int) (domain.StatsReport, error) {
	if topN <= 0 {
		topN = r.opts.TopN
	}

	table, err := r.source.ReadTable(ctx, r.opts.OutputName)
	if err != nil {
		if apperrors.IsSourceNotFound(err) {
			return domain.StatsReport{}, apperrors.NewAggregatedTableNotFoundError(r.opts.OutputName)
		}
		return domain.StatsReport{}, err
	}

	report := domain.StatsReport{
		Table:       r.opts.OutputName,
		RowCount:    table.RowCount(),
		ColumnCount: table.ColumnCount(),
		TopN:        topN,
		GeneratedAt: time.Now().UTC(),
		Columns:     r.analyzer.AnalyzeColumns(table, topN),
	}

	r.logger.InfoContext(ctx, "stats report generated",
		slog.String("table", report.Table),
		slog.Int("rows", report.RowCount),
		slog.Int("columns", report.ColumnCount),
		slog.Int("top_n", report.TopN))

	return report, nil
}

// SaveMarkdown renders the report as markdown and persists it as a fresh
// artifact, returning the artifact's locator.
func (r *Reporter) SaveMarkdown(ctx context.Context, report domain.StatsReport) (string, error) {
	if r.sink == nil {
		return "", apperrors.NewStorageError("no artifact sink configured for reports", nil)
	}

	name := fmt.Sprintf("report_%s_%s.md",
		report.GeneratedAt.Format(timestampLayout), uuid.New().String()[:8])

	path, err := r.sink.WriteFile(ctx, name, []byte(RenderMarkdown(report)))
	if err != nil {
		return "", err
	}

	r.logger.InfoContext(ctx, "markdown report artifact created",
		slog.String("name", name),
		slog.String("path", path))

	return path, nil
}
