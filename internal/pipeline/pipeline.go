package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"surveycli/internal/config"
	apperrors "surveycli/internal/errors"
	"surveycli/internal/infrastructure"
	"surveycli/internal/storage"
	"surveycli/pkg/contracts/domain"
)

// Options selects the tables a pipeline works on and the projection policy
// applied between them.
type Options struct {
	Source string // response table to read
	Output string // aggregated table to replace
	Policy domain.ColumnPolicy
}

// Pipeline reads the response table, projects it through the column policy,
// and replaces the aggregated output table wholesale. It is the only
// component that writes the aggregated table.
//
// A run is synchronous and run-to-completion with no internal locking;
// callers that can be invoked concurrently (the HTTP service layer) must
// serialize their own Run calls.
type Pipeline struct {
	store   storage.TableStore
	opts    Options
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// New creates a pipeline over the given store. Empty table names fall back
// to the application defaults; metrics may be nil.
func New(store storage.TableStore, opts Options, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Pipeline {
	if opts.Source == "" {
		opts.Source = config.DefaultSourceName
	}
	if opts.Output == "" {
		opts.Output = config.DefaultOutputName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:   store,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes one aggregation: read the source table, project it, replace
// the output table. Re-running against an unchanged source rewrites the same
// output, so runs are idempotent.
//
// A source with headers but no data rows is not an error: the run logs a
// warning, still writes the projected header-only table, and reports
// RowCount 0. A missing source or a row-alignment violation aborts the run
// before anything is written.
func (p *Pipeline) Run(ctx context.Context) (domain.RunSummary, error) {
	startedAt := time.Now().UTC()
	runID := uuid.New().String()

	logger := p.logger.With(slog.String("run_id", runID))
	logger.InfoContext(ctx, "aggregation run started",
		slog.String("source", p.opts.Source),
		slog.String("output", p.opts.Output))

	summary, err := p.run(ctx, logger, runID, startedAt)
	infrastructure.RecordRunMetrics(ctx, p.metrics, runID, p.opts.Source,
		time.Since(startedAt), summary.RowCount, err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		logger.ErrorContext(ctx, "aggregation run failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(startedAt)))
		return domain.RunSummary{}, err
	}

	logger.InfoContext(ctx, "aggregation run completed",
		slog.Int("rows", summary.RowCount),
		slog.Int("columns", summary.ColumnCount),
		slog.Duration("duration", summary.Duration))

	return summary, nil
}

// OnNewResponse runs one aggregation in response to an external submission
// event. It is exactly Run; the separate name marks the webhook entry point.
func (p *Pipeline) OnNewResponse(ctx context.Context) (domain.RunSummary, error) {
	return p.Run(ctx)
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, runID string, startedAt time.Time) (domain.RunSummary, error) {
	table, err := p.store.ReadTable(ctx, p.opts.Source)
	if err != nil {
		return domain.RunSummary{}, err
	}

	if table.IsEmpty() {
		logger.WarnContext(ctx, "source has headers but no responses",
			slog.String("source", p.opts.Source),
			slog.Int("columns", table.ColumnCount()))
	}

	projected, err := table.Project(p.opts.Policy)
	if err != nil {
		return domain.RunSummary{}, err
	}
	if projected.ColumnCount() == 0 {
		return domain.RunSummary{}, apperrors.NewAppValidationError(
			"column policy excludes every column").
			WithContext("source", p.opts.Source)
	}

	if err := p.store.WriteTable(ctx, p.opts.Output, projected); err != nil {
		return domain.RunSummary{}, err
	}

	return domain.RunSummary{
		RunID:       runID,
		Source:      p.opts.Source,
		Output:      p.opts.Output,
		RowCount:    projected.RowCount(),
		ColumnCount: projected.ColumnCount(),
		StartedAt:   startedAt,
		Duration:    time.Since(startedAt),
	}, nil
}
