package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"surveycli/internal/config"
	apperrors "surveycli/internal/errors"
	"surveycli/internal/storage"
	"surveycli/pkg/contracts/domain"
)

// timestampLayout keys artifact names by second-resolution creation time.
const timestampLayout = "20060102_150405"

// Options configures which table is exported and how artifacts are named.
type Options struct {
	OutputName string // aggregated table to export
	BaseName   string // artifact base name, e.g. "aggregate"
	Serialize  SerializeOptions
}

// Controller turns the aggregated table into CSV artifacts. Every call
// creates a new artifact; prior exports are never touched.
type Controller struct {
	source storage.TableSource
	sink   storage.FileSink
	opts   Options
	logger *slog.Logger
}

// NewController creates an export controller reading from source and
// persisting artifacts via sink. Empty option fields fall back to the
// application defaults.
func NewController(source storage.TableSource, sink storage.FileSink, opts Options, logger *slog.Logger) *Controller {
	if opts.OutputName == "" {
		opts.OutputName = config.DefaultOutputName
	}
	if opts.BaseName == "" {
		opts.BaseName = config.DefaultExportBaseName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		source: source,
		sink:   sink,
		opts:   opts,
		logger: logger,
	}
}

// Export reads the aggregated table, serializes it and persists a fresh CSV
// artifact. The aggregated table must have been written by a prior
// aggregation run; exporting before any run fails with
// AggregatedTableNotFound.
func (c *Controller) Export(ctx context.Context) (domain.ExportResult, error) {
	table, err := c.source.ReadTable(ctx, c.opts.OutputName)
	if err != nil {
		if apperrors.IsSourceNotFound(err) {
			return domain.ExportResult{}, apperrors.NewAggregatedTableNotFoundError(c.opts.OutputName)
		}
		return domain.ExportResult{}, err
	}

	data, err := Serialize(table, c.opts.Serialize)
	if err != nil {
		return domain.ExportResult{}, err
	}

	createdAt := time.Now().UTC()
	name := c.artifactName(createdAt)

	path, err := c.sink.WriteFile(ctx, name, data)
	if err != nil {
		return domain.ExportResult{}, err
	}

	result := domain.ExportResult{
		Name:      name,
		Path:      path,
		Size:      int64(len(data)),
		CreatedAt: createdAt,
	}

	c.logger.InfoContext(ctx, "csv artifact created",
		slog.String("name", name),
		slog.String("table", c.opts.OutputName),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()),
		slog.Int64("bytes", result.Size))

	return result, nil
}

// artifactName builds a unique file name from the base name, the creation
// timestamp and a short random discriminator. The discriminator keeps rapid
// successive exports within the same second from colliding.
func (c *Controller) artifactName(createdAt time.Time) string {
	discriminator := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%s_%s.csv",
		c.opts.BaseName, createdAt.Format(timestampLayout), discriminator)
}
