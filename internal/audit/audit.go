package audit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"surveycli/internal/config"
	apperrors "surveycli/internal/errors"
	"surveycli/internal/storage"
	"surveycli/pkg/contracts/domain"
)

// High-cardinality thresholds: a column is flagged when its distinct count
// exceeds this share of the non-empty count and reaches the minimum distinct
// count. Catches free-text and identifier columns without flagging small
// answer sets.
const (
	highCardinalityRatio       = 0.8
	highCardinalityMinDistinct = 10
)

// Auditor computes data-quality signals over the aggregated table. It is
// read-only.
type Auditor struct {
	source storage.TableSource
	output string
	logger *slog.Logger
}

// NewAuditor creates an auditor reading the named aggregated table. An empty
// name falls back to the application default.
func NewAuditor(source storage.TableSource, outputName string, logger *slog.Logger) *Auditor {
	if outputName == "" {
		outputName = config.DefaultOutputName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		source: source,
		output: outputName,
		logger: logger,
	}
}

// Audit reads the aggregated table and reports per-column completeness,
// distinct counts, constant and high-cardinality flags, plus the dataset's
// exact-duplicate row count. Auditing before any successful aggregation run
// fails with AggregatedTableNotFound.
func (a *Auditor) Audit(ctx context.Context) (domain.AuditReport, error) {
	table, err := a.source.ReadTable(ctx, a.output)
	if err != nil {
		if apperrors.IsSourceNotFound(err) {
			return domain.AuditReport{}, apperrors.NewAggregatedTableNotFoundError(a.output)
		}
		return domain.AuditReport{}, err
	}

	report := domain.AuditReport{
		Table:         a.output,
		RowCount:      table.RowCount(),
		ColumnCount:   table.ColumnCount(),
		DuplicateRows: duplicateRows(table),
		GeneratedAt:   time.Now().UTC(),
		Columns:       make([]domain.ColumnAudit, 0, table.ColumnCount()),
	}
	for i, header := range table.Headers {
		report.Columns = append(report.Columns, auditColumn(header, table.Column(i)))
	}

	a.logger.InfoContext(ctx, "audit report generated",
		slog.String("table", report.Table),
		slog.Int("rows", report.RowCount),
		slog.Int("duplicate_rows", report.DuplicateRows))

	return report, nil
}

func auditColumn(header string, cells []string) domain.ColumnAudit {
	nonEmpty := 0
	distinct := make(map[string]struct{})
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		nonEmpty++
		distinct[cell] = struct{}{}
	}

	return domain.ColumnAudit{
		Header:       header,
		NonEmpty:     nonEmpty,
		Completeness: completeness(nonEmpty, len(cells)),
		Distinct:     len(distinct),
		Constant:     len(distinct) == 1,
		HighCardinality: len(distinct) >= highCardinalityMinDistinct &&
			float64(len(distinct)) > highCardinalityRatio*float64(nonEmpty),
	}
}

// duplicateRows counts rows that exactly repeat an earlier row.
func duplicateRows(table domain.Table) int {
	seen := make(map[string]struct{}, len(table.Rows))
	duplicates := 0
	for _, row := range table.Rows {
		// %q renders each cell quoted and escaped, so the key is unambiguous
		key := fmt.Sprintf("%q", row)
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
	}
	return duplicates
}

// completeness is the non-empty share of all rows as a percentage, one
// decimal place.
func completeness(nonEmpty, rows int) float64 {
	if rows == 0 {
		return 0
	}
	return math.Round(float64(nonEmpty)/float64(rows)*1000) / 10
}
