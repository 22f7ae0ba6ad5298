package storage

import (
	"context"
	"fmt"
	"log/slog"

	"surveycli/internal/config"
	apperrors "surveycli/internal/errors"
	"surveycli/pkg/contracts/domain"
)

// TableSource fetches one named table from the backend.
type TableSource interface {
	// ReadTable returns the table stored under name. A name that does not
	// resolve yields a SourceNotFound application error.
	ReadTable(ctx context.Context, name string) (domain.Table, error)
}

// TableSink replaces one named table wholesale. There is no merge and no
// versioning: after a successful call the backend holds exactly the given
// table under that name.
type TableSink interface {
	WriteTable(ctx context.Context, name string, table domain.Table) error
}

// TableStore combines both table capabilities. Every backend implements it.
type TableStore interface {
	TableSource
	TableSink
}

// FileSink persists one artifact and returns a locator for it.
type FileSink interface {
	WriteFile(ctx context.Context, name string, data []byte) (string, error)
}

// OpenStore builds the table storage backend selected by the configuration.
// Backends holding external resources implement io.Closer; the caller owns
// the returned store's lifecycle.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (TableStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Storage.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "xlsx":
		return NewWorkbookStore(cfg.GetWorkbookPath(), logger), nil
	case "sheets":
		return NewSheetsStore(ctx, cfg.Storage.Sheets.SpreadsheetID, cfg.GetCredentialsFile(), logger)
	case "postgres":
		return NewSnapshotStore(ctx, cfg.Storage.Postgres, logger)
	default:
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("unknown storage backend %q", cfg.Storage.Backend), nil)
	}
}

// padGrid right-pads ragged data rows with empty cells up to the header
// width. XLSX and Sheets reads drop trailing empty cells per row, which
// would otherwise trip the row-width invariant for blank final answers.
// Rows longer than the header are left alone so the mismatch surfaces.
func padGrid(grid [][]string) [][]string {
	if len(grid) == 0 {
		return grid
	}

	width := len(grid[0])
	for i, row := range grid[1:] {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			grid[i+1] = padded
		}
	}

	return grid
}
