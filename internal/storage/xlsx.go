package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	apperrors "surveycli/internal/errors"
	"surveycli/pkg/contracts/domain"
)

// scratchSheet stages replacement data so the target sheet can be dropped
// and renamed without ever leaving the workbook sheetless.
const scratchSheet = "__rewrite__"

// WorkbookStore persists tables as sheets of a single XLSX workbook file.
// Writes save to a temp file in the same directory and rename over the
// target, so a crashed write never leaves a half-written workbook behind.
type WorkbookStore struct {
	path   string
	logger *slog.Logger

	// serializes writers; concurrent saves would race on the temp file
	mu sync.Mutex
}

// NewWorkbookStore creates a store backed by the workbook at path. The file
// is created on the first write.
func NewWorkbookStore(path string, logger *slog.Logger) *WorkbookStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookStore{
		path:   path,
		logger: logger,
	}
}

// ReadTable loads the sheet carrying the given name. A missing workbook or
// missing sheet both mean the table does not exist.
func (s *WorkbookStore) ReadTable(ctx context.Context, name string) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return domain.Table{}, apperrors.NewSourceNotFoundError(name).
			WithContext("workbook", s.path)
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return domain.Table{}, apperrors.NewStorageError(
			fmt.Sprintf("failed to open workbook %s", s.path), err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return domain.Table{}, apperrors.NewStorageError(
			fmt.Sprintf("failed to look up sheet %q", name), err)
	}
	if idx == -1 {
		return domain.Table{}, apperrors.NewSourceNotFoundError(name).
			WithContext("workbook", s.path)
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return domain.Table{}, apperrors.NewStorageError(
			fmt.Sprintf("failed to read sheet %q", name), err)
	}

	table, err := domain.NewTable(padGrid(rows))
	if err != nil {
		return domain.Table{}, err
	}

	s.logger.DebugContext(ctx, "workbook table read",
		slog.String("sheet", name),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()))

	return table, nil
}

// WriteTable replaces the named sheet with the given table, keeping every
// other sheet in the workbook intact.
func (s *WorkbookStore) WriteTable(ctx context.Context, name string, table domain.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, created, err := s.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	target := name
	existing, err := f.GetSheetIndex(name)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to look up sheet %q", name), err)
	}
	if existing != -1 {
		target = scratchSheet
	}

	idx, err := f.NewSheet(target)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create sheet %q", target), err)
	}

	if err := s.writeRows(f, target, table); err != nil {
		return err
	}

	if existing != -1 {
		if err := f.DeleteSheet(name); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to replace sheet %q", name), err)
		}
		if err := f.SetSheetName(scratchSheet, name); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to rename sheet %q", name), err)
		}
	}

	// A fresh workbook starts with a default sheet we never asked for
	if created && name != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return apperrors.NewStorageError("failed to drop default sheet", err)
		}
	}
	f.SetActiveSheet(idx)

	if err := s.saveAtomic(f); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "workbook table written",
		slog.String("sheet", name),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()),
		slog.String("workbook", s.path))

	return nil
}

func (s *WorkbookStore) openOrCreate() (*excelize.File, bool, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return excelize.NewFile(), true, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, false, apperrors.NewStorageError(
			fmt.Sprintf("failed to open workbook %s", s.path), err)
	}
	return f, false, nil
}

func (s *WorkbookStore) writeRows(f *excelize.File, sheet string, table domain.Table) error {
	headers := table.Headers
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return apperrors.NewStorageError("failed to write header row", err)
	}

	for i := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.NewStorageError("failed to compute cell coordinate", err)
		}
		if err := f.SetSheetRow(sheet, cell, &table.Rows[i]); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to write row %d", i+1), err)
		}
	}

	return nil
}

func (s *WorkbookStore) saveAtomic(f *excelize.File) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create workbook directory", err)
	}

	tmpPath := s.path + ".tmp"
	if err := f.SaveAs(tmpPath); err != nil {
		return apperrors.NewStorageError("failed to save workbook", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return apperrors.NewStorageError("failed to replace workbook", err)
	}

	return nil
}
