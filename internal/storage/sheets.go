package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	apperrors "surveycli/internal/errors"
	"surveycli/pkg/contracts/domain"
)

// SheetsStore persists tables as tabs of a single Google spreadsheet.
// Replacing a tab takes a clear call followed by an update call; the API
// offers no transaction across the two, so a reader in between sees an
// empty tab.
type SheetsStore struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewSheetsStore creates a store for the given spreadsheet using service
// account credentials from credentialsFile.
func NewSheetsStore(ctx context.Context, spreadsheetID, credentialsFile string, logger *slog.Logger) (*SheetsStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create sheets service", err)
	}

	logger.InfoContext(ctx, "sheets store initialized",
		slog.String("spreadsheet_id", spreadsheetID))

	return &SheetsStore{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}, nil
}

// ReadTable fetches the full value range of the tab carrying the given name.
func (s *SheetsStore) ReadTable(ctx context.Context, name string) (domain.Table, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, name).
		Context(ctx).Do()
	if err != nil {
		// The API reports a missing tab as an unparseable range
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
			return domain.Table{}, apperrors.NewSourceNotFoundError(name).
				WithContext("spreadsheet_id", s.spreadsheetID)
		}
		return domain.Table{}, apperrors.NewStorageError(
			fmt.Sprintf("failed to read tab %q", name), err)
	}

	table, err := domain.NewTable(padGrid(valuesToGrid(resp.Values)))
	if err != nil {
		return domain.Table{}, err
	}

	s.logger.DebugContext(ctx, "sheets table read",
		slog.String("tab", name),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()))

	return table, nil
}

// WriteTable replaces the named tab's contents with the given table,
// creating the tab when it does not exist yet.
func (s *SheetsStore) WriteTable(ctx context.Context, name string, table domain.Table) error {
	if err := s.ensureTab(ctx, name); err != nil {
		return err
	}

	if _, err := s.service.Spreadsheets.Values.Clear(
		s.spreadsheetID, name, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to clear tab %q", name), err)
	}

	valueRange := &sheets.ValueRange{Values: gridToValues(table.Grid())}
	if _, err := s.service.Spreadsheets.Values.Update(
		s.spreadsheetID, name+"!A1", valueRange).
		ValueInputOption("RAW").
		Context(ctx).Do(); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to update tab %q", name), err)
	}

	s.logger.DebugContext(ctx, "sheets table written",
		slog.String("tab", name),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()))

	return nil
}

// ensureTab creates the named tab when the spreadsheet does not have it.
func (s *SheetsStore) ensureTab(ctx context.Context, name string) error {
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return apperrors.NewStorageError("failed to inspect spreadsheet", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == name {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			},
		}},
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).
		Context(ctx).Do(); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create tab %q", name), err)
	}

	s.logger.InfoContext(ctx, "sheets tab created", slog.String("tab", name))
	return nil
}

// valuesToGrid stringifies the API's loosely typed cell values.
func valuesToGrid(values [][]interface{}) [][]string {
	grid := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				continue
			}
			cells[j] = fmt.Sprintf("%v", v)
		}
		grid[i] = cells
	}
	return grid
}

// gridToValues widens string cells to the interface values the API takes.
func gridToValues(grid [][]string) [][]interface{} {
	values := make([][]interface{}, len(grid))
	for i, row := range grid {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values[i] = cells
	}
	return values
}
