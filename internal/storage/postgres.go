package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"surveycli/internal/config"
	apperrors "surveycli/internal/errors"
	"surveycli/pkg/contracts/domain"
)

// snapshotSchema holds one row per table name; headers and rows travel as
// JSON so the relational schema never has to track survey columns.
const snapshotSchema = `
CREATE TABLE IF NOT EXISTS survey_tables (
	name        TEXT PRIMARY KEY,
	headers     JSONB NOT NULL,
	rows        JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
)`

// SnapshotStore persists each named table as a single replaceable row in
// Postgres. A write is one upsert inside a transaction, so readers see the
// previous snapshot or the new one, never a partial state.
type SnapshotStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSnapshotStore connects to Postgres and ensures the snapshot schema
// exists.
func NewSnapshotStore(ctx context.Context, cfg config.PostgresStorageConfig, logger *slog.Logger) (*SnapshotStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to connect to postgres", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if _, err := db.ExecContext(ctx, snapshotSchema); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("failed to ensure snapshot schema", err)
	}

	logger.InfoContext(ctx, "snapshot store initialized",
		slog.Int("max_open_conns", cfg.MaxOpenConns))

	return &SnapshotStore{db: db, logger: logger}, nil
}

// ReadTable loads and reassembles the snapshot stored under name.
func (s *SnapshotStore) ReadTable(ctx context.Context, name string) (domain.Table, error) {
	query := `SELECT headers, rows FROM survey_tables WHERE name = $1`

	var headersJSON, rowsJSON []byte
	err := s.db.QueryRowContext(ctx, query, name).Scan(&headersJSON, &rowsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Table{}, apperrors.NewSourceNotFoundError(name)
		}
		return domain.Table{}, apperrors.NewStorageError(
			fmt.Sprintf("failed to read snapshot %q", name), err)
	}

	var table domain.Table
	if err := json.Unmarshal(headersJSON, &table.Headers); err != nil {
		return domain.Table{}, apperrors.NewParsingError(
			fmt.Sprintf("failed to unmarshal headers of %q", name), err)
	}
	if err := json.Unmarshal(rowsJSON, &table.Rows); err != nil {
		return domain.Table{}, apperrors.NewParsingError(
			fmt.Sprintf("failed to unmarshal rows of %q", name), err)
	}

	if err := table.Validate(); err != nil {
		return domain.Table{}, err
	}

	s.logger.DebugContext(ctx, "snapshot read",
		slog.String("table", name),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()))

	return table, nil
}

// WriteTable upserts the snapshot row for name with the given table.
func (s *SnapshotStore) WriteTable(ctx context.Context, name string, table domain.Table) error {
	headersJSON, err := json.Marshal(table.Headers)
	if err != nil {
		return apperrors.NewStorageError("failed to marshal headers", err)
	}
	rowsJSON, err := json.Marshal(table.Rows)
	if err != nil {
		return apperrors.NewStorageError("failed to marshal rows", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO survey_tables (name, headers, rows, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			headers = EXCLUDED.headers,
			rows = EXCLUDED.rows,
			updated_at = EXCLUDED.updated_at`

	if _, err := tx.ExecContext(ctx, query, name, headersJSON, rowsJSON, time.Now().UTC()); err != nil {
		return apperrors.NewStorageError(
			fmt.Sprintf("failed to upsert snapshot %q", name), err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("failed to commit snapshot", err)
	}

	s.logger.DebugContext(ctx, "snapshot written",
		slog.String("table", name),
		slog.Int("rows", table.RowCount()),
		slog.Int("columns", table.ColumnCount()))

	return nil
}

// Close releases the connection pool.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
