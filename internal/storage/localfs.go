package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "surveycli/internal/errors"
)

// DirectoryFileSink writes artifacts into one flat local directory. Names
// are reduced to their base so a caller-supplied name can never escape the
// directory.
type DirectoryFileSink struct {
	dir    string
	logger *slog.Logger
}

// NewDirectoryFileSink creates a sink rooted at dir. The directory is
// created on the first write.
func NewDirectoryFileSink(dir string, logger *slog.Logger) *DirectoryFileSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryFileSink{
		dir:    dir,
		logger: logger,
	}
}

// WriteFile persists data under the given name and returns the absolute
// path of the created artifact.
func (s *DirectoryFileSink) WriteFile(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", apperrors.NewStorageError("failed to create artifact directory", err)
	}

	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", apperrors.NewStorageError("failed to write artifact", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	s.logger.DebugContext(ctx, "artifact written",
		slog.String("name", filepath.Base(name)),
		slog.String("path", absPath),
		slog.Int("bytes", len(data)))

	return absPath, nil
}

// Dir returns the sink's root directory.
func (s *DirectoryFileSink) Dir() string {
	return s.dir
}
