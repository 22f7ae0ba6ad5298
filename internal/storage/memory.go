package storage

import (
	"context"
	"sort"
	"sync"

	apperrors "surveycli/internal/errors"
	"surveycli/pkg/contracts/domain"
)

// MemoryStore keeps tables in a process-local map. It is the development
// and test default, and the reference for what the other backends must
// observably do.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]domain.Table
}

// NewMemoryStore creates an empty in-memory table store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]domain.Table),
	}
}

// ReadTable returns a deep copy of the named table so callers can never
// mutate stored state through the returned value.
func (s *MemoryStore) ReadTable(ctx context.Context, name string) (domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.tables[name]
	if !ok {
		return domain.Table{}, apperrors.NewSourceNotFoundError(name)
	}

	return table.Clone(), nil
}

// WriteTable replaces the named table with a deep copy of the given one.
// The swap happens under the lock, so readers see either the old table or
// the new one, never a mix.
func (s *MemoryStore) WriteTable(ctx context.Context, name string, table domain.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clone := table.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[name] = clone
	return nil
}

// Tables returns the stored table names in sorted order.
func (s *MemoryStore) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
