package registry

import (
	"context"
	"fmt"
	"sync"

	"example.com/trailsync/internal/domain"
)

// MemoryStore keeps a registry in memory for local development and tests.
// Row numbers behave like the Postgres store: assigned on append, stable
// across updates, data starting at row 2.
type MemoryStore struct {
	mu      sync.RWMutex
	name    string
	rows    []Row
	nextRow int64
	openErr error
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithOpenError makes every operation fail with ErrUnavailable wrapping the
// given cause, simulating a registry that cannot be opened.
func WithOpenError(cause error) MemoryOption {
	return func(s *MemoryStore) {
		s.openErr = cause
	}
}

// WithSeed preloads records in order.
func WithSeed(records ...domain.TrailRecord) MemoryOption {
	return func(s *MemoryStore) {
		for _, rec := range records {
			s.rows = append(s.rows, Row{Num: s.nextRow, Record: rec})
			s.nextRow++
		}
	}
}

// NewMemoryStore constructs an empty in-memory registry.
func NewMemoryStore(name string, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{name: name, nextRow: domain.FirstDataRow}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Store.
func (s *MemoryStore) Name() string { return s.name }

func (s *MemoryStore) unavailable() error {
	if s.openErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, s.name, s.openErr)
}

// ReadRow implements Store.
func (s *MemoryStore) ReadRow(_ context.Context, rowNum int64) (domain.TrailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.unavailable(); err != nil {
		return domain.TrailRecord{}, err
	}
	for _, row := range s.rows {
		if row.Num == rowNum {
			return row.Record, nil
		}
	}
	return domain.TrailRecord{}, fmt.Errorf("%w: %s row %d", ErrRowNotFound, s.name, rowNum)
}

// FindRow implements Store.
func (s *MemoryStore) FindRow(_ context.Context, trailID string) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.unavailable(); err != nil {
		return Row{}, err
	}
	for _, row := range s.rows {
		if row.Record.ID == trailID {
			return row, nil
		}
	}
	return Row{}, fmt.Errorf("%w: %s", ErrRowNotFound, s.name)
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, trailID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unavailable(); err != nil {
		return false, err
	}
	for i, row := range s.rows {
		if row.Record.ID == trailID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, rec domain.TrailRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unavailable(); err != nil {
		return false, err
	}
	for i, row := range s.rows {
		if row.Record.ID == rec.ID {
			s.rows[i].Record = rec
			return false, nil
		}
	}
	s.rows = append(s.rows, Row{Num: s.nextRow, Record: rec})
	s.nextRow++
	return true, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.unavailable(); err != nil {
		return nil, err
	}
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

// RowCount implements Store.
func (s *MemoryStore) RowCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.unavailable(); err != nil {
		return 0, err
	}
	return int64(len(s.rows)), nil
}

// SetOpenError flips the simulated availability of the registry at runtime.
// Test-only hook; production stores have no equivalent.
func (s *MemoryStore) SetOpenError(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = cause
}
