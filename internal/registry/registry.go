// Package registry models the six tabular trail stores: one master registry
// where edits originate and five category registries, one per difficulty
// tier.
package registry

import (
	"context"
	"errors"
	"fmt"

	"example.com/trailsync/internal/domain"
)

var (
	// ErrRowNotFound is returned when no row matches the requested key.
	ErrRowNotFound = errors.New("registry row not found")
	// ErrUnavailable marks a registry that cannot be opened (missing table,
	// unreachable store). Callers treat it as skippable, not fatal.
	ErrUnavailable = errors.New("registry unavailable")
)

// Row pairs a record with its sheet-style row number (data starts at row 2).
type Row struct {
	Num    int64
	Record domain.TrailRecord
}

// Store is one registry. Implementations keep sheet addressing semantics:
// the key column is the trail id, and row numbers survive updates.
type Store interface {
	// Name identifies the registry in logs and audit entries.
	Name() string
	// ReadRow fetches the record at the given row number.
	ReadRow(ctx context.Context, rowNum int64) (domain.TrailRecord, error)
	// FindRow scans the key column for the trail id.
	FindRow(ctx context.Context, trailID string) (Row, error)
	// Delete removes the row keyed by trail id, reporting whether one existed.
	Delete(ctx context.Context, trailID string) (bool, error)
	// Upsert overwrites the row keyed by the record's id in place, or appends
	// a new row when absent. Reports true when a row was appended.
	Upsert(ctx context.Context, rec domain.TrailRecord) (bool, error)
	// List returns every data row in row order.
	List(ctx context.Context) ([]Row, error)
	// RowCount returns the number of data rows.
	RowCount(ctx context.Context) (int64, error)
}

// Set is the explicit routing structure from difficulty tier to registry
// handle, plus the master handle. It is built once from configuration and
// passed into the reconciler; nothing downstream hardcodes a registry.
type Set struct {
	master     Store
	categories map[domain.Difficulty]Store
}

// NewSet validates that every tier has a registry and returns the Set.
func NewSet(master Store, categories map[domain.Difficulty]Store) (*Set, error) {
	if master == nil {
		return nil, errors.New("master registry is required")
	}
	for _, tier := range domain.Tiers() {
		if categories[tier] == nil {
			return nil, fmt.Errorf("no registry configured for tier %q", tier)
		}
	}
	return &Set{master: master, categories: categories}, nil
}

// Master returns the master registry.
func (s *Set) Master() Store { return s.master }

// Category returns the registry for one tier.
func (s *Set) Category(tier domain.Difficulty) Store { return s.categories[tier] }

// Categories returns the five category registries in the fixed tier order.
func (s *Set) Categories() []Store {
	stores := make([]Store, 0, len(s.categories))
	for _, tier := range domain.Tiers() {
		stores = append(stores, s.categories[tier])
	}
	return stores
}

// Locate scans the category registries in tier order and returns the first
// registry holding the trail id. Unavailable registries are skipped; if no
// registry holds the id the error is domain.ErrTrailNotFound.
func (s *Set) Locate(ctx context.Context, trailID string) (domain.Difficulty, Row, error) {
	for _, tier := range domain.Tiers() {
		row, err := s.categories[tier].FindRow(ctx, trailID)
		if err != nil {
			if errors.Is(err, ErrRowNotFound) || errors.Is(err, ErrUnavailable) {
				continue
			}
			return "", Row{}, err
		}
		return tier, row, nil
	}
	return "", Row{}, domain.ErrTrailNotFound
}
