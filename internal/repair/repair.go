// Package repair audits the cross-registry invariants and fixes drift left
// behind by partial failures: duplicate ids, misplaced rows, stale rows, and
// master rows missing from every category registry.
package repair

import (
	"context"
	"errors"
	"fmt"
	"log"

	"example.com/trailsync/internal/domain"
	"example.com/trailsync/internal/registry"
)

// Report counts the actions taken by one repair run.
type Report struct {
	Scanned           int `json:"scanned"`
	StaleRemoved      int `json:"stale_removed"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	MisplacedRemoved  int `json:"misplaced_removed"`
	Refreshed         int `json:"refreshed"`
	Placed            int `json:"placed"`
	Unclassified      int `json:"unclassified"`
	RegistriesSkipped int `json:"registries_skipped"`
}

// Clean reports whether the run found every invariant already holding.
func (r Report) Clean() bool {
	return r.StaleRemoved == 0 && r.DuplicatesRemoved == 0 &&
		r.MisplacedRemoved == 0 && r.Refreshed == 0 && r.Placed == 0
}

// Repairer re-establishes the registry invariants against the master.
type Repairer struct {
	registries *registry.Set
	logger     *log.Logger
}

// Option configures the Repairer.
type Option func(*Repairer)

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Repairer) {
		r.logger = logger
	}
}

// New constructs a Repairer over the registry set.
func New(registries *registry.Set, opts ...Option) *Repairer {
	r := &Repairer{
		registries: registries,
		logger:     log.New(log.Writer(), "[repair] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce performs a full audit-and-repair pass. Unavailable registries are
// skipped and counted; individual row repairs that fail are joined into the
// returned error while the pass continues, so one bad row cannot block the
// rest of the sweep.
func (r *Repairer) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	masterRows, err := r.registries.Master().List(ctx)
	if err != nil {
		return report, fmt.Errorf("list master registry: %w", err)
	}

	// Desired placement per id. Unsupported difficulties map to no tier at
	// all: those records must end the pass absent from every registry.
	desired := make(map[string]domain.Difficulty, len(masterRows))
	records := make(map[string]domain.TrailRecord, len(masterRows))
	for _, row := range masterRows {
		records[row.Record.ID] = row.Record
		tier, parseErr := domain.ParseDifficulty(row.Record.Difficulty)
		if parseErr != nil {
			r.logger.Printf("master trail %s has unsupported difficulty %q, will be left unplaced", row.Record.ID, row.Record.Difficulty)
			report.Unclassified++
			continue
		}
		desired[row.Record.ID] = tier
	}

	var errs error
	correctlyPlaced := make(map[string]bool)

	for _, tier := range domain.Tiers() {
		store := r.registries.Category(tier)
		rows, listErr := store.List(ctx)
		if listErr != nil {
			if errors.Is(listErr, registry.ErrUnavailable) {
				r.logger.Printf("registry %s unavailable, skipping audit: %v", store.Name(), listErr)
				report.RegistriesSkipped++
				continue
			}
			errs = errors.Join(errs, fmt.Errorf("list %s: %w", store.Name(), listErr))
			continue
		}

		for _, row := range rows {
			report.Scanned++
			id := row.Record.ID
			_, inMaster := records[id]
			wantTier, classified := desired[id]

			switch {
			case !inMaster:
				if r.remove(ctx, store, id, "no master row", &errs) {
					report.StaleRemoved++
				}
			case !classified:
				if r.remove(ctx, store, id, "unsupported difficulty in master", &errs) {
					report.MisplacedRemoved++
				}
			case wantTier != tier:
				if r.remove(ctx, store, id, fmt.Sprintf("belongs in %s", wantTier), &errs) {
					report.MisplacedRemoved++
				}
			case correctlyPlaced[id]:
				if r.remove(ctx, store, id, "duplicate row", &errs) {
					report.DuplicatesRemoved++
				}
			default:
				correctlyPlaced[id] = true
				want := records[id].Normalized()
				if row.Record != want {
					if _, upErr := store.Upsert(ctx, want); upErr != nil {
						errs = errors.Join(errs, fmt.Errorf("refresh trail %s in %s: %w", id, store.Name(), upErr))
					} else {
						r.logger.Printf("trail %s refreshed in %s from master", id, store.Name())
						report.Refreshed++
					}
				}
			}
		}
	}

	// Re-place classified master rows that ended up in no registry at all.
	for id, tier := range desired {
		if correctlyPlaced[id] {
			continue
		}
		target := r.registries.Category(tier)
		if _, upErr := target.Upsert(ctx, records[id].Normalized()); upErr != nil {
			if errors.Is(upErr, registry.ErrUnavailable) {
				r.logger.Printf("registry %s unavailable, cannot re-place trail %s: %v", target.Name(), id, upErr)
				report.RegistriesSkipped++
				continue
			}
			errs = errors.Join(errs, fmt.Errorf("place trail %s into %s: %w", id, target.Name(), upErr))
			continue
		}
		r.logger.Printf("trail %s placed into %s", id, target.Name())
		report.Placed++
	}

	recordRun(report)
	return report, errs
}

// remove deletes a row and reports whether the deletion happened. Failures
// are joined into errs; unavailable registries were filtered out by List.
func (r *Repairer) remove(ctx context.Context, store registry.Store, trailID, reason string, errs *error) bool {
	deleted, err := store.Delete(ctx, trailID)
	if err != nil {
		*errs = errors.Join(*errs, fmt.Errorf("remove trail %s from %s: %w", trailID, store.Name(), err))
		return false
	}
	if deleted {
		r.logger.Printf("trail %s removed from %s (%s)", trailID, store.Name(), reason)
	}
	return deleted
}
