// Package reconciler implements the relocation pass that keeps the five
// category registries consistent with the master registry.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"example.com/trailsync/internal/domain"
	"example.com/trailsync/internal/events"
	"example.com/trailsync/internal/registry"
)

// EventRecorder persists outbound events describing the result of a pass.
// Recording failures are logged, never fatal: the registries are already
// consistent by the time an event is recorded.
type EventRecorder interface {
	TrailRelocated(ctx context.Context, ev events.TrailRelocated) error
	TrailUnclassified(ctx context.Context, ev events.TrailUnclassified) error
}

// Outcome actions, one per terminal branch of a pass.
const (
	ActionIgnored      = "ignored"      // edit was not on a master data row
	ActionSkipped      = "skipped"      // never classified and difficulty untouched
	ActionRelocated    = "relocated"    // record placed in its target registry
	ActionUnclassified = "unclassified" // unsupported difficulty, left unplaced
)

// Outcome summarises what a pass did, for the audit log.
type Outcome struct {
	TrailID  string
	Action   string
	FromTier string
	ToTier   string
	Appended bool
}

// Option configures optional behaviour for the Reconciler.
type Option func(*Reconciler)

// WithLogger overrides the logger used for the per-branch diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithEventRecorder attaches an outbound event recorder.
func WithEventRecorder(recorder EventRecorder) Option {
	return func(r *Reconciler) {
		r.events = recorder
	}
}

// Reconciler runs one synchronous pass per edit notification. It holds no
// state between invocations; all state lives in the registries.
type Reconciler struct {
	registries  *registry.Set
	masterSheet string
	events      EventRecorder
	logger      *log.Logger
}

// New constructs a Reconciler over the given registry set. masterSheet is
// the sheet name edits must carry to be considered; anything else is a
// no-op.
func New(registries *registry.Set, masterSheet string, opts ...Option) *Reconciler {
	r := &Reconciler{
		registries:  registries,
		masterSheet: masterSheet,
		logger:      log.New(log.Writer(), "[reconciler] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleEdit runs one reconciliation pass: Read, Locate-and-Remove,
// Classify, Upsert-or-Abort. Registry open failures and empty registries
// are logged and skipped; an unsupported difficulty terminates the pass
// with the record left unplaced; write failures propagate.
func (r *Reconciler) HandleEdit(ctx context.Context, edit domain.EditNotification) (Outcome, error) {
	if edit.Sheet != r.masterSheet {
		r.logger.Printf("edit on %q ignored, only %q triggers relocation", edit.Sheet, r.masterSheet)
		return Outcome{Action: ActionIgnored}, nil
	}
	if edit.Row < domain.FirstDataRow {
		r.logger.Printf("edit on header row %d ignored", edit.Row)
		return Outcome{Action: ActionIgnored}, nil
	}

	rec, err := r.registries.Master().ReadRow(ctx, edit.Row)
	if err != nil {
		if errors.Is(err, registry.ErrRowNotFound) {
			r.logger.Printf("master row %d no longer exists, nothing to relocate", edit.Row)
			return Outcome{Action: ActionIgnored}, nil
		}
		return Outcome{}, fmt.Errorf("read master row %d: %w", edit.Row, err)
	}
	if err := rec.Validate(); err != nil {
		r.logger.Printf("master row %d not relocatable: %v", edit.Row, err)
		return Outcome{Action: ActionIgnored}, nil
	}

	removedFrom, err := r.removeEverywhere(ctx, rec.ID)
	if err != nil {
		return Outcome{}, err
	}

	// A record that was never placed only gets classified when the edit
	// touched the difficulty column; incidental field edits on unplaced
	// records end here.
	if removedFrom == "" && edit.Column != domain.ColumnDifficulty {
		r.logger.Printf("trail %s not previously placed and difficulty untouched, leaving unplaced", rec.ID)
		recordPass(ActionSkipped)
		return Outcome{TrailID: rec.ID, Action: ActionSkipped}, nil
	}

	tier, err := domain.ParseDifficulty(rec.Difficulty)
	if err != nil {
		r.logger.Printf("trail %s has unsupported difficulty %q, left unplaced in every registry", rec.ID, rec.Difficulty)
		recordPass(ActionUnclassified)
		r.recordUnclassified(ctx, rec, removedFrom)
		return Outcome{TrailID: rec.ID, Action: ActionUnclassified, FromTier: removedFrom}, nil
	}

	rec = rec.Normalized()
	target := r.registries.Category(tier)
	appended, err := target.Upsert(ctx, rec)
	if err != nil {
		return Outcome{}, fmt.Errorf("upsert trail %s into %s: %w", rec.ID, target.Name(), err)
	}

	if appended {
		r.logger.Printf("trail %s (%s) appended to %s", rec.ID, rec.Name, target.Name())
	} else {
		r.logger.Printf("trail %s (%s) updated in place in %s", rec.ID, rec.Name, target.Name())
	}
	recordPass(ActionRelocated)
	recordUpsert(target.Name(), appended)
	r.recordRelocated(ctx, rec, removedFrom, tier, appended)

	return Outcome{
		TrailID:  rec.ID,
		Action:   ActionRelocated,
		FromTier: removedFrom,
		ToTier:   tier.String(),
		Appended: appended,
	}, nil
}

// removeEverywhere deletes any copy of the trail id from the category
// registries, scanning every tier in the fixed order. After it returns
// without error, the id is absent from every registry that could be opened.
// Returns the display tier of the first registry a copy was removed from,
// or "" when none held one (the normal case for a brand-new record).
func (r *Reconciler) removeEverywhere(ctx context.Context, trailID string) (string, error) {
	removedFrom := ""
	for _, tier := range domain.Tiers() {
		store := r.registries.Category(tier)

		count, err := store.RowCount(ctx)
		if err != nil {
			if errors.Is(err, registry.ErrUnavailable) {
				r.logger.Printf("registry %s unavailable, skipping: %v", store.Name(), err)
				recordSkip(store.Name(), "unavailable")
				continue
			}
			return removedFrom, fmt.Errorf("count rows in %s: %w", store.Name(), err)
		}
		if count == 0 {
			r.logger.Printf("registry %s has no data rows, skipping", store.Name())
			recordSkip(store.Name(), "empty")
			continue
		}

		deleted, err := store.Delete(ctx, trailID)
		if err != nil {
			if errors.Is(err, registry.ErrUnavailable) {
				r.logger.Printf("registry %s unavailable, skipping: %v", store.Name(), err)
				recordSkip(store.Name(), "unavailable")
				continue
			}
			return removedFrom, fmt.Errorf("remove trail %s from %s: %w", trailID, store.Name(), err)
		}
		if deleted {
			r.logger.Printf("trail %s removed from %s", trailID, store.Name())
			recordRemoval(store.Name())
			if removedFrom == "" {
				removedFrom = tier.String()
			}
		}
	}
	return removedFrom, nil
}

func (r *Reconciler) recordRelocated(ctx context.Context, rec domain.TrailRecord, fromTier string, toTier domain.Difficulty, appended bool) {
	if r.events == nil {
		return
	}
	ev := events.TrailRelocated{
		TrailID:    rec.ID,
		Name:       rec.Name,
		FromTier:   fromTier,
		ToTier:     toTier.String(),
		Lat:        rec.Lat,
		Lon:        rec.Lon,
		Appended:   appended,
		OccurredAt: time.Now().UTC(),
	}
	if err := r.events.TrailRelocated(ctx, ev); err != nil {
		r.logger.Printf("failed to record relocation event for trail %s: %v", rec.ID, err)
		recordEventFailure("trail.relocated")
	}
}

func (r *Reconciler) recordUnclassified(ctx context.Context, rec domain.TrailRecord, removedFrom string) {
	if r.events == nil {
		return
	}
	ev := events.TrailUnclassified{
		TrailID:     rec.ID,
		Difficulty:  rec.Difficulty,
		RemovedFrom: removedFrom,
		OccurredAt:  time.Now().UTC(),
	}
	if err := r.events.TrailUnclassified(ctx, ev); err != nil {
		r.logger.Printf("failed to record unclassified event for trail %s: %v", rec.ID, err)
		recordEventFailure("trail.unclassified")
	}
}
