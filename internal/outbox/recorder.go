// Package outbox persists and delivers relocation events to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/trailsync/internal/events"
)

// Recorder writes relocation events into the outbox table for the
// dispatcher to deliver. It satisfies the reconciler's EventRecorder.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder constructs a Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// TrailRelocated records a trail.relocated event.
func (r *Recorder) TrailRelocated(ctx context.Context, ev events.TrailRelocated) error {
	return r.insert(ctx, "trail.relocated", ev.TrailID, ev)
}

// TrailUnclassified records a trail.unclassified event.
func (r *Recorder) TrailUnclassified(ctx context.Context, ev events.TrailUnclassified) error {
	return r.insert(ctx, "trail.unclassified", ev.TrailID, ev)
}

func (r *Recorder) insert(ctx context.Context, eventType, trailID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	// Relocations legitimately recur for the same trail, so the dedupe key
	// carries a uuid suffix; it dedupes only accidental double inserts of
	// one recording attempt.
	dedupeKey := fmt.Sprintf("%s:%s:%s", trailID, eventType, uuid.NewString())

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = r.pool.Exec(ctx, stmt,
		"trail",
		trailID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		trailID,
		body,
		dedupeKey,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"trail.relocated": {
		Topic:         "trail_events",
		SchemaSubject: "trail_events-value",
	},
	"trail.unclassified": {
		Topic:         "trail_unclassified",
		SchemaSubject: "trail_unclassified-value",
	},
}
