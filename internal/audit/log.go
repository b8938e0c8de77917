// Package audit persists the relocation audit trail: one row per processed
// edit notification with the outcome of its reconciliation pass.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry describes one processed edit notification.
type Entry struct {
	Sheet      string
	Row        int64
	Column     int64
	TrailID    string
	Action     string
	FromTier   string
	ToTier     string
	Topic      string
	Partition  int
	Offset     int64
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// Recorder writes entries to the relocation_log table.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder constructs a Recorder backed by the provided pool.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record stores the entry.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx,
		`INSERT INTO relocation_log (sheet, row_num, column_num, trail_id, action, from_tier, to_tier, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		e.Sheet,
		e.Row,
		e.Column,
		nullIfEmpty(e.TrailID),
		e.Action,
		nullIfEmpty(e.FromTier),
		nullIfEmpty(e.ToTier),
		e.Topic,
		e.Partition,
		e.Offset,
		e.Payload,
		e.ReceivedAt,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
