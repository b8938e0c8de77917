// Package events defines the payloads published for downstream consumers
// (the bot's notification pipeline) after a reconciliation pass.
package events

import "time"

// TrailRelocated is emitted when a trail lands in a category registry,
// either freshly placed or moved between tiers.
type TrailRelocated struct {
	TrailID    string    `json:"trail_id"`
	Name       string    `json:"name"`
	FromTier   string    `json:"from_tier,omitempty"`
	ToTier     string    `json:"to_tier"`
	Lat        string    `json:"lat"`
	Lon        string    `json:"lon"`
	Appended   bool      `json:"appended"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TrailUnclassified is emitted when a pass ends with the record left absent
// from every category registry because its difficulty value is unsupported.
type TrailUnclassified struct {
	TrailID     string    `json:"trail_id"`
	Difficulty  string    `json:"difficulty"`
	RemovedFrom string    `json:"removed_from,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
