// Package domain defines the trail registry data contract shared by every
// component of the relocator.
package domain

import (
	"errors"
	"strings"
)

var (
	// ErrTrailNotFound is returned when a trail id cannot be located in any registry.
	ErrTrailNotFound = errors.New("trail not found")
	// ErrUnsupportedDifficulty indicates a difficulty value outside the five known tiers.
	ErrUnsupportedDifficulty = errors.New("unsupported difficulty value")
)

// TrailRecord is the unit of synchronization: one row of the master registry.
//
// Lat and Lon are carried as exact-precision text, never parsed to floats,
// so repeated synchronization passes cannot introduce rounding or
// scientific-notation drift.
type TrailRecord struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Lat             string `json:"lat"`
	Lon             string `json:"lon"`
	Difficulty      string `json:"difficulty"`
	Length          string `json:"length"`
	Timing          string `json:"timing"`
	Distance        string `json:"distance"`
	WebsiteLink     string `json:"website_link"`
	MaxParticipants int    `json:"max_participants"`
	Notes           string `json:"notes"`
}

// Registry rows are addressed the way the source sheets address them:
// header in row 1, data from row 2, columns numbered from 1 in the
// canonical order below.
const (
	HeaderRow    = int64(1)
	FirstDataRow = int64(2)

	ColumnID              = int64(1)
	ColumnName            = int64(2)
	ColumnLat             = int64(3)
	ColumnLon             = int64(4)
	ColumnDifficulty      = int64(5)
	ColumnLength          = int64(6)
	ColumnTiming          = int64(7)
	ColumnDistance        = int64(8)
	ColumnWebsiteLink     = int64(9)
	ColumnMaxParticipants = int64(10)
	ColumnNotes           = int64(11)
)

// ColumnHeaders lists the canonical header row.
var ColumnHeaders = []string{
	"id", "name", "lat", "lon", "difficulty", "length", "timing",
	"distance", "websiteLink", "maxParticipants", "notes",
}

// Normalized returns a copy with the difficulty rewritten to display form.
// Records with an unsupported difficulty are returned unchanged; callers
// classify before writing, so the raw value only ever reaches logs.
func (t TrailRecord) Normalized() TrailRecord {
	if tier, err := ParseDifficulty(t.Difficulty); err == nil {
		t.Difficulty = tier.String()
	}
	return t
}

// Validate checks the fields required for a record to be relocatable.
func (t TrailRecord) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

// EditNotification is the trigger payload delivered when a registry cell is
// edited: the affected sheet plus the edited row and column, both 1-based.
type EditNotification struct {
	Document string `json:"document"`
	Sheet    string `json:"sheet"`
	Row      int64  `json:"row"`
	Column   int64  `json:"column"`
}

// Validate ensures the notification addresses a plausible cell.
func (e EditNotification) Validate() error {
	if strings.TrimSpace(e.Sheet) == "" {
		return errors.New("sheet is required")
	}
	if e.Row < HeaderRow {
		return errors.New("row must be >= 1")
	}
	if e.Column < ColumnID || e.Column > ColumnNotes {
		return errors.New("column out of range")
	}
	return nil
}
