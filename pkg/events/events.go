// Package events defines payloads published to the message broker.
package events

import "time"

// TimetableGenerated is published once a generation run has been persisted.
// It carries enough for consumers (notifications, portal caches) to react
// without reading the timetable tables.
type TimetableGenerated struct {
	RunID         string    `json:"run_id"`
	SchoolID      string    `json:"school_id"`
	TermID        string    `json:"term_id"`
	PlacedCount   int       `json:"placed_count"`
	PinnedCount   int       `json:"pinned_count"`
	UnplacedCount int       `json:"unplaced_count"`
	Complete      bool      `json:"complete"`
	CommittedBy   string    `json:"committed_by,omitempty"`
	CommittedAt   time.Time `json:"committed_at"`
}
