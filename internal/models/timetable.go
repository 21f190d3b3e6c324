package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// EntryOrigin tells how a timetable entry came to exist.
type EntryOrigin string

const (
	EntryOriginGenerated EntryOrigin = "GENERATED"
	EntryOriginPinned    EntryOrigin = "PINNED"
	EntryOriginLocked    EntryOrigin = "LOCKED"
)

// TimetableEntry is one persisted lesson of a school's weekly timetable.
type TimetableEntry struct {
	ID        string      `db:"id" json:"id"`
	SchoolID  string      `db:"school_id" json:"school_id"`
	TermID    string      `db:"term_id" json:"term_id"`
	RunID     string      `db:"run_id" json:"run_id"`
	SectionID string      `db:"section_id" json:"section_id"`
	SubjectID string      `db:"subject_id" json:"subject_id"`
	StaffID   string      `db:"staff_id" json:"staff_id"`
	RoomID    *string     `db:"room_id" json:"room_id,omitempty"`
	DayOfWeek int         `db:"day_of_week" json:"day_of_week"`
	PeriodNo  int         `db:"period_no" json:"period_no"`
	StartTime string      `db:"start_time" json:"start_time"`
	EndTime   string      `db:"end_time" json:"end_time"`
	Origin    EntryOrigin `db:"origin" json:"origin"`
	PinID     *string     `db:"pin_id" json:"pin_id,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// TimetableEntryFilter narrows entry listings.
type TimetableEntryFilter struct {
	SchoolID  string
	TermID    string
	SectionID string
	StaffID   string
}

// TimetableRunStatus describes whether a run's entries were persisted.
type TimetableRunStatus string

const (
	TimetableRunCommitted TimetableRunStatus = "COMMITTED"
	TimetableRunPartial   TimetableRunStatus = "COMMITTED_PARTIAL"
)

// TimetableRun is the audit row written for every committed generation.
type TimetableRun struct {
	ID            string             `db:"id" json:"id"`
	SchoolID      string             `db:"school_id" json:"school_id"`
	TermID        string             `db:"term_id" json:"term_id"`
	Status        TimetableRunStatus `db:"status" json:"status"`
	Complete      bool               `db:"complete" json:"complete"`
	PlacedCount   int                `db:"placed_count" json:"placed_count"`
	PinnedCount   int                `db:"pinned_count" json:"pinned_count"`
	UnplacedCount int                `db:"unplaced_count" json:"unplaced_count"`
	Report        types.JSONText     `db:"report" json:"report"`
	CommittedBy   *string            `db:"committed_by" json:"committed_by,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}
