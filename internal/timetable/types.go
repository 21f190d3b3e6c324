package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day expressed in minutes since midnight.
type Clock int

// ParseClock parses "HH:MM" or "HH:MM:SS" into a Clock.
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if hour == 24 && minute != 0 {
		return 0, fmt.Errorf("invalid time of day %q", raw)
	}
	return Clock(hour*60 + minute), nil
}

// MustClock is ParseClock for literals; it panics on malformed input.
func MustClock(raw string) Clock {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Period is one row of a school's daily period template.
type Period struct {
	Number int
	Start  Clock
	End    Clock
	Break  bool
}

// GridConfig drives the Calendar Grid. Days use 1=Monday … 7=Sunday.
type GridConfig struct {
	Days    []int
	Periods []Period
}

// Slot is one schedulable (day, period) unit. Index is the slot's position in grid order.
type Slot struct {
	Index  int
	Day    int
	Period int
	Start  Clock
	End    Clock
}

// Section is a class group that receives lessons.
type Section struct {
	ID      string
	ClassID string
	Level   string
}

// Subject is a teachable subject. RoomType, when set, restricts eligible rooms.
type Subject struct {
	ID           string
	DepartmentID string
	RoomType     string
}

// Staff is a teacher.
type Staff struct {
	ID string
}

// Room is a teaching space.
type Room struct {
	ID   string
	Type string
}

// Requirement states how many periods per week a section needs of a subject.
type Requirement struct {
	SectionID      string
	SubjectID      string
	PeriodsPerWeek int
}

// Qualification allows a staff member to teach a subject for a class or a level.
// A link carrying neither ClassID nor Level covers every section.
type Qualification struct {
	StaffID   string
	SubjectID string
	ClassID   string
	Level     string
}

// Window is a weekly unavailability window for a staff member or room.
type Window struct {
	OwnerID string
	Day     int
	Start   Clock
	End     Clock
}

// PinOrigin tells where a fixed assignment came from.
type PinOrigin string

const (
	OriginGenerated PinOrigin = "GENERATED"
	OriginPinned    PinOrigin = "PINNED"
	OriginLocked    PinOrigin = "LOCKED"
)

// Pin is a fixed lesson that must be reproduced exactly. RoomID may be empty.
type Pin struct {
	ID        string
	SectionID string
	SubjectID string
	StaffID   string
	RoomID    string
	Day       int
	Start     Clock
	Origin    PinOrigin
}

// Input is everything one generation run consumes.
type Input struct {
	Grid                GridConfig
	Sections            []Section
	Subjects            []Subject
	Staff               []Staff
	Rooms               []Room
	Requirements        []Requirement
	Qualifications      []Qualification
	StaffUnavailability []Window
	RoomUnavailability  []Window
	Pins                []Pin
}

// Options bound the search and toggle the quality pass.
type Options struct {
	// StepBudget caps attempted placements. Zero selects DefaultStepBudget.
	StepBudget int
	// TimeBudget caps wall time. Zero disables the time ceiling.
	TimeBudget time.Duration
	// BacktrackLimit caps how many placements one dead end may undo. Zero or
	// negative leaves backtracking bounded only by the step and time budgets.
	// A lesson cut off by the cap is reported as BUDGET_EXHAUSTED.
	BacktrackLimit int
	// CompactGaps enables the post-search gap compaction pass.
	CompactGaps bool
	// Now is the clock used for the time budget and run duration.
	Now func() time.Time
}

const (
	DefaultStepBudget      = 200000
	defaultCompactionLimit = 64
)

func (o Options) withDefaults() Options {
	if o.StepBudget <= 0 {
		o.StepBudget = DefaultStepBudget
	}
	if o.BacktrackLimit < 0 {
		o.BacktrackLimit = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Entry is one output row: a lesson bound to a slot, staff member and room.
type Entry struct {
	SectionID string
	SubjectID string
	StaffID   string
	RoomID    string
	Slot      Slot
	PinID     string
	Origin    PinOrigin
}

// Reason explains why a lesson or pin did not make it into the timetable.
type Reason string

const (
	ReasonNoQualifiedStaff Reason = "NO_QUALIFIED_STAFF"
	ReasonNoEligibleRoom   Reason = "NO_ELIGIBLE_ROOM"
	ReasonNoFreeSlot       Reason = "NO_FREE_SLOT"
	ReasonBudgetExhausted  Reason = "BUDGET_EXHAUSTED"

	ReasonPinConflict         Reason = "PIN_CONFLICT"
	ReasonPinOffGrid          Reason = "PIN_OFF_GRID"
	ReasonPinUnknownReference Reason = "PIN_UNKNOWN_REFERENCE"

	WarnPinDuringUnavailability Reason = "PIN_DURING_UNAVAILABILITY"
	WarnPinUnqualifiedStaff     Reason = "PIN_UNQUALIFIED_STAFF"
	WarnRequirementUnknownRef   Reason = "REQUIREMENT_UNKNOWN_REFERENCE"
)

// UnplacedLesson is a unit of demand left out of the timetable.
type UnplacedLesson struct {
	SectionID string
	SubjectID string
	Ordinal   int
	Reason    Reason
}

// RejectedPin is a pin that could not be committed.
type RejectedPin struct {
	Pin    Pin
	Reason Reason
	Detail string
}

// Warning is a non-blocking observation about the input.
type Warning struct {
	Code    Reason
	Message string
}

// Stats are search statistics for one run.
type Stats struct {
	Attempts         int
	Backtracks       int
	DeadEnds         int
	ExhaustedLessons int
	CompactionMoves  int
	GapPenalty       int
	BudgetExhausted  bool
	Duration         time.Duration
}

// Report summarises a run.
type Report struct {
	TotalLessons  int
	PlacedCount   int
	UnplacedCount int
	PinnedCount   int
	Unplaced      []UnplacedLesson
	RejectedPins  []RejectedPin
	Warnings      []Warning
	Stats         Stats
	Complete      bool
}

// Result is the outcome of Generate.
type Result struct {
	Slots   []Slot
	Entries []Entry
	Report  Report
}
