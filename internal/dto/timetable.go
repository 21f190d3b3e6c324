package dto

import "time"

// GenerateTimetableRequest triggers one generation run for a school and term.
type GenerateTimetableRequest struct {
	SchoolID       string `json:"-" validate:"required"`
	TermID         string `json:"termId" validate:"required"`
	Days           []int  `json:"days" validate:"omitempty,max=7,dive,min=1,max=7"`
	Commit         bool   `json:"commit"`
	AllowPartial   bool   `json:"allowPartial"`
	LockExisting   bool   `json:"lockExisting"`
	StepBudget     *int   `json:"stepBudget" validate:"omitempty,min=1,max=10000000"`
	TimeBudgetMs   *int   `json:"timeBudgetMs" validate:"omitempty,min=100,max=120000"`
	// BacktrackLimit caps undos per dead end; 0 or -1 leaves it unbounded.
	BacktrackLimit *int   `json:"backtrackLimit" validate:"omitempty,min=-1,max=100000"`
	CompactGaps    *bool  `json:"compactGaps"`
	RequestedBy    string `json:"-"`
}

// CommitProposalRequest persists a stored proposal.
type CommitProposalRequest struct {
	SchoolID     string `json:"-" validate:"required"`
	ProposalID   string `json:"-" validate:"required,uuid4"`
	AllowPartial bool   `json:"allowPartial"`
	RequestedBy  string `json:"-"`
}

// TimetableEntryQuery filters persisted entries.
type TimetableEntryQuery struct {
	SchoolID  string `form:"-" validate:"required"`
	TermID    string `form:"termId" validate:"required"`
	SectionID string `form:"sectionId"`
	StaffID   string `form:"staffId"`
	Format    string `form:"format" validate:"omitempty,oneof=json csv pdf"`
}

// TimetableEntryView is one lesson in API responses.
type TimetableEntryView struct {
	SectionID string  `json:"sectionId"`
	SubjectID string  `json:"subjectId"`
	StaffID   string  `json:"staffId"`
	RoomID    *string `json:"roomId,omitempty"`
	DayOfWeek int     `json:"dayOfWeek"`
	PeriodNo  int     `json:"periodNo"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	Origin    string  `json:"origin"`
	PinID     *string `json:"pinId,omitempty"`
}

// UnplacedLessonView is a unit of demand left out of the timetable.
type UnplacedLessonView struct {
	SectionID string `json:"sectionId"`
	SubjectID string `json:"subjectId"`
	Ordinal   int    `json:"ordinal"`
	Reason    string `json:"reason"`
}

// RejectedPinView is a pinned slot that could not be honoured.
type RejectedPinView struct {
	PinID     string `json:"pinId"`
	SectionID string `json:"sectionId"`
	SubjectID string `json:"subjectId"`
	StaffID   string `json:"staffId"`
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail"`
}

// WarningView is a non-blocking observation about the input data.
type WarningView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TimetableStats are search statistics for one run.
type TimetableStats struct {
	Attempts         int   `json:"attempts"`
	Backtracks       int   `json:"backtracks"`
	DeadEnds         int   `json:"deadEnds"`
	ExhaustedLessons int   `json:"exhaustedLessons"`
	CompactionMoves  int   `json:"compactionMoves"`
	GapPenalty       int   `json:"gapPenalty"`
	BudgetExhausted  bool  `json:"budgetExhausted"`
	DurationMs       int64 `json:"durationMs"`
}

// TimetableReport summarises a generation run.
type TimetableReport struct {
	RunID         string               `json:"runId,omitempty"`
	SchoolID      string               `json:"schoolId"`
	TermID        string               `json:"termId"`
	TotalLessons  int                  `json:"totalLessons"`
	PlacedCount   int                  `json:"placedCount"`
	UnplacedCount int                  `json:"unplacedCount"`
	PinnedCount   int                  `json:"pinnedCount"`
	Unplaced      []UnplacedLessonView `json:"unplaced"`
	RejectedPins  []RejectedPinView    `json:"rejectedPins"`
	Warnings      []WarningView        `json:"warnings"`
	Stats         TimetableStats       `json:"stats"`
	Complete      bool                 `json:"complete"`
	GeneratedAt   time.Time            `json:"generatedAt"`
}

// GenerateTimetableResponse returns a run's entries and report. ProposalID is
// set when the result was kept for a later commit; RunID once persisted.
type GenerateTimetableResponse struct {
	ProposalID string               `json:"proposalId,omitempty"`
	RunID      string               `json:"runId,omitempty"`
	Committed  bool                 `json:"committed"`
	Report     TimetableReport      `json:"report"`
	Entries    []TimetableEntryView `json:"entries"`
}

// ExportFile is a rendered timetable download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
