package models

// SchoolPeriod is one row of a school's daily period template. Times are
// stored as postgres TIME and scanned as "HH:MM:SS" strings.
type SchoolPeriod struct {
	SchoolID  string `db:"school_id" json:"school_id"`
	PeriodNo  int    `db:"period_no" json:"period_no"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	IsBreak   bool   `db:"is_break" json:"is_break"`
}

// Section is a class group within a term.
type Section struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	TermID   string `db:"term_id" json:"term_id"`
	ClassID  string `db:"class_id" json:"class_id"`
	Level    string `db:"level" json:"level"`
	Name     string `db:"name" json:"name"`
}

// Subject is a teachable subject. RoomType restricts which rooms may host it.
type Subject struct {
	ID           string  `db:"id" json:"id"`
	SchoolID     string  `db:"school_id" json:"school_id"`
	Code         string  `db:"code" json:"code"`
	Name         string  `db:"name" json:"name"`
	DepartmentID *string `db:"department_id" json:"department_id,omitempty"`
	RoomType     *string `db:"room_type" json:"room_type,omitempty"`
}

// Staff is a teacher employed by the school.
type Staff struct {
	ID       string `db:"id" json:"id"`
	SchoolID string `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
}

// Room is a teaching space.
type Room struct {
	ID       string  `db:"id" json:"id"`
	SchoolID string  `db:"school_id" json:"school_id"`
	Name     string  `db:"name" json:"name"`
	RoomType *string `db:"room_type" json:"room_type,omitempty"`
}

// SectionRequirement states how many periods per week a section receives of a subject.
type SectionRequirement struct {
	SectionID      string `db:"section_id" json:"section_id"`
	SubjectID      string `db:"subject_id" json:"subject_id"`
	PeriodsPerWeek int    `db:"periods_per_week" json:"periods_per_week"`
}

// StaffQualification allows a teacher to teach a subject for a class or a level.
// Both scopes empty means school-wide.
type StaffQualification struct {
	StaffID   string  `db:"staff_id" json:"staff_id"`
	SubjectID string  `db:"subject_id" json:"subject_id"`
	ClassID   *string `db:"class_id" json:"class_id,omitempty"`
	Level     *string `db:"level" json:"level,omitempty"`
}

// Unavailability is a weekly window during which a staff member or room cannot be scheduled.
type Unavailability struct {
	OwnerID   string `db:"owner_id" json:"owner_id"`
	DayOfWeek int    `db:"day_of_week" json:"day_of_week"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
}

// PinnedSlot is an administrator-fixed lesson.
type PinnedSlot struct {
	ID        string  `db:"id" json:"id"`
	SchoolID  string  `db:"school_id" json:"school_id"`
	TermID    string  `db:"term_id" json:"term_id"`
	SectionID string  `db:"section_id" json:"section_id"`
	SubjectID string  `db:"subject_id" json:"subject_id"`
	StaffID   string  `db:"staff_id" json:"staff_id"`
	RoomID    *string `db:"room_id" json:"room_id,omitempty"`
	DayOfWeek int     `db:"day_of_week" json:"day_of_week"`
	StartTime string  `db:"start_time" json:"start_time"`
}
