package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SchoolDataRepository reads the reference data a generation run consumes.
// Every method is a single read; the run loads everything up front.
type SchoolDataRepository struct {
	db *sqlx.DB
}

// NewSchoolDataRepository constructs the repository.
func NewSchoolDataRepository(db *sqlx.DB) *SchoolDataRepository {
	return &SchoolDataRepository{db: db}
}

// ListPeriods returns the daily period template ordered by start time.
func (r *SchoolDataRepository) ListPeriods(ctx context.Context, schoolID string) ([]models.SchoolPeriod, error) {
	const query = `SELECT school_id, period_no, start_time::text AS start_time, end_time::text AS end_time, is_break
FROM school_periods WHERE school_id = $1 ORDER BY start_time ASC, period_no ASC`
	var periods []models.SchoolPeriod
	if err := r.db.SelectContext(ctx, &periods, query, schoolID); err != nil {
		return nil, fmt.Errorf("list school periods: %w", err)
	}
	return periods, nil
}

// ListTeachingDays returns the configured teaching days (1=Monday).
func (r *SchoolDataRepository) ListTeachingDays(ctx context.Context, schoolID string) ([]int, error) {
	const query = `SELECT day_of_week FROM school_teaching_days WHERE school_id = $1 ORDER BY day_of_week ASC`
	var days []int
	if err := r.db.SelectContext(ctx, &days, query, schoolID); err != nil {
		return nil, fmt.Errorf("list teaching days: %w", err)
	}
	return days, nil
}

// ListSections returns the sections of a term.
func (r *SchoolDataRepository) ListSections(ctx context.Context, schoolID, termID string) ([]models.Section, error) {
	const query = `SELECT id, school_id, term_id, class_id, level, name
FROM sections WHERE school_id = $1 AND term_id = $2 ORDER BY id ASC`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, schoolID, termID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// ListSubjects returns the subjects taught at the school.
func (r *SchoolDataRepository) ListSubjects(ctx context.Context, schoolID string) ([]models.Subject, error) {
	const query = `SELECT id, school_id, code, name, department_id, room_type
FROM subjects WHERE school_id = $1 ORDER BY id ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, schoolID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListStaff returns the school's teachers.
func (r *SchoolDataRepository) ListStaff(ctx context.Context, schoolID string) ([]models.Staff, error) {
	const query = `SELECT id, school_id, name FROM staff WHERE school_id = $1 ORDER BY id ASC`
	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query, schoolID); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}

// ListRooms returns the school's room inventory.
func (r *SchoolDataRepository) ListRooms(ctx context.Context, schoolID string) ([]models.Room, error) {
	const query = `SELECT id, school_id, name, room_type FROM rooms WHERE school_id = $1 ORDER BY id ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, schoolID); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListRequirements returns periods-per-week demand for every section of a term.
func (r *SchoolDataRepository) ListRequirements(ctx context.Context, schoolID, termID string) ([]models.SectionRequirement, error) {
	const query = `SELECT sr.section_id, sr.subject_id, sr.periods_per_week
FROM section_requirements sr
JOIN sections s ON s.id = sr.section_id
WHERE s.school_id = $1 AND s.term_id = $2
ORDER BY sr.section_id ASC, sr.subject_id ASC`
	var reqs []models.SectionRequirement
	if err := r.db.SelectContext(ctx, &reqs, query, schoolID, termID); err != nil {
		return nil, fmt.Errorf("list section requirements: %w", err)
	}
	return reqs, nil
}

// ListQualifications returns staff-subject qualification links.
func (r *SchoolDataRepository) ListQualifications(ctx context.Context, schoolID string) ([]models.StaffQualification, error) {
	const query = `SELECT q.staff_id, q.subject_id, q.class_id, q.level
FROM staff_qualifications q
JOIN staff st ON st.id = q.staff_id
WHERE st.school_id = $1
ORDER BY q.staff_id ASC, q.subject_id ASC`
	var links []models.StaffQualification
	if err := r.db.SelectContext(ctx, &links, query, schoolID); err != nil {
		return nil, fmt.Errorf("list staff qualifications: %w", err)
	}
	return links, nil
}

// ListStaffUnavailability returns weekly unavailability windows of the school's staff.
func (r *SchoolDataRepository) ListStaffUnavailability(ctx context.Context, schoolID string) ([]models.Unavailability, error) {
	const query = `SELECT u.staff_id AS owner_id, u.day_of_week, u.start_time::text AS start_time, u.end_time::text AS end_time
FROM staff_unavailability u
JOIN staff st ON st.id = u.staff_id
WHERE st.school_id = $1`
	var windows []models.Unavailability
	if err := r.db.SelectContext(ctx, &windows, query, schoolID); err != nil {
		return nil, fmt.Errorf("list staff unavailability: %w", err)
	}
	return windows, nil
}

// ListRoomUnavailability returns weekly unavailability windows of the school's rooms.
func (r *SchoolDataRepository) ListRoomUnavailability(ctx context.Context, schoolID string) ([]models.Unavailability, error) {
	const query = `SELECT u.room_id AS owner_id, u.day_of_week, u.start_time::text AS start_time, u.end_time::text AS end_time
FROM room_unavailability u
JOIN rooms rm ON rm.id = u.room_id
WHERE rm.school_id = $1`
	var windows []models.Unavailability
	if err := r.db.SelectContext(ctx, &windows, query, schoolID); err != nil {
		return nil, fmt.Errorf("list room unavailability: %w", err)
	}
	return windows, nil
}

// ListPins returns the administrator-fixed lessons of a term.
func (r *SchoolDataRepository) ListPins(ctx context.Context, schoolID, termID string) ([]models.PinnedSlot, error) {
	const query = `SELECT id, school_id, term_id, section_id, subject_id, staff_id, room_id, day_of_week, start_time::text AS start_time
FROM pinned_slots WHERE school_id = $1 AND term_id = $2 ORDER BY id ASC`
	var pins []models.PinnedSlot
	if err := r.db.SelectContext(ctx, &pins, query, schoolID, termID); err != nil {
		return nil, fmt.Errorf("list pinned slots: %w", err)
	}
	return pins, nil
}
