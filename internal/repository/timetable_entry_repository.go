package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableEntryRepository persists generated timetables.
type TimetableEntryRepository struct {
	db *sqlx.DB
}

// NewTimetableEntryRepository constructs repository.
func NewTimetableEntryRepository(db *sqlx.DB) *TimetableEntryRepository {
	return &TimetableEntryRepository{db: db}
}

func (r *TimetableEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const entryColumns = `id, school_id, term_id, run_id, section_id, subject_id, staff_id, room_id, day_of_week, period_no, start_time, end_time, origin, pin_id, created_at`

// DeleteReplaceable removes every entry of the horizon that a new run
// replaces: generated and locked entries, plus pinned entries whose pin is
// not in keepPinIDs.
func (r *TimetableEntryRepository) DeleteReplaceable(ctx context.Context, exec sqlx.ExtContext, schoolID, termID string, keepPinIDs []string) (int64, error) {
	const query = `DELETE FROM timetable_entries
WHERE school_id = $1 AND term_id = $2
AND (origin <> 'PINNED' OR pin_id IS NULL OR NOT (pin_id = ANY($3)))`
	if keepPinIDs == nil {
		keepPinIDs = []string{}
	}
	result, err := r.exec(exec).ExecContext(ctx, query, schoolID, termID, pq.Array(keepPinIDs))
	if err != nil {
		return 0, fmt.Errorf("delete replaceable timetable entries: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("timetable entries rows affected: %w", err)
	}
	return affected, nil
}

// UpsertPinned writes pin-derived entries idempotently on (school, term, pin).
func (r *TimetableEntryRepository) UpsertPinned(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	const query = `
INSERT INTO timetable_entries (` + entryColumns + `)
VALUES (:id, :school_id, :term_id, :run_id, :section_id, :subject_id, :staff_id, :room_id, :day_of_week, :period_no, :start_time, :end_time, :origin, :pin_id, :created_at)
ON CONFLICT (school_id, term_id, pin_id) DO UPDATE
SET run_id = EXCLUDED.run_id,
    section_id = EXCLUDED.section_id,
    subject_id = EXCLUDED.subject_id,
    staff_id = EXCLUDED.staff_id,
    room_id = EXCLUDED.room_id,
    day_of_week = EXCLUDED.day_of_week,
    period_no = EXCLUDED.period_no,
    start_time = EXCLUDED.start_time,
    end_time = EXCLUDED.end_time`

	target := r.exec(exec)
	for i := range entries {
		entry := &entries[i]
		if entry.PinID == nil || *entry.PinID == "" {
			return fmt.Errorf("pinned entry for section %s has no pin id", entry.SectionID)
		}
		stampEntry(entry)
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return fmt.Errorf("upsert pinned timetable entry: %w", err)
		}
	}
	return nil
}

// InsertBatch inserts generated entries with one multi-row statement.
func (r *TimetableEntryRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		stampEntry(&entries[i])
	}
	const query = `INSERT INTO timetable_entries (` + entryColumns + `)
VALUES (:id, :school_id, :term_id, :run_id, :section_id, :subject_id, :staff_id, :room_id, :day_of_week, :period_no, :start_time, :end_time, :origin, :pin_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entries); err != nil {
		return fmt.Errorf("insert timetable entries: %w", err)
	}
	return nil
}

func stampEntry(entry *models.TimetableEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}

// List returns entries matching filter in weekly order.
func (r *TimetableEntryRepository) List(ctx context.Context, filter models.TimetableEntryFilter) ([]models.TimetableEntry, error) {
	conditions := []string{"school_id = $1", "term_id = $2"}
	args := []interface{}{filter.SchoolID, filter.TermID}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)))
	}
	if filter.StaffID != "" {
		args = append(args, filter.StaffID)
		conditions = append(conditions, fmt.Sprintf("staff_id = $%d", len(args)))
	}
	query := `SELECT ` + entryColumns + ` FROM timetable_entries WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY day_of_week ASC, start_time ASC, section_id ASC`

	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// ListGenerated returns the non-pinned entries of a horizon, used to lock
// them into the next run.
func (r *TimetableEntryRepository) ListGenerated(ctx context.Context, schoolID, termID string) ([]models.TimetableEntry, error) {
	const query = `SELECT ` + entryColumns + ` FROM timetable_entries
WHERE school_id = $1 AND term_id = $2 AND origin <> 'PINNED'
ORDER BY day_of_week ASC, start_time ASC, section_id ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, schoolID, termID); err != nil {
		return nil, fmt.Errorf("list generated timetable entries: %w", err)
	}
	return entries, nil
}
