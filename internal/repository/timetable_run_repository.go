package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableRunRepository stores the audit trail of committed generation runs.
type TimetableRunRepository struct {
	db *sqlx.DB
}

// NewTimetableRunRepository constructs repository.
func NewTimetableRunRepository(db *sqlx.DB) *TimetableRunRepository {
	return &TimetableRunRepository{db: db}
}

func (r *TimetableRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a run row.
func (r *TimetableRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	if run == nil {
		return fmt.Errorf("timetable run payload is nil")
	}
	if run.SchoolID == "" || run.TermID == "" {
		return fmt.Errorf("school_id and term_id are required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if len(run.Report) == 0 {
		run.Report = types.JSONText(`{}`)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO timetable_runs (id, school_id, term_id, status, complete, placed_count, pinned_count, unplaced_count, report, committed_by, created_at)
VALUES (:id, :school_id, :term_id, :status, :complete, :placed_count, :pinned_count, :unplaced_count, :report, :committed_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, run); err != nil {
		return fmt.Errorf("insert timetable run: %w", err)
	}
	return nil
}

// Latest returns the most recent committed run, or sql.ErrNoRows.
func (r *TimetableRunRepository) Latest(ctx context.Context, schoolID, termID string) (*models.TimetableRun, error) {
	const query = `SELECT id, school_id, term_id, status, complete, placed_count, pinned_count, unplaced_count, report, committed_by, created_at
FROM timetable_runs WHERE school_id = $1 AND term_id = $2 ORDER BY created_at DESC LIMIT 1`
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, schoolID, termID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("load latest timetable run: %w", err)
	}
	return &run, nil
}

// LatestRunID returns the id of the most recent committed run, or "" when the
// term has none.
func (r *TimetableRunRepository) LatestRunID(ctx context.Context, schoolID, termID string) (string, error) {
	const query = `SELECT id FROM timetable_runs WHERE school_id = $1 AND term_id = $2 ORDER BY created_at DESC LIMIT 1`
	var id string
	if err := r.db.GetContext(ctx, &id, query, schoolID, termID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("load latest timetable run id: %w", err)
	}
	return id, nil
}
