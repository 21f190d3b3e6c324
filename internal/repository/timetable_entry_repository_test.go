package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func strPtr(v string) *string { return &v }

func TestTimetableEntryRepositoryDeleteReplaceable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE school_id = $1 AND term_id = $2")).
		WithArgs("school-1", "term-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 12))

	affected, err := repo.DeleteReplaceable(context.Background(), nil, "school-1", "term-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryUpsertPinned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_entries")).
		WithArgs(sqlmock.AnyArg(), "school-1", "term-1", "run-1", "sec-1", "math", "t1", nil, 1, 1, "07:00", "07:45", models.EntryOriginPinned, "pin-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entries := []models.TimetableEntry{{
		SchoolID:  "school-1",
		TermID:    "term-1",
		RunID:     "run-1",
		SectionID: "sec-1",
		SubjectID: "math",
		StaffID:   "t1",
		DayOfWeek: 1,
		PeriodNo:  1,
		StartTime: "07:00",
		EndTime:   "07:45",
		Origin:    models.EntryOriginPinned,
		PinID:     strPtr("pin-1"),
	}}
	require.NoError(t, repo.UpsertPinned(context.Background(), nil, entries))
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryUpsertPinnedRequiresPinID(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	err := repo.UpsertPinned(context.Background(), nil, []models.TimetableEntry{{SectionID: "sec-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pin id")
}

func TestTimetableEntryRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_entries")).
		WillReturnResult(sqlmock.NewResult(2, 2))

	entries := []models.TimetableEntry{
		{SchoolID: "school-1", TermID: "term-1", RunID: "run-1", SectionID: "sec-1", SubjectID: "math", StaffID: "t1", DayOfWeek: 1, PeriodNo: 2, StartTime: "07:45", EndTime: "08:30", Origin: models.EntryOriginGenerated},
		{SchoolID: "school-1", TermID: "term-1", RunID: "run-1", SectionID: "sec-1", SubjectID: "bio", StaffID: "t2", DayOfWeek: 1, PeriodNo: 3, StartTime: "08:30", EndTime: "09:15", Origin: models.EntryOriginGenerated},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), nil, entries))
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryInsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	require.NoError(t, repo.InsertBatch(context.Background(), nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	columns := []string{"id", "school_id", "term_id", "run_id", "section_id", "subject_id", "staff_id", "room_id", "day_of_week", "period_no", "start_time", "end_time", "origin", "pin_id", "created_at"}
	rows := sqlmock.NewRows(columns).
		AddRow("e-1", "school-1", "term-1", "run-1", "sec-1", "math", "t1", "r1", 1, 1, "07:00", "07:45", "GENERATED", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_entries WHERE school_id = $1 AND term_id = $2 AND staff_id = $3 ORDER BY day_of_week ASC")).
		WithArgs("school-1", "term-1", "t1").
		WillReturnRows(rows)

	entries, err := repo.List(context.Background(), models.TimetableEntryFilter{SchoolID: "school-1", TermID: "term-1", StaffID: "t1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryOriginGenerated, entries[0].Origin)
	assert.Nil(t, entries[0].PinID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryListGenerated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	columns := []string{"id", "school_id", "term_id", "run_id", "section_id", "subject_id", "staff_id", "room_id", "day_of_week", "period_no", "start_time", "end_time", "origin", "pin_id", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("AND origin <> 'PINNED'")).
		WithArgs("school-1", "term-1").
		WillReturnRows(sqlmock.NewRows(columns))

	entries, err := repo.ListGenerated(context.Background(), "school-1", "term-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
