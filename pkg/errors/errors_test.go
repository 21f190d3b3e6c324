package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", Clone(ErrRunInProgress, "school busy"))

	got := FromError(wrapped)
	assert.Equal(t, "RUN_IN_PROGRESS", got.Code)
	assert.Equal(t, http.StatusConflict, got.Status)
	assert.Equal(t, "school busy", got.Message)
	assert.Equal(t, "a timetable generation is already running for this school", ErrRunInProgress.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.True(t, errors.Is(got, sql.ErrConnDone))
	assert.Nil(t, FromError(nil))
}

func TestWrapMessage(t *testing.T) {
	err := Wrap(errors.New("boom"), ErrConfiguration.Code, ErrConfiguration.Status, "no periods")
	assert.Equal(t, "no periods: boom", err.Error())
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
}

func TestWithDetailsCopies(t *testing.T) {
	base := WithDetails(ErrPartialTimetable, map[string]interface{}{"unplacedCount": 2})
	got := WithDetails(base, map[string]interface{}{"proposalId": "p-1"})

	assert.Nil(t, ErrPartialTimetable.Details)
	assert.Len(t, base.Details, 1)
	assert.Equal(t, map[string]interface{}{"unplacedCount": 2, "proposalId": "p-1"}, got.Details)
	assert.True(t, HasCode(fmt.Errorf("commit: %w", got), "PARTIAL_TIMETABLE"))
	assert.False(t, HasCode(errors.New("plain"), "PARTIAL_TIMETABLE"))
}
