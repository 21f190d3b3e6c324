package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerCommitRelease(t *testing.T) {
	slot := Slot{Index: 0, Day: 1, Start: 420, End: 465}
	other := Slot{Index: 1, Day: 1, Start: 480, End: 525}
	tracker := NewTracker(nil)

	p := Placement{SectionID: "s1", StaffID: "t1", RoomID: "r1", Slot: slot}
	assert.True(t, tracker.CanPlace("s1", slot, "t1", "r1"))
	tracker.Commit(p)

	assert.False(t, tracker.CanPlace("s1", slot, "t2", "r2"), "section busy")
	assert.False(t, tracker.CanPlace("s2", slot, "t1", "r2"), "teacher busy")
	assert.False(t, tracker.CanPlace("s2", slot, "t2", "r1"), "room busy")
	assert.True(t, tracker.CanPlace("s2", slot, "t2", "r2"))
	assert.True(t, tracker.CanPlace("s1", other, "t1", "r1"))

	tracker.Release(p)
	assert.True(t, tracker.CanPlace("s1", slot, "t1", "r1"))
}

func TestTrackerPinnedHoldsSurviveRelease(t *testing.T) {
	slot := Slot{Index: 0, Day: 1, Start: 420, End: 465}
	tracker := NewTracker(nil)
	p := Placement{SectionID: "s1", StaffID: "t1", Slot: slot}
	tracker.commitPinned(p, "pin-1")

	tracker.Release(p)
	assert.False(t, tracker.CanPlace("s1", slot, "t9", ""))

	kind, holder, taken := tracker.collision(Placement{SectionID: "s2", StaffID: "t1", Slot: slot})
	assert.True(t, taken)
	assert.Equal(t, occupancyTeacher, kind)
	assert.Equal(t, "pin-1", holder.pinID)
}

func TestTrackerConsultsAvailability(t *testing.T) {
	slot := Slot{Index: 0, Day: 2, Start: 420, End: 465}
	store := NewConstraintStore(
		[]Window{{OwnerID: "t1", Day: 2, Start: 400, End: 430}},
		[]Window{{OwnerID: "r1", Day: 2, Start: 460, End: 500}},
		nil,
	)
	tracker := NewTracker(store)

	assert.False(t, tracker.CanPlace("s1", slot, "t1", ""))
	assert.False(t, tracker.CanPlace("s1", slot, "t2", "r1"))
	assert.True(t, tracker.CanPlace("s1", slot, "t2", "r2"))
}
