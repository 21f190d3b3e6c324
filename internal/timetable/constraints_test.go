package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstraintStoreAvailability(t *testing.T) {
	slot := Slot{Day: 1, Start: MustClock("08:00"), End: MustClock("08:45")}
	store := NewConstraintStore(
		[]Window{
			{OwnerID: "t1", Day: 1, Start: MustClock("08:30"), End: MustClock("09:00")},
			{OwnerID: "t2", Day: 1, Start: MustClock("08:45"), End: MustClock("09:30")},
			{OwnerID: "t3", Day: 1, Start: MustClock("07:00"), End: MustClock("08:00")},
			{OwnerID: "t4", Day: 1, Start: MustClock("10:00"), End: MustClock("10:00")},
			{OwnerID: "t5", Day: 2, Start: MustClock("00:00"), End: MustClock("23:59")},
		},
		[]Window{{OwnerID: "lab", Day: 1, Start: MustClock("07:00"), End: MustClock("12:00")}},
		nil,
	)

	assert.False(t, store.IsStaffAvailable("t1", slot), "partial overlap blocks")
	assert.True(t, store.IsStaffAvailable("t2", slot), "window starting at slot end does not block")
	assert.True(t, store.IsStaffAvailable("t3", slot), "window ending at slot start does not block")
	assert.False(t, store.IsStaffAvailable("t4", slot), "degenerate window blocks the day")
	assert.True(t, store.IsStaffAvailable("t5", slot), "other day")
	assert.True(t, store.IsStaffAvailable("nobody", slot))

	assert.False(t, store.IsRoomAvailable("lab", slot))
	assert.True(t, store.IsRoomAvailable("", slot))
}

func TestConstraintStoreUnionsOverlappingWindows(t *testing.T) {
	store := NewConstraintStore([]Window{
		{OwnerID: "t1", Day: 1, Start: MustClock("08:00"), End: MustClock("09:00")},
		{OwnerID: "t1", Day: 1, Start: MustClock("08:30"), End: MustClock("10:00")},
		{OwnerID: "t1", Day: 1, Start: MustClock("08:00"), End: MustClock("09:00")},
	}, nil, nil)

	assert.False(t, store.IsStaffAvailable("t1", Slot{Day: 1, Start: MustClock("09:15"), End: MustClock("09:45")}))
	assert.True(t, store.IsStaffAvailable("t1", Slot{Day: 1, Start: MustClock("10:00"), End: MustClock("10:45")}))
}

func TestConstraintStorePinnedSlotsIsACopy(t *testing.T) {
	pins := []Pin{{ID: "p1", SectionID: "s1"}}
	store := NewConstraintStore(nil, nil, pins)
	pins[0].SectionID = "changed"

	got := store.PinnedSlots()
	assert.Equal(t, "s1", got[0].SectionID)
	got[0].SectionID = "mutated"
	assert.Equal(t, "s1", store.PinnedSlots()[0].SectionID)
}
