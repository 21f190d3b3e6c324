package timetable

// ConstraintStore indexes unavailability windows and pins for membership tests.
// Overlapping or duplicated windows simply union; a window whose end is not
// after its start blocks the owner for that whole day.
type ConstraintStore struct {
	staff map[string][]Window
	rooms map[string][]Window
	pins  []Pin
}

// NewConstraintStore builds the store from raw rows.
func NewConstraintStore(staffWindows, roomWindows []Window, pins []Pin) *ConstraintStore {
	store := &ConstraintStore{
		staff: indexWindows(staffWindows),
		rooms: indexWindows(roomWindows),
		pins:  make([]Pin, len(pins)),
	}
	copy(store.pins, pins)
	return store
}

func indexWindows(windows []Window) map[string][]Window {
	result := make(map[string][]Window)
	for _, w := range windows {
		if w.OwnerID == "" {
			continue
		}
		result[w.OwnerID] = append(result[w.OwnerID], w)
	}
	return result
}

// IsStaffAvailable is false when slot overlaps any window declared for staffID.
func (c *ConstraintStore) IsStaffAvailable(staffID string, slot Slot) bool {
	return !blocked(c.staff[staffID], slot)
}

// IsRoomAvailable is false when slot overlaps any window declared for roomID.
func (c *ConstraintStore) IsRoomAvailable(roomID string, slot Slot) bool {
	if roomID == "" {
		return true
	}
	return !blocked(c.rooms[roomID], slot)
}

// PinnedSlots returns the fixed assignments for the run.
func (c *ConstraintStore) PinnedSlots() []Pin {
	out := make([]Pin, len(c.pins))
	copy(out, c.pins)
	return out
}

func blocked(windows []Window, slot Slot) bool {
	for _, w := range windows {
		if w.Day != slot.Day {
			continue
		}
		if w.End <= w.Start {
			return true
		}
		if w.Start < slot.End && slot.Start < w.End {
			return true
		}
	}
	return false
}
