package timetable

import (
	"fmt"
	"sort"
)

// Materialize cross-checks the final entries for double booking and returns
// them in canonical order: slot, section, subject, staff.
func Materialize(entries []Entry) ([]Entry, error) {
	seen := make(map[occupancyKey]Entry, len(entries)*3)
	for _, e := range entries {
		p := Placement{SectionID: e.SectionID, StaffID: e.StaffID, RoomID: e.RoomID, Slot: e.Slot}
		for _, key := range keysFor(p) {
			if other, taken := seen[key]; taken {
				return nil, fmt.Errorf("%w: %s %s at day %d period %d (sections %s and %s)",
					ErrOccupancyViolation, key.kind, key.id, e.Slot.Day, e.Slot.Period, other.SectionID, e.SectionID)
			}
			seen[key] = e
		}
	}

	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Slot.Index != b.Slot.Index {
			return a.Slot.Index < b.Slot.Index
		}
		if a.SectionID != b.SectionID {
			return a.SectionID < b.SectionID
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.StaffID < b.StaffID
	})
	return out, nil
}

func toEntries(lessons []*placedLesson) []Entry {
	entries := make([]Entry, 0, len(lessons))
	for _, l := range lessons {
		entries = append(entries, Entry{
			SectionID: l.sectionID,
			SubjectID: l.subjectID,
			StaffID:   l.staffID,
			RoomID:    l.roomID,
			Slot:      l.slot,
			PinID:     l.pinID,
			Origin:    l.origin,
		})
	}
	return entries
}
