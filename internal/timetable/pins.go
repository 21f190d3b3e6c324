package timetable

import (
	"fmt"
	"sort"
)

type pinOutcome struct {
	placed    []*placedLesson
	rejected  []RejectedPin
	warnings  []Warning
	satisfied map[pairKey]int
}

// commitPins pre-commits pins into the tracker in a stable order: admin pins
// before locked entries, then day, start and id. A pin colliding with an
// already committed one is rejected; the rest of the run is unaffected.
func commitPins(in Input, grid []Slot, e *eligibility, store *ConstraintStore, tracker *Tracker) pinOutcome {
	out := pinOutcome{satisfied: make(map[pairKey]int)}

	staff := make(map[string]bool, len(in.Staff))
	for _, s := range in.Staff {
		staff[s.ID] = true
	}
	for _, q := range in.Qualifications {
		staff[q.StaffID] = true
	}
	rooms := make(map[string]bool, len(e.allRooms))
	for _, id := range e.allRooms {
		rooms[id] = true
	}

	pins := store.PinnedSlots()
	sort.SliceStable(pins, func(i, j int) bool {
		a, b := pins[i], pins[j]
		if pinRank(a.Origin) != pinRank(b.Origin) {
			return pinRank(a.Origin) < pinRank(b.Origin)
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})

	index := newGridIndex(grid)
	for _, pin := range pins {
		if pin.Origin == "" {
			pin.Origin = OriginPinned
		}
		section, sectionKnown := e.sections[pin.SectionID]
		_, subjectKnown := e.subjects[pin.SubjectID]
		switch {
		case !sectionKnown || !subjectKnown || !staff[pin.StaffID]:
			out.rejected = append(out.rejected, RejectedPin{Pin: pin, Reason: ReasonPinUnknownReference,
				Detail: "pin references an unknown section, subject or staff member"})
			continue
		case pin.RoomID != "" && !rooms[pin.RoomID]:
			out.rejected = append(out.rejected, RejectedPin{Pin: pin, Reason: ReasonPinUnknownReference,
				Detail: fmt.Sprintf("pin references unknown room %s", pin.RoomID)})
			continue
		}

		slot, ok := index.lookup(pin.Day, pin.Start)
		if !ok {
			out.rejected = append(out.rejected, RejectedPin{Pin: pin, Reason: ReasonPinOffGrid,
				Detail: fmt.Sprintf("no period starts at %s on day %d", pin.Start, pin.Day)})
			continue
		}

		p := Placement{SectionID: pin.SectionID, StaffID: pin.StaffID, RoomID: pin.RoomID, Slot: slot}
		if kind, holder, taken := tracker.collision(p); taken {
			out.rejected = append(out.rejected, RejectedPin{Pin: pin, Reason: ReasonPinConflict,
				Detail: fmt.Sprintf("%s already held by pin %s", kind, holder.pinID)})
			continue
		}

		if !store.IsStaffAvailable(pin.StaffID, slot) || !store.IsRoomAvailable(pin.RoomID, slot) {
			out.warnings = append(out.warnings, Warning{Code: WarnPinDuringUnavailability,
				Message: fmt.Sprintf("pin %s falls inside a declared unavailability window", pin.ID)})
		}
		if !e.qualified(pin.StaffID, section, pin.SubjectID) {
			out.warnings = append(out.warnings, Warning{Code: WarnPinUnqualifiedStaff,
				Message: fmt.Sprintf("pin %s assigns staff %s without a qualification for subject %s", pin.ID, pin.StaffID, pin.SubjectID)})
		}

		tracker.commitPinned(p, pin.ID)
		out.satisfied[pairKey{sectionID: pin.SectionID, subjectID: pin.SubjectID}]++
		out.placed = append(out.placed, &placedLesson{
			sectionID: pin.SectionID,
			subjectID: pin.SubjectID,
			staffID:   pin.StaffID,
			roomID:    pin.RoomID,
			slot:      slot,
			pinID:     pin.ID,
			origin:    pin.Origin,
		})
	}
	return out
}

func pinRank(origin PinOrigin) int {
	if origin == OriginLocked {
		return 1
	}
	return 0
}
