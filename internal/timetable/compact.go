package timetable

import "sort"

// placedLesson is a committed lesson on its way to becoming an Entry.
type placedLesson struct {
	sectionID string
	subjectID string
	staffID   string
	roomID    string
	slot      Slot
	pinID     string
	origin    PinOrigin
}

func (p *placedLesson) pinned() bool {
	return p.pinID != ""
}

func (p *placedLesson) placement() Placement {
	return Placement{SectionID: p.sectionID, StaffID: p.staffID, RoomID: p.roomID, Slot: p.slot}
}

// compactGaps pulls generated lessons forward into idle periods inside a
// section's day, keeping staff and room. Pinned lessons never move. It returns
// the number of moves made.
func compactGaps(grid []Slot, tracker *Tracker, lessons []*placedLesson, maxIterations int) int {
	days := slotsByDay(grid)
	dayKeys := make([]int, 0, len(days))
	for day := range days {
		dayKeys = append(dayKeys, day)
	}
	sort.Ints(dayKeys)

	position := make(map[int]int, len(grid))
	for _, indices := range days {
		for pos, idx := range indices {
			position[idx] = pos
		}
	}

	bySection := make(map[string][]*placedLesson)
	sections := make([]string, 0)
	for _, l := range lessons {
		if _, ok := bySection[l.sectionID]; !ok {
			sections = append(sections, l.sectionID)
		}
		bySection[l.sectionID] = append(bySection[l.sectionID], l)
	}
	sort.Strings(sections)

	moves := 0
	for moves < maxIterations {
		moved := false
		for _, sectionID := range sections {
			for _, day := range dayKeys {
				if pullForward(grid, days[day], position, tracker, bySection[sectionID], day) {
					moved = true
					break
				}
			}
			if moved {
				break
			}
		}
		if !moved {
			break
		}
		moves++
	}
	return moves
}

func pullForward(grid []Slot, daySlots []int, position map[int]int, tracker *Tracker, lessons []*placedLesson, day int) bool {
	var today []*placedLesson
	for _, l := range lessons {
		if l.slot.Day == day {
			today = append(today, l)
		}
	}
	if len(today) < 2 {
		return false
	}
	sort.Slice(today, func(i, j int) bool { return today[i].slot.Index < today[j].slot.Index })

	for i := 0; i < len(today)-1; i++ {
		current := position[today[i].slot.Index]
		next := today[i+1]
		gap := position[next.slot.Index] - current
		if gap <= 1 {
			continue
		}
		if !next.pinned() && moveTo(tracker, next, grid[daySlots[current+1]]) {
			return true
		}
		// A leading lesson may also slide later towards a fixed neighbour.
		if i == 0 && next.pinned() && !today[i].pinned() && moveTo(tracker, today[i], grid[daySlots[current+gap-1]]) {
			return true
		}
	}
	return false
}

func moveTo(tracker *Tracker, lesson *placedLesson, target Slot) bool {
	tracker.Release(lesson.placement())
	if tracker.CanPlace(lesson.sectionID, target, lesson.staffID, lesson.roomID) {
		lesson.slot = target
		tracker.Commit(lesson.placement())
		return true
	}
	tracker.Commit(lesson.placement())
	return false
}

// gapPenalty counts idle periods between each section's first and last
// lesson of every day.
func gapPenalty(grid []Slot, entries []Entry) int {
	days := slotsByDay(grid)
	position := make(map[int]int, len(grid))
	for _, indices := range days {
		for pos, idx := range indices {
			position[idx] = pos
		}
	}
	type sectionDay struct {
		section string
		day     int
	}
	spans := make(map[sectionDay][]int)
	for _, e := range entries {
		key := sectionDay{section: e.SectionID, day: e.Slot.Day}
		spans[key] = append(spans[key], position[e.Slot.Index])
	}
	penalty := 0
	for _, positions := range spans {
		if len(positions) < 2 {
			continue
		}
		sort.Ints(positions)
		penalty += positions[len(positions)-1] - positions[0] + 1 - len(positions)
	}
	return penalty
}
