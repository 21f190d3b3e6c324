package timetable

import (
	"sort"
	"time"
)

type candidate struct {
	slot  Slot
	staff string
	room  string
}

type searchLesson struct {
	lesson Lesson
	// options is the number of (slot, staff, room) triples still open once
	// pins and unavailability are applied. Lessons are searched fewest first.
	options int
}

// frame is one level of the explicit search stack: the lesson at order
// position pos and how far through its candidate space the cursor has moved.
type frame struct {
	pos     int
	cursor  int
	placed  bool
	skipped bool
	chosen  candidate
}

// deadEnd tracks an open backtracking episode started when the lesson at pos
// found no candidate. snapshot is the stack as it stood before the failure.
type deadEnd struct {
	pos      int
	snapshot []frame
	undone   int
}

type stepResult int

const (
	stepPlaced stepResult = iota
	stepExhausted
	stepBudget
)

type searcher struct {
	grid           []Slot
	tracker        *Tracker
	lessons        []searchLesson
	exhausted      []bool
	cutOff         []bool
	stack          []frame
	open           *deadEnd
	stepBudget     int
	backtrackLimit int
	deadline       time.Time
	now            func() time.Time
	timedOut       bool

	attempts        int
	backtracks      int
	deadEnds        int
	exhaustedCount  int
	budgetExhausted bool
}

func newSearcher(grid []Slot, tracker *Tracker, lessons []searchLesson, opts Options, started time.Time) *searcher {
	s := &searcher{
		grid:           grid,
		tracker:        tracker,
		lessons:        lessons,
		exhausted:      make([]bool, len(lessons)),
		cutOff:         make([]bool, len(lessons)),
		stack:          make([]frame, 0, len(lessons)),
		stepBudget:     opts.StepBudget,
		backtrackLimit: opts.BacktrackLimit,
		now:            opts.Now,
	}
	if opts.TimeBudget > 0 {
		s.deadline = started.Add(opts.TimeBudget)
	}
	return s
}

// orderLessons counts the statically open candidates of every lesson and
// sorts most-constrained first. Lessons with no open candidate at all are
// returned separately: no amount of backtracking can place them.
func orderLessons(grid []Slot, tracker *Tracker, lessons []Lesson) (ordered []searchLesson, blocked []Lesson) {
	for _, lesson := range lessons {
		options := 0
		for _, slot := range grid {
			if !tracker.sectionFree(lesson.SectionID, slot) {
				continue
			}
			staff := 0
			for _, id := range lesson.Staff {
				if tracker.staffFree(id, slot) {
					staff++
				}
			}
			if staff == 0 {
				continue
			}
			rooms := 0
			for _, id := range lesson.Rooms {
				if tracker.roomFree(id, slot) {
					rooms++
				}
			}
			options += staff * rooms
		}
		if options == 0 {
			blocked = append(blocked, lesson)
			continue
		}
		ordered = append(ordered, searchLesson{lesson: lesson, options: options})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.options != b.options {
			return a.options < b.options
		}
		if a.lesson.SectionID != b.lesson.SectionID {
			return a.lesson.SectionID < b.lesson.SectionID
		}
		if a.lesson.SubjectID != b.lesson.SubjectID {
			return a.lesson.SubjectID < b.lesson.SubjectID
		}
		return a.lesson.Ordinal < b.lesson.Ordinal
	})
	return ordered, blocked
}

// run drives the stack until every lesson is placed or given up, or the
// budget runs out.
func (s *searcher) run() {
	resume := false
	for {
		if !resume {
			if len(s.stack) == len(s.lessons) {
				return
			}
			pos := len(s.stack)
			s.stack = append(s.stack, frame{pos: pos})
			if s.exhausted[pos] || s.cutOff[pos] {
				s.stack[pos].skipped = true
				continue
			}
		}
		resume = false

		top := &s.stack[len(s.stack)-1]
		switch s.advance(top) {
		case stepPlaced:
			if s.open != nil && top.pos >= s.open.pos {
				s.open = nil
			}
		case stepBudget:
			s.budgetExhausted = true
			if s.open != nil {
				s.restore()
			} else {
				s.stack = s.stack[:len(s.stack)-1]
			}
			return
		case stepExhausted:
			if s.open == nil {
				s.deadEnds++
				s.open = &deadEnd{pos: top.pos, snapshot: cloneFrames(s.stack[:len(s.stack)-1])}
			}
			s.stack = s.stack[:len(s.stack)-1]
			undone, capped := s.backtrack()
			if undone {
				resume = true
				continue
			}
			pos := s.open.pos
			s.restore()
			if capped {
				// Alternatives remain above the cap, so the lesson is unproven.
				s.cutOff[pos] = true
				s.budgetExhausted = true
				continue
			}
			s.exhausted[pos] = true
			s.exhaustedCount++
		}
	}
}

// advance moves the frame's cursor through slot × staff × room order until a
// free combination is committed. A busy section skips the whole slot and a
// busy or unavailable teacher skips all of that teacher's rooms.
func (s *searcher) advance(f *frame) stepResult {
	sl := s.lessons[f.pos].lesson
	perStaff := len(sl.Rooms)
	perSlot := len(sl.Staff) * perStaff
	total := len(s.grid) * perSlot

	for f.cursor < total {
		if s.spent() {
			return stepBudget
		}
		s.attempts++

		slotIdx := f.cursor / perSlot
		staffIdx := (f.cursor % perSlot) / perStaff
		roomIdx := f.cursor % perStaff
		slot := s.grid[slotIdx]

		if !s.tracker.sectionFree(sl.SectionID, slot) {
			f.cursor = (slotIdx + 1) * perSlot
			continue
		}
		staff := sl.Staff[staffIdx]
		if !s.tracker.staffFree(staff, slot) {
			f.cursor = slotIdx*perSlot + (staffIdx+1)*perStaff
			continue
		}
		room := sl.Rooms[roomIdx]
		f.cursor++
		if !s.tracker.roomFree(room, slot) {
			continue
		}

		f.chosen = candidate{slot: slot, staff: staff, room: room}
		f.placed = true
		s.tracker.Commit(s.placement(f))
		return stepPlaced
	}
	return stepExhausted
}

// backtrack undoes the nearest placed frame so its cursor can move on. It
// fails when the stack is empty, meaning the open dead end has been searched
// through, or when the dead end has undone BacktrackLimit placements, in which
// case capped is set.
func (s *searcher) backtrack() (undone, capped bool) {
	for len(s.stack) > 0 {
		top := &s.stack[len(s.stack)-1]
		if top.skipped || !top.placed {
			s.stack = s.stack[:len(s.stack)-1]
			continue
		}
		if s.backtrackLimit > 0 && s.open.undone >= s.backtrackLimit {
			return false, true
		}
		s.tracker.Release(s.placement(top))
		top.placed = false
		s.open.undone++
		s.backtracks++
		return true, false
	}
	return false, false
}

// restore rewinds tracker and stack to the open dead end's snapshot.
func (s *searcher) restore() {
	for i := range s.stack {
		if s.stack[i].placed {
			s.tracker.Release(s.placement(&s.stack[i]))
		}
	}
	s.stack = cloneFrames(s.open.snapshot)
	for i := range s.stack {
		if s.stack[i].placed {
			s.tracker.Commit(s.placement(&s.stack[i]))
		}
	}
	s.open = nil
}

func (s *searcher) spent() bool {
	if s.attempts >= s.stepBudget {
		return true
	}
	if s.deadline.IsZero() {
		return false
	}
	if !s.timedOut && s.attempts%64 == 0 && s.now().After(s.deadline) {
		s.timedOut = true
	}
	return s.timedOut
}

func (s *searcher) placement(f *frame) Placement {
	return Placement{
		SectionID: s.lessons[f.pos].lesson.SectionID,
		StaffID:   f.chosen.staff,
		RoomID:    f.chosen.room,
		Slot:      f.chosen.slot,
	}
}

// outcome splits the ordered lessons into placed and unplaced.
func (s *searcher) outcome() (placed []placedLesson, unplaced []UnplacedLesson) {
	reached := make([]bool, len(s.lessons))
	for i := range s.stack {
		f := &s.stack[i]
		reached[f.pos] = true
		if !f.placed {
			continue
		}
		lesson := s.lessons[f.pos].lesson
		placed = append(placed, placedLesson{
			sectionID: lesson.SectionID,
			subjectID: lesson.SubjectID,
			staffID:   f.chosen.staff,
			roomID:    f.chosen.room,
			slot:      f.chosen.slot,
			origin:    OriginGenerated,
		})
	}
	for pos, sl := range s.lessons {
		var reason Reason
		switch {
		case s.exhausted[pos]:
			reason = ReasonNoFreeSlot
		case s.cutOff[pos] || !reached[pos]:
			reason = ReasonBudgetExhausted
		default:
			continue
		}
		unplaced = append(unplaced, UnplacedLesson{
			SectionID: sl.lesson.SectionID,
			SubjectID: sl.lesson.SubjectID,
			Ordinal:   sl.lesson.Ordinal,
			Reason:    reason,
		})
	}
	return placed, unplaced
}

func cloneFrames(frames []frame) []frame {
	out := make([]frame, len(frames))
	copy(out, frames)
	return out
}
