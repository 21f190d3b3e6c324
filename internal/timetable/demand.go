package timetable

import (
	"fmt"
	"sort"
	"strings"
)

// Lesson is one unit of teaching demand: a section needs one period of a
// subject taught by one of Staff in one of Rooms. An empty room id means the
// school does not track rooms. Reason is set for lessons that cannot be placed
// whatever the search does.
type Lesson struct {
	SectionID string
	SubjectID string
	Ordinal   int
	Staff     []string
	Rooms     []string
	Reason    Reason
}

// Demand is the compiled lesson list.
type Demand struct {
	Placeable   []Lesson
	Unplaceable []Lesson
	Warnings    []Warning
}

type pairKey struct {
	sectionID string
	subjectID string
}

// eligibility is the precomputed adjacency used by the compiler: subject to
// qualification links and room type to rooms.
type eligibility struct {
	sections     map[string]Section
	subjects     map[string]Subject
	linksBySubj  map[string][]Qualification
	roomsByType  map[string][]string
	allRooms     []string
	roomsTracked bool
}

func newEligibility(in Input) *eligibility {
	e := &eligibility{
		sections:    make(map[string]Section, len(in.Sections)),
		subjects:    make(map[string]Subject, len(in.Subjects)),
		linksBySubj: make(map[string][]Qualification),
		roomsByType: make(map[string][]string),
	}
	for _, s := range in.Sections {
		e.sections[s.ID] = s
	}
	for _, s := range in.Subjects {
		e.subjects[s.ID] = s
	}
	for _, q := range in.Qualifications {
		if q.StaffID == "" || q.SubjectID == "" {
			continue
		}
		e.linksBySubj[q.SubjectID] = append(e.linksBySubj[q.SubjectID], q)
	}

	rooms := make([]Room, len(in.Rooms))
	copy(rooms, in.Rooms)
	sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	seen := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		e.allRooms = append(e.allRooms, r.ID)
		typ := strings.ToLower(strings.TrimSpace(r.Type))
		if typ != "" {
			e.roomsByType[typ] = append(e.roomsByType[typ], r.ID)
		}
	}
	e.roomsTracked = len(e.allRooms) > 0
	return e
}

// coverage ranks how specifically q covers section: 0 class, 1 level,
// 2 school-wide. ok is false when q does not cover it.
func coverage(q Qualification, section Section) (rank int, ok bool) {
	switch {
	case q.ClassID != "" && q.ClassID == section.ClassID:
		return 0, true
	case q.Level != "" && q.Level == section.Level:
		return 1, true
	case q.ClassID == "" && q.Level == "":
		return 2, true
	}
	return 0, false
}

// staffFor returns eligible staff for (section, subject), most specific
// qualification first, then by id.
func (e *eligibility) staffFor(section Section, subjectID string) []string {
	best := make(map[string]int)
	for _, q := range e.linksBySubj[subjectID] {
		rank, ok := coverage(q, section)
		if !ok {
			continue
		}
		if current, seen := best[q.StaffID]; !seen || rank < current {
			best[q.StaffID] = rank
		}
	}
	staff := make([]string, 0, len(best))
	for id := range best {
		staff = append(staff, id)
	}
	sort.Slice(staff, func(i, j int) bool {
		if best[staff[i]] == best[staff[j]] {
			return staff[i] < staff[j]
		}
		return best[staff[i]] < best[staff[j]]
	})
	return staff
}

func (e *eligibility) qualified(staffID string, section Section, subjectID string) bool {
	for _, q := range e.linksBySubj[subjectID] {
		if q.StaffID != staffID {
			continue
		}
		if _, ok := coverage(q, section); ok {
			return true
		}
	}
	return false
}

// roomsFor returns eligible rooms for the subject, or a single empty id when
// rooms are not tracked at all.
func (e *eligibility) roomsFor(subjectID string) []string {
	if !e.roomsTracked {
		return []string{""}
	}
	typ := strings.ToLower(strings.TrimSpace(e.subjects[subjectID].RoomType))
	if typ == "" {
		return e.allRooms
	}
	return e.roomsByType[typ]
}

// CompileDemand turns requirements into lessons. Each committed pin satisfies
// one unit of demand for its (section, subject) pair.
func CompileDemand(in Input, committed []Pin) Demand {
	pinned := make(map[pairKey]int, len(committed))
	for _, pin := range committed {
		pinned[pairKey{sectionID: pin.SectionID, subjectID: pin.SubjectID}]++
	}
	return compileDemand(newEligibility(in), in.Requirements, pinned)
}

func compileDemand(e *eligibility, requirements []Requirement, pinned map[pairKey]int) Demand {
	var demand Demand

	totals := make(map[pairKey]int)
	order := make([]pairKey, 0, len(requirements))
	for _, req := range requirements {
		if _, ok := e.sections[req.SectionID]; !ok {
			demand.Warnings = append(demand.Warnings, Warning{
				Code:    WarnRequirementUnknownRef,
				Message: fmt.Sprintf("requirement references unknown section %s", req.SectionID),
			})
			continue
		}
		if _, ok := e.subjects[req.SubjectID]; !ok {
			demand.Warnings = append(demand.Warnings, Warning{
				Code:    WarnRequirementUnknownRef,
				Message: fmt.Sprintf("requirement references unknown subject %s", req.SubjectID),
			})
			continue
		}
		if req.PeriodsPerWeek <= 0 {
			continue
		}
		key := pairKey{sectionID: req.SectionID, subjectID: req.SubjectID}
		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		totals[key] += req.PeriodsPerWeek
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].sectionID == order[j].sectionID {
			return order[i].subjectID < order[j].subjectID
		}
		return order[i].sectionID < order[j].sectionID
	})

	for _, key := range order {
		count := totals[key] - pinned[key]
		if count <= 0 {
			continue
		}
		section := e.sections[key.sectionID]
		staff := e.staffFor(section, key.subjectID)
		rooms := e.roomsFor(key.subjectID)

		var reason Reason
		switch {
		case len(staff) == 0:
			reason = ReasonNoQualifiedStaff
		case len(rooms) == 0:
			reason = ReasonNoEligibleRoom
		}

		for ordinal := 1; ordinal <= count; ordinal++ {
			lesson := Lesson{
				SectionID: key.sectionID,
				SubjectID: key.subjectID,
				Ordinal:   ordinal,
				Staff:     staff,
				Rooms:     rooms,
				Reason:    reason,
			}
			if reason != "" {
				demand.Unplaceable = append(demand.Unplaceable, lesson)
				continue
			}
			demand.Placeable = append(demand.Placeable, lesson)
		}
	}
	return demand
}
