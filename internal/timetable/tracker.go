package timetable

// Placement binds a section's lesson to a slot, staff member and room.
// RoomID is empty when the school does not track rooms.
type Placement struct {
	SectionID string
	StaffID   string
	RoomID    string
	Slot      Slot
}

type occupancyKind uint8

const (
	occupancyTeacher occupancyKind = iota
	occupancyRoom
	occupancySection
)

func (k occupancyKind) String() string {
	switch k {
	case occupancyTeacher:
		return "teacher"
	case occupancyRoom:
		return "room"
	default:
		return "section"
	}
}

type occupancyKey struct {
	kind occupancyKind
	slot int
	id   string
}

type hold struct {
	pinned bool
	pinID  string
}

// Tracker is the mutable occupancy index for one run. Pinned holds are
// permanent; Commit/Release are the only mutations the search performs.
type Tracker struct {
	store *ConstraintStore
	busy  map[occupancyKey]hold
	avail map[occupancyKey]bool
}

// NewTracker creates an empty tracker consulting store for availability.
func NewTracker(store *ConstraintStore) *Tracker {
	if store == nil {
		store = NewConstraintStore(nil, nil, nil)
	}
	return &Tracker{
		store: store,
		busy:  make(map[occupancyKey]hold),
		avail: make(map[occupancyKey]bool),
	}
}

// CanPlace is true iff teacher, room and section are free at the slot and the
// staff member and room are available then.
func (t *Tracker) CanPlace(sectionID string, slot Slot, staffID, roomID string) bool {
	return t.sectionFree(sectionID, slot) && t.staffFree(staffID, slot) && t.roomFree(roomID, slot)
}

func (t *Tracker) sectionFree(sectionID string, slot Slot) bool {
	_, taken := t.busy[occupancyKey{kind: occupancySection, slot: slot.Index, id: sectionID}]
	return !taken
}

func (t *Tracker) staffFree(staffID string, slot Slot) bool {
	key := occupancyKey{kind: occupancyTeacher, slot: slot.Index, id: staffID}
	if _, taken := t.busy[key]; taken {
		return false
	}
	available, ok := t.avail[key]
	if !ok {
		available = t.store.IsStaffAvailable(staffID, slot)
		t.avail[key] = available
	}
	return available
}

func (t *Tracker) roomFree(roomID string, slot Slot) bool {
	if roomID == "" {
		return true
	}
	key := occupancyKey{kind: occupancyRoom, slot: slot.Index, id: roomID}
	if _, taken := t.busy[key]; taken {
		return false
	}
	available, ok := t.avail[key]
	if !ok {
		available = t.store.IsRoomAvailable(roomID, slot)
		t.avail[key] = available
	}
	return available
}

// Commit marks the placement's teacher, room and section busy.
func (t *Tracker) Commit(p Placement) {
	t.mark(p, hold{})
}

// Release frees a committed placement. Pinned holds are left untouched.
func (t *Tracker) Release(p Placement) {
	for _, key := range keysFor(p) {
		if h, ok := t.busy[key]; ok && !h.pinned {
			delete(t.busy, key)
		}
	}
}

func (t *Tracker) commitPinned(p Placement, pinID string) {
	t.mark(p, hold{pinned: true, pinID: pinID})
}

func (t *Tracker) mark(p Placement, h hold) {
	for _, key := range keysFor(p) {
		t.busy[key] = h
	}
}

// collision reports the first busy dimension for p and who holds it.
func (t *Tracker) collision(p Placement) (occupancyKind, hold, bool) {
	for _, key := range keysFor(p) {
		if h, ok := t.busy[key]; ok {
			return key.kind, h, true
		}
	}
	return 0, hold{}, false
}

func keysFor(p Placement) []occupancyKey {
	keys := make([]occupancyKey, 0, 3)
	keys = append(keys,
		occupancyKey{kind: occupancyTeacher, slot: p.Slot.Index, id: p.StaffID},
		occupancyKey{kind: occupancySection, slot: p.Slot.Index, id: p.SectionID},
	)
	if p.RoomID != "" {
		keys = append(keys, occupancyKey{kind: occupancyRoom, slot: p.Slot.Index, id: p.RoomID})
	}
	return keys
}
