package timetable

import (
	"fmt"
	"sort"
)

// BuildGrid expands the teaching days and period template into the ordered
// slot list: day ascending, then period start ascending. Break periods are
// skipped. Days outside 1..7 are dropped and duplicates merged.
func BuildGrid(cfg GridConfig) ([]Slot, error) {
	days := normalizeDays(cfg.Days)
	if len(days) == 0 {
		return nil, &ConfigError{Reason: "no teaching days configured"}
	}

	periods := make([]Period, 0, len(cfg.Periods))
	for _, p := range cfg.Periods {
		if p.Break {
			continue
		}
		if p.End <= p.Start {
			return nil, &ConfigError{Reason: fmt.Sprintf("period %d ends before it starts", p.Number)}
		}
		periods = append(periods, p)
	}
	if len(periods) == 0 {
		return nil, &ConfigError{Reason: "no teaching periods configured"}
	}
	sort.SliceStable(periods, func(i, j int) bool {
		if periods[i].Start == periods[j].Start {
			return periods[i].Number < periods[j].Number
		}
		return periods[i].Start < periods[j].Start
	})
	for i := 1; i < len(periods); i++ {
		if periods[i].Start < periods[i-1].End {
			return nil, &ConfigError{Reason: fmt.Sprintf("periods %d and %d overlap", periods[i-1].Number, periods[i].Number)}
		}
	}

	slots := make([]Slot, 0, len(days)*len(periods))
	for _, day := range days {
		for _, p := range periods {
			slots = append(slots, Slot{
				Index:  len(slots),
				Day:    day,
				Period: p.Number,
				Start:  p.Start,
				End:    p.End,
			})
		}
	}
	return slots, nil
}

func normalizeDays(days []int) []int {
	unique := make(map[int]struct{})
	for _, day := range days {
		if day < 1 || day > 7 {
			continue
		}
		unique[day] = struct{}{}
	}
	result := make([]int, 0, len(unique))
	for day := range unique {
		result = append(result, day)
	}
	sort.Ints(result)
	return result
}

// gridIndex resolves (day, start) pairs to slots, used to anchor pins.
type gridIndex map[gridKey]Slot

type gridKey struct {
	day   int
	start Clock
}

func newGridIndex(slots []Slot) gridIndex {
	idx := make(gridIndex, len(slots))
	for _, s := range slots {
		idx[gridKey{day: s.Day, start: s.Start}] = s
	}
	return idx
}

func (g gridIndex) lookup(day int, start Clock) (Slot, bool) {
	s, ok := g[gridKey{day: day, start: start}]
	return s, ok
}

// slotsByDay groups slot indices per day in grid order.
func slotsByDay(slots []Slot) map[int][]int {
	result := make(map[int][]int)
	for _, s := range slots {
		result[s.Day] = append(result[s.Day], s.Index)
	}
	return result
}
