package timetable

import "fmt"

// Generate runs one timetable generation: pins are pre-committed, demand is
// compiled, the search places the rest and the result is cross-checked.
// Identical input and options with no time budget give identical output.
func Generate(in Input, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	started := opts.Now()

	grid, err := BuildGrid(in.Grid)
	if err != nil {
		return nil, err
	}
	switch {
	case len(in.Sections) == 0:
		return nil, &ConfigError{Reason: "no sections defined for the horizon"}
	case len(in.Subjects) == 0:
		return nil, &ConfigError{Reason: "no subjects defined for the school"}
	case len(in.Requirements) == 0:
		return nil, &ConfigError{Reason: "no requirements defined for the horizon"}
	case len(in.Qualifications) == 0:
		return nil, &ConfigError{Reason: "no staff qualifications defined for the school"}
	}

	e := newEligibility(in)
	store := NewConstraintStore(in.StaffUnavailability, in.RoomUnavailability, in.Pins)
	tracker := NewTracker(store)

	pins := commitPins(in, grid, e, store, tracker)
	demand := compileDemand(e, in.Requirements, pins.satisfied)

	ordered, blocked := orderLessons(grid, tracker, demand.Placeable)
	search := newSearcher(grid, tracker, ordered, opts, started)
	search.run()
	generated, unplaced := search.outcome()

	placed := make([]*placedLesson, 0, len(pins.placed)+len(generated))
	placed = append(placed, pins.placed...)
	for i := range generated {
		placed = append(placed, &generated[i])
	}

	moves := 0
	if opts.CompactGaps {
		moves = compactGaps(grid, tracker, placed, defaultCompactionLimit)
	}

	entries, err := Materialize(toEntries(placed))
	if err != nil {
		return nil, fmt.Errorf("materialize timetable: %w", err)
	}

	report := Report{
		TotalLessons: len(demand.Placeable) + len(demand.Unplaceable),
		PlacedCount:  len(generated),
		PinnedCount:  len(pins.placed),
		RejectedPins: pins.rejected,
		Warnings:     append(demand.Warnings, pins.warnings...),
		Stats: Stats{
			Attempts:         search.attempts,
			Backtracks:       search.backtracks,
			DeadEnds:         search.deadEnds,
			ExhaustedLessons: search.exhaustedCount,
			CompactionMoves:  moves,
			GapPenalty:       gapPenalty(grid, entries),
			BudgetExhausted:  search.budgetExhausted,
		},
	}
	for _, l := range demand.Unplaceable {
		report.Unplaced = append(report.Unplaced, UnplacedLesson{SectionID: l.SectionID, SubjectID: l.SubjectID, Ordinal: l.Ordinal, Reason: l.Reason})
	}
	for _, l := range blocked {
		report.Unplaced = append(report.Unplaced, UnplacedLesson{SectionID: l.SectionID, SubjectID: l.SubjectID, Ordinal: l.Ordinal, Reason: ReasonNoFreeSlot})
	}
	report.Unplaced = append(report.Unplaced, unplaced...)
	report.UnplacedCount = len(report.Unplaced)
	report.Complete = report.UnplacedCount == 0
	report.Stats.Duration = opts.Now().Sub(started)

	return &Result{Slots: grid, Entries: entries, Report: report}, nil
}
