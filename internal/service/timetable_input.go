package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type schoolDataReader interface {
	ListPeriods(ctx context.Context, schoolID string) ([]models.SchoolPeriod, error)
	ListTeachingDays(ctx context.Context, schoolID string) ([]int, error)
	ListSections(ctx context.Context, schoolID, termID string) ([]models.Section, error)
	ListSubjects(ctx context.Context, schoolID string) ([]models.Subject, error)
	ListStaff(ctx context.Context, schoolID string) ([]models.Staff, error)
	ListRooms(ctx context.Context, schoolID string) ([]models.Room, error)
	ListRequirements(ctx context.Context, schoolID, termID string) ([]models.SectionRequirement, error)
	ListQualifications(ctx context.Context, schoolID string) ([]models.StaffQualification, error)
	ListStaffUnavailability(ctx context.Context, schoolID string) ([]models.Unavailability, error)
	ListRoomUnavailability(ctx context.Context, schoolID string) ([]models.Unavailability, error)
	ListPins(ctx context.Context, schoolID, termID string) ([]models.PinnedSlot, error)
}

// inputRequest names the horizon to load and the request-level overrides.
type inputRequest struct {
	SchoolID     string
	TermID       string
	Days         []int
	LockExisting bool
}

// loadInput reads everything one run consumes and converts it to engine types.
func (s *TimetableGeneratorService) loadInput(ctx context.Context, req inputRequest) (timetable.Input, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("timetable_load_input", time.Since(start)) }()

	var in timetable.Input
	internal := func(err error, what string) error {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+what)
	}

	periods, err := s.data.ListPeriods(ctx, req.SchoolID)
	if err != nil {
		return in, internal(err, "period template")
	}
	gridPeriods, err := toGridPeriods(periods)
	if err != nil {
		return in, err
	}
	days := req.Days
	if len(days) == 0 {
		if days, err = s.data.ListTeachingDays(ctx, req.SchoolID); err != nil {
			return in, internal(err, "teaching days")
		}
	}
	in.Grid = timetable.GridConfig{Days: days, Periods: gridPeriods}

	sections, err := s.data.ListSections(ctx, req.SchoolID, req.TermID)
	if err != nil {
		return in, internal(err, "sections")
	}
	for _, section := range sections {
		in.Sections = append(in.Sections, timetable.Section{ID: section.ID, ClassID: section.ClassID, Level: section.Level})
	}

	subjects, err := s.data.ListSubjects(ctx, req.SchoolID)
	if err != nil {
		return in, internal(err, "subjects")
	}
	for _, subject := range subjects {
		in.Subjects = append(in.Subjects, timetable.Subject{
			ID:           subject.ID,
			DepartmentID: deref(subject.DepartmentID),
			RoomType:     deref(subject.RoomType),
		})
	}

	staff, err := s.data.ListStaff(ctx, req.SchoolID)
	if err != nil {
		return in, internal(err, "staff")
	}
	for _, member := range staff {
		in.Staff = append(in.Staff, timetable.Staff{ID: member.ID})
	}

	rooms, err := s.data.ListRooms(ctx, req.SchoolID)
	if err != nil {
		return in, internal(err, "rooms")
	}
	for _, room := range rooms {
		in.Rooms = append(in.Rooms, timetable.Room{ID: room.ID, Type: deref(room.RoomType)})
	}

	reqs, err := s.data.ListRequirements(ctx, req.SchoolID, req.TermID)
	if err != nil {
		return in, internal(err, "section requirements")
	}
	for _, r := range reqs {
		in.Requirements = append(in.Requirements, timetable.Requirement{SectionID: r.SectionID, SubjectID: r.SubjectID, PeriodsPerWeek: r.PeriodsPerWeek})
	}

	links, err := s.data.ListQualifications(ctx, req.SchoolID)
	if err != nil {
		return in, internal(err, "staff qualifications")
	}
	for _, link := range links {
		in.Qualifications = append(in.Qualifications, timetable.Qualification{
			StaffID:   link.StaffID,
			SubjectID: link.SubjectID,
			ClassID:   deref(link.ClassID),
			Level:     deref(link.Level),
		})
	}

	staffWindows, err := s.data.ListStaffUnavailability(ctx, req.SchoolID)
	if err != nil {
		return in, internal(err, "staff unavailability")
	}
	if in.StaffUnavailability, err = toWindows(staffWindows); err != nil {
		return in, err
	}
	roomWindows, err := s.data.ListRoomUnavailability(ctx, req.SchoolID)
	if err != nil {
		return in, internal(err, "room unavailability")
	}
	if in.RoomUnavailability, err = toWindows(roomWindows); err != nil {
		return in, err
	}

	pins, err := s.data.ListPins(ctx, req.SchoolID, req.TermID)
	if err != nil {
		return in, internal(err, "pinned slots")
	}
	for _, pin := range pins {
		startClock, err := parseClockField("pinned slot "+pin.ID, pin.StartTime)
		if err != nil {
			return in, err
		}
		in.Pins = append(in.Pins, timetable.Pin{
			ID:        pin.ID,
			SectionID: pin.SectionID,
			SubjectID: pin.SubjectID,
			StaffID:   pin.StaffID,
			RoomID:    deref(pin.RoomID),
			Day:       pin.DayOfWeek,
			Start:     startClock,
			Origin:    timetable.OriginPinned,
		})
	}

	if req.LockExisting {
		locked, err := s.lockedPins(ctx, req.SchoolID, req.TermID)
		if err != nil {
			return in, err
		}
		in.Pins = append(in.Pins, locked...)
	}
	return in, nil
}

// lockedPins turns the horizon's previously generated entries into pins so
// the next run reproduces them verbatim.
func (s *TimetableGeneratorService) lockedPins(ctx context.Context, schoolID, termID string) ([]timetable.Pin, error) {
	existing, err := s.entries.ListGenerated(ctx, schoolID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing timetable")
	}
	pins := make([]timetable.Pin, 0, len(existing))
	for _, entry := range existing {
		startClock, err := parseClockField("timetable entry "+entry.ID, entry.StartTime)
		if err != nil {
			return nil, err
		}
		pins = append(pins, timetable.Pin{
			ID:        "lock-" + entry.ID,
			SectionID: entry.SectionID,
			SubjectID: entry.SubjectID,
			StaffID:   entry.StaffID,
			RoomID:    deref(entry.RoomID),
			Day:       entry.DayOfWeek,
			Start:     startClock,
			Origin:    timetable.OriginLocked,
		})
	}
	return pins, nil
}

func toGridPeriods(periods []models.SchoolPeriod) ([]timetable.Period, error) {
	out := make([]timetable.Period, 0, len(periods))
	for _, p := range periods {
		label := fmt.Sprintf("period %d", p.PeriodNo)
		startClock, err := parseClockField(label, p.StartTime)
		if err != nil {
			return nil, err
		}
		endClock, err := parseClockField(label, p.EndTime)
		if err != nil {
			return nil, err
		}
		out = append(out, timetable.Period{Number: p.PeriodNo, Start: startClock, End: endClock, Break: p.IsBreak})
	}
	return out, nil
}

func toWindows(rows []models.Unavailability) ([]timetable.Window, error) {
	out := make([]timetable.Window, 0, len(rows))
	for _, row := range rows {
		label := "unavailability of " + row.OwnerID
		startClock, err := parseClockField(label, row.StartTime)
		if err != nil {
			return nil, err
		}
		endClock, err := parseClockField(label, row.EndTime)
		if err != nil {
			return nil, err
		}
		out = append(out, timetable.Window{OwnerID: row.OwnerID, Day: row.DayOfWeek, Start: startClock, End: endClock})
	}
	return out, nil
}

func parseClockField(label, raw string) (timetable.Clock, error) {
	value, err := timetable.ParseClock(raw)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status,
			fmt.Sprintf("%s has an invalid time %q", label, raw))
	}
	return value, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
