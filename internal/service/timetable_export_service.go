package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

type timetableEntryLister interface {
	Entries(ctx context.Context, query dto.TimetableEntryQuery) ([]dto.TimetableEntryView, error)
}

var dayNames = map[int]string{1: "Monday", 2: "Tuesday", 3: "Wednesday", 4: "Thursday", 5: "Friday", 6: "Saturday", 7: "Sunday"}

// TimetableExportService renders persisted timetables as CSV or PDF.
type TimetableExportService struct {
	entries   timetableEntryLister
	exporters map[string]export.Exporter
	logger    *zap.Logger
}

// NewTimetableExportService constructs the export service with the CSV and PDF renderers.
func NewTimetableExportService(entries timetableEntryLister, logger *zap.Logger) *TimetableExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableExportService{
		entries: entries,
		exporters: map[string]export.Exporter{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		logger: logger,
	}
}

// Export renders the entries selected by query. A section or teacher filter
// produces a weekly grid; otherwise the full list is rendered.
func (s *TimetableExportService) Export(ctx context.Context, query dto.TimetableEntryQuery) (*dto.ExportFile, error) {
	exporter, ok := s.exporters[strings.ToLower(query.Format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	views, err := s.entries.Entries(ctx, query)
	if err != nil {
		return nil, err
	}

	var data export.Dataset
	var name string
	switch {
	case query.SectionID != "":
		name = "section-" + query.SectionID
		data = weeklyGrid("Timetable for section "+query.SectionID, views, func(v dto.TimetableEntryView) string {
			return lessonLabel(v.SubjectID, v.StaffID, v.RoomID)
		})
	case query.StaffID != "":
		name = "staff-" + query.StaffID
		data = weeklyGrid("Timetable for teacher "+query.StaffID, views, func(v dto.TimetableEntryView) string {
			return lessonLabel(v.SubjectID, v.SectionID, v.RoomID)
		})
	default:
		name = "term-" + query.TermID
		data = entryList("Timetable for term "+query.TermID, views)
	}

	content, err := exporter.Render(data)
	if err != nil {
		s.logger.Error("render timetable export", zap.String("format", query.Format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable export")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("timetable-%s.%s", name, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Content:     content,
	}, nil
}

func lessonLabel(subjectID, who string, roomID *string) string {
	label := subjectID + " / " + who
	if roomID != nil && *roomID != "" {
		label += " @ " + *roomID
	}
	return label
}

// weeklyGrid lays entries out with one row per period and one column per day.
func weeklyGrid(title string, views []dto.TimetableEntryView, cell func(dto.TimetableEntryView) string) export.Dataset {
	type periodKey struct {
		start, end string
	}
	daySet := map[int]struct{}{}
	periodSet := map[periodKey]struct{}{}
	cells := map[periodKey]map[int][]string{}
	for _, v := range views {
		key := periodKey{v.StartTime, v.EndTime}
		daySet[v.DayOfWeek] = struct{}{}
		periodSet[key] = struct{}{}
		if cells[key] == nil {
			cells[key] = map[int][]string{}
		}
		cells[key][v.DayOfWeek] = append(cells[key][v.DayOfWeek], cell(v))
	}

	days := make([]int, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Ints(days)
	periods := make([]periodKey, 0, len(periodSet))
	for key := range periodSet {
		periods = append(periods, key)
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].start != periods[j].start {
			return periods[i].start < periods[j].start
		}
		return periods[i].end < periods[j].end
	})

	headers := []string{"Time"}
	for _, day := range days {
		headers = append(headers, dayName(day))
	}
	rows := make([][]string, 0, len(periods))
	for _, key := range periods {
		row := []string{key.start + "-" + key.end}
		for _, day := range days {
			row = append(row, strings.Join(cells[key][day], "; "))
		}
		rows = append(rows, row)
	}
	return export.Dataset{Title: title, Headers: headers, Rows: rows}
}

func entryList(title string, views []dto.TimetableEntryView) export.Dataset {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		room := ""
		if v.RoomID != nil {
			room = *v.RoomID
		}
		rows = append(rows, []string{dayName(v.DayOfWeek), v.StartTime, v.EndTime, v.SectionID, v.SubjectID, v.StaffID, room, v.Origin})
	}
	return export.Dataset{
		Title:   title,
		Headers: []string{"Day", "Start", "End", "Section", "Subject", "Teacher", "Room", "Origin"},
		Rows:    rows,
	}
}

func dayName(day int) string {
	if name, ok := dayNames[day]; ok {
		return name
	}
	return fmt.Sprintf("Day %d", day)
}
