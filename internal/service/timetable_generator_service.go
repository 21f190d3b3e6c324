package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
)

type timetableEntryStore interface {
	DeleteReplaceable(ctx context.Context, exec sqlx.ExtContext, schoolID, termID string, keepPinIDs []string) (int64, error)
	UpsertPinned(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error
	List(ctx context.Context, filter models.TimetableEntryFilter) ([]models.TimetableEntry, error)
	ListGenerated(ctx context.Context, schoolID, termID string) ([]models.TimetableEntry, error)
}

type timetableRunStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error
	Latest(ctx context.Context, schoolID, termID string) (*models.TimetableRun, error)
	LatestRunID(ctx context.Context, schoolID, termID string) (string, error)
}

type runLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type timetableEventSink interface {
	TimetableGenerated(evt events.TimetableGenerated)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableGeneratorConfig governs generator behaviour.
type TimetableGeneratorConfig struct {
	StepBudget     int
	TimeBudget     time.Duration
	BacktrackLimit int
	CompactGaps    bool
	ProposalTTL    time.Duration
	LockTTL        time.Duration
}

// TimetableGeneratorService runs the timetable engine for a school and term,
// keeps uncommitted results as proposals and persists committed ones.
type TimetableGeneratorService struct {
	data      schoolDataReader
	entries   timetableEntryStore
	runs      timetableRunStore
	locks     runLocker
	tx        txProvider
	cache     *CacheService
	metrics   *MetricsService
	events    timetableEventSink
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableGeneratorConfig
	store     *proposalStore
	now       func() time.Time
}

// NewTimetableGeneratorService wires generator dependencies. cache, metrics
// and eventSink may be nil.
func NewTimetableGeneratorService(
	data schoolDataReader,
	entries timetableEntryStore,
	runs timetableRunStore,
	locks runLocker,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	eventSink timetableEventSink,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableGeneratorConfig,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &TimetableGeneratorService{
		data:      data,
		entries:   entries,
		runs:      runs,
		locks:     locks,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		events:    eventSink,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		store:     newProposalStore(cfg.ProposalTTL),
		now:       time.Now,
	}
}

// Generate runs the engine. Without commit the result is kept as a proposal;
// with commit it is persisted when complete or when allowPartial is set.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}

	release, err := s.acquire(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}
	defer release()

	input, err := s.loadInput(ctx, inputRequest{
		SchoolID:     req.SchoolID,
		TermID:       req.TermID,
		Days:         req.Days,
		LockExisting: req.LockExisting,
	})
	if err != nil {
		return nil, err
	}

	version, err := s.horizonVersion(ctx, req.SchoolID, req.TermID)
	if err != nil {
		return nil, err
	}

	opts, err := s.options(ctx, req)
	if err != nil {
		return nil, err
	}

	started := s.now()
	result, err := timetable.Generate(input, opts)
	if err != nil {
		s.metrics.ObserveGenerationFailure(s.now().Sub(started))
		if timetable.IsConfigError(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, err.Error())
		}
		s.logger.Error("timetable generation failed", zap.String("school_id", req.SchoolID), zap.String("term_id", req.TermID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation failed")
	}
	s.observe(req.SchoolID, req.TermID, result)

	proposal := timetableProposal{
		ProposalID:  uuid.NewString(),
		SchoolID:    req.SchoolID,
		TermID:      req.TermID,
		Result:      result,
		Version:     version,
		RequestedBy: req.RequestedBy,
		RequestedAt: s.now(),
	}
	resp := &dto.GenerateTimetableResponse{
		Report:  buildReport(req.SchoolID, req.TermID, "", result, proposal.RequestedAt),
		Entries: entryViews(result.Entries),
	}

	if !req.Commit || (!result.Report.Complete && !req.AllowPartial) {
		s.store.Save(proposal)
		resp.ProposalID = proposal.ProposalID
		return resp, nil
	}

	run, err := s.persist(ctx, proposal, req.RequestedBy)
	if err != nil {
		return nil, err
	}
	resp.RunID = run.ID
	resp.Committed = true
	resp.Report.RunID = run.ID
	return resp, nil
}

// CommitProposal persists a proposal produced by an earlier Generate call.
func (s *TimetableGeneratorService) CommitProposal(ctx context.Context, req dto.CommitProposalRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid commit payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok || proposal.SchoolID != req.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if !proposal.Result.Report.Complete && !req.AllowPartial {
		partial := appErrors.Clone(appErrors.ErrPartialTimetable,
			fmt.Sprintf("proposal leaves %d lessons unplaced; set allowPartial to persist it", proposal.Result.Report.UnplacedCount))
		return nil, appErrors.WithDetails(partial, map[string]interface{}{
			"proposalId":    proposal.ProposalID,
			"unplacedCount": proposal.Result.Report.UnplacedCount,
		})
	}

	release, err := s.acquire(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.horizonVersion(ctx, proposal.SchoolID, proposal.TermID)
	if err != nil {
		return nil, err
	}
	if current != proposal.Version {
		s.store.Delete(proposal.ProposalID)
		stale := appErrors.Clone(appErrors.ErrConflict, "timetable changed since the proposal was generated; generate again")
		return nil, appErrors.WithDetails(stale, map[string]interface{}{
			"proposalId": proposal.ProposalID,
		})
	}

	committedBy := req.RequestedBy
	if committedBy == "" {
		committedBy = proposal.RequestedBy
	}
	run, err := s.persist(ctx, proposal, committedBy)
	if err != nil {
		return nil, err
	}
	s.store.Delete(proposal.ProposalID)

	return &dto.GenerateTimetableResponse{
		RunID:     run.ID,
		Committed: true,
		Report:    buildReport(proposal.SchoolID, proposal.TermID, run.ID, proposal.Result, proposal.RequestedAt),
		Entries:   entryViews(proposal.Result.Entries),
	}, nil
}

// horizonVersion fingerprints the stored state a generation builds on: the
// latest committed run and the pinned slots of the horizon.
func (s *TimetableGeneratorService) horizonVersion(ctx context.Context, schoolID, termID string) (string, error) {
	runID, err := s.runs.LatestRunID(ctx, schoolID, termID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest timetable run")
	}
	pins, err := s.data.ListPins(ctx, schoolID, termID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pinned slots")
	}

	keys := make([]string, 0, len(pins))
	for _, pin := range pins {
		room := ""
		if pin.RoomID != nil {
			room = *pin.RoomID
		}
		keys = append(keys, strings.Join([]string{
			pin.ID, pin.SectionID, pin.SubjectID, pin.StaffID, room, strconv.Itoa(pin.DayOfWeek), pin.StartTime,
		}, "|"))
	}
	sort.Strings(keys)

	payload := runID + "\n" + strings.Join(keys, "\n")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(payload)).String(), nil
}

// LatestRun returns the report of the most recent committed run.
func (s *TimetableGeneratorService) LatestRun(ctx context.Context, schoolID, termID string) (*dto.TimetableReport, error) {
	if schoolID == "" || termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolId and termId are required")
	}

	if cached, hit := s.cache.Report(ctx, schoolID, termID); hit {
		return cached, nil
	}

	run, err := s.runs.Latest(ctx, schoolID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no committed timetable for this term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable run")
	}

	var report dto.TimetableReport
	if err := json.Unmarshal(run.Report, &report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored timetable report is unreadable")
	}
	report.RunID = run.ID
	s.cache.StoreReport(ctx, report)
	return &report, nil
}

// Entries lists persisted entries of a horizon, optionally for one section or teacher.
func (s *TimetableGeneratorService) Entries(ctx context.Context, query dto.TimetableEntryQuery) ([]dto.TimetableEntryView, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	rows, err := s.entries.List(ctx, models.TimetableEntryFilter{
		SchoolID:  query.SchoolID,
		TermID:    query.TermID,
		SectionID: query.SectionID,
		StaffID:   query.StaffID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable entries")
	}
	views := make([]dto.TimetableEntryView, 0, len(rows))
	for _, row := range rows {
		views = append(views, dto.TimetableEntryView{
			SectionID: row.SectionID,
			SubjectID: row.SubjectID,
			StaffID:   row.StaffID,
			RoomID:    row.RoomID,
			DayOfWeek: row.DayOfWeek,
			PeriodNo:  row.PeriodNo,
			StartTime: row.StartTime,
			EndTime:   row.EndTime,
			Origin:    string(row.Origin),
			PinID:     row.PinID,
		})
	}
	return views, nil
}

func (s *TimetableGeneratorService) acquire(ctx context.Context, schoolID string) (func(), error) {
	token, ok, err := s.locks.Acquire(ctx, schoolID, s.cfg.LockTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire generation lock")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrRunInProgress, "a timetable generation is already running for school "+schoolID)
	}
	return func() {
		if err := s.locks.Release(context.Background(), schoolID, token); err != nil {
			s.logger.Warn("release generation lock", zap.String("school_id", schoolID), zap.Error(err))
		}
	}, nil
}

func (s *TimetableGeneratorService) options(ctx context.Context, req dto.GenerateTimetableRequest) (timetable.Options, error) {
	opts := timetable.Options{
		StepBudget:     s.cfg.StepBudget,
		TimeBudget:     s.cfg.TimeBudget,
		BacktrackLimit: s.cfg.BacktrackLimit,
		CompactGaps:    s.cfg.CompactGaps,
		Now:            s.now,
	}
	if req.StepBudget != nil {
		opts.StepBudget = *req.StepBudget
	}
	if req.TimeBudgetMs != nil {
		opts.TimeBudget = time.Duration(*req.TimeBudgetMs) * time.Millisecond
	}
	if req.BacktrackLimit != nil {
		opts.BacktrackLimit = *req.BacktrackLimit
	}
	if req.CompactGaps != nil {
		opts.CompactGaps = *req.CompactGaps
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			return opts, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request deadline exceeded before generation")
		}
		if opts.TimeBudget <= 0 || remaining < opts.TimeBudget {
			opts.TimeBudget = remaining
		}
	}
	return opts, nil
}

// persist replaces the horizon's timetable with the proposal in one transaction.
func (s *TimetableGeneratorService) persist(ctx context.Context, proposal timetableProposal, committedBy string) (run *models.TimetableRun, err error) {
	result := proposal.Result
	runID := uuid.NewString()
	committedAt := s.now().UTC()

	report := buildReport(proposal.SchoolID, proposal.TermID, runID, result, proposal.RequestedAt)
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable report")
	}

	pinned, generated, keepPinIDs := splitEntries(proposal.SchoolID, proposal.TermID, runID, committedAt, result.Entries)

	status := models.TimetableRunCommitted
	if !result.Report.Complete {
		status = models.TimetableRunPartial
	}
	run = &models.TimetableRun{
		ID:            runID,
		SchoolID:      proposal.SchoolID,
		TermID:        proposal.TermID,
		Status:        status,
		Complete:      result.Report.Complete,
		PlacedCount:   result.Report.PlacedCount,
		PinnedCount:   result.Report.PinnedCount,
		UnplacedCount: result.Report.UnplacedCount,
		Report:        types.JSONText(payload),
		CommittedBy:   optional(committedBy),
		CreatedAt:     committedAt,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.entries.DeleteReplaceable(ctx, tx, proposal.SchoolID, proposal.TermID, keepPinIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear previous timetable")
	}
	if err = s.entries.UpsertPinned(ctx, tx, pinned); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store pinned lessons")
	}
	if err = s.entries.InsertBatch(ctx, tx, generated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable entries")
	}
	if err = s.runs.Create(ctx, tx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record timetable run")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable")
	}

	s.cache.StoreReport(ctx, report)
	if s.events != nil {
		s.events.TimetableGenerated(events.TimetableGenerated{
			RunID:         runID,
			SchoolID:      proposal.SchoolID,
			TermID:        proposal.TermID,
			PlacedCount:   result.Report.PlacedCount,
			PinnedCount:   result.Report.PinnedCount,
			UnplacedCount: result.Report.UnplacedCount,
			Complete:      result.Report.Complete,
			CommittedBy:   committedBy,
			CommittedAt:   committedAt,
		})
	}
	s.logger.Info("timetable committed",
		zap.String("run_id", runID),
		zap.String("school_id", proposal.SchoolID),
		zap.String("term_id", proposal.TermID),
		zap.Int("entries", len(result.Entries)),
		zap.String("status", string(status)),
	)
	return run, nil
}

func (s *TimetableGeneratorService) observe(schoolID, termID string, result *timetable.Result) {
	report := result.Report
	s.metrics.ObserveGeneration(GenerationSample{
		Duration:        report.Stats.Duration,
		Placed:          report.PlacedCount,
		Unplaced:        report.UnplacedCount,
		Attempts:        report.Stats.Attempts,
		Backtracks:      report.Stats.Backtracks,
		BudgetExhausted: report.Stats.BudgetExhausted,
		Complete:        report.Complete,
	})
	s.logger.Info("timetable generated",
		zap.String("school_id", schoolID),
		zap.String("term_id", termID),
		zap.Int("placed", report.PlacedCount),
		zap.Int("unplaced", report.UnplacedCount),
		zap.Int("pinned", report.PinnedCount),
		zap.Int("attempts", report.Stats.Attempts),
		zap.Int("backtracks", report.Stats.Backtracks),
		zap.Bool("budget_exhausted", report.Stats.BudgetExhausted),
		zap.Duration("duration", report.Stats.Duration),
	)
}

// splitEntries converts engine entries into rows. Administrator pins are
// upserted on their pin id; generated and locked lessons are inserted fresh.
func splitEntries(schoolID, termID, runID string, createdAt time.Time, entries []timetable.Entry) (pinned, generated []models.TimetableEntry, keepPinIDs []string) {
	keepPinIDs = []string{}
	for _, entry := range entries {
		row := models.TimetableEntry{
			ID:        uuid.NewString(),
			SchoolID:  schoolID,
			TermID:    termID,
			RunID:     runID,
			SectionID: entry.SectionID,
			SubjectID: entry.SubjectID,
			StaffID:   entry.StaffID,
			RoomID:    optional(entry.RoomID),
			DayOfWeek: entry.Slot.Day,
			PeriodNo:  entry.Slot.Period,
			StartTime: entry.Slot.Start.String(),
			EndTime:   entry.Slot.End.String(),
			Origin:    models.EntryOrigin(entry.Origin),
			CreatedAt: createdAt,
		}
		if entry.Origin == timetable.OriginPinned {
			row.PinID = optional(entry.PinID)
			pinned = append(pinned, row)
			keepPinIDs = append(keepPinIDs, entry.PinID)
			continue
		}
		generated = append(generated, row)
	}
	return pinned, generated, keepPinIDs
}

func buildReport(schoolID, termID, runID string, result *timetable.Result, generatedAt time.Time) dto.TimetableReport {
	report := result.Report
	out := dto.TimetableReport{
		RunID:         runID,
		SchoolID:      schoolID,
		TermID:        termID,
		TotalLessons:  report.TotalLessons,
		PlacedCount:   report.PlacedCount,
		UnplacedCount: report.UnplacedCount,
		PinnedCount:   report.PinnedCount,
		Unplaced:      make([]dto.UnplacedLessonView, 0, len(report.Unplaced)),
		RejectedPins:  make([]dto.RejectedPinView, 0, len(report.RejectedPins)),
		Warnings:      make([]dto.WarningView, 0, len(report.Warnings)),
		Stats: dto.TimetableStats{
			Attempts:         report.Stats.Attempts,
			Backtracks:       report.Stats.Backtracks,
			DeadEnds:         report.Stats.DeadEnds,
			ExhaustedLessons: report.Stats.ExhaustedLessons,
			CompactionMoves:  report.Stats.CompactionMoves,
			GapPenalty:       report.Stats.GapPenalty,
			BudgetExhausted:  report.Stats.BudgetExhausted,
			DurationMs:       report.Stats.Duration.Milliseconds(),
		},
		Complete:    report.Complete,
		GeneratedAt: generatedAt.UTC(),
	}
	for _, lesson := range report.Unplaced {
		out.Unplaced = append(out.Unplaced, dto.UnplacedLessonView{
			SectionID: lesson.SectionID,
			SubjectID: lesson.SubjectID,
			Ordinal:   lesson.Ordinal,
			Reason:    string(lesson.Reason),
		})
	}
	for _, rejected := range report.RejectedPins {
		out.RejectedPins = append(out.RejectedPins, dto.RejectedPinView{
			PinID:     rejected.Pin.ID,
			SectionID: rejected.Pin.SectionID,
			SubjectID: rejected.Pin.SubjectID,
			StaffID:   rejected.Pin.StaffID,
			DayOfWeek: rejected.Pin.Day,
			StartTime: rejected.Pin.Start.String(),
			Reason:    string(rejected.Reason),
			Detail:    rejected.Detail,
		})
	}
	for _, warning := range report.Warnings {
		out.Warnings = append(out.Warnings, dto.WarningView{Code: string(warning.Code), Message: warning.Message})
	}
	return out
}

func entryViews(entries []timetable.Entry) []dto.TimetableEntryView {
	views := make([]dto.TimetableEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, dto.TimetableEntryView{
			SectionID: entry.SectionID,
			SubjectID: entry.SubjectID,
			StaffID:   entry.StaffID,
			RoomID:    optional(entry.RoomID),
			DayOfWeek: entry.Slot.Day,
			PeriodNo:  entry.Slot.Period,
			StartTime: entry.Slot.Start.String(),
			EndTime:   entry.Slot.End.String(),
			Origin:    string(entry.Origin),
			PinID:     optional(entry.PinID),
		})
	}
	return views
}
