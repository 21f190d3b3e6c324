package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	CommitProposal(ctx context.Context, req dto.CommitProposalRequest) (*dto.GenerateTimetableResponse, error)
	LatestRun(ctx context.Context, schoolID, termID string) (*dto.TimetableReport, error)
	Entries(ctx context.Context, query dto.TimetableEntryQuery) ([]dto.TimetableEntryView, error)
}

type timetableExporter interface {
	Export(ctx context.Context, query dto.TimetableEntryQuery) (*dto.ExportFile, error)
}

// TimetableHandler exposes timetable generation endpoints.
type TimetableHandler struct {
	service  timetableGenerator
	exporter timetableExporter
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableGenerator, exporter timetableExporter) *TimetableHandler {
	return &TimetableHandler{service: svc, exporter: exporter}
}

// Generate godoc
// @Summary Generate a weekly timetable
// @Description Runs the generator for one term. Without commit the result is kept as a proposal; with commit a complete result (or a partial one when allowPartial is set) replaces the stored timetable.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param schoolId path string true "School ID"
// @Param payload body dto.GenerateTimetableRequest true "Generation options"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /schools/{schoolId}/timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	req.SchoolID = c.Param("schoolId")
	req.RequestedBy = requesterID(c)

	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"committed": result.Committed}
	if result.Committed {
		response.JSON(c, http.StatusCreated, result, meta)
		return
	}
	response.JSON(c, http.StatusOK, result, meta)
}

// CommitProposal godoc
// @Summary Commit a generated proposal
// @Tags Timetable
// @Accept json
// @Produce json
// @Param schoolId path string true "School ID"
// @Param proposalId path string true "Proposal ID"
// @Param payload body dto.CommitProposalRequest false "Commit options"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schools/{schoolId}/timetables/proposals/{proposalId}/commit [post]
func (h *TimetableHandler) CommitProposal(c *gin.Context) {
	var req dto.CommitProposalRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid commit payload"))
			return
		}
	}
	req.SchoolID = c.Param("schoolId")
	req.ProposalID = c.Param("proposalId")
	req.RequestedBy = requesterID(c)

	result, err := h.service.CommitProposal(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// LatestRun godoc
// @Summary Latest committed generation report
// @Tags Timetable
// @Produce json
// @Param schoolId path string true "School ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schools/{schoolId}/timetables/runs/latest [get]
func (h *TimetableHandler) LatestRun(c *gin.Context) {
	report, err := h.service.LatestRun(c.Request.Context(), c.Param("schoolId"), c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Entries godoc
// @Summary List or export timetable entries
// @Description format=json (default) returns entries; csv and pdf return a download. A sectionId or staffId filter renders a weekly grid.
// @Tags Timetable
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param schoolId path string true "School ID"
// @Param termId query string true "Term ID"
// @Param sectionId query string false "Section ID"
// @Param staffId query string false "Staff ID"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /schools/{schoolId}/timetables/entries [get]
func (h *TimetableHandler) Entries(c *gin.Context) {
	var query dto.TimetableEntryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	query.SchoolID = c.Param("schoolId")

	if query.Format == "csv" || query.Format == "pdf" {
		file, err := h.exporter.Export(c.Request.Context(), query)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.File(c, file.Filename, file.ContentType, file.Content)
		return
	}

	entries, err := h.service.Entries(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

func requesterID(c *gin.Context) string {
	if claims, ok := middleware.CurrentUser(c); ok {
		return claims.UserID
	}
	return ""
}
