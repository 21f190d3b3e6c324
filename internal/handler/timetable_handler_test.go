package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableGeneratorMock struct {
	generateReq dto.GenerateTimetableRequest
	commitReq   dto.CommitProposalRequest
	entryQuery  dto.TimetableEntryQuery
	latestArgs  [2]string
	committed   bool
	err         error
}

func (m *timetableGeneratorMock) Generate(_ context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.generateReq = req
	if m.err != nil {
		return nil, m.err
	}
	resp := &dto.GenerateTimetableResponse{Committed: m.committed, Report: dto.TimetableReport{Complete: true}}
	if m.committed {
		resp.RunID = "run-1"
	} else {
		resp.ProposalID = "proposal-1"
	}
	return resp, nil
}

func (m *timetableGeneratorMock) CommitProposal(_ context.Context, req dto.CommitProposalRequest) (*dto.GenerateTimetableResponse, error) {
	m.commitReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerateTimetableResponse{RunID: "run-2", Committed: true}, nil
}

func (m *timetableGeneratorMock) LatestRun(_ context.Context, schoolID, termID string) (*dto.TimetableReport, error) {
	m.latestArgs = [2]string{schoolID, termID}
	if m.err != nil {
		return nil, m.err
	}
	return &dto.TimetableReport{RunID: "run-1", SchoolID: schoolID, TermID: termID}, nil
}

func (m *timetableGeneratorMock) Entries(_ context.Context, query dto.TimetableEntryQuery) ([]dto.TimetableEntryView, error) {
	m.entryQuery = query
	return []dto.TimetableEntryView{{SectionID: "s1", SubjectID: "math", StaffID: "t1", DayOfWeek: 1, StartTime: "07:00", EndTime: "07:45", Origin: "GENERATED"}}, nil
}

type timetableExporterMock struct {
	query dto.TimetableEntryQuery
}

func (m *timetableExporterMock) Export(_ context.Context, query dto.TimetableEntryQuery) (*dto.ExportFile, error) {
	m.query = query
	return &dto.ExportFile{Filename: "timetable-section-s1.csv", ContentType: "text/csv", Content: []byte("Time,Monday\n")}, nil
}

func newTimetableRouter(h *TimetableHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, SchoolID: "school-1"})
		c.Next()
	})
	group := router.Group("/schools/:schoolId/timetables")
	group.POST("/generate", h.Generate)
	group.POST("/proposals/:proposalId/commit", h.CommitProposal)
	group.GET("/runs/latest", h.LatestRun)
	group.GET("/entries", h.Entries)
	return router
}

func serve(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTimetableHandlerGenerateProposal(t *testing.T) {
	svc := &timetableGeneratorMock{}
	router := newTimetableRouter(NewTimetableHandler(svc, &timetableExporterMock{}))

	w := serve(router, http.MethodPost, "/schools/school-1/timetables/generate", []byte(`{"termId":"term-1","days":[1,2,3],"stepBudget":5000,"lockExisting":true}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "school-1", svc.generateReq.SchoolID)
	assert.Equal(t, "term-1", svc.generateReq.TermID)
	assert.Equal(t, []int{1, 2, 3}, svc.generateReq.Days)
	require.NotNil(t, svc.generateReq.StepBudget)
	assert.Equal(t, 5000, *svc.generateReq.StepBudget)
	assert.True(t, svc.generateReq.LockExisting)
	assert.Equal(t, "admin-1", svc.generateReq.RequestedBy)

	var body struct {
		Data dto.GenerateTimetableResponse `json:"data"`
		Meta map[string]interface{}        `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "proposal-1", body.Data.ProposalID)
	assert.Equal(t, false, body.Meta["committed"])
}

func TestTimetableHandlerGenerateCommitted(t *testing.T) {
	svc := &timetableGeneratorMock{committed: true}
	router := newTimetableRouter(NewTimetableHandler(svc, &timetableExporterMock{}))

	w := serve(router, http.MethodPost, "/schools/school-1/timetables/generate", []byte(`{"termId":"term-1","commit":true}`))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, svc.generateReq.Commit)
}

func TestTimetableHandlerGenerateBadJSON(t *testing.T) {
	router := newTimetableRouter(NewTimetableHandler(&timetableGeneratorMock{}, &timetableExporterMock{}))

	w := serve(router, http.MethodPost, "/schools/school-1/timetables/generate", []byte(`{"termId":`))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerGenerateErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"run in progress": {appErrors.ErrRunInProgress, http.StatusConflict},
		"configuration":   {appErrors.ErrConfiguration, http.StatusUnprocessableEntity},
		"unexpected":      {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			router := newTimetableRouter(NewTimetableHandler(&timetableGeneratorMock{err: tc.err}, &timetableExporterMock{}))
			w := serve(router, http.MethodPost, "/schools/school-1/timetables/generate", []byte(`{"termId":"term-1"}`))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestTimetableHandlerCommitProposal(t *testing.T) {
	svc := &timetableGeneratorMock{}
	router := newTimetableRouter(NewTimetableHandler(svc, &timetableExporterMock{}))

	w := serve(router, http.MethodPost, "/schools/school-1/timetables/proposals/p-1/commit", []byte(`{"allowPartial":true}`))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "p-1", svc.commitReq.ProposalID)
	assert.Equal(t, "school-1", svc.commitReq.SchoolID)
	assert.True(t, svc.commitReq.AllowPartial)

	w = serve(router, http.MethodPost, "/schools/school-1/timetables/proposals/p-2/commit", nil)
	require.Equal(t, http.StatusCreated, w.Code, "body is optional")
	assert.Equal(t, "p-2", svc.commitReq.ProposalID)
	assert.False(t, svc.commitReq.AllowPartial)
}

func TestTimetableHandlerCommitPartialRejected(t *testing.T) {
	router := newTimetableRouter(NewTimetableHandler(&timetableGeneratorMock{err: appErrors.ErrPartialTimetable}, &timetableExporterMock{}))

	w := serve(router, http.MethodPost, "/schools/school-1/timetables/proposals/p-1/commit", []byte(`{}`))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PARTIAL_TIMETABLE")
}

func TestTimetableHandlerLatestRun(t *testing.T) {
	svc := &timetableGeneratorMock{}
	router := newTimetableRouter(NewTimetableHandler(svc, &timetableExporterMock{}))

	w := serve(router, http.MethodGet, "/schools/school-1/timetables/runs/latest?termId=term-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"school-1", "term-1"}, svc.latestArgs)
	assert.Contains(t, w.Body.String(), `"runId":"run-1"`)
}

func TestTimetableHandlerEntriesJSON(t *testing.T) {
	svc := &timetableGeneratorMock{}
	router := newTimetableRouter(NewTimetableHandler(svc, &timetableExporterMock{}))

	w := serve(router, http.MethodGet, "/schools/school-1/timetables/entries?termId=term-1&sectionId=s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", svc.entryQuery.SectionID)
	assert.Equal(t, "school-1", svc.entryQuery.SchoolID)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestTimetableHandlerEntriesExport(t *testing.T) {
	exporter := &timetableExporterMock{}
	router := newTimetableRouter(NewTimetableHandler(&timetableGeneratorMock{}, exporter))

	w := serve(router, http.MethodGet, "/schools/school-1/timetables/entries?termId=term-1&sectionId=s1&format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable-section-s1.csv")
	assert.Equal(t, "school-1", exporter.query.SchoolID)
	assert.Equal(t, "csv", exporter.query.Format)
}

type pingerStub struct{ err error }

func (p pingerStub) PingContext(context.Context) error { return p.err }

func TestMetricsHandlerHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	NewMetricsHandler(nil, pingerStub{}).Health(c)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	NewMetricsHandler(nil, pingerStub{err: errors.New("down")}).Health(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerPrometheusUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/metrics", nil)

	NewMetricsHandler(nil, nil).Prometheus(c)
	c.Writer.WriteHeaderNow() // gin flushes the pending status at the end of a real request
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
