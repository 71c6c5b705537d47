package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	"github.com/noah-isme/brosis-admin-api/internal/service"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
	"github.com/noah-isme/brosis-admin-api/pkg/response"
	"github.com/noah-isme/brosis-admin-api/pkg/spreadsheet"
)

type studentImporter interface {
	Import(ctx context.Context, rows []spreadsheet.Row, actor service.BulkActor) (*dto.StudentImportResult, error)
}

type studentBulkDeleter interface {
	Delete(ctx context.Context, req dto.BulkRequest, actor service.BulkActor) (*dto.OperationResult, error)
}

type studentAssigner interface {
	Assign(ctx context.Context, req dto.AssignToBroSisRequest, actor service.BulkActor) (*dto.AssignmentResult, error)
	Unassign(ctx context.Context, req dto.StudentSelectionRequest, actor service.BulkActor) (*dto.AssignmentResult, error)
	Distribute(ctx context.Context, req dto.StudentSelectionRequest, actor service.BulkActor) (*dto.DistributionResult, error)
}

// StudentHandler exposes student onboarding and matching endpoints.
type StudentHandler struct {
	importer  studentImporter
	bulk      studentBulkDeleter
	assigner  studentAssigner
	records   studentRecords
	maxUpload int64
}

// NewStudentHandler constructs the handler. maxUpload caps the multipart body.
func NewStudentHandler(importer studentImporter, bulk studentBulkDeleter, assigner studentAssigner, maxUpload int64) *StudentHandler {
	return &StudentHandler{importer: importer, bulk: bulk, assigner: assigner, maxUpload: maxUpload}
}

// Import godoc
// @Summary Import students from a spreadsheet
// @Description Rows missing a house are spread evenly over the houses of their area
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "xlsx or csv file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /students/import [post]
func (h *StudentHandler) Import(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rows, err := readUpload(c, h.maxUpload)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.importer.Import(c.Request.Context(), rows, actor)
	if err != nil {
		if result != nil {
			response.Partial(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// BulkDelete godoc
// @Summary Delete students in bulk
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.BulkRequest true "Selection"
// @Success 200 {object} response.Envelope
// @Router /students/bulk-delete [post]
func (h *StudentHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	result, err := h.bulk.Delete(c.Request.Context(), req, actor)
	respondResult(c, result, err)
}

// Assign godoc
// @Summary Assign students to a BroSis
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.AssignToBroSisRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /students/assign-to-brosis [post]
func (h *StudentHandler) Assign(c *gin.Context) {
	var req dto.AssignToBroSisRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	result, err := h.assigner.Assign(c.Request.Context(), req, actor)
	respondResult(c, result, err)
}

// Unassign godoc
// @Summary Remove BroSis assignments
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.StudentSelectionRequest true "Students"
// @Success 200 {object} response.Envelope
// @Router /students/unassign-from-brosis [post]
func (h *StudentHandler) Unassign(c *gin.Context) {
	var req dto.StudentSelectionRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	result, err := h.assigner.Unassign(c.Request.Context(), req, actor)
	respondResult(c, result, err)
}

// Distribute godoc
// @Summary Spread unassigned students over the BroSis of their house
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.StudentSelectionRequest true "Students"
// @Success 200 {object} response.Envelope
// @Router /students/distribute-to-brosis [post]
func (h *StudentHandler) Distribute(c *gin.Context) {
	var req dto.StudentSelectionRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	result, err := h.assigner.Distribute(c.Request.Context(), req, actor)
	respondResult(c, result, err)
}

// bindWithActor decodes the JSON body and resolves the caller. It writes the
// error response itself and returns false when the handler should stop.
func bindWithActor(c *gin.Context, req interface{}) (service.BulkActor, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return actor, false
	}
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return actor, false
	}
	return actor, true
}

func respondResult(c *gin.Context, result interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

type studentRecords interface {
	List(ctx context.Context, filter models.StudentFilter, actor service.BulkActor) ([]models.Student, *models.Pagination, error)
	IDs(ctx context.Context, filter models.StudentFilter, actor service.BulkActor) ([]string, error)
	Get(ctx context.Context, id string, actor service.BulkActor) (*models.Student, error)
	Create(ctx context.Context, req dto.CreateStudentRequest, actor service.BulkActor) (*models.Student, error)
	Update(ctx context.Context, id string, req dto.UpdateStudentRequest, actor service.BulkActor) (*models.Student, error)
	Delete(ctx context.Context, id string, actor service.BulkActor) error
	ToggleStatus(ctx context.Context, id string, actor service.BulkActor) (*models.Student, error)
	Stats(ctx context.Context, actor service.BulkActor) (*dto.StudentStats, error)
	ExportBroSisStudents(ctx context.Context, brosisID, format string, actor service.BulkActor) (*dto.ExportFile, error)
}

// WithRecords attaches single-record management to the handler.
func (h *StudentHandler) WithRecords(records studentRecords) *StudentHandler {
	h.records = records
	return h
}

func studentFilterFromQuery(c *gin.Context) models.StudentFilter {
	page, size := pageParams(c)
	return models.StudentFilter{
		Area:       strings.TrimSpace(c.Query("area")),
		House:      strings.TrimSpace(c.Query("house")),
		Status:     strings.TrimSpace(c.Query("status")),
		Search:     strings.TrimSpace(c.Query("search")),
		BroSisName: strings.TrimSpace(c.Query("brosisFilter")),
		Matched:    queryBool(c, "matched"),
		HasHouse:   queryBool(c, "hasHouse"),
		Page:       page,
		PageSize:   size,
		SortBy:     c.Query("sort"),
		SortOrder:  c.Query("order"),
	}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param search query string false "Name, email, student ID or BroSis name"
// @Param status query string false "Status"
// @Param area query string false "Area, root only"
// @Param house query string false "House"
// @Param matched query bool false "Matched to a BroSis"
// @Param hasHouse query bool false "Has a house"
// @Param brosisFilter query string false "BroSis name"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	students, pagination, err := h.records.List(c.Request.Context(), studentFilterFromQuery(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, paginationMeta(pagination))
}

// IDs godoc
// @Summary List the IDs of every matching student
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/ids [get]
func (h *StudentHandler) IDs(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	ids, err := h.records.IDs(c.Request.Context(), studentFilterFromQuery(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ids": ids, "count": len(ids)})
}

// Stats godoc
// @Summary Matching statistics
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/stats [get]
func (h *StudentHandler) Stats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.records.Stats(c.Request.Context(), actor)
	respondResult(c, stats, err)
}

// Get godoc
// @Summary Get a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	student, err := h.records.Get(c.Request.Context(), c.Param("id"), actor)
	respondResult(c, student, err)
}

// Create godoc
// @Summary Register a student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.CreateStudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req dto.CreateStudentRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	student, err := h.records.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update a student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.UpdateStudentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req dto.UpdateStudentRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	student, err := h.records.Update(c.Request.Context(), c.Param("id"), req, actor)
	respondResult(c, student, err)
}

// Delete godoc
// @Summary Delete a student
// @Tags Students
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.records.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleStatus godoc
// @Summary Toggle a student between active and inactive
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/toggle-status [patch]
func (h *StudentHandler) ToggleStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	student, err := h.records.ToggleStatus(c.Request.Context(), c.Param("id"), actor)
	respondResult(c, student, err)
}

// ExportBroSisStudents godoc
// @Summary Export the students matched to a BroSis
// @Tags Students
// @Produce octet-stream
// @Param brosisId query string true "BroSis account ID"
// @Param format query string false "csv, excel, xlsx or pdf"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /students/export-brosis-students [get]
func (h *StudentHandler) ExportBroSisStudents(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	file, err := h.records.ExportBroSisStudents(c.Request.Context(), c.Query("brosisId"), c.DefaultQuery("format", "csv"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}
