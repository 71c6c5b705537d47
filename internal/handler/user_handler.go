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

type userImporter interface {
	Import(ctx context.Context, rows []spreadsheet.Row, opts dto.UserImportOptions, actor service.BulkActor) (*dto.UserImportResult, error)
}

type userBulkService interface {
	Delete(ctx context.Context, req dto.BulkRequest, actor service.BulkActor) (*dto.OperationResult, error)
	SetStatus(ctx context.Context, req dto.BulkStatusRequest, actor service.BulkActor) (*dto.OperationResult, error)
	ResetPasswords(ctx context.Context, req dto.BulkRequest, actor service.BulkActor) (*dto.OperationResult, error)
}

type userExporter interface {
	ExportUsers(ctx context.Context, req dto.UserExportRequest, actor service.BulkActor) (*dto.ExportFile, error)
}

// UserHandler exposes account import, bulk maintenance and export.
type UserHandler struct {
	importer  userImporter
	bulk      userBulkService
	exporter  userExporter
	accounts  userAccounts
	maxUpload int64
}

// NewUserHandler constructs the handler.
func NewUserHandler(importer userImporter, bulk userBulkService, exporter userExporter, maxUpload int64) *UserHandler {
	return &UserHandler{importer: importer, bulk: bulk, exporter: exporter, maxUpload: maxUpload}
}

// Import godoc
// @Summary Import BroSis, mentor or admin accounts
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "xlsx or csv file"
// @Param autoGenerateUsername formData bool false "Generate usernames for BroSis rows"
// @Param usernameNotRequired formData bool false "Alias of autoGenerateUsername"
// @Param role formData string false "Force every row to this role"
// @Success 200 {object} response.Envelope
// @Router /users/import [post]
func (h *UserHandler) Import(c *gin.Context) {
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

	opts := dto.UserImportOptions{
		AutoGenerateUsername: formBool(c, "autoGenerateUsername"),
		UsernameNotRequired:  formBool(c, "usernameNotRequired"),
	}
	if role := strings.TrimSpace(c.PostForm("role")); role != "" {
		opts.Role = models.UserRole(strings.ToLower(role))
	}

	result, err := h.importer.Import(c.Request.Context(), rows, opts, actor)
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
// @Summary Delete accounts in bulk
// @Description Protected accounts and the caller are always skipped
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.BulkRequest true "Selection"
// @Success 200 {object} response.Envelope
// @Router /users/bulk-delete [post]
func (h *UserHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	result, err := h.bulk.Delete(c.Request.Context(), req, actor)
	respondResult(c, result, err)
}

// BulkStatus godoc
// @Summary Activate or deactivate accounts in bulk
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.BulkStatusRequest true "Selection and action"
// @Success 200 {object} response.Envelope
// @Router /users/bulk-status [post]
func (h *UserHandler) BulkStatus(c *gin.Context) {
	var req dto.BulkStatusRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	result, err := h.bulk.SetStatus(c.Request.Context(), req, actor)
	respondResult(c, result, err)
}

// BulkResetPassword godoc
// @Summary Reset passwords to the username in bulk
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.BulkRequest true "Selection"
// @Success 200 {object} response.Envelope
// @Router /users/bulk-reset-password [post]
func (h *UserHandler) BulkResetPassword(c *gin.Context) {
	var req dto.BulkRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	result, err := h.bulk.ResetPasswords(c.Request.Context(), req, actor)
	respondResult(c, result, err)
}

// Export godoc
// @Summary Export accounts as csv, xlsx or pdf
// @Tags Users
// @Accept json
// @Produce octet-stream
// @Param payload body dto.UserExportRequest true "Selection and format"
// @Success 200 {file} file
// @Router /users/export [post]
func (h *UserHandler) Export(c *gin.Context) {
	var req dto.UserExportRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	file, err := h.exporter.ExportUsers(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

type userAccounts interface {
	List(ctx context.Context, filter models.UserFilter, actor service.BulkActor) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, id string, actor service.BulkActor) (*models.User, error)
	ToggleStatus(ctx context.Context, id string, actor service.BulkActor) (*models.User, error)
}

// WithAccounts attaches single-account management to the handler.
func (h *UserHandler) WithAccounts(accounts userAccounts) *UserHandler {
	h.accounts = accounts
	return h
}

// List godoc
// @Summary List accounts
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param role query string false "Role"
// @Param status query string false "Status"
// @Param area query string false "Area, root only"
// @Param house query string false "House"
// @Param search query string false "Username, email or name"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, size := pageParams(c)
	filter := models.UserFilter{
		Status:    strings.TrimSpace(c.Query("status")),
		Area:      strings.TrimSpace(c.Query("area")),
		House:     strings.TrimSpace(c.Query("house")),
		Search:    strings.TrimSpace(c.Query("search")),
		Page:      page,
		PageSize:  size,
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if role := strings.TrimSpace(c.Query("role")); role != "" {
		r := models.UserRole(strings.ToLower(role))
		filter.Role = &r
	}

	users, pagination, err := h.accounts.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, paginationMeta(pagination))
}

// Get godoc
// @Summary Get an account
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	user, err := h.accounts.Get(c.Request.Context(), c.Param("id"), actor)
	respondResult(c, user, err)
}

// ToggleStatus godoc
// @Summary Toggle an account between active and inactive
// @Description Protected accounts, the caller and, for admins, other admins are refused
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/toggle-status [patch]
func (h *UserHandler) ToggleStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	user, err := h.accounts.ToggleStatus(c.Request.Context(), c.Param("id"), actor)
	respondResult(c, user, err)
}
