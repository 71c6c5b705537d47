package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
	"github.com/noah-isme/brosis-admin-api/pkg/export"
)

// UserExportRepository reads the users an export may contain.
type UserExportRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
}

var userExportColumns = []string{"Username", "Full Name", "Email", "Phone", "Role", "Status", "Area", "House", "Student ID", "Created At"}

// ExportService renders user listings into downloadable files.
type ExportService struct {
	users     UserExportRepository
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(users UserExportRepository, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ExportService{users: users, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// ExportUsers renders the selected users. Protected accounts never appear
// and non-root actors only see their own area.
func (s *ExportService) ExportUsers(ctx context.Context, req dto.UserExportRequest, actor BulkActor) (*dto.ExportFile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	renderer, err := export.ForFormat(string(req.Format))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	users, err := s.load(ctx, req, actor)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load users")
	}

	scopeArea := ""
	if !actor.IsRoot() {
		scopeArea = strings.TrimSpace(actor.Area)
	}
	data := export.Dataset{Title: "Users", Columns: userExportColumns}
	for _, user := range users {
		if IsProtected(user) {
			continue
		}
		if scopeArea != "" && !strings.EqualFold(user.AreaName(), scopeArea) {
			continue
		}
		data.Rows = append(data.Rows, userExportRecord(user))
	}

	content, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	file := &dto.ExportFile{
		Filename:    fmt.Sprintf("users_%s.%s", s.now().UTC().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}
	s.logger.Info("users exported", zap.String("format", renderer.Extension()), zap.Int("rows", len(data.Rows)), zap.String("actor", actor.ID))
	s.audit.Log(ctx, AuditEntry{
		Actor:    actor,
		Action:   models.AuditActionExportUsers,
		Resource: "user",
		Details:  map[string]interface{}{"format": renderer.Extension(), "mode": req.Mode, "rows": len(data.Rows)},
	})
	return file, nil
}

func (s *ExportService) load(ctx context.Context, req dto.UserExportRequest, actor BulkActor) ([]models.User, error) {
	if req.Mode == dto.BulkModeSelected {
		return s.users.FindByIDs(ctx, uniqueIDs(req.IDs))
	}
	filter := models.UserFilter{
		Status: strings.TrimSpace(req.Status),
		Area:   strings.TrimSpace(req.Area),
		House:  strings.TrimSpace(req.House),
		Search: strings.TrimSpace(req.Search),
	}
	if role := strings.TrimSpace(req.Role); role != "" {
		r := models.UserRole(strings.ToLower(role))
		filter.Role = &r
	}
	if !actor.IsRoot() && strings.TrimSpace(actor.Area) != "" {
		filter.Area = strings.TrimSpace(actor.Area)
	}
	return s.users.List(ctx, filter)
}

func userExportRecord(user models.User) []string {
	return []string{
		user.Username,
		user.FullName,
		user.Email,
		optionalValue(user.Phone),
		string(user.Role),
		user.Status,
		user.AreaName(),
		user.HouseName(),
		optionalValue(user.StudentID),
		user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func optionalValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
