package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
	"github.com/noah-isme/brosis-admin-api/pkg/export"
)

// UnassignedHouse labels BroSis without a house in the stats distribution.
const UnassignedHouse = "Unassigned"

var rosterColumns = []string{"Student ID", "Full Name", "Email", "Phone", "Area", "House", "Status", "Matched", "Registration Date", "Notes"}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// StudentRecordRepository is the student persistence behind single-record
// management.
type StudentRecordRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByStudentID(ctx context.Context, studentID string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	ListPage(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListIDs(ctx context.Context, filter models.StudentFilter) ([]string, error)
	Count(ctx context.Context, filter models.StudentFilter) (int, error)
	CountAssignedStudents(ctx context.Context, userIDs []string) (map[string]int, error)
	InsertOne(ctx context.Context, student models.Student) error
	Update(ctx context.Context, student models.Student) error
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

// StudentUserReader resolves BroSis accounts for stats and roster exports.
type StudentUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
}

// StudentService manages individual student records.
type StudentService struct {
	students  StudentRecordRepository
	users     StudentUserReader
	catalog   CatalogReader
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentService constructs the service.
func NewStudentService(students StudentRecordRepository, users StudentUserReader, catalog CatalogReader, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{students: students, users: users, catalog: catalog, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// List returns a page of students. Non-root actors only see their own area.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter, actor BulkActor) ([]models.Student, *models.Pagination, error) {
	filter = scopeStudentFilter(filter, actor)
	filter.Page, filter.PageSize = models.PageWindow(filter.Page, filter.PageSize)

	students, total, err := s.students.ListPage(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// IDs returns the row IDs of every student matching filter, for "select all"
// in the console.
func (s *StudentService) IDs(ctx context.Context, filter models.StudentFilter, actor BulkActor) ([]string, error) {
	filter = scopeStudentFilter(filter, actor)
	ids, err := s.students.ListIDs(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student ids")
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Get returns a student the actor may see.
func (s *StudentService) Get(ctx context.Context, id string, actor BulkActor) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !actorCovers(actor, student.AreaName()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another area")
	}
	return student, nil
}

// Create registers a student as pending. Area and house must exist in the
// catalog; a scoped actor's area is used when none is given.
func (s *StudentService) Create(ctx context.Context, req dto.CreateStudentRequest, actor BulkActor) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	studentID := strings.TrimSpace(req.StudentID)
	if err := s.ensureStudentIDFree(ctx, studentID, ""); err != nil {
		return nil, err
	}

	area := strings.TrimSpace(req.Area)
	if area == "" && !actor.IsRoot() {
		area = strings.TrimSpace(actor.Area)
	}
	area, house, err := s.resolvePlacement(ctx, area, strings.TrimSpace(req.House), actor)
	if err != nil {
		return nil, err
	}

	student := models.Student{
		ID:               uuid.NewString(),
		StudentID:        studentID,
		FullName:         strings.TrimSpace(req.FullName),
		Email:            strings.TrimSpace(req.Email),
		Phone:            strings.TrimSpace(req.Phone),
		ParentPhone:      strings.TrimSpace(req.ParentPhone),
		Address:          strings.TrimSpace(req.Address),
		Area:             optionalString(area),
		House:            optionalString(house),
		Status:           models.StatusPending,
		Notes:            req.Notes,
		RegistrationDate: s.now().UTC(),
	}
	if err := s.students.InsertOne(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.audit.Log(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditActionCreateStudent,
		Resource:   "student",
		ResourceID: student.ID,
		Details:    map[string]string{"studentId": student.StudentID, "area": student.AreaName(), "house": student.HouseName()},
	})
	return &student, nil
}

// Update applies the provided fields. Moving a matched student to another
// area or house drops the BroSis link.
func (s *StudentService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest, actor BulkActor) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	if req.StudentID != nil {
		next := strings.TrimSpace(*req.StudentID)
		if !strings.EqualFold(next, student.StudentID) {
			if err := s.ensureStudentIDFree(ctx, next, student.ID); err != nil {
				return nil, err
			}
		}
		student.StudentID = next
		changed = append(changed, "studentId")
	}
	assignText := func(field string, dst *string, value *string) {
		if value != nil {
			*dst = strings.TrimSpace(*value)
			changed = append(changed, field)
		}
	}
	assignText("fullName", &student.FullName, req.FullName)
	assignText("email", &student.Email, req.Email)
	assignText("phone", &student.Phone, req.Phone)
	assignText("parentPhone", &student.ParentPhone, req.ParentPhone)
	assignText("address", &student.Address, req.Address)
	if req.Status != nil {
		student.Status = *req.Status
		changed = append(changed, "status")
	}
	if req.Notes != nil {
		student.Notes = optionalString(strings.TrimSpace(*req.Notes))
		changed = append(changed, "notes")
	}

	if req.Area != nil || req.House != nil {
		area, house := student.AreaName(), student.HouseName()
		if req.Area != nil {
			area = strings.TrimSpace(*req.Area)
			if !strings.EqualFold(area, student.AreaName()) && req.House == nil {
				house = ""
			}
		}
		if req.House != nil {
			house = strings.TrimSpace(*req.House)
		}
		area, house, err = s.resolvePlacement(ctx, area, house, actor)
		if err != nil {
			return nil, err
		}
		if student.Matched && (!strings.EqualFold(area, student.AreaName()) || !strings.EqualFold(house, student.HouseName())) {
			student.Unassign()
			changed = append(changed, "userId")
		}
		student.Area, student.House = optionalString(area), optionalString(house)
		changed = append(changed, "area", "house")
	}

	if err := s.students.Update(ctx, *student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.audit.Log(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditActionUpdateStudent,
		Resource:   "student",
		ResourceID: student.ID,
		Details:    map[string]interface{}{"studentId": student.StudentID, "fields": changed},
	})
	return student, nil
}

// Delete removes one student.
func (s *StudentService) Delete(ctx context.Context, id string, actor BulkActor) error {
	student, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.students.Delete(ctx, student.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.audit.Log(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditActionDeleteStudent,
		Resource:   "student",
		ResourceID: student.ID,
		Details:    map[string]string{"studentId": student.StudentID, "fullName": student.FullName},
	})
	return nil
}

// ToggleStatus flips an active student to inactive and anything else to
// active.
func (s *StudentService) ToggleStatus(ctx context.Context, id string, actor BulkActor) (*models.Student, error) {
	student, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	previous := student.Status
	next := models.StatusActive
	if previous == models.StatusActive {
		next = models.StatusInactive
	}
	if err := s.students.UpdateStatus(ctx, student.ID, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}
	student.Status = next
	s.audit.Log(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditActionToggleStudentStatus,
		Resource:   "student",
		ResourceID: student.ID,
		Details:    map[string]string{"from": previous, "to": next},
	})
	return student, nil
}

// Stats summarises students and active BroSis. Non-root actors see their
// own area only.
func (s *StudentService) Stats(ctx context.Context, actor BulkActor) (*dto.StudentStats, error) {
	area := ""
	if !actor.IsRoot() {
		area = strings.TrimSpace(actor.Area)
	}

	total, err := s.students.Count(ctx, models.StudentFilter{Area: area})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	matched := true
	assigned, err := s.students.Count(ctx, models.StudentFilter{Area: area, Matched: &matched})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assigned students")
	}

	role := models.RoleBroSis
	brosis, err := s.users.List(ctx, models.UserFilter{Role: &role, Status: models.StatusActive, Area: area})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load BroSis")
	}
	ids := make([]string, len(brosis))
	for i, user := range brosis {
		ids[i] = user.ID
	}
	load, err := s.students.CountAssignedStudents(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count BroSis load")
	}

	stats := &dto.StudentStats{
		TotalStudents:    total,
		TotalBroSis:      len(brosis),
		AssignedStudents: assigned,
		Distribution:     map[string]map[string]map[string]int{},
	}
	if len(brosis) > 0 {
		stats.AvgStudentsPerBroSis = float64(assigned) / float64(len(brosis))
	}
	for _, user := range brosis {
		house := user.HouseName()
		if house == "" {
			house = UnassignedHouse
		}
		byHouse, ok := stats.Distribution[user.AreaName()]
		if !ok {
			byHouse = map[string]map[string]int{}
			stats.Distribution[user.AreaName()] = byHouse
		}
		if byHouse[house] == nil {
			byHouse[house] = map[string]int{}
		}
		byHouse[house][displayName(user)] = load[user.ID]
	}
	return stats, nil
}

// ExportBroSisStudents renders the students matched to one BroSis. A BroSis
// may export their own roster; admins need the BroSis's area.
func (s *StudentService) ExportBroSisStudents(ctx context.Context, brosisID, format string, actor BulkActor) (*dto.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "excel" {
		format = string(dto.ExportFormatXLSX)
	}
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if strings.TrimSpace(brosisID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "brosisId is required")
	}

	brosis, err := s.users.FindByID(ctx, brosisID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "BroSis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load BroSis")
	}
	if brosis.Role != models.RoleBroSis {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target user is not a BroSis")
	}
	switch actor.Role {
	case models.RoleRoot:
	case models.RoleAdmin:
		if !actorCovers(actor, brosis.AreaName()) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "BroSis belongs to another area")
		}
	default:
		if actor.ID != brosis.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only export your own students")
		}
	}

	matched := true
	students, err := s.students.List(ctx, models.StudentFilter{UserID: brosis.ID, Matched: &matched})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no students are assigned to this BroSis")
	}

	data := export.Dataset{Title: displayName(*brosis) + " students", Columns: rosterColumns}
	for _, student := range students {
		data.Rows = append(data.Rows, rosterRecord(student))
	}
	content, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	name := strings.Trim(unsafeFilename.ReplaceAllString(displayName(*brosis), "_"), "_")
	if name == "" {
		name = "brosis"
	}
	file := &dto.ExportFile{
		Filename:    fmt.Sprintf("%s_students_%s.%s", name, s.now().UTC().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}
	s.logger.Info("brosis roster exported", zap.String("brosis", brosis.ID), zap.Int("rows", len(data.Rows)), zap.String("actor", actor.ID))
	s.audit.Log(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditActionExportBroSisRoster,
		Resource:   "user",
		ResourceID: brosis.ID,
		Details:    map[string]interface{}{"format": renderer.Extension(), "rows": len(data.Rows)},
	})
	return file, nil
}

func (s *StudentService) ensureStudentIDFree(ctx context.Context, studentID, selfID string) error {
	existing, err := s.students.FindByStudentID(ctx, studentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student ID")
	case existing.ID == selfID:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Student with ID '%s' already exists", studentID))
	}
}

// resolvePlacement canonicalises area and house against the catalog.
func (s *StudentService) resolvePlacement(ctx context.Context, area, house string, actor BulkActor) (string, string, error) {
	if area == "" {
		if house != "" {
			return "", "", appErrors.Clone(appErrors.ErrValidation, "a house needs an area")
		}
		if !actorCovers(actor, "") {
			return "", "", appErrors.Clone(appErrors.ErrForbidden, "students can only be placed in your own area")
		}
		return "", "", nil
	}
	catalog, err := loadCatalog(ctx, s.catalog)
	if err != nil {
		return "", "", err
	}
	canonical, ok := catalog.ResolveArea(area)
	if !ok {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Area '%s' does not exist", area))
	}
	if !actorCovers(actor, canonical) {
		return "", "", appErrors.Clone(appErrors.ErrForbidden, "students can only be placed in your own area")
	}
	if house == "" {
		return canonical, "", nil
	}
	resolved, ok := catalog.ResolveHouse(canonical, house)
	if !ok {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("House '%s' does not exist in area '%s'", house, canonical))
	}
	return canonical, resolved, nil
}

func scopeStudentFilter(filter models.StudentFilter, actor BulkActor) models.StudentFilter {
	if !actor.IsRoot() && strings.TrimSpace(actor.Area) != "" {
		filter.Area = strings.TrimSpace(actor.Area)
	}
	return filter
}

func displayName(user models.User) string {
	if name := strings.TrimSpace(user.FullName); name != "" {
		return name
	}
	return user.Username
}

func rosterRecord(student models.Student) []string {
	matched := "No"
	if student.Matched {
		matched = "Yes"
	}
	return []string{
		student.StudentID,
		student.FullName,
		student.Email,
		student.Phone,
		student.AreaName(),
		student.HouseName(),
		student.Status,
		matched,
		student.RegistrationDate.UTC().Format("2006-01-02"),
		optionalValue(student.Notes),
	}
}
