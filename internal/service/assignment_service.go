package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
)

// AssignmentStudentRepository is the student persistence used for BroSis
// assignment.
type AssignmentStudentRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Student, error)
	UpdateAssignment(ctx context.Context, student models.Student) error
	CountAssignedStudents(ctx context.Context, userIDs []string) (map[string]int, error)
}

// AssignmentUserRepository is the user persistence used for BroSis
// assignment.
type AssignmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListBroSis(ctx context.Context, area, house string) ([]models.User, error)
}

// AssignmentService links students to BroSis accounts.
type AssignmentService struct {
	students  AssignmentStudentRepository
	users     AssignmentUserRepository
	audit     *AuditService
	validator *validator.Validate
	rng       Shuffler
	logger    *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(students AssignmentStudentRepository, users AssignmentUserRepository, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{students: students, users: users, audit: audit, validator: validate, rng: globalShuffler{}, logger: logger}
}

// Assign links explicit students to one BroSis. Students must share the
// BroSis's area and house.
func (s *AssignmentService) Assign(ctx context.Context, req dto.AssignToBroSisRequest, actor BulkActor) (*dto.AssignmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	brosis, err := s.users.FindByID(ctx, req.BroSisID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "BroSis not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load BroSis")
	}
	if brosis.Role != models.RoleBroSis {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target user is not a BroSis")
	}
	if brosis.Status != models.StatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "BroSis account is inactive")
	}
	if !actorCovers(actor, brosis.AreaName()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "BroSis belongs to another area")
	}

	ids := uniqueIDs(req.StudentIDs)
	byID, err := s.loadStudents(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &dto.AssignmentResult{Success: []dto.AssignmentItem{}, Failed: []dto.AssignmentFailure{}}
	for _, id := range ids {
		student, ok := byID[id]
		if !ok {
			result.Failed = append(result.Failed, dto.AssignmentFailure{ID: id, Reason: "student not found"})
			continue
		}
		if reason := assignmentMismatch(student, *brosis); reason != "" {
			result.Failed = append(result.Failed, dto.AssignmentFailure{ID: id, Reason: reason})
			continue
		}
		previous := ""
		if student.UserID != nil {
			if *student.UserID == brosis.ID {
				result.Failed = append(result.Failed, dto.AssignmentFailure{ID: id, Reason: "student is already assigned to this BroSis"})
				continue
			}
			previous = *student.UserID
		}

		student.AssignTo(brosis.ID)
		if err := s.students.UpdateAssignment(ctx, student); err != nil {
			if IsFatalStoreError(err) {
				return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "database unavailable during assignment")
			}
			result.Failed = append(result.Failed, dto.AssignmentFailure{ID: id, Reason: err.Error()})
			continue
		}
		result.Success = append(result.Success, dto.AssignmentItem{
			ID:         student.ID,
			StudentID:  student.StudentID,
			FullName:   student.FullName,
			AssignedTo: brosis.ID,
			Previous:   previous,
		})
	}

	s.audit.Log(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditActionAssignToBroSis,
		Resource:   "student",
		ResourceID: brosis.ID,
		Details:    map[string]int{"assigned": len(result.Success), "failed": len(result.Failed)},
	})
	return result, nil
}

// Unassign clears the BroSis link of the given students. Area and house stay.
func (s *AssignmentService) Unassign(ctx context.Context, req dto.StudentSelectionRequest, actor BulkActor) (*dto.AssignmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unassignment payload")
	}

	ids := uniqueIDs(req.StudentIDs)
	byID, err := s.loadStudents(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &dto.AssignmentResult{Success: []dto.AssignmentItem{}, Failed: []dto.AssignmentFailure{}}
	for _, id := range ids {
		student, ok := byID[id]
		switch {
		case !ok:
			result.Failed = append(result.Failed, dto.AssignmentFailure{ID: id, Reason: "student not found"})
			continue
		case !actorCovers(actor, student.AreaName()):
			result.Failed = append(result.Failed, dto.AssignmentFailure{ID: id, Reason: "student belongs to another area"})
			continue
		case student.UserID == nil:
			result.Failed = append(result.Failed, dto.AssignmentFailure{ID: id, Reason: "student is not assigned to any BroSis"})
			continue
		}

		previous := *student.UserID
		student.Unassign()
		if err := s.students.UpdateAssignment(ctx, student); err != nil {
			if IsFatalStoreError(err) {
				return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "database unavailable during unassignment")
			}
			result.Failed = append(result.Failed, dto.AssignmentFailure{ID: id, Reason: err.Error()})
			continue
		}
		result.Success = append(result.Success, dto.AssignmentItem{
			ID:        student.ID,
			StudentID: student.StudentID,
			FullName:  student.FullName,
			Previous:  previous,
		})
	}

	s.audit.Log(ctx, AuditEntry{
		Actor:    actor,
		Action:   models.AuditActionUnassignFromBroSis,
		Resource: "student",
		Details:  map[string]int{"unassigned": len(result.Success), "failed": len(result.Failed)},
	})
	return result, nil
}

type distributionGroup struct {
	area  string
	house string
}

// Distribute spreads unassigned students over the active BroSis accounts of
// their area and house, favouring the least loaded accounts.
func (s *AssignmentService) Distribute(ctx context.Context, req dto.StudentSelectionRequest, actor BulkActor) (*dto.DistributionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid distribution payload")
	}

	ids := uniqueIDs(req.StudentIDs)
	byID, err := s.loadStudents(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &dto.DistributionResult{
		Assignments:  []dto.AssignmentItem{},
		Skipped:      []dto.AssignmentFailure{},
		Failed:       []dto.AssignmentFailure{},
		Distribution: map[string]int{},
	}

	groups := map[distributionGroup][]models.Student{}
	var order []distributionGroup
	for _, id := range ids {
		student, ok := byID[id]
		switch {
		case !ok:
			result.Skipped = append(result.Skipped, dto.AssignmentFailure{ID: id, Reason: "student not found"})
			continue
		case student.UserID != nil:
			result.Skipped = append(result.Skipped, dto.AssignmentFailure{ID: id, Reason: "student is already assigned to a BroSis"})
			continue
		case student.AreaName() == "" || student.HouseName() == "":
			result.Skipped = append(result.Skipped, dto.AssignmentFailure{ID: id, Reason: "student has no area or house"})
			continue
		case !actorCovers(actor, student.AreaName()):
			result.Skipped = append(result.Skipped, dto.AssignmentFailure{ID: id, Reason: "student belongs to another area"})
			continue
		}
		key := distributionGroup{area: student.AreaName(), house: student.HouseName()}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], student)
	}

	for _, group := range order {
		if err := s.distributeGroup(ctx, group, groups[group], result); err != nil {
			return result, err
		}
	}

	sort.SliceStable(result.Assignments, func(i, j int) bool { return result.Assignments[i].StudentID < result.Assignments[j].StudentID })

	s.audit.Log(ctx, AuditEntry{
		Actor:    actor,
		Action:   models.AuditActionDistributeToBroSis,
		Resource: "student",
		Details: map[string]interface{}{
			"assigned":     len(result.Assignments),
			"skipped":      len(result.Skipped),
			"failed":       len(result.Failed),
			"distribution": result.Distribution,
		},
	})
	return result, nil
}

func (s *AssignmentService) distributeGroup(ctx context.Context, group distributionGroup, students []models.Student, result *dto.DistributionResult) error {
	brosis, err := s.users.ListBroSis(ctx, group.area, group.house)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load BroSis accounts")
	}

	userIDs := make([]string, len(brosis))
	byUser := make(map[string]models.User, len(brosis))
	for i, user := range brosis {
		userIDs[i] = user.ID
		byUser[user.ID] = user
	}
	counts, err := s.students.CountAssignedStudents(ctx, userIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load BroSis load")
	}

	buckets := make([]Bucket, len(brosis))
	for i, user := range brosis {
		buckets[i] = Bucket{ID: user.ID, Label: user.Username, Count: counts[user.ID]}
	}

	allocation := Allocate(students, buckets, s.rng)
	for _, student := range allocation.Unassigned {
		result.Skipped = append(result.Skipped, dto.AssignmentFailure{ID: student.ID, Reason: allocation.Reason})
	}
	for _, placement := range allocation.Placements {
		student := placement.Item
		student.AssignTo(placement.Bucket.ID)
		if err := s.students.UpdateAssignment(ctx, student); err != nil {
			if IsFatalStoreError(err) {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "database unavailable during distribution")
			}
			result.Failed = append(result.Failed, dto.AssignmentFailure{ID: student.ID, Reason: err.Error()})
			continue
		}
		result.Assignments = append(result.Assignments, dto.AssignmentItem{
			ID:         student.ID,
			StudentID:  student.StudentID,
			FullName:   student.FullName,
			AssignedTo: byUser[placement.Bucket.ID].Username,
		})
		result.Distribution[placement.Bucket.Label]++
	}

	s.logger.Debug("distributed students over brosis",
		zap.String("area", group.area),
		zap.String("house", group.house),
		zap.Int("students", len(students)),
		zap.Int("brosis", len(brosis)),
	)
	return nil
}

func (s *AssignmentService) loadStudents(ctx context.Context, ids []string) (map[string]models.Student, error) {
	found, err := s.students.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	byID := make(map[string]models.Student, len(found))
	for _, student := range found {
		byID[student.ID] = student
	}
	return byID, nil
}

func assignmentMismatch(student models.Student, brosis models.User) string {
	if !strings.EqualFold(student.AreaName(), brosis.AreaName()) {
		return fmt.Sprintf("Student area '%s' does not match BroSis area '%s'", student.AreaName(), brosis.AreaName())
	}
	if !strings.EqualFold(student.HouseName(), brosis.HouseName()) {
		return fmt.Sprintf("Student house '%s' does not match BroSis house '%s'", student.HouseName(), brosis.HouseName())
	}
	return ""
}

// actorCovers reports whether actor may act on records of area.
func actorCovers(actor BulkActor, area string) bool {
	if actor.IsRoot() || strings.TrimSpace(actor.Area) == "" {
		return true
	}
	return strings.EqualFold(actor.Area, area)
}
