package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
)

// BulkStudentRepository is the persistence needed by student bulk delete.
type BulkStudentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Student, error)
	Delete(ctx context.Context, id string) error
}

type studentBulkSource struct {
	repo BulkStudentRepository
}

// Candidates limits "all" to the actor's area unless the actor is root.
func (s studentBulkSource) Candidates(ctx context.Context, actor BulkActor) ([]models.Student, error) {
	var filter models.StudentFilter
	if !actor.IsRoot() {
		filter.Area = strings.TrimSpace(actor.Area)
	}
	return s.repo.List(ctx, filter)
}

func (s studentBulkSource) FindByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	return s.repo.FindByIDs(ctx, ids)
}

// BulkStudentService deletes students in bulk.
type BulkStudentService struct {
	exec      *BulkExecutor[models.Student]
	repo      BulkStudentRepository
	audit     *AuditService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBulkStudentService constructs the service.
func NewBulkStudentService(repo BulkStudentRepository, audit *AuditService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BulkStudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BulkStudentService{
		exec:      NewBulkExecutor[models.Student](studentBulkSource{repo: repo}, logger, WithNoun[models.Student]("student")),
		repo:      repo,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Delete removes the selected students. Non-root actors bound to an area only
// reach students of that area.
func (s *BulkStudentService) Delete(ctx context.Context, req dto.BulkRequest, actor BulkActor) (*dto.OperationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk delete payload")
	}

	mutation := BulkMutation[models.Student]{
		Name:        "delete",
		Destructive: true,
		Authorize: func(actor BulkActor, target models.Student) (bool, string) {
			if actorCovers(actor, target.AreaName()) {
				return true, ""
			}
			return false, "student belongs to another area"
		},
		Apply: func(ctx context.Context, target models.Student) error {
			if err := s.repo.Delete(ctx, target.ID); err != nil {
				return err
			}
			s.audit.Log(ctx, AuditEntry{
				Actor:      actor,
				Action:     models.AuditActionDeleteStudentInBulk,
				Resource:   "student",
				ResourceID: target.ID,
				Details:    map[string]string{"studentId": target.StudentID, "fullName": target.FullName},
			})
			return nil
		},
	}

	result, err := s.exec.Execute(ctx, req, mutation, actor)
	s.metrics.ObserveBulk("student_delete", result)
	s.audit.Log(ctx, AuditEntry{
		Actor:    actor,
		Action:   models.AuditActionBulkDeleteStudents,
		Resource: "student",
		Details: map[string]interface{}{
			"mode":    req.Mode,
			"success": result.Success,
			"failed":  result.Failed,
			"skipped": result.Skipped,
		},
	})
	return &result, err
}
