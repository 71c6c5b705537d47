package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	"github.com/noah-isme/brosis-admin-api/internal/repository"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
)

// Bulk status actions.
const (
	BulkActionActivate   = "activate"
	BulkActionDeactivate = "deactivate"
)

// BulkUserRepository is the persistence needed by bulk user mutations.
type BulkUserRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListBulkCandidates(ctx context.Context, scope repository.BulkUserScope) ([]models.User, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdatePassword(ctx context.Context, id, passwordHash string, changeRequired bool) error
	Delete(ctx context.Context, id string) error
}

type userBulkSource struct {
	repo BulkUserRepository
	// hideAdmins keeps admin accounts out of "all" selections made by
	// non-root actors.
	hideAdmins bool
}

func (s userBulkSource) Candidates(ctx context.Context, actor BulkActor) ([]models.User, error) {
	var scope repository.BulkUserScope
	if s.hideAdmins && !actor.IsRoot() {
		scope.ExcludeRoles = []models.UserRole{models.RoleAdmin}
	}
	return s.repo.ListBulkCandidates(ctx, scope)
}

func (s userBulkSource) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	return s.repo.FindByIDs(ctx, ids)
}

// BulkUserService runs delete, status and password-reset passes over users
// and never touches a protected account.
type BulkUserService struct {
	repo         BulkUserRepository
	audit        *AuditService
	metrics      *MetricsService
	validator    *validator.Validate
	passwordCost int
	logger       *zap.Logger
}

// NewBulkUserService constructs the service.
func NewBulkUserService(repo BulkUserRepository, audit *AuditService, metrics *MetricsService, validate *validator.Validate, passwordCost int, logger *zap.Logger) *BulkUserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if passwordCost < bcrypt.MinCost || passwordCost > bcrypt.MaxCost {
		passwordCost = bcrypt.DefaultCost
	}
	return &BulkUserService{repo: repo, audit: audit, metrics: metrics, validator: validate, passwordCost: passwordCost, logger: logger}
}

func (s *BulkUserService) executor(hideAdmins bool) *BulkExecutor[models.User] {
	return NewBulkExecutor[models.User](
		userBulkSource{repo: s.repo, hideAdmins: hideAdmins},
		s.logger,
		WithGuard[models.User](IsProtected, protectedReason, s.recordProtection),
		WithNoun[models.User]("user"),
	)
}

func (s *BulkUserService) recordProtection(ctx context.Context, actor BulkActor, target models.User, mutation string) {
	s.audit.Log(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditActionRootProtection,
		Resource:   "user",
		ResourceID: target.ID,
		Details: map[string]string{
			"operation": mutation,
			"username":  target.Username,
		},
	})
}

// Delete removes the selected users. Non-root actors cannot delete admins
// and nobody deletes their own account.
func (s *BulkUserService) Delete(ctx context.Context, req dto.BulkRequest, actor BulkActor) (*dto.OperationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk delete payload")
	}

	mutation := BulkMutation[models.User]{
		Name:        "delete",
		Destructive: true,
		Authorize: func(actor BulkActor, target models.User) (bool, string) {
			if target.Role == models.RoleAdmin && !actor.IsRoot() {
				return false, "only root can delete admin accounts"
			}
			return true, ""
		},
		Apply: func(ctx context.Context, target models.User) error {
			if err := s.repo.Delete(ctx, target.ID); err != nil {
				return err
			}
			s.audit.Log(ctx, AuditEntry{
				Actor:      actor,
				Action:     models.AuditActionDeleteUserInBulk,
				Resource:   "user",
				ResourceID: target.ID,
				Details:    map[string]string{"username": target.Username, "role": string(target.Role)},
			})
			return nil
		},
	}

	return s.run(ctx, req, mutation, actor, true, models.AuditActionBulkDeleteSummary)
}

// SetStatus activates or deactivates the selected users. Users already in
// the requested state are skipped.
func (s *BulkUserService) SetStatus(ctx context.Context, req dto.BulkStatusRequest, actor BulkActor) (*dto.OperationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk status payload")
	}
	status := models.StatusActive
	if req.Action == BulkActionDeactivate {
		status = models.StatusInactive
	}

	mutation := BulkMutation[models.User]{
		Name: "status",
		NoOp: func(target models.User) (bool, string) {
			if strings.EqualFold(target.Status, status) {
				return true, fmt.Sprintf("user already %s", status)
			}
			return false, ""
		},
		Apply: func(ctx context.Context, target models.User) error {
			if err := s.repo.UpdateStatus(ctx, target.ID, status); err != nil {
				return err
			}
			s.audit.Log(ctx, AuditEntry{
				Actor:      actor,
				Action:     models.AuditActionStatusChangeInBulk,
				Resource:   "user",
				ResourceID: target.ID,
				Details:    map[string]string{"username": target.Username, "from": target.Status, "to": status},
			})
			return nil
		},
	}

	return s.run(ctx, req.BulkRequest, mutation, actor, false, models.AuditActionBulkStatusSummary)
}

// ResetPasswords sets each selected user's password back to its username
// and forces a change on next login.
func (s *BulkUserService) ResetPasswords(ctx context.Context, req dto.BulkRequest, actor BulkActor) (*dto.OperationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk reset payload")
	}

	mutation := BulkMutation[models.User]{
		Name: "reset_password",
		Apply: func(ctx context.Context, target models.User) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(target.Username), s.passwordCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			if err := s.repo.UpdatePassword(ctx, target.ID, string(hash), true); err != nil {
				return err
			}
			s.audit.Log(ctx, AuditEntry{
				Actor:      actor,
				Action:     models.AuditActionResetPasswordInBulk,
				Resource:   "user",
				ResourceID: target.ID,
				Details:    map[string]string{"username": target.Username},
			})
			return nil
		},
	}

	return s.run(ctx, req, mutation, actor, false, models.AuditActionBulkResetSummary)
}

func (s *BulkUserService) run(ctx context.Context, req dto.BulkRequest, mutation BulkMutation[models.User], actor BulkActor, hideAdmins bool, summaryAction string) (*dto.OperationResult, error) {
	result, err := s.executor(hideAdmins).Execute(ctx, req, mutation, actor)
	s.metrics.ObserveBulk("user_"+mutation.Name, result)
	s.audit.Log(ctx, AuditEntry{
		Actor:    actor,
		Action:   summaryAction,
		Resource: "user",
		Details: map[string]interface{}{
			"mode":    req.Mode,
			"success": result.Success,
			"failed":  result.Failed,
			"skipped": result.Skipped,
		},
	})
	if err != nil {
		return &result, err
	}
	return &result, nil
}
