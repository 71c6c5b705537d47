package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
)

// UserAccountRepository is the account persistence used by single-user management.
type UserAccountRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListPage(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// UserService lists accounts and handles single-account status changes.
type UserService struct {
	users  UserAccountRepository
	audit  *AuditService
	logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users UserAccountRepository, audit *AuditService, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, audit: audit, logger: logger}
}

// List returns a page of accounts. Non-root actors are held to their area
// and never see protected accounts.
func (s *UserService) List(ctx context.Context, filter models.UserFilter, actor BulkActor) ([]models.User, *models.Pagination, error) {
	if !actor.IsRoot() {
		filter.ExcludeProtected = true
		if area := strings.TrimSpace(actor.Area); area != "" {
			filter.Area = area
		}
	}
	filter.Page, filter.PageSize = models.PageWindow(filter.Page, filter.PageSize)

	users, total, err := s.users.ListPage(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one account the actor may see.
func (s *UserService) Get(ctx context.Context, id string, actor BulkActor) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !actor.IsRoot() && IsProtected(*user) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if !actorCovers(actor, user.AreaName()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user belongs to another area")
	}
	return user, nil
}

// ToggleStatus deactivates an active account and activates any other.
// Protected accounts, the caller and, for non-root actors, admins are refused.
func (s *UserService) ToggleStatus(ctx context.Context, id string, actor BulkActor) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	switch {
	case IsProtected(*user):
		s.logger.Warn("status change of protected account refused", zap.String("target", user.ID), zap.String("actor", actor.ID))
		s.audit.Log(ctx, AuditEntry{
			Actor:      actor,
			Action:     models.AuditActionRootProtection,
			Resource:   "user",
			ResourceID: user.ID,
			Details:    map[string]string{"operation": "toggle_status", "username": user.Username},
		})
		return nil, appErrors.Clone(appErrors.ErrForbidden, "protected accounts cannot be modified")
	case user.ID == actor.ID:
		return nil, appErrors.Clone(appErrors.ErrValidation, "you cannot change the status of your own account")
	case user.Role == models.RoleAdmin && !actor.IsRoot():
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only root can change admin accounts")
	case !actorCovers(actor, user.AreaName()):
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user belongs to another area")
	}

	previous := user.Status
	next := models.StatusActive
	if previous == models.StatusActive {
		next = models.StatusInactive
	}
	if err := s.users.UpdateStatus(ctx, user.ID, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}
	user.Status = next
	s.audit.Log(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditActionToggleUserStatus,
		Resource:   "user",
		ResourceID: user.ID,
		Details:    map[string]string{"from": previous, "to": next, "username": user.Username},
	})
	return user, nil
}
