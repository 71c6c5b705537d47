package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
)

// GroupRepository stores mentor groups.
type GroupRepository interface {
	ListByMentor(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id string) error
	AddMembers(ctx context.Context, groupID string, userIDs []string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	SetLeader(ctx context.Context, groupID string, leaderID *string) error
}

// GroupUserReader resolves mentors and prospective members.
type GroupUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// GroupService lets a mentor organise the BroSis of their house into groups.
// Every group belongs to the account that created it.
type GroupService struct {
	groups    GroupRepository
	users     GroupUserReader
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs the service.
func NewGroupService(groups GroupRepository, users GroupUserReader, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GroupService{groups: groups, users: users, audit: audit, validator: validate, logger: logger}
}

func groupNotFound() error {
	return appErrors.Clone(appErrors.ErrNotFound, "group not found or you don't have permission")
}

// List returns a page of the actor's groups in their area and house.
func (s *GroupService) List(ctx context.Context, search string, page, size int, actor BulkActor) ([]models.Group, *models.Pagination, error) {
	mentor, err := s.mentor(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	page, size = models.PageWindow(page, size)
	groups, total, err := s.groups.ListByMentor(ctx, models.GroupFilter{
		MentorID: mentor.ID,
		Area:     mentor.AreaName(),
		House:    mentor.HouseName(),
		Search:   search,
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	if groups == nil {
		groups = []models.Group{}
	}
	return groups, models.NewPagination(page, size, total), nil
}

// Get returns one of the actor's groups with its members.
func (s *GroupService) Get(ctx context.Context, id string, actor BulkActor) (*models.Group, error) {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, groupNotFound()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if group.MentorID != actor.ID {
		return nil, groupNotFound()
	}
	return group, nil
}

// Create opens a group in the actor's area and house.
func (s *GroupService) Create(ctx context.Context, req dto.CreateGroupRequest, actor BulkActor) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	mentor, err := s.mentor(ctx, actor)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "group name is required")
	}

	group := &models.Group{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		MentorID:    mentor.ID,
		Area:        mentor.AreaName(),
		House:       mentor.HouseName(),
		Members:     []models.GroupMember{},
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	s.logAudit(ctx, actor, models.AuditActionCreateGroup, group, map[string]string{"name": group.Name})
	return group, nil
}

// Update renames a group or changes its description.
func (s *GroupService) Update(ctx context.Context, id string, req dto.UpdateGroupRequest, actor BulkActor) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	group, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "group name is required")
		}
		group.Name = name
	}
	if req.Description != nil {
		group.Description = strings.TrimSpace(*req.Description)
	}
	if err := s.groups.Update(ctx, group); err != nil {
		return nil, s.writeError(err, "failed to update group")
	}
	s.logAudit(ctx, actor, models.AuditActionUpdateGroup, group, map[string]string{"name": group.Name})
	return group, nil
}

// Delete removes a group and its memberships.
func (s *GroupService) Delete(ctx context.Context, id string, actor BulkActor) error {
	group, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.groups.Delete(ctx, group.ID); err != nil {
		return s.writeError(err, "failed to delete group")
	}
	s.logAudit(ctx, actor, models.AuditActionDeleteGroup, group, map[string]interface{}{"name": group.Name, "members": len(group.Members)})
	return nil
}

// AddMembers adds BroSis of the group's area and house. Users that are
// already members, missing, not BroSis or placed elsewhere are reported and
// skipped.
func (s *GroupService) AddMembers(ctx context.Context, id string, req dto.AddMembersRequest, actor BulkActor) (*dto.AddMembersResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid member payload")
	}
	group, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	ids := uniqueIDs(req.UserIDs)
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load users")
	}
	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	result := &dto.AddMembersResult{Messages: []string{}}
	var accepted []string
	reject := func(format string, args ...interface{}) {
		result.Errors++
		result.Messages = append(result.Messages, fmt.Sprintf(format, args...))
	}
	for _, userID := range ids {
		user, found := byID[userID]
		switch {
		case group.HasMember(userID):
			reject("User %s is already in the group", userID)
		case !found:
			reject("User %s not found", userID)
		case user.Role != models.RoleBroSis:
			reject("User %s is not a BroSis user", userID)
		case !strings.EqualFold(user.AreaName(), group.Area) || !strings.EqualFold(user.HouseName(), group.House):
			reject("User %s is not in the same area/house", userID)
		default:
			accepted = append(accepted, userID)
		}
	}

	if len(accepted) > 0 {
		if err := s.groups.AddMembers(ctx, group.ID, accepted); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add group members")
		}
		result.Added = len(accepted)
		s.logAudit(ctx, actor, models.AuditActionAddGroupMembers, group, map[string]interface{}{"added": accepted, "rejected": result.Errors})
	}
	return result, nil
}

// RemoveMember drops a member. Removing the leader leaves the group without
// one.
func (s *GroupService) RemoveMember(ctx context.Context, id, userID string, actor BulkActor) (*models.Group, error) {
	group, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user is not a member of this group")
	}
	if err := s.groups.RemoveMember(ctx, group.ID, userID); err != nil {
		return nil, s.writeError(err, "failed to remove group member")
	}
	s.logAudit(ctx, actor, models.AuditActionRemoveGroupMember, group, map[string]string{"userId": userID})
	return s.Get(ctx, id, actor)
}

// AssignLeader makes a member the group leader.
func (s *GroupService) AssignLeader(ctx context.Context, id, userID string, actor BulkActor) (*models.Group, error) {
	group, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the leader must be a member of the group")
	}
	leader := userID
	if err := s.groups.SetLeader(ctx, group.ID, &leader); err != nil {
		return nil, s.writeError(err, "failed to assign group leader")
	}
	group.LeaderID = &leader
	s.logAudit(ctx, actor, models.AuditActionAssignGroupLeader, group, map[string]string{"leaderId": leader})
	return group, nil
}

// RemoveLeader clears the group leader.
func (s *GroupService) RemoveLeader(ctx context.Context, id string, actor BulkActor) (*models.Group, error) {
	group, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if group.LeaderID == nil {
		return group, nil
	}
	if err := s.groups.SetLeader(ctx, group.ID, nil); err != nil {
		return nil, s.writeError(err, "failed to remove group leader")
	}
	previous := *group.LeaderID
	group.LeaderID = nil
	s.logAudit(ctx, actor, models.AuditActionRemoveGroupLeader, group, map[string]string{"previousLeaderId": previous})
	return group, nil
}

// mentor loads the actor's account, which must be placed in an area and house.
func (s *GroupService) mentor(ctx context.Context, actor BulkActor) (*models.User, error) {
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUnauthorized
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	if user.AreaName() == "" || user.HouseName() == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mentor must have area and house assigned")
	}
	return user, nil
}

func (s *GroupService) writeError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return groupNotFound()
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *GroupService) logAudit(ctx context.Context, actor BulkActor, action string, group *models.Group, details interface{}) {
	s.audit.Log(ctx, AuditEntry{
		Actor:      actor,
		Action:     action,
		Resource:   "group",
		ResourceID: group.ID,
		Details:    details,
	})
}
