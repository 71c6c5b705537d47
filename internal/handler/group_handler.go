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
)

type groupService interface {
	List(ctx context.Context, search string, page, size int, actor service.BulkActor) ([]models.Group, *models.Pagination, error)
	Get(ctx context.Context, id string, actor service.BulkActor) (*models.Group, error)
	Create(ctx context.Context, req dto.CreateGroupRequest, actor service.BulkActor) (*models.Group, error)
	Update(ctx context.Context, id string, req dto.UpdateGroupRequest, actor service.BulkActor) (*models.Group, error)
	Delete(ctx context.Context, id string, actor service.BulkActor) error
	AddMembers(ctx context.Context, id string, req dto.AddMembersRequest, actor service.BulkActor) (*dto.AddMembersResult, error)
	RemoveMember(ctx context.Context, id, userID string, actor service.BulkActor) (*models.Group, error)
	AssignLeader(ctx context.Context, id, userID string, actor service.BulkActor) (*models.Group, error)
	RemoveLeader(ctx context.Context, id string, actor service.BulkActor) (*models.Group, error)
}

// GroupHandler exposes mentor group management.
type GroupHandler struct {
	service groupService
}

// NewGroupHandler constructs the handler.
func NewGroupHandler(svc groupService) *GroupHandler {
	return &GroupHandler{service: svc}
}

// List godoc
// @Summary List the caller's groups
// @Tags Groups
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param search query string false "Group name"
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, size := pageParams(c)
	groups, pagination, err := h.service.List(c.Request.Context(), strings.TrimSpace(c.Query("search")), page, size, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, paginationMeta(pagination))
}

// Get godoc
// @Summary Get a group with its members
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /groups/{id} [get]
func (h *GroupHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	group, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	respondResult(c, group, err)
}

// Create godoc
// @Summary Create a group in the caller's area and house
// @Tags Groups
// @Accept json
// @Produce json
// @Param payload body dto.CreateGroupRequest true "Group"
// @Success 201 {object} response.Envelope
// @Router /groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	var req dto.CreateGroupRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	group, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// Update godoc
// @Summary Rename a group or change its description
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.UpdateGroupRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /groups/{id} [put]
func (h *GroupHandler) Update(c *gin.Context) {
	var req dto.UpdateGroupRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	group, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	respondResult(c, group, err)
}

// Delete godoc
// @Summary Delete a group
// @Tags Groups
// @Param id path string true "Group ID"
// @Success 204
// @Router /groups/{id} [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddMembers godoc
// @Summary Add BroSis to a group
// @Tags Groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.AddMembersRequest true "Users"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/members [post]
func (h *GroupHandler) AddMembers(c *gin.Context) {
	var req dto.AddMembersRequest
	actor, ok := bindWithActor(c, &req)
	if !ok {
		return
	}
	result, err := h.service.AddMembers(c.Request.Context(), c.Param("id"), req, actor)
	respondResult(c, result, err)
}

// RemoveMember godoc
// @Summary Remove a member from a group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Param userId path string true "Member user ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/members/{userId} [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	group, err := h.service.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("userId"), actor)
	respondResult(c, group, err)
}

// AssignLeader godoc
// @Summary Make a member the group leader
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Param userId path string true "Member user ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/leader/{userId} [put]
func (h *GroupHandler) AssignLeader(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	group, err := h.service.AssignLeader(c.Request.Context(), c.Param("id"), c.Param("userId"), actor)
	respondResult(c, group, err)
}

// RemoveLeader godoc
// @Summary Clear the group leader
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/leader [delete]
func (h *GroupHandler) RemoveLeader(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	group, err := h.service.RemoveLeader(c.Request.Context(), c.Param("id"), actor)
	respondResult(c, group, err)
}
