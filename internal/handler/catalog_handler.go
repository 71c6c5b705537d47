package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	"github.com/noah-isme/brosis-admin-api/internal/service"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
	"github.com/noah-isme/brosis-admin-api/pkg/response"
)

type catalogService interface {
	List(ctx context.Context) ([]models.CatalogArea, error)
	CreateArea(ctx context.Context, req dto.CreateAreaRequest, actor service.BulkActor) (*models.Area, error)
	CreateHouse(ctx context.Context, areaID string, req dto.CreateHouseRequest, actor service.BulkActor) (*models.House, error)
}

// CatalogHandler exposes area and house endpoints.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(svc catalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// List godoc
// @Summary List areas with their houses
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog [get]
func (h *CatalogHandler) List(c *gin.Context) {
	catalog, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, catalog, map[string]interface{}{"total": len(catalog)})
}

// CreateArea godoc
// @Summary Create an area
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body dto.CreateAreaRequest true "Area"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /catalog/areas [post]
func (h *CatalogHandler) CreateArea(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid area payload"))
		return
	}
	area, err := h.service.CreateArea(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, area)
}

// CreateHouse godoc
// @Summary Create a house inside an area
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Area ID"
// @Param payload body dto.CreateHouseRequest true "House"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /catalog/areas/{id}/houses [post]
func (h *CatalogHandler) CreateHouse(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateHouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid house payload"))
		return
	}
	house, err := h.service.CreateHouse(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, house)
}
