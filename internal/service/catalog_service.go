package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
)

const catalogCacheKey = "catalog:areas"

// CatalogRepository is the persistence behind the catalog endpoints.
type CatalogRepository interface {
	CatalogReader
	FindAreaByID(ctx context.Context, id string) (*models.Area, error)
	AreaNameExists(ctx context.Context, name string) (bool, error)
	HouseNameExists(ctx context.Context, areaID, name string) (bool, error)
	CreateArea(ctx context.Context, area *models.Area) error
	CreateHouse(ctx context.Context, house *models.House) error
}

// CatalogService lists and extends the area/house catalog.
type CatalogService struct {
	repo      CatalogRepository
	cache     *CacheService
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs the service. cache may be nil.
func NewCatalogService(repo CatalogRepository, cache *CacheService, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CatalogService{repo: repo, cache: cache, audit: audit, validator: validate, logger: logger}
}

// List returns every area with its houses.
func (s *CatalogService) List(ctx context.Context) ([]models.CatalogArea, error) {
	var cached []models.CatalogArea
	if hit, err := s.cache.Get(ctx, catalogCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	areas, err := s.repo.ListAreas(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load areas")
	}
	houses, err := s.repo.ListHouses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load houses")
	}

	byArea := make(map[string][]models.House, len(areas))
	for _, house := range houses {
		byArea[house.AreaID] = append(byArea[house.AreaID], house)
	}
	catalog := make([]models.CatalogArea, 0, len(areas))
	for _, area := range areas {
		entry := models.CatalogArea{Area: area, Houses: byArea[area.ID]}
		if entry.Houses == nil {
			entry.Houses = []models.House{}
		}
		catalog = append(catalog, entry)
	}

	_ = s.cache.Set(ctx, catalogCacheKey, catalog, 0)
	return catalog, nil
}

// CreateArea adds an area. Names are unique case-insensitively.
func (s *CatalogService) CreateArea(ctx context.Context, req dto.CreateAreaRequest, actor BulkActor) (*models.Area, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid area payload")
	}
	exists, err := s.repo.AreaNameExists(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check area name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "area already exists")
	}

	area := &models.Area{Name: req.Name}
	if err := s.repo.CreateArea(ctx, area); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create area")
	}
	s.invalidate(ctx)
	s.audit.Log(ctx, AuditEntry{Actor: actor, Action: models.AuditActionCatalogAreaCreate, Resource: "area", ResourceID: area.ID, Details: area})
	return area, nil
}

// CreateHouse adds a house to an existing area.
func (s *CatalogService) CreateHouse(ctx context.Context, areaID string, req dto.CreateHouseRequest, actor BulkActor) (*models.House, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid house payload")
	}
	area, err := s.repo.FindAreaByID(ctx, areaID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "area not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load area")
	}
	exists, err := s.repo.HouseNameExists(ctx, area.ID, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check house name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "house already exists in this area")
	}

	house := &models.House{Name: req.Name, AreaID: area.ID}
	if err := s.repo.CreateHouse(ctx, house); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create house")
	}
	s.invalidate(ctx)
	s.audit.Log(ctx, AuditEntry{Actor: actor, Action: models.AuditActionCatalogHouseCreate, Resource: "house", ResourceID: house.ID, Details: house})
	return house, nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, catalogCacheKey); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}
