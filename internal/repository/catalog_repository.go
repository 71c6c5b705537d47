package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/brosis-admin-api/internal/models"
)

// CatalogRepository reads and writes areas and houses.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListAreas returns every area ordered by name.
func (r *CatalogRepository) ListAreas(ctx context.Context) ([]models.Area, error) {
	var areas []models.Area
	if err := r.db.SelectContext(ctx, &areas, `SELECT id, name FROM areas ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	return areas, nil
}

// ListHouses returns every house of every area ordered by name.
func (r *CatalogRepository) ListHouses(ctx context.Context) ([]models.House, error) {
	var houses []models.House
	if err := r.db.SelectContext(ctx, &houses, `SELECT id, name, area_id FROM houses ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}
	return houses, nil
}

// FindAreaByID returns one area.
func (r *CatalogRepository) FindAreaByID(ctx context.Context, id string) (*models.Area, error) {
	var area models.Area
	if err := r.db.GetContext(ctx, &area, `SELECT id, name FROM areas WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find area: %w", err)
	}
	return &area, nil
}

// AreaNameExists reports whether an area with name exists, ignoring case.
func (r *CatalogRepository) AreaNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM areas WHERE LOWER(name) = LOWER($1))`, name); err != nil {
		return false, fmt.Errorf("check area name: %w", err)
	}
	return exists, nil
}

// HouseNameExists reports whether areaID already has a house called name.
func (r *CatalogRepository) HouseNameExists(ctx context.Context, areaID, name string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM houses WHERE area_id = $1 AND LOWER(name) = LOWER($2))`, areaID, name); err != nil {
		return false, fmt.Errorf("check house name: %w", err)
	}
	return exists, nil
}

// CreateArea inserts an area.
func (r *CatalogRepository) CreateArea(ctx context.Context, area *models.Area) error {
	if area.ID == "" {
		area.ID = uuid.NewString()
	}
	if _, err := r.db.NamedExecContext(ctx, `INSERT INTO areas (id, name) VALUES (:id, :name)`, area); err != nil {
		return fmt.Errorf("create area: %w", err)
	}
	return nil
}

// CreateHouse inserts a house.
func (r *CatalogRepository) CreateHouse(ctx context.Context, house *models.House) error {
	if house.ID == "" {
		house.ID = uuid.NewString()
	}
	if _, err := r.db.NamedExecContext(ctx, `INSERT INTO houses (id, name, area_id) VALUES (:id, :name, :area_id)`, house); err != nil {
		return fmt.Errorf("create house: %w", err)
	}
	return nil
}
