package service

import (
	"strings"

	"github.com/noah-isme/brosis-admin-api/internal/models"
)

// CatalogCache resolves free-text area and house names against a snapshot of
// the catalog. It is built once per import and never refreshed.
type CatalogCache struct {
	areas      map[string]string
	areaOrder  []string
	houses     map[string]map[string]models.House
	houseOrder map[string][]models.House
}

// BuildCatalogCache indexes the full catalog by lower-cased name. Houses
// whose area is unknown are dropped.
func BuildCatalogCache(areas []models.Area, houses []models.House) *CatalogCache {
	cache := &CatalogCache{
		areas:      make(map[string]string, len(areas)),
		houses:     make(map[string]map[string]models.House),
		houseOrder: make(map[string][]models.House),
	}

	areaKeyByID := make(map[string]string, len(areas))
	for _, area := range areas {
		key := catalogKey(area.Name)
		if key == "" {
			continue
		}
		if _, exists := cache.areas[key]; !exists {
			cache.areas[key] = area.Name
			cache.areaOrder = append(cache.areaOrder, area.Name)
		}
		areaKeyByID[area.ID] = key
	}

	for _, house := range houses {
		areaKey, ok := areaKeyByID[house.AreaID]
		if !ok {
			continue
		}
		houseKey := catalogKey(house.Name)
		if houseKey == "" {
			continue
		}
		byName := cache.houses[areaKey]
		if byName == nil {
			byName = make(map[string]models.House)
			cache.houses[areaKey] = byName
		}
		if _, exists := byName[houseKey]; exists {
			continue
		}
		byName[houseKey] = house
		cache.houseOrder[areaKey] = append(cache.houseOrder[areaKey], house)
	}

	return cache
}

// ResolveArea returns the canonical spelling of an area name.
func (c *CatalogCache) ResolveArea(name string) (string, bool) {
	canonical, ok := c.areas[catalogKey(name)]
	return canonical, ok
}

// ResolveHouse returns the canonical spelling of a house inside area.
func (c *CatalogCache) ResolveHouse(area, house string) (string, bool) {
	byName, ok := c.houses[catalogKey(area)]
	if !ok {
		return "", false
	}
	found, ok := byName[catalogKey(house)]
	if !ok {
		return "", false
	}
	return found.Name, true
}

// HasHouses reports whether area owns at least one house.
func (c *CatalogCache) HasHouses(area string) bool {
	return len(c.houseOrder[catalogKey(area)]) > 0
}

// AreaNames lists canonical area names in catalog order.
func (c *CatalogCache) AreaNames() []string {
	names := make([]string, len(c.areaOrder))
	copy(names, c.areaOrder)
	return names
}

// HouseNames lists canonical house names of area in catalog order.
func (c *CatalogCache) HouseNames(area string) []string {
	houses := c.houseOrder[catalogKey(area)]
	names := make([]string, 0, len(houses))
	for _, house := range houses {
		names = append(names, house.Name)
	}
	return names
}

// Houses returns the houses of area in catalog order.
func (c *CatalogCache) Houses(area string) []models.House {
	houses := c.houseOrder[catalogKey(area)]
	out := make([]models.House, len(houses))
	copy(out, houses)
	return out
}

func catalogKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
