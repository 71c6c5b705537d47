package models

// Area is a top-level geographic grouping such as a city campus.
type Area struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// House is a named destination that belongs to exactly one area.
type House struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	AreaID string `db:"area_id" json:"areaId"`
}

// CatalogArea groups an area with its houses for listing responses.
type CatalogArea struct {
	Area
	Houses []House `json:"houses"`
}
