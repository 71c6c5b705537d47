package dto

// CreateAreaRequest creates a catalog area.
type CreateAreaRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CreateHouseRequest creates a catalog house inside an area.
type CreateHouseRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}
