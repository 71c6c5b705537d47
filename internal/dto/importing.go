package dto

import "github.com/noah-isme/brosis-admin-api/internal/models"

// StudentImportResult is the outcome of one student spreadsheet import.
type StudentImportResult struct {
	Imported []models.Student  `json:"imported"`
	Errors   []ImportRowError  `json:"errors"`
	Unhoused []UnhousedStudent `json:"unhoused,omitempty"`
	Summary  ImportSummary     `json:"summary"`
}

// UserImportOptions tweaks username handling for user imports.
type UserImportOptions struct {
	AutoGenerateUsername bool
	UsernameNotRequired  bool
	Role                 models.UserRole
}

// UserImportResult is the outcome of one user spreadsheet import.
type UserImportResult struct {
	Imported []models.User    `json:"imported"`
	Errors   []ImportRowError `json:"errors"`
	Summary  ImportSummary    `json:"summary"`
}
