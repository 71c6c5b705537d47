package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
)

// Validation error kinds.
const (
	ValidationMissingFields   = "missing_fields"
	ValidationAlreadyExists   = "already_exists"
	ValidationDuplicateImport = "duplicate_in_import"
	ValidationInvalidArea     = "invalid_area"
	ValidationInvalidHouse    = "invalid_house"
	ValidationInvalidValue    = "invalid_value"
)

// ValidationError is a row-level rejection. It never aborts an import.
type ValidationError struct {
	Row    int
	Kind   string
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// RowError converts the rejection into its response shape.
func (e *ValidationError) RowError() dto.ImportRowError {
	return dto.ImportRowError{Row: e.Row, Key: e.Key, Kind: e.Kind, Reason: e.Reason}
}

// IdentityKey binds a unique field to the ledger that guards it.
// ExistsFormat and DuplicateFormat receive the raw value.
type IdentityKey struct {
	Field           string
	Ledger          *DuplicateLedger
	ExistsFormat    string
	DuplicateFormat string
}

// RowCheck is an import-specific rule run after the identity checks.
type RowCheck func(rec dto.ImportRecord) *ValidationError

// RowValidator turns one ImportRecord into a NormalizedRecord or a
// ValidationError without touching the store.
type RowValidator struct {
	required   []string
	identities []IdentityKey
	checks     []RowCheck
	catalog    *CatalogCache
}

// NewRowValidator builds a validator for one import call.
func NewRowValidator(catalog *CatalogCache, required []string, identities []IdentityKey, checks ...RowCheck) *RowValidator {
	if catalog == nil {
		catalog = BuildCatalogCache(nil, nil)
	}
	return &RowValidator{
		required:   required,
		identities: identities,
		checks:     checks,
		catalog:    catalog,
	}
}

// Validate checks rec in order: required fields, identifiers, custom checks,
// area then house. Identifiers are claimed only when every check passes.
func (v *RowValidator) Validate(rec dto.ImportRecord, row int) (dto.NormalizedRecord, *ValidationError) {
	key := v.primaryKey(rec)

	var missing []string
	for _, field := range v.required {
		if strings.TrimSpace(rec.Get(field)) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return dto.NormalizedRecord{}, &ValidationError{
			Row:    row,
			Kind:   ValidationMissingFields,
			Key:    key,
			Reason: "Missing required fields: " + strings.Join(missing, ", "),
		}
	}

	for _, identity := range v.identities {
		value := strings.TrimSpace(rec.Get(identity.Field))
		if value == "" || identity.Ledger == nil {
			continue
		}
		switch identity.Ledger.Lookup(value) {
		case LedgerPersisted:
			return dto.NormalizedRecord{}, &ValidationError{
				Row:    row,
				Kind:   ValidationAlreadyExists,
				Key:    key,
				Reason: fmt.Sprintf(identity.ExistsFormat, value),
			}
		case LedgerClaimed:
			return dto.NormalizedRecord{}, &ValidationError{
				Row:    row,
				Kind:   ValidationDuplicateImport,
				Key:    key,
				Reason: fmt.Sprintf(identity.DuplicateFormat, value),
			}
		}
	}

	for _, check := range v.checks {
		if verr := check(rec); verr != nil {
			verr.Row = row
			if verr.Key == "" {
				verr.Key = key
			}
			if verr.Kind == "" {
				verr.Kind = ValidationInvalidValue
			}
			return dto.NormalizedRecord{}, verr
		}
	}

	normalized := rec
	if rec.Area != "" {
		area, ok := v.catalog.ResolveArea(rec.Area)
		if !ok {
			return dto.NormalizedRecord{}, &ValidationError{
				Row:    row,
				Kind:   ValidationInvalidArea,
				Key:    key,
				Reason: fmt.Sprintf("Invalid Area: '%s'. Please use one of the valid areas: %s", rec.Area, strings.Join(v.catalog.AreaNames(), ", ")),
			}
		}
		normalized.Area = area
	}

	if rec.House != "" {
		if normalized.Area == "" {
			return dto.NormalizedRecord{}, &ValidationError{
				Row:    row,
				Kind:   ValidationInvalidHouse,
				Key:    key,
				Reason: fmt.Sprintf("House '%s' requires an area", rec.House),
			}
		}
		if !v.catalog.HasHouses(normalized.Area) {
			return dto.NormalizedRecord{}, &ValidationError{
				Row:    row,
				Kind:   ValidationInvalidHouse,
				Key:    key,
				Reason: fmt.Sprintf("Area '%s' exists but has no houses assigned to it.", normalized.Area),
			}
		}
		house, ok := v.catalog.ResolveHouse(normalized.Area, rec.House)
		if !ok {
			return dto.NormalizedRecord{}, &ValidationError{
				Row:    row,
				Kind:   ValidationInvalidHouse,
				Key:    key,
				Reason: fmt.Sprintf("Invalid House: '%s' does not exist in Area '%s'. Valid houses for this area are: %s", rec.House, normalized.Area, strings.Join(v.catalog.HouseNames(normalized.Area), ", ")),
			}
		}
		normalized.House = house
	}

	for _, identity := range v.identities {
		if identity.Ledger != nil {
			identity.Ledger.Claim(rec.Get(identity.Field))
		}
	}

	return dto.NormalizedRecord{ImportRecord: normalized, Row: row}, nil
}

func (v *RowValidator) primaryKey(rec dto.ImportRecord) string {
	for _, identity := range v.identities {
		if value := strings.TrimSpace(rec.Get(identity.Field)); value != "" {
			return value
		}
	}
	return ""
}
