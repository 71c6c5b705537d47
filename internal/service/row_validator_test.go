package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brosis-admin-api/internal/dto"
)

func studentValidator(existing ...string) (*RowValidator, *DuplicateLedger) {
	ledger := NewDuplicateLedger(existing)
	return NewRowValidator(testCatalog(), studentRequiredFields, studentIdentities(ledger)), ledger
}

func validStudentRecord(id string) dto.ImportRecord {
	return dto.ImportRecord{
		StudentID:   id,
		FullName:    "Nguyen Van An",
		Email:       id + "@example.com",
		Phone:       "0900000001",
		ParentPhone: "0900000002",
		Address:     "1 Le Loi",
	}
}

func TestRowValidatorAggregatesMissingFields(t *testing.T) {
	validator, _ := studentValidator()

	rec := validStudentRecord("SE001")
	rec.Email = ""
	rec.Address = "   "

	_, verr := validator.Validate(rec, 2)
	require.NotNil(t, verr)
	assert.Equal(t, 2, verr.Row)
	assert.Equal(t, ValidationMissingFields, verr.Kind)
	assert.Equal(t, "Missing required fields: email, address", verr.Reason)
}

func TestRowValidatorDistinguishesExistingAndDuplicate(t *testing.T) {
	validator, _ := studentValidator("SE001")

	_, verr := validator.Validate(validStudentRecord("se001"), 2)
	require.NotNil(t, verr)
	assert.Equal(t, ValidationAlreadyExists, verr.Kind)
	assert.Equal(t, "Student with ID 'se001' already exists", verr.Reason)

	_, verr = validator.Validate(validStudentRecord("SE002"), 3)
	require.Nil(t, verr)

	_, verr = validator.Validate(validStudentRecord("SE002"), 4)
	require.NotNil(t, verr)
	assert.Equal(t, ValidationDuplicateImport, verr.Kind)
	assert.Equal(t, "Duplicate student ID 'SE002' in import data", verr.Reason)
	assert.Equal(t, 4, verr.Row)
}

func TestRowValidatorResolvesAreaAndHouse(t *testing.T) {
	validator, _ := studentValidator()

	rec := validStudentRecord("SE010")
	rec.Area = "hanoi"
	rec.House = "phoenix"

	normalized, verr := validator.Validate(rec, 5)
	require.Nil(t, verr)
	assert.Equal(t, "Hanoi", normalized.Area)
	assert.Equal(t, "Phoenix", normalized.House)
	assert.Equal(t, 5, normalized.Row)
}

func TestRowValidatorRejectsUnknownCatalogValues(t *testing.T) {
	validator, ledger := studentValidator()

	rec := validStudentRecord("SE020")
	rec.Area = "Saigon"
	_, verr := validator.Validate(rec, 2)
	require.NotNil(t, verr)
	assert.Equal(t, ValidationInvalidArea, verr.Kind)
	assert.Equal(t, "Invalid Area: 'Saigon'. Please use one of the valid areas: Hanoi, Da Nang, Can Tho", verr.Reason)
	assert.Equal(t, LedgerFree, ledger.Lookup("SE020"), "failed rows never claim")

	rec.Area = "Da Nang"
	rec.House = "Phoenix"
	_, verr = validator.Validate(rec, 3)
	require.NotNil(t, verr)
	assert.Equal(t, ValidationInvalidHouse, verr.Kind)
	assert.Equal(t, "Invalid House: 'Phoenix' does not exist in Area 'Da Nang'. Valid houses for this area are: Lotus", verr.Reason)

	rec.Area = "can tho"
	rec.House = "Lotus"
	_, verr = validator.Validate(rec, 4)
	require.NotNil(t, verr)
	assert.Equal(t, "Area 'Can Tho' exists but has no houses assigned to it.", verr.Reason)

	rec.Area = ""
	_, verr = validator.Validate(rec, 5)
	require.NotNil(t, verr)
	assert.Equal(t, ValidationInvalidHouse, verr.Kind)

	rec.House = ""
	_, verr = validator.Validate(rec, 6)
	require.Nil(t, verr)
}

func TestRowValidatorRunsCustomChecks(t *testing.T) {
	ledger := NewDuplicateLedger(nil)
	check := func(rec dto.ImportRecord) *ValidationError {
		if rec.Notes == "blocked" {
			return &ValidationError{Reason: "notes are blocked"}
		}
		return nil
	}
	validator := NewRowValidator(nil, studentRequiredFields, studentIdentities(ledger), check)

	rec := validStudentRecord("SE030")
	rec.Notes = "blocked"
	_, verr := validator.Validate(rec, 7)
	require.NotNil(t, verr)
	assert.Equal(t, 7, verr.Row)
	assert.Equal(t, ValidationInvalidValue, verr.Kind)
	assert.Equal(t, "SE030", verr.Key)
	assert.Equal(t, dto.ImportRowError{Row: 7, Key: "SE030", Kind: ValidationInvalidValue, Reason: "notes are blocked"}, verr.RowError())
}
