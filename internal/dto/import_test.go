package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseImportRecordMatchesAliases(t *testing.T) {
	rec := ParseImportRecord(map[string]string{
		"Student ID":     " SE001 ",
		"Full Name":      "Nguyen Van An",
		"E-mail Address": "an@example.com",
		"Guardian Phone": "0900",
		"favourite":      "ignored",
		"Area":           "",
	})

	assert.Equal(t, "SE001", rec.StudentID)
	assert.Equal(t, "Nguyen Van An", rec.FullName)
	assert.Equal(t, "an@example.com", rec.Email)
	assert.Equal(t, "0900", rec.ParentPhone)
	assert.Empty(t, rec.Area)
}

func TestParseImportRecordConflictingColumnsAreStable(t *testing.T) {
	values := map[string]string{
		"Name":         "Short",
		"Full Name":    "Long Name",
		"Phone":        "0901",
		"Phone Number": "0902",
		"Student":      "X1",
		"Student ID":   "SE001",
		"full_name":    "Other Spelling",
	}

	for i := 0; i < 200; i++ {
		rec := ParseImportRecord(values)
		assert.Equal(t, "Long Name", rec.FullName)
		assert.Equal(t, "0901", rec.Phone)
		assert.Equal(t, "SE001", rec.StudentID)
	}
}

func TestParseImportRecordFallsBackToLowerRankedAlias(t *testing.T) {
	rec := ParseImportRecord(map[string]string{"Full Name": " ", "Name": "Binh"})
	assert.Equal(t, "Binh", rec.FullName)
}

func TestCanonicalField(t *testing.T) {
	field, ok := CanonicalField("Parent_Phone")
	assert.True(t, ok)
	assert.Equal(t, FieldParentPhone, field)

	_, ok = CanonicalField("shoe size")
	assert.False(t, ok)
}
