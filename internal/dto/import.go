package dto

import (
	"strings"
	"unicode"
)

// ImportRecord is a typed spreadsheet row. Columns outside the known aliases
// are ignored.
type ImportRecord struct {
	StudentID   string
	FullName    string
	Email       string
	Phone       string
	ParentPhone string
	Address     string
	Area        string
	House       string
	Notes       string
	Username    string
	Role        string
	Status      string
}

// Canonical field names used in validation messages.
const (
	FieldStudentID   = "studentId"
	FieldFullName    = "fullName"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldParentPhone = "parentPhone"
	FieldAddress     = "address"
	FieldArea        = "area"
	FieldHouse       = "house"
	FieldNotes       = "notes"
	FieldUsername    = "username"
	FieldRole        = "role"
	FieldStatus      = "status"
)

// fieldAliases lists the accepted normalized headers per field, most
// specific first. The first entry is the canonical header.
var fieldAliases = map[string][]string{
	FieldStudentID:   {"studentid", "mssv", "student"},
	FieldFullName:    {"fullname", "name"},
	FieldEmail:       {"email", "emailaddress"},
	FieldPhone:       {"phone", "phonenumber"},
	FieldParentPhone: {"parentphone", "secondaryphone", "guardianphone"},
	FieldAddress:     {"address"},
	FieldArea:        {"area"},
	FieldHouse:       {"house"},
	FieldNotes:       {"notes", "note"},
	FieldUsername:    {"username"},
	FieldRole:        {"role"},
	FieldStatus:      {"status"},
}

type headerAlias struct {
	field string
	rank  int
}

var headerAliases = func() map[string]headerAlias {
	out := make(map[string]headerAlias)
	for field, aliases := range fieldAliases {
		for rank, alias := range aliases {
			out[alias] = headerAlias{field: field, rank: rank}
		}
	}
	return out
}()

func normalizeHeader(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CanonicalField maps a raw header onto a known field name. The second value
// is false for unknown headers.
func CanonicalField(header string) (string, bool) {
	alias, ok := headerAliases[normalizeHeader(header)]
	return alias.field, ok
}

// ParseImportRecord builds an ImportRecord from a header-keyed row. When
// several non-empty columns map to the same field, the higher ranked alias
// wins; equal ranks fall back to the lexically smallest raw header.
func ParseImportRecord(values map[string]string) ImportRecord {
	type pick struct {
		header string
		rank   int
	}
	chosen := make(map[string]pick)

	var rec ImportRecord
	for header, raw := range values {
		alias, ok := headerAliases[normalizeHeader(header)]
		if !ok {
			continue
		}
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		ptr := rec.field(alias.field)
		if ptr == nil {
			continue
		}
		if prev, seen := chosen[alias.field]; seen {
			if prev.rank < alias.rank || (prev.rank == alias.rank && prev.header < header) {
				continue
			}
		}
		chosen[alias.field] = pick{header: header, rank: alias.rank}
		*ptr = value
	}
	return rec
}

// Get returns the value of a canonical field.
func (r ImportRecord) Get(field string) string {
	if ptr := r.field(field); ptr != nil {
		return *ptr
	}
	return ""
}

func (r *ImportRecord) field(name string) *string {
	switch name {
	case FieldStudentID:
		return &r.StudentID
	case FieldFullName:
		return &r.FullName
	case FieldEmail:
		return &r.Email
	case FieldPhone:
		return &r.Phone
	case FieldParentPhone:
		return &r.ParentPhone
	case FieldAddress:
		return &r.Address
	case FieldArea:
		return &r.Area
	case FieldHouse:
		return &r.House
	case FieldNotes:
		return &r.Notes
	case FieldUsername:
		return &r.Username
	case FieldRole:
		return &r.Role
	case FieldStatus:
		return &r.Status
	}
	return nil
}

// NormalizedRecord is a validated row with canonical area/house names.
type NormalizedRecord struct {
	ImportRecord
	Row int
}

// ImportRowError reports one failed row.
type ImportRowError struct {
	Row    int    `json:"row"`
	Key    string `json:"key,omitempty"`
	Kind   string `json:"kind"`
	Reason string `json:"error"`
}

// ImportSummary aggregates counts for an import call.
type ImportSummary struct {
	TotalRows             int  `json:"total_rows"`
	SuccessfulImports     int  `json:"successful_imports"`
	FailedImports         int  `json:"failed_imports"`
	AreaInherited         bool `json:"area_inherited"`
	AutoHouseDistribution bool `json:"auto_house_distribution"`
}

// UnhousedStudent lists a student imported without a house because its area
// had no destination buckets.
type UnhousedStudent struct {
	Row       int    `json:"row"`
	StudentID string `json:"studentId"`
	Area      string `json:"area"`
	Reason    string `json:"reason"`
}
