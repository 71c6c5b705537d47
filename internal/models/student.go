package models

import "time"

// Student represents a learner registered in the institution.
//
// Matched is true exactly when UserID references the assigned BroSis.
type Student struct {
	ID               string    `db:"id" json:"id"`
	StudentID        string    `db:"student_id" json:"studentId"`
	FullName         string    `db:"full_name" json:"fullName"`
	Email            string    `db:"email" json:"email"`
	Phone            string    `db:"phone" json:"phone"`
	ParentPhone      string    `db:"parent_phone" json:"parentPhone"`
	Address          string    `db:"address" json:"address"`
	Area             *string   `db:"area" json:"area,omitempty"`
	House            *string   `db:"house" json:"house,omitempty"`
	Status           string    `db:"status" json:"status"`
	Matched          bool      `db:"matched" json:"matched"`
	UserID           *string   `db:"user_id" json:"userId,omitempty"`
	Notes            *string   `db:"notes" json:"notes,omitempty"`
	RegistrationDate time.Time `db:"registration_date" json:"registrationDate"`
}

// TargetID implements the bulk target contract.
func (s Student) TargetID() string { return s.ID }

// AreaName returns the student's area or an empty string.
func (s Student) AreaName() string {
	if s.Area == nil {
		return ""
	}
	return *s.Area
}

// HouseName returns the student's house or an empty string.
func (s Student) HouseName() string {
	if s.House == nil {
		return ""
	}
	return *s.House
}

// AssignTo links the student to a BroSis keeping matched consistent.
func (s *Student) AssignTo(userID string) {
	id := userID
	s.UserID = &id
	s.Matched = true
}

// Unassign clears the BroSis link. Area and house are left untouched.
func (s *Student) Unassign() {
	s.UserID = nil
	s.Matched = false
}

// StudentFilter encapsulates allowed search parameters for listing students.
// Search matches the student's name, email or ID and the assigned BroSis name,
// BroSisName only the latter. Page and PageSize apply to paged listings.
type StudentFilter struct {
	IDs        []string
	Area       string
	House      string
	Status     string
	Search     string
	BroSisName string
	UserID     string
	Matched    *bool
	HasHouse   *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
