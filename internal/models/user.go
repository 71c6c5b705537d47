package models

import (
	"strings"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleRoot   UserRole = "root"
	RoleAdmin  UserRole = "admin"
	RoleMentor UserRole = "mentor"
	RoleBroSis UserRole = "brosis"
)

// Account statuses shared by users and students.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusPending  = "pending"
)

// ReservedUsernames are well-known administrative logins that are always
// treated as protected accounts.
var ReservedUsernames = []string{"root", "admin", "superadmin", "administrator"}

// IsReservedUsername reports whether name is one of ReservedUsernames.
func IsReservedUsername(name string) bool {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for _, reserved := range ReservedUsernames {
		if lowered == reserved {
			return true
		}
	}
	return false
}

// User represents an application user stored in the users table.
//
// IsRoot is the legacy superuser flag. Older rows may carry NULL there, so it
// is scanned as a pointer and must be read through RootFlag.
type User struct {
	ID                     string    `db:"id" json:"id"`
	Username               string    `db:"username" json:"username"`
	Email                  string    `db:"email" json:"email"`
	FullName               string    `db:"full_name" json:"fullName"`
	Phone                  *string   `db:"phone" json:"phone,omitempty"`
	Area                   *string   `db:"area" json:"area,omitempty"`
	House                  *string   `db:"house" json:"house,omitempty"`
	StudentID              *string   `db:"student_id" json:"studentId,omitempty"`
	PasswordHash           string    `db:"password_hash" json:"-"`
	Role                   UserRole  `db:"role" json:"role"`
	IsAdmin                bool      `db:"is_admin" json:"-"`
	IsRoot                 *bool     `db:"is_root" json:"-"`
	Status                 string    `db:"status" json:"status"`
	PasswordChangeRequired bool      `db:"password_change_required" json:"passwordChangeRequired"`
	CreatedAt              time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time `db:"updated_at" json:"updatedAt"`
}

// TargetID implements the bulk target contract.
func (u User) TargetID() string { return u.ID }

// RootFlag reports the legacy is_root column treating NULL as false.
func (u User) RootFlag() bool {
	return u.IsRoot != nil && *u.IsRoot
}

// AreaName returns the user's area or an empty string.
func (u User) AreaName() string {
	if u.Area == nil {
		return ""
	}
	return *u.Area
}

// HouseName returns the user's house or an empty string.
func (u User) HouseName() string {
	if u.House == nil {
		return ""
	}
	return *u.House
}

// UserFilter captures filtering criteria for listing users.
// ExcludeProtected drops root, legacy-root and reserved accounts.
type UserFilter struct {
	IDs              []string
	Role             *UserRole
	Status           string
	Area             string
	House            string
	Search           string
	ExcludeProtected bool
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
