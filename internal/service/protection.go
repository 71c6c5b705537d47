package service

import (
	"strings"

	"github.com/noah-isme/brosis-admin-api/internal/models"
)

// IsProtected reports whether bulk operations must leave user untouched.
//
// Rows may carry the root role, the legacy is_root flag or only a reserved
// username. Any one of them protects the account.
func IsProtected(user models.User) bool {
	if user.Role == models.RoleRoot {
		return true
	}
	if user.RootFlag() {
		return true
	}
	return models.IsReservedUsername(user.Username)
}

// protectedReason is the skip reason reported for guarded accounts.
func protectedReason(user models.User) string {
	name := strings.TrimSpace(user.Username)
	if name == "" {
		name = user.ID
	}
	return "protected account " + name + " cannot be modified in bulk"
}
