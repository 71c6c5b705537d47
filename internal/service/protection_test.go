package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/brosis-admin-api/internal/models"
)

func boolPtr(v bool) *bool { return &v }

func TestIsProtected(t *testing.T) {
	cases := []struct {
		name string
		user models.User
		want bool
	}{
		{name: "root role", user: models.User{Username: "alice", Role: models.RoleRoot}, want: true},
		{name: "legacy flag", user: models.User{Username: "bob", Role: models.RoleAdmin, IsRoot: boolPtr(true)}, want: true},
		{name: "null legacy flag", user: models.User{Username: "carol", Role: models.RoleBroSis}, want: false},
		{name: "false legacy flag", user: models.User{Username: "dave", Role: models.RoleMentor, IsRoot: boolPtr(false)}, want: false},
		{name: "reserved name", user: models.User{Username: "Administrator", Role: models.RoleBroSis}, want: true},
		{name: "reserved name with spaces", user: models.User{Username: " ROOT ", Role: models.RoleMentor}, want: true},
		{name: "ordinary admin", user: models.User{Username: "area-admin", Role: models.RoleAdmin}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsProtected(tc.user))
		})
	}
}

func TestIsProtectedDenylistWinsOverAttributes(t *testing.T) {
	for _, name := range models.ReservedUsernames {
		user := models.User{Username: name, Role: models.RoleBroSis, IsRoot: boolPtr(false)}
		assert.True(t, IsProtected(user), name)
	}
}
