package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleRank(t *testing.T) {
	tcases := []struct {
		role Role
		rank int
	}{
		{RoleUser, 0},
		{RoleListener, 1},
		{RoleAdmin, 2},
		{RoleCoowner, 3},
		{RoleOwner, 4},
		{Role("moderator"), -1},
		{Role(""), -1},
	}

	for _, tc := range tcases {
		t.Run(string(tc.role), func(t *testing.T) {
			assert.Equal(t, tc.rank, tc.role.Rank(), "expected rank of %q to be %d", tc.role, tc.rank)
		})
	}
}

func TestOutranks(t *testing.T) {
	assert.True(t, RoleOwner.Outranks(RoleCoowner), "expected owner to outrank coowner")
	assert.True(t, RoleAdmin.Outranks(RoleUser), "expected admin to outrank user")
	assert.False(t, RoleAdmin.Outranks(RoleAdmin), "expected equal roles not to outrank each other")
	assert.False(t, RoleListener.Outranks(RoleAdmin), "expected listener not to outrank admin")
	assert.False(t, Role("bogus").Outranks(RoleUser), "expected unknown role to rank below everything")
}

func TestCanAssignRole(t *testing.T) {
	tcases := []struct {
		name    string
		actor   Role
		target  Role
		newRole Role
		allowed bool
	}{
		{
			name:    "owner promotes user to admin",
			actor:   RoleOwner,
			target:  RoleUser,
			newRole: RoleAdmin,
			allowed: true,
		},
		{
			name:    "owner promotes user to coowner",
			actor:   RoleOwner,
			target:  RoleUser,
			newRole: RoleCoowner,
			allowed: true,
		},
		{
			name:    "owner cannot mint another owner",
			actor:   RoleOwner,
			target:  RoleUser,
			newRole: RoleOwner,
			allowed: false,
		},
		{
			name:    "admin cannot promote a peer",
			actor:   RoleAdmin,
			target:  RoleAdmin,
			newRole: RoleListener,
			allowed: false,
		},
		{
			name:    "admin cannot grant admin",
			actor:   RoleAdmin,
			target:  RoleUser,
			newRole: RoleAdmin,
			allowed: false,
		},
		{
			name:    "admin promotes user to listener",
			actor:   RoleAdmin,
			target:  RoleUser,
			newRole: RoleListener,
			allowed: true,
		},
		{
			name:    "coowner cannot touch the owner",
			actor:   RoleCoowner,
			target:  RoleOwner,
			newRole: RoleUser,
			allowed: false,
		},
		{
			name:    "unknown role is never assignable",
			actor:   RoleOwner,
			target:  RoleUser,
			newRole: Role("superuser"),
			allowed: false,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanAssignRole(tc.actor, tc.target, tc.newRole))
		})
	}
}

func TestCanModerate(t *testing.T) {
	assert.True(t, CanModerate(RoleAdmin, RoleUser), "expected admin to moderate user")
	assert.True(t, CanModerate(RoleOwner, RoleCoowner), "expected owner to moderate coowner")
	assert.False(t, CanModerate(RoleAdmin, RoleAdmin), "expected peers not to moderate each other")
	assert.False(t, CanModerate(RoleListener, RoleAdmin), "expected listener not to moderate admin")
}

func TestDismissable(t *testing.T) {
	assert.True(t, RoleListener.Dismissable())
	assert.True(t, RoleAdmin.Dismissable())
	assert.False(t, RoleUser.Dismissable())
	assert.False(t, RoleCoowner.Dismissable())
	assert.False(t, RoleOwner.Dismissable())
}
