package rbac

import (
	"testing"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforcerPolicies(t *testing.T) {
	db := newTestDB(t, true)
	en, err := NewEnforcer(db, discardLogger)
	require.NoError(t, err)

	alice := uuid.New()
	require.NoError(t, en.SetRolePermissions("Editor", []string{PermViewProjects, PermEditTasks}))
	require.NoError(t, en.AssignRole(alice, "Editor"))

	ok, err := en.HasPermission(alice, PermEditTasks)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = en.HasPermission(alice, PermDeleteTasks)
	require.NoError(t, err)
	assert.False(t, ok)

	roles, err := en.RolesForUser(alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Editor"}, roles)

	t.Run("replacing permissions", func(t *testing.T) {
		require.NoError(t, en.SetRolePermissions("Editor", []string{PermDeleteTasks}))
		ok, _ := en.HasPermission(alice, PermEditTasks)
		assert.False(t, ok)
		ok, _ = en.HasPermission(alice, PermDeleteTasks)
		assert.True(t, ok)
	})

	t.Run("rename keeps members", func(t *testing.T) {
		require.NoError(t, en.RenameRole("Editor", "Maintainer", []string{PermDeleteTasks}))
		roles, err := en.RolesForUser(alice)
		require.NoError(t, err)
		assert.Equal(t, []string{"Maintainer"}, roles)
		ok, _ := en.HasPermission(alice, PermDeleteTasks)
		assert.True(t, ok)
	})

	t.Run("single role per user", func(t *testing.T) {
		require.NoError(t, en.AssignRole(alice, AdministratorRole))
		roles, err := en.RolesForUser(alice)
		require.NoError(t, err)
		assert.Equal(t, []string{AdministratorRole}, roles)
	})

	t.Run("policies survive reload", func(t *testing.T) {
		reloaded, err := NewEnforcer(db, discardLogger)
		require.NoError(t, err)
		roles, err := reloaded.RolesForUser(alice)
		require.NoError(t, err)
		assert.Equal(t, []string{AdministratorRole}, roles)
	})

	t.Run("removing user and role", func(t *testing.T) {
		require.NoError(t, en.RemoveUser(alice))
		roles, err := en.RolesForUser(alice)
		require.NoError(t, err)
		assert.Empty(t, roles)

		require.NoError(t, en.RemoveRole("Maintainer"))
		bob := uuid.New()
		require.NoError(t, en.AssignRole(bob, "Maintainer"))
		ok, _ := en.HasPermission(bob, PermDeleteTasks)
		assert.False(t, ok)
	})
}

func TestResolverWithEnforcer(t *testing.T) {
	db := newTestDB(t, true)
	en, err := NewEnforcer(db, discardLogger)
	require.NoError(t, err)

	user := &model.User{ID: uuid.New()}
	require.NoError(t, en.SetRolePermissions("Editor", []string{PermViewProjects, PermEditTasks}))
	require.NoError(t, en.AssignRole(user.ID, "Editor"))

	r := NewResolver(BackendFull, en, discardLogger)
	got := r.Resolve(withSchema(true), user, &model.Role{Name: "Editor"})

	assert.Equal(t, PermissionSet{Read: true, UpdateTask: true}, got)
}
