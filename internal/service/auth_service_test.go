package service

import (
	"errors"
	"testing"

	"taskhub/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerRequest(email string) RegisterRequest {
	return RegisterRequest{
		Name:                 "New User",
		Email:                email,
		Password:             "password123",
		PasswordConfirmation: "password123",
	}
}

func TestAuthServiceRegister(t *testing.T) {
	tests := []struct {
		name    string
		backend rbac.Backend
		want    rbac.PermissionSet
	}{
		{
			name:    "full backend asks the enforcer",
			backend: rbac.BackendFull,
			want: rbac.PermissionSet{
				Create: true, Read: true, Update: true, Delete: true,
				CreateTask: true, ReadTask: true, UpdateTask: true, DeleteTask: true,
			},
		},
		{
			name:    "fallback backend reads the role data",
			backend: rbac.BackendFallback,
			want: rbac.PermissionSet{
				Create: true, Read: true, Update: true, Delete: true,
				CreateTask: true, ReadTask: true, UpdateTask: true, DeleteTask: true,
			},
		},
		{
			name:    "no role tables denies everything",
			backend: rbac.BackendNone,
			want:    rbac.PermissionSet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.backend)

			res, err := env.auth.Register(env.ctx, registerRequest("New@Example.com"))
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, "new@example.com", res.User.Email)
			assert.Equal(t, rbac.DefaultUserRole, res.User.Role)
			assert.Equal(t, tt.want, res.User.Permissions)

			stored, err := env.users.GetByEmail(env.ctx, "new@example.com")
			require.NoError(t, err)
			assert.Equal(t, rbac.DefaultUserRole, stored.Role)
			assert.NotEqual(t, "password123", stored.Password)
		})
	}
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, rbac.BackendFallback)
	_, err := env.auth.Register(env.ctx, registerRequest("dup@example.com"))
	require.NoError(t, err)

	_, err = env.auth.Register(env.ctx, registerRequest("DUP@example.com"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
}

func TestAuthServiceLogin(t *testing.T) {
	env := newTestEnv(t, rbac.BackendFull)
	env.createUser(t, "admin@example.com", rbac.AdministratorRole)

	res, err := env.auth.Login(env.ctx, LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, rbac.AdministratorRole, res.User.Role)
	assert.Equal(t, rbac.AllGranted(), res.User.Permissions)

	_, err = env.auth.Login(env.ctx, LoginRequest{Email: "admin@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.Login(env.ctx, LoginRequest{Email: "nobody@example.com", Password: "password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthServiceAuthenticateAndLogout(t *testing.T) {
	env := newTestEnv(t, rbac.BackendFallback)
	res, err := env.auth.Register(env.ctx, registerRequest("me@example.com"))
	require.NoError(t, err)

	user, token, err := env.auth.Authenticate(env.ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)
	assert.Equal(t, user.ID, token.UserID)

	require.NoError(t, env.auth.Logout(env.ctx, token.ID))
	_, _, err = env.auth.Authenticate(env.ctx, res.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthServiceAuthenticateRejectsGarbage(t *testing.T) {
	env := newTestEnv(t, rbac.BackendNone)
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, _, err := env.auth.Authenticate(env.ctx, token)
		assert.True(t, errors.Is(err, ErrInvalidToken), token)
	}
}

func TestAuthServiceProfileUsesStoredRoleWithoutSchema(t *testing.T) {
	env := newTestEnv(t, rbac.BackendNone)
	admin := env.createUser(t, "root@example.com", rbac.AdministratorRole)

	profile := env.auth.Profile(env.ctx, admin)
	assert.Equal(t, rbac.AdministratorRole, profile.Role)
	// no role row to read, so nothing is granted
	assert.Equal(t, rbac.PermissionSet{}, profile.Permissions)
}
