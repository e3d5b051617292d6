package services

import (
	"context"
	"testing"
	"time"

	"github.com/SigNoz/storefront-api/internal/auth"
	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()

	resp, err := env.users.Register(ctx, models.RegisterRequest{Name: "Jane", Email: "Jane@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "jane@example.com", resp.User.Email)
	assert.NotEqual(t, "secret1", resp.User.PasswordHash)

	_, err = env.users.Register(ctx, models.RegisterRequest{Name: "Jane", Email: "jane@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrDuplicate)

	login, err := env.users.Login(ctx, models.LoginRequest{Email: "JANE@example.com", Password: "secret1"})
	require.NoError(t, err)

	user, err := env.users.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "jane@example.com", false)

	_, err := env.users.Login(ctx, models.LoginRequest{Email: "jane@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.users.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, env.users.SetActive(ctx, user.ID, false))
	_, err = env.users.Login(ctx, models.LoginRequest{Email: "jane@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_Rejects(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "jane@example.com", false)

	_, err := env.users.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	resp, err := env.users.Login(ctx, models.LoginRequest{Email: "jane@example.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, env.users.SetActive(ctx, user.ID, false))
	_, err = env.users.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	ghost, err := auth.NewTokenManager("test-secret", time.Hour).Issue(9999)
	require.NoError(t, err)
	_, err = env.users.Authenticate(ctx, ghost)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestEnsureUser(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()

	u, created, err := env.users.EnsureUser(ctx, "Admin", "admin@example.com", "adminpass", true)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, u.IsAdmin)

	again, created, err := env.users.EnsureUser(ctx, "Admin", "admin@example.com", "other", false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
	assert.False(t, again.IsAdmin)

	_, err = env.users.Login(ctx, models.LoginRequest{Email: "admin@example.com", Password: "adminpass"})
	assert.NoError(t, err, "password is kept")
}
