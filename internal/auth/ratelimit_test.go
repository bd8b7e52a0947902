package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"learnstack-backend/internal/database"
	"learnstack-backend/internal/models"
)

func openTestAttempts(t *testing.T) *database.AttemptRepo {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewAttemptRepo(db)
}

func strptr(s string) *string { return &s }

func TestLoginEmailLimit(t *testing.T) {
	attempts := openTestAttempts(t)
	rl := NewRateLimiter(attempts)
	ctx := context.Background()

	email := "e@x.com"
	for i := 0; i < 4; i++ {
		require.NoError(t, attempts.Record(ctx, models.AttemptLogin, strptr(email), "10.0.0.1", false))
	}

	res, err := rl.CheckLoginEmail(ctx, email)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 1, res.Remaining)

	require.NoError(t, attempts.Record(ctx, models.AttemptLogin, strptr(email), "10.0.0.1", false))

	res, err = rl.CheckLoginEmail(ctx, email)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Zero(t, res.Remaining)

	// The gate is keyed by email; another account is unaffected.
	res, err = rl.CheckLoginEmail(ctx, "other@x.com")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 5, res.Remaining)
}

func TestLoginSuccessDoesNotCount(t *testing.T) {
	attempts := openTestAttempts(t)
	rl := NewRateLimiter(attempts)
	ctx := context.Background()

	email := "e@x.com"
	for i := 0; i < 10; i++ {
		require.NoError(t, attempts.Record(ctx, models.AttemptLogin, strptr(email), "10.0.0.1", true))
	}

	res, err := rl.CheckLoginEmail(ctx, email)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, 5, res.Remaining)
}

func TestLoginIPLimit(t *testing.T) {
	attempts := openTestAttempts(t)
	rl := NewRateLimiter(attempts)
	ctx := context.Background()

	// Failures across many different emails from the same origin.
	for i := 0; i < 20; i++ {
		require.NoError(t, attempts.Record(ctx, models.AttemptLogin, nil, "10.0.0.9", false))
	}

	res, err := rl.CheckLoginIP(ctx, "10.0.0.9")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = rl.CheckLoginIP(ctx, "10.0.0.10")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestResetEmailLimit(t *testing.T) {
	attempts := openTestAttempts(t)
	rl := NewRateLimiter(attempts)
	ctx := context.Background()

	email := "e@x.com"
	for i := 0; i < 3; i++ {
		require.NoError(t, attempts.Record(ctx, models.AttemptPasswordReset, strptr(email), "10.0.0.1", true))
	}

	res, err := rl.CheckResetEmail(ctx, email)
	require.NoError(t, err)
	require.False(t, res.Allowed)
}

func TestRegisterIPLimit(t *testing.T) {
	attempts := openTestAttempts(t)
	rl := NewRateLimiter(attempts)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, attempts.Record(ctx, models.AttemptRegister, strptr("any@x.com"), "10.0.0.1", true))
	}

	res, err := rl.CheckRegisterIP(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = rl.CheckRegisterIP(ctx, "10.0.0.2")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}
