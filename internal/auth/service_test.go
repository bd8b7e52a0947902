package auth

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"learnstack-backend/internal/database"
)

// captureMailer records the links the service hands to the mail collaborator
// so tests can follow them like a user clicking the emailed link.
type captureMailer struct {
	verificationLinks []string
	resetLinks        []string
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, _, link string) error {
	m.verificationLinks = append(m.verificationLinks, link)
	return nil
}

func (m *captureMailer) SendPasswordResetEmail(_ context.Context, _, link string) error {
	m.resetLinks = append(m.resetLinks, link)
	return nil
}

type testEnv struct {
	svc      *Service
	users    *database.UserRepo
	sessions *database.SessionRepo
	attempts *database.AttemptRepo
	mailer   *captureMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := NewTokenService(testSecret)
	require.NoError(t, err)

	env := &testEnv{
		users:    database.NewUserRepo(db),
		sessions: database.NewSessionRepo(db),
		attempts: database.NewAttemptRepo(db),
		mailer:   &captureMailer{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.svc = NewService(env.users, env.sessions, env.attempts, tokens, env.mailer, log, "http://localhost:8080")
	return env
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	_, token, found := strings.Cut(link, "token=")
	require.True(t, found, "link carries no token: %s", link)
	return token
}

func (env *testEnv) registerAndVerify(t *testing.T, email, password string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.svc.Register(ctx, email, password, "10.0.0.1"))
	require.NotEmpty(t, env.mailer.verificationLinks)
	token := tokenFromLink(t, env.mailer.verificationLinks[len(env.mailer.verificationLinks)-1])
	require.NoError(t, env.svc.VerifyEmail(ctx, token))
}

func TestRegisterVerifyLoginLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Register(ctx, "a@x.com", "Abcdef12", "10.0.0.1"))
	require.Len(t, env.mailer.verificationLinks, 1)

	// Unverified accounts cannot log in, and the rejection is distinct from
	// bad credentials.
	_, _, _, err := env.svc.Login(ctx, "a@x.com", "Abcdef12", "10.0.0.1", "agent")
	require.ErrorIs(t, err, ErrEmailUnverified)

	token := tokenFromLink(t, env.mailer.verificationLinks[0])
	require.NoError(t, env.svc.VerifyEmail(ctx, token))

	// Consuming the token twice fails: single use.
	require.ErrorIs(t, env.svc.VerifyEmail(ctx, token), ErrTokenInvalid)

	user, sessionToken, _, err := env.svc.Login(ctx, "A@X.com", "Abcdef12", "10.0.0.1", "agent")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", user.Email)

	gotUser, gotSession, err := env.svc.Authenticate(ctx, sessionToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, gotUser.ID)
	require.Equal(t, user.ID, gotSession.UserID)

	env.svc.Logout(ctx, sessionToken)

	// The signature is still valid, but the session row is gone: the
	// store lookup is an independent second check.
	_, _, err = env.svc.Authenticate(ctx, sessionToken)
	require.ErrorIs(t, err, database.ErrSessionNotFound)
}

func TestRegisterDuplicateIsSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Register(ctx, "a@x.com", "Abcdef12", "10.0.0.1"))
	require.NoError(t, env.svc.Register(ctx, "A@x.COM", "Another99", "10.0.0.2"))

	count, err := env.users.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// No second verification email for the duplicate.
	require.Len(t, env.mailer.verificationLinks, 1)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerAndVerify(t, "a@x.com", "Abcdef12")

	_, _, _, err := env.svc.Login(ctx, "a@x.com", "WrongPass1", "10.0.0.1", "agent")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown email gets exactly the same error.
	_, _, _, err = env.svc.Login(ctx, "nobody@x.com", "WrongPass1", "10.0.0.1", "agent")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRateLimitedAfterFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerAndVerify(t, "a@x.com", "Abcdef12")

	for i := 0; i < 5; i++ {
		_, _, _, err := env.svc.Login(ctx, "a@x.com", "WrongPass1", "10.0.0.1", "agent")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Sixth attempt is rejected before the password is checked, even with
	// the correct password.
	_, _, _, err := env.svc.Login(ctx, "a@x.com", "Abcdef12", "10.0.0.1", "agent")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestAuthenticateRejectsTamperedToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerAndVerify(t, "a@x.com", "Abcdef12")

	_, sessionToken, _, err := env.svc.Login(ctx, "a@x.com", "Abcdef12", "10.0.0.1", "agent")
	require.NoError(t, err)

	tampered := sessionToken[:len(sessionToken)-2] + "xx"
	_, _, err = env.svc.Authenticate(ctx, tampered)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestForgotPasswordOutcomesIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerAndVerify(t, "a@x.com", "Abcdef12")

	require.NoError(t, env.svc.ForgotPassword(ctx, "a@x.com", "10.0.0.1"))
	require.NoError(t, env.svc.ForgotPassword(ctx, "nobody@x.com", "10.0.0.1"))

	// Only the real account got a link, but callers cannot tell.
	require.Len(t, env.mailer.resetLinks, 1)
}

func TestForgotPasswordRateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, env.svc.ForgotPassword(ctx, "a@x.com", "10.0.0.1"))
	}
	require.ErrorIs(t, env.svc.ForgotPassword(ctx, "a@x.com", "10.0.0.1"), ErrRateLimited)
}

func TestResetPasswordRevokesAllSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerAndVerify(t, "a@x.com", "Abcdef12")

	_, firstToken, _, err := env.svc.Login(ctx, "a@x.com", "Abcdef12", "10.0.0.1", "laptop")
	require.NoError(t, err)
	_, secondToken, _, err := env.svc.Login(ctx, "a@x.com", "Abcdef12", "10.0.0.2", "phone")
	require.NoError(t, err)

	require.NoError(t, env.svc.ForgotPassword(ctx, "a@x.com", "10.0.0.1"))
	require.Len(t, env.mailer.resetLinks, 1)
	resetToken := tokenFromLink(t, env.mailer.resetLinks[0])

	require.NoError(t, env.svc.ResetPassword(ctx, resetToken, "NewPass99"))

	// Every previously issued session is gone immediately.
	_, _, err = env.svc.Authenticate(ctx, firstToken)
	require.ErrorIs(t, err, database.ErrSessionNotFound)
	_, _, err = env.svc.Authenticate(ctx, secondToken)
	require.ErrorIs(t, err, database.ErrSessionNotFound)

	// Old password is dead, new one works.
	_, _, _, err = env.svc.Login(ctx, "a@x.com", "Abcdef12", "10.0.0.1", "agent")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, _, err = env.svc.Login(ctx, "a@x.com", "NewPass99", "10.0.0.1", "agent")
	require.NoError(t, err)

	// The reset token was consumed.
	require.ErrorIs(t, env.svc.ResetPassword(ctx, resetToken, "Another11"), ErrTokenInvalid)
}

func TestResetPasswordUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	require.ErrorIs(t, env.svc.ResetPassword(context.Background(), strings.Repeat("ab", 32), "NewPass99"), ErrTokenInvalid)
}
