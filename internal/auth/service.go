package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"learnstack-backend/internal/database"
	"learnstack-backend/internal/mail"
	"learnstack-backend/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailUnverified    = errors.New("email not verified")
	ErrRateLimited        = errors.New("too many attempts")
	ErrUnavailable        = errors.New("service temporarily unavailable")
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour

	// Timeout budgets for datastore work. A slow database degrades to a
	// typed ErrUnavailable instead of hanging the request.
	sessionCheckTimeout = 3 * time.Second
	registerTimeout     = 5 * time.Second
)

// Service orchestrates the authentication flows: registration, login,
// logout, who-am-I, email verification and the password-reset pair.
type Service struct {
	users    *database.UserRepo
	sessions *database.SessionRepo
	attempts *database.AttemptRepo
	limiter  *RateLimiter
	tokens   *TokenService
	mailer   mail.Mailer
	log      *slog.Logger
	baseURL  string
}

// NewService creates a new auth service
func NewService(users *database.UserRepo, sessions *database.SessionRepo, attempts *database.AttemptRepo, tokens *TokenService, mailer mail.Mailer, log *slog.Logger, baseURL string) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		attempts: attempts,
		limiter:  NewRateLimiter(attempts),
		tokens:   tokens,
		mailer:   mailer,
		log:      log,
		baseURL:  baseURL,
	}
}

// Register creates an account and sends a verification email. A duplicate
// email is not an error: the flow returns the same generic outcome as a
// fresh registration so responses never reveal whether an email is taken.
func (s *Service) Register(ctx context.Context, email, password, ipAddress string) error {
	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()

	email = database.NormalizeEmail(email)

	gate, err := s.limiter.CheckRegisterIP(ctx, ipAddress)
	if err != nil {
		return mapUnavailable(err)
	}
	if !gate.Allowed {
		return ErrRateLimited
	}

	// Cheap existence read first, so duplicates skip the bcrypt cost.
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return mapUnavailable(err)
	}
	if exists {
		s.log.InfoContext(ctx, "registration for existing email suppressed", "ip", ipAddress)
		return nil
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return err
	}

	token, err := GenerateToken()
	if err != nil {
		return err
	}
	tokenHash := HashToken(token)
	expiresAt := time.Now().Add(verificationTokenTTL)

	user := &models.User{
		Email:                 email,
		PasswordHash:          passwordHash,
		VerificationTokenHash: &tokenHash,
		VerificationExpiresAt: &expiresAt,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration for the same email;
		// indistinguishable from the short-circuit above.
		if errors.Is(err, database.ErrUserAlreadyExists) {
			return nil
		}
		return mapUnavailable(err)
	}

	s.recordAttempt(ctx, models.AttemptRegister, &email, ipAddress, true)

	link := s.baseURL + "/api/auth/verify-email?token=" + token
	if err := s.mailer.SendVerificationEmail(ctx, email, link); err != nil {
		// Best-effort: the account exists either way.
		s.log.ErrorContext(ctx, "failed to send verification email", "error", err)
	}

	return nil
}

// Login verifies credentials and opens a session. On success it returns the
// user together with the signed session token and its expiry.
func (s *Service) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*models.User, string, time.Time, error) {
	email = database.NormalizeEmail(email)

	// Both gates must pass before the password is even looked at.
	emailGate, err := s.limiter.CheckLoginEmail(ctx, email)
	if err != nil {
		return nil, "", time.Time{}, mapUnavailable(err)
	}
	ipGate, err := s.limiter.CheckLoginIP(ctx, ipAddress)
	if err != nil {
		return nil, "", time.Time{}, mapUnavailable(err)
	}
	if !emailGate.Allowed || !ipGate.Allowed {
		return nil, "", time.Time{}, ErrRateLimited
	}

	user, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		return nil, "", time.Time{}, mapUnavailable(err)
	}
	if user == nil {
		s.recordAttempt(ctx, models.AttemptLogin, &email, ipAddress, false)
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		s.recordAttempt(ctx, models.AttemptLogin, &email, ipAddress, false)
		return nil, "", time.Time{}, ErrEmailUnverified
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := s.tokens.IssueSessionToken(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if _, err := s.sessions.Create(ctx, sessionID, user.ID, token, expiresAt, ipAddress, userAgent); err != nil {
		return nil, "", time.Time{}, mapUnavailable(err)
	}

	s.recordAttempt(ctx, models.AttemptLogin, &email, ipAddress, true)

	return user, token, expiresAt, nil
}

// verifyCredentials is the single entry point combining the user lookup with
// the timing-safe password comparison. Callers must never split these steps:
// a lookup that short-circuits before hashing would reveal through latency
// whether the email exists. Returns (nil, nil) for bad credentials.
func (s *Service) verifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			VerifyPassword(password, "")
			return nil, nil
		}
		return nil, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return nil, nil
	}
	return user, nil
}

// Logout revokes the session for a token. Best-effort by contract: every
// failure is logged and swallowed, the caller always observes success.
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if _, err := s.tokens.VerifySessionToken(token); err != nil {
		return
	}
	if err := s.sessions.DeleteByToken(ctx, token); err != nil && !errors.Is(err, database.ErrSessionNotFound) {
		s.log.ErrorContext(ctx, "failed to delete session on logout", "error", err)
	}
}

// Authenticate resolves a session token to its user: signature and expiry
// first (no I/O), then the session row and the user row in parallel under a
// bounded budget. Both checks are deliberate defense-in-depth; a valid
// signature alone is not enough once the session row is gone.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, *models.Session, error) {
	claims, err := s.tokens.VerifySessionToken(token)
	if err != nil {
		return nil, nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, nil, ErrTokenInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, sessionCheckTimeout)
	defer cancel()

	var (
		session *models.Session
		user    *models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		session, err = s.sessions.GetByToken(gctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = s.users.GetByID(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, mapUnavailable(err)
	}

	if session.UserID != user.ID {
		return nil, nil, database.ErrSessionNotFound
	}

	return user, session, nil
}

// ForgotPassword issues a reset link when the account exists. Apart from the
// rate limit, every outcome is indistinguishable to the caller: unknown
// email, mail failure and internal errors all land on the same generic
// success, which is the whole point of the flow.
func (s *Service) ForgotPassword(ctx context.Context, email, ipAddress string) error {
	email = database.NormalizeEmail(email)

	gate, err := s.limiter.CheckResetEmail(ctx, email)
	if err != nil {
		s.log.ErrorContext(ctx, "reset rate-limit check failed", "error", err)
		return nil
	}
	if !gate.Allowed {
		return ErrRateLimited
	}

	s.recordAttempt(ctx, models.AttemptPasswordReset, &email, ipAddress, true)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			s.log.ErrorContext(ctx, "reset lookup failed", "error", err)
		}
		return nil
	}

	token, err := GenerateToken()
	if err != nil {
		s.log.ErrorContext(ctx, "reset token generation failed", "error", err)
		return nil
	}
	if err := s.users.SetResetToken(ctx, user.ID, HashToken(token), time.Now().Add(resetTokenTTL)); err != nil {
		s.log.ErrorContext(ctx, "reset token store failed", "error", err)
		return nil
	}

	link := s.baseURL + "/reset-password?token=" + token
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, link); err != nil {
		s.log.ErrorContext(ctx, "failed to send reset email", "error", err)
	}

	return nil
}

// ResetPassword consumes a reset token and revokes every session of the
// user, signing out all other devices immediately.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.users.GetByResetTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			// Expired and never-existed must stay indistinguishable.
			return ErrTokenInvalid
		}
		return mapUnavailable(err)
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return mapUnavailable(err)
	}
	if err := s.sessions.DeleteAllForUser(ctx, user.ID); err != nil {
		return mapUnavailable(err)
	}

	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.users.GetByVerificationTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return ErrTokenInvalid
		}
		return mapUnavailable(err)
	}
	return mapUnavailable(s.users.MarkEmailVerified(ctx, user.ID))
}

// recordAttempt appends to the audit/rate-limit log. A write failure must
// not fail the surrounding flow, so it is logged and dropped.
func (s *Service) recordAttempt(ctx context.Context, kind string, email *string, ipAddress string, success bool) {
	if err := s.attempts.Record(ctx, kind, email, ipAddress, success); err != nil {
		s.log.ErrorContext(ctx, "failed to record auth attempt", "kind", kind, "error", err)
	}
}

func mapUnavailable(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrUnavailable
	}
	return err
}
