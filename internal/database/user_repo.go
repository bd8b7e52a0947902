package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"learnstack-backend/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

const userColumns = `id, email, password_hash, email_verified,
	verification_token_hash, verification_expires_at,
	reset_token_hash, reset_expires_at, created_at, updated_at`

// UserRepo handles user database operations
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// NormalizeEmail lowercases and trims an email address. Every lookup and
// insert goes through this so the unique index is effectively
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new user. The email is normalized before insert; a
// duplicate (case-insensitive) yields ErrUserAlreadyExists.
func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, email_verified,
			verification_token_hash, verification_expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.Email, user.PasswordHash, user.EmailVerified,
		user.VerificationTokenHash, user.VerificationExpiresAt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUserAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by email (case-insensitive)
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, NormalizeEmail(email))
	return scanUser(row)
}

// ExistsByEmail checks if a user with the given email exists
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email = ?", NormalizeEmail(email)).Scan(&count)
	return count > 0, err
}

// GetByVerificationTokenHash retrieves a user by the hash of an unexpired
// verification token. An expired or unknown token is ErrUserNotFound; callers
// must not be able to tell the two apart.
func (r *UserRepo) GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE verification_token_hash = ? AND verification_expires_at > ?
	`, tokenHash, time.Now())
	return scanUser(row)
}

// GetByResetTokenHash retrieves a user by the hash of an unexpired
// password-reset token. Expired and unknown are both ErrUserNotFound.
func (r *UserRepo) GetByResetTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reset_token_hash = ? AND reset_expires_at > ?
	`, tokenHash, time.Now())
	return scanUser(row)
}

// MarkEmailVerified sets the verified flag and consumes the verification
// token. Idempotent: re-running for an already verified user changes nothing.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id int64) error {
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE users SET
			email_verified = 1,
			verification_token_hash = NULL,
			verification_expires_at = NULL,
			updated_at = ?
		WHERE id = ?
	`, time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrUserNotFound)
}

// SetResetToken stores a hashed reset token with its expiry, overwriting any
// prior token so only one reset link is outstanding per user.
func (r *UserRepo) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE users SET
			reset_token_hash = ?,
			reset_expires_at = ?,
			updated_at = ?
		WHERE id = ?
	`, tokenHash, expiresAt, time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrUserNotFound)
}

// UpdatePassword replaces the password hash and consumes the reset token.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE users SET
			password_hash = ?,
			reset_token_hash = NULL,
			reset_expires_at = NULL,
			updated_at = ?
		WHERE id = ?
	`, passwordHash, time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrUserNotFound)
}

// Count returns the total number of users
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var verificationHash, resetHash sql.NullString
	var verificationExpires, resetExpires sql.NullTime

	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.EmailVerified,
		&verificationHash, &verificationExpires,
		&resetHash, &resetExpires,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if verificationHash.Valid {
		user.VerificationTokenHash = &verificationHash.String
	}
	if verificationExpires.Valid {
		user.VerificationExpiresAt = &verificationExpires.Time
	}
	if resetHash.Valid {
		user.ResetTokenHash = &resetHash.String
	}
	if resetExpires.Valid {
		user.ResetExpiresAt = &resetExpires.Time
	}

	return user, nil
}

func requireRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
