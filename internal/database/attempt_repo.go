package database

import (
	"context"
	"database/sql"
	"time"

	"learnstack-backend/internal/models"
)

// AttemptRepo handles the append-only auth_attempts log. Rows double as an
// audit trail and as the rate limiter's data source; they are never updated,
// only counted inside sliding windows.
type AttemptRepo struct {
	db *DB
}

// NewAttemptRepo creates a new attempt repository
func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Record appends one attempt row. email may be nil when the request carried
// no identifiable account.
func (r *AttemptRepo) Record(ctx context.Context, kind string, email *string, ipAddress string, success bool) error {
	if email != nil {
		normalized := NormalizeEmail(*email)
		email = &normalized
	}
	attempt := &models.AuthAttempt{
		Kind:      kind,
		Email:     email,
		IPAddress: ipAddress,
		Success:   success,
		CreatedAt: time.Now(),
	}
	result, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO auth_attempts (kind, email, ip_address, success, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, attempt.Kind, attempt.Email, attempt.IPAddress, attempt.Success, attempt.CreatedAt)
	if err != nil {
		return err
	}
	attempt.ID, _ = result.LastInsertId()
	return nil
}

// ListRecentByEmail returns an account's recent attempt history, newest
// first. Used for the audit trail, not for limiting.
func (r *AttemptRepo) ListRecentByEmail(ctx context.Context, email string, limit int) ([]*models.AuthAttempt, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, kind, email, ip_address, success, created_at
		FROM auth_attempts WHERE email = ?
		ORDER BY created_at DESC LIMIT ?
	`, NormalizeEmail(email), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.AuthAttempt
	for rows.Next() {
		attempt := &models.AuthAttempt{}
		var email sql.NullString
		err := rows.Scan(&attempt.ID, &attempt.Kind, &email, &attempt.IPAddress, &attempt.Success, &attempt.CreatedAt)
		if err != nil {
			return nil, err
		}
		if email.Valid {
			attempt.Email = &email.String
		}
		attempts = append(attempts, attempt)
	}

	return attempts, rows.Err()
}

// CountFailedLoginsByEmail counts failed login rows for an email since the
// given time. Successful logins do not count against the limit.
func (r *AttemptRepo) CountFailedLoginsByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM auth_attempts
		WHERE kind = ? AND email = ? AND success = 0 AND created_at >= ?
	`, models.AttemptLogin, NormalizeEmail(email), since).Scan(&count)
	return count, err
}

// CountFailedLoginsByIP counts failed login rows for a network origin since
// the given time.
func (r *AttemptRepo) CountFailedLoginsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	var count int
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM auth_attempts
		WHERE kind = ? AND ip_address = ? AND success = 0 AND created_at >= ?
	`, models.AttemptLogin, ipAddress, since).Scan(&count)
	return count, err
}

// CountResetRequestsByEmail counts password-reset requests for an email
// since the given time, whether or not the account exists.
func (r *AttemptRepo) CountResetRequestsByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM auth_attempts
		WHERE kind = ? AND email = ? AND created_at >= ?
	`, models.AttemptPasswordReset, NormalizeEmail(email), since).Scan(&count)
	return count, err
}

// CountRegistrationsByIP counts registration attempts from a network origin
// since the given time.
func (r *AttemptRepo) CountRegistrationsByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	var count int
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM auth_attempts
		WHERE kind = ? AND ip_address = ? AND created_at >= ?
	`, models.AttemptRegister, ipAddress, since).Scan(&count)
	return count, err
}
