package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"learnstack-backend/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepo handles session database operations. Sessions are stored and
// looked up by the SHA-256 hash of the signed bearer token; the raw token
// never reaches the database.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create persists a new session for the given signed token.
func (r *SessionRepo) Create(ctx context.Context, id string, userID int64, token string, expiresAt time.Time, ipAddress, userAgent string) (*models.Session, error) {
	session := &models.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: hashToken(token),
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}

	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, created_at, expires_at, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, session.ID, session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt, session.IPAddress, session.UserAgent)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// GetByToken retrieves the unexpired session for a plain bearer token. An
// expired row is treated as absent, not as an error; the sweep in
// DeleteExpired removes it eventually.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	session := &models.Session{}

	err := r.db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, created_at, expires_at, ip_address, user_agent
		FROM sessions WHERE token_hash = ? AND expires_at > ?
	`, hashToken(token), time.Now()).Scan(
		&session.ID, &session.UserID, &session.TokenHash,
		&session.CreatedAt, &session.ExpiresAt, &session.IPAddress, &session.UserAgent,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Delete deletes a session by ID
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

// DeleteByToken deletes a session by its plain token
func (r *SessionRepo) DeleteByToken(ctx context.Context, token string) error {
	result, err := r.db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = ?", hashToken(token))
	if err != nil {
		return err
	}
	return requireRow(result, ErrSessionNotFound)
}

// DeleteAllForUser deletes all sessions for a user. Called on password reset
// so every other device is signed out immediately.
func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID int64) error {
	_, err := r.db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	return err
}

// DeleteExpired removes all expired sessions. Storage hygiene only; expired
// rows are already invisible to GetByToken.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountByUserID returns the number of active sessions for a user
func (r *SessionRepo) CountByUserID(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE user_id = ? AND expires_at > ?",
		userID, time.Now(),
	).Scan(&count)
	return count, err
}

// hashToken creates a SHA-256 hash of the token
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
