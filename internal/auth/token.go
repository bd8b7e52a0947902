package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenTTL is the fixed lifetime of a session token and of the cookie
// that carries it. There is no renewal; expiry forces re-authentication.
const SessionTokenTTL = 7 * 24 * time.Hour

// minSecretLen mirrors the startup requirement on the signing secret.
const minSecretLen = 32

// ErrTokenInvalid covers signature mismatch, malformed tokens and expiry.
// It is deliberately distinct from ErrSessionNotFound so internal diagnostics
// can tell the two layers apart, but handlers collapse both to a generic 401.
var ErrTokenInvalid = errors.New("invalid or expired token")

// SessionClaims is the signed claim set carried inside a session token. The
// registered ID (jti) correlates the token 1:1 with a session row.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// UserID parses the subject claim back into a user id.
func (c *SessionClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenService issues and verifies signed session tokens. The secret is
// loaded once at process start; a short secret fails construction, not
// requests.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a token service from the signing secret.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("session secret must be at least %d characters", minSecretLen)
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// GenerateToken returns 32 bytes of cryptographically secure randomness as
// 64 hex characters. Used for email-verification and password-reset links.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the SHA-256 hex digest of a token. Storage only ever
// sees this digest, never the plaintext.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// IssueSessionToken signs a claim set for the given user and session id and
// returns the token together with its expiry.
func (ts *TokenService) IssueSessionToken(userID int64, email, sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(SessionTokenTTL)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        sessionID,
		},
		Email: email,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// VerifySessionToken checks signature and expiry. All failure modes map to
// ErrTokenInvalid; the session-store lookup is a second, independent check.
func (ts *TokenService) VerifySessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return ts.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
