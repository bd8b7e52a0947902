package models

import "time"

// Session represents one active login. It is looked up exclusively by the
// SHA-256 hash of the bearer token presented by the client; the raw token is
// never persisted. A session is valid only while now < ExpiresAt.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	TokenHash string    `json:"-"` // Never expose in JSON
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}
