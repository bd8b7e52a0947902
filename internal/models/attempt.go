package models

import "time"

// Attempt kinds recorded in the auth_attempts log.
const (
	AttemptLogin         = "login"
	AttemptPasswordReset = "password_reset"
	AttemptRegister      = "register"
)

// AuthAttempt is an append-only audit record of an authentication-related
// request. The rate limiter counts rows from this log inside sliding time
// windows; rows are never updated or deleted.
type AuthAttempt struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Email     *string   `json:"email,omitempty"` // nil when no identifiable user
	IPAddress string    `json:"ip_address"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}
