package models

import "time"

// User represents a learner account. Emails are stored lowercased, so the
// unique index on the email column makes uniqueness case-insensitive.
type User struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	PasswordHash  string `json:"-"` // Never expose in JSON
	EmailVerified bool   `json:"email_verified"`

	// Single-use token state. Only SHA-256 hashes are persisted; the
	// plaintext token is handed out once and never stored.
	VerificationTokenHash *string    `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	ResetTokenHash        *string    `json:"-"`
	ResetExpiresAt        *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest represents the request body for a reset-link request
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the request body for completing a reset
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
