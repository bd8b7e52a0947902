package auth

import (
	"context"
	"time"

	"learnstack-backend/internal/database"
)

// Rate-limit policies: sliding windows over the auth_attempts log. Counting
// from the store (instead of an in-process map) keeps limits effective across
// restarts and instances.
const (
	loginEmailLimit  = 5
	loginEmailWindow = 15 * time.Minute

	loginIPLimit  = 20
	loginIPWindow = 15 * time.Minute

	resetEmailLimit  = 3
	resetEmailWindow = time.Hour

	registerIPLimit  = 5
	registerIPWindow = time.Hour
)

// RateLimitResult is the outcome of an advisory gate check. The check is
// read-then-compare, not an atomic reservation; two requests racing at the
// boundary may both pass, which is acceptable for an advisory control.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
}

// RateLimiter evaluates sliding-window limits over recorded attempts.
type RateLimiter struct {
	attempts *database.AttemptRepo
}

// NewRateLimiter creates a rate limiter backed by the attempt log.
func NewRateLimiter(attempts *database.AttemptRepo) *RateLimiter {
	return &RateLimiter{attempts: attempts}
}

// CheckLoginEmail gates login by failed attempts for an email: 5 per 15 min.
func (rl *RateLimiter) CheckLoginEmail(ctx context.Context, email string) (RateLimitResult, error) {
	count, err := rl.attempts.CountFailedLoginsByEmail(ctx, email, time.Now().Add(-loginEmailWindow))
	if err != nil {
		return RateLimitResult{}, err
	}
	return resultFor(count, loginEmailLimit), nil
}

// CheckLoginIP gates login by failed attempts from an origin: 20 per 15 min.
func (rl *RateLimiter) CheckLoginIP(ctx context.Context, ipAddress string) (RateLimitResult, error) {
	count, err := rl.attempts.CountFailedLoginsByIP(ctx, ipAddress, time.Now().Add(-loginIPWindow))
	if err != nil {
		return RateLimitResult{}, err
	}
	return resultFor(count, loginIPLimit), nil
}

// CheckResetEmail gates password-reset requests for an email: 3 per hour.
func (rl *RateLimiter) CheckResetEmail(ctx context.Context, email string) (RateLimitResult, error) {
	count, err := rl.attempts.CountResetRequestsByEmail(ctx, email, time.Now().Add(-resetEmailWindow))
	if err != nil {
		return RateLimitResult{}, err
	}
	return resultFor(count, resetEmailLimit), nil
}

// CheckRegisterIP gates registrations from an origin: 5 per hour.
func (rl *RateLimiter) CheckRegisterIP(ctx context.Context, ipAddress string) (RateLimitResult, error) {
	count, err := rl.attempts.CountRegistrationsByIP(ctx, ipAddress, time.Now().Add(-registerIPWindow))
	if err != nil {
		return RateLimitResult{}, err
	}
	return resultFor(count, registerIPLimit), nil
}

func resultFor(count, limit int) RateLimitResult {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{Allowed: count < limit, Remaining: remaining}
}
