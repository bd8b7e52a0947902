package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"learnstack-backend/internal/database"
	"learnstack-backend/internal/models"
)

// CookieName is the session cookie consumed and produced by the API.
const CookieName = "auth_token"

// Context keys for storing user data
const (
	ContextKeyUser    = "user"
	ContextKeySession = "session"
)

// RequireAuth middleware checks for a valid session and puts the user and
// session into the request context.
func RequireAuth(authSvc *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := TokenFromRequest(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
				})
			}

			user, session, err := authSvc.Authenticate(c.Request().Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, ErrUnavailable):
					return c.JSON(http.StatusServiceUnavailable, map[string]string{
						"error": "temporarily unavailable, try again",
					})
				case errors.Is(err, database.ErrUserNotFound):
					return c.JSON(http.StatusNotFound, map[string]string{
						"error": "user not found",
					})
				default:
					return c.JSON(http.StatusUnauthorized, map[string]string{
						"error": "invalid or expired session",
					})
				}
			}

			c.Set(ContextKeyUser, user)
			c.Set(ContextKeySession, session)

			return next(c)
		}
	}
}

// TokenFromRequest extracts the session token from the request
func TokenFromRequest(c echo.Context) string {
	// Try Authorization header first (Bearer token)
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// Try cookie
	cookie, err := c.Cookie(CookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}

// GetUserFromContext retrieves the authenticated user from the context
func GetUserFromContext(c echo.Context) *models.User {
	user, ok := c.Get(ContextKeyUser).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionFromContext retrieves the current session from the context
func GetSessionFromContext(c echo.Context) *models.Session {
	session, ok := c.Get(ContextKeySession).(*models.Session)
	if !ok {
		return nil
	}
	return session
}
