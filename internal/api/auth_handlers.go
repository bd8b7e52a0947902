package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"learnstack-backend/internal/auth"
	"learnstack-backend/internal/models"
)

// Generic user-facing messages. The anti-enumeration flows depend on these
// being identical regardless of whether the account exists, so they are
// constants rather than ad-hoc strings.
const (
	msgRegistered   = "Check your email to verify your account."
	msgResetSent    = "If an account exists for that address, a password reset link has been sent."
	msgRateLimited  = "too many attempts, please try again later"
	msgBadCreds     = "invalid email or password"
	msgUnverified   = "please verify your email address before logging in"
	msgUnavailable  = "temporarily unavailable, try again"
	msgInvalidToken = "invalid or expired reset token"
)

// AuthHandlers serves the authentication HTTP surface.
type AuthHandlers struct {
	svc        *auth.Service
	production bool
}

// NewAuthHandlers creates the auth handler set
func NewAuthHandlers(svc *auth.Service, production bool) *AuthHandlers {
	return &AuthHandlers{svc: svc, production: production}
}

// register handles POST /api/auth/register
func (h *AuthHandlers) register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "invalid request body",
		})
	}
	if !validEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "a valid email address is required",
		})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "password must be at least 8 characters",
		})
	}

	err := h.svc.Register(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRateLimited):
			return tooManyRequests(c)
		case errors.Is(err, auth.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"success": false, "error": msgUnavailable,
			})
		default:
			c.Logger().Error("register error: ", err)
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"success": false, "error": "registration failed",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true, "message": msgRegistered,
	})
}

// login handles POST /api/auth/login
func (h *AuthHandlers) login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "invalid request body",
		})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "email and password are required",
		})
	}

	user, token, expiresAt, err := h.svc.Login(c.Request().Context(), req.Email, req.Password, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRateLimited):
			return tooManyRequests(c)
		case errors.Is(err, auth.ErrInvalidCredentials):
			// Never reveals whether the email exists.
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"success": false, "error": msgBadCreds,
			})
		case errors.Is(err, auth.ErrEmailUnverified):
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"success": false, "error": msgUnverified,
			})
		case errors.Is(err, auth.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"success": false, "error": msgUnavailable,
			})
		default:
			c.Logger().Error("login error: ", err)
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"success": false, "error": "authentication failed",
			})
		}
	}

	h.setSessionCookie(c, token, expiresAt)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// logout handles POST /api/auth/logout. It never fails visibly: the session
// delete is best-effort and the cookie is cleared unconditionally.
func (h *AuthHandlers) logout(c echo.Context) error {
	h.svc.Logout(c.Request().Context(), auth.TokenFromRequest(c))
	h.clearSessionCookie(c)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// me handles GET /api/auth/me (behind RequireAuth)
func (h *AuthHandlers) me(c echo.Context) error {
	user := auth.GetUserFromContext(c)
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "not authenticated",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user": user,
	})
}

// forgotPassword handles POST /api/auth/forgot-password. Apart from the rate
// limit, the response is the same generic success whatever happens — even an
// unexpected internal error must not break the anti-enumeration contract.
func (h *AuthHandlers) forgotPassword(c echo.Context) error {
	var req models.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "invalid request body",
		})
	}
	if !validEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "a valid email address is required",
		})
	}

	if err := h.svc.ForgotPassword(c.Request().Context(), req.Email, c.RealIP()); err != nil {
		if errors.Is(err, auth.ErrRateLimited) {
			return tooManyRequests(c)
		}
		c.Logger().Error("forgot password error: ", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true, "message": msgResetSent,
	})
}

// resetPassword handles POST /api/auth/reset-password
func (h *AuthHandlers) resetPassword(c echo.Context) error {
	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "invalid request body",
		})
	}
	if req.Token == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "reset token is required",
		})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "password must be at least 8 characters",
		})
	}

	err := h.svc.ResetPassword(c.Request().Context(), req.Token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenInvalid):
			// Expired and unknown tokens get the same answer.
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"success": false, "message": msgInvalidToken,
			})
		case errors.Is(err, auth.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"success": false, "error": msgUnavailable,
			})
		default:
			c.Logger().Error("reset password error: ", err)
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"success": false, "error": "password reset failed",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true, "message": "your password has been updated",
	})
}

// verifyEmail handles GET /api/auth/verify-email?token=...
func (h *AuthHandlers) verifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return c.Redirect(http.StatusFound, "/login?error=invalid_token")
	}

	if err := h.svc.VerifyEmail(c.Request().Context(), token); err != nil {
		if !errors.Is(err, auth.ErrTokenInvalid) {
			c.Logger().Error("verify email error: ", err)
		}
		return c.Redirect(http.StatusFound, "/login?error=invalid_token")
	}

	return c.Redirect(http.StatusFound, "/login?verified=1")
}

// setSessionCookie wraps the signed token in a scoped, non-script-readable
// cookie with the same fixed lifetime as the token itself.
func (h *AuthHandlers) setSessionCookie(c echo.Context, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.SessionTokenTTL.Seconds()),
		Expires:  expiresAt,
	})
}

func (h *AuthHandlers) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func tooManyRequests(c echo.Context) error {
	c.Response().Header().Set("Retry-After", "60")
	return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
		"success": false, "error": msgRateLimited,
	})
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}
