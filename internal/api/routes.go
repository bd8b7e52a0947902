package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"learnstack-backend/internal/auth"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(api *echo.Group, h *AuthHandlers, authSvc *auth.Service) {
	// Health check (public)
	api.GET("/health", healthCheck)

	// Auth routes (public - no session required)
	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.POST("/logout", h.logout)
	authGroup.POST("/forgot-password", h.forgotPassword)
	authGroup.POST("/reset-password", h.resetPassword)
	authGroup.GET("/verify-email", h.verifyEmail)

	// Protected auth routes
	authProtected := authGroup.Group("")
	authProtected.Use(auth.RequireAuth(authSvc))
	authProtected.GET("/me", h.me)
}

// healthCheck handles GET /api/health
func healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
