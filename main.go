package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"learnstack-backend/internal/api"
	"learnstack-backend/internal/auth"
	"learnstack-backend/internal/config"
	"learnstack-backend/internal/database"
	"learnstack-backend/internal/mail"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("initializing database", "path", cfg.DBPath)
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	tokens, err := auth.NewTokenService(cfg.SessionSecret)
	if err != nil {
		log.Error("invalid session secret", "error", err)
		os.Exit(1)
	}

	users := database.NewUserRepo(db)
	sessions := database.NewSessionRepo(db)
	attempts := database.NewAttemptRepo(db)
	mailer := mail.NewLogMailer(log)

	authSvc := auth.NewService(users, sessions, attempts, tokens, mailer, log, cfg.BaseURL)

	// Periodic sweep of expired session rows. Hygiene only: expired rows are
	// already invisible to lookups.
	go sweepExpiredSessions(sessions, log)

	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.BaseURL, "http://localhost:3000"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	// API routes
	apiGroup := e.Group("/api")
	api.RegisterRoutes(apiGroup, api.NewAuthHandlers(authSvc, cfg.Production), authSvc)

	log.Info("starting learnstack backend", "port", cfg.Port)
	if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func sweepExpiredSessions(sessions *database.SessionRepo, log *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		count, err := sessions.DeleteExpired(ctx)
		cancel()
		if err != nil {
			log.Error("expired session sweep failed", "error", err)
			continue
		}
		if count > 0 {
			log.Info("removed expired sessions", "count", count)
		}
	}
}
