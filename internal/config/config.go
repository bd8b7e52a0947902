package config

import (
	"errors"
	"fmt"
	"os"
)

// minSecretLen is the minimum length of the session signing secret. Shorter
// secrets make the HMAC brute-forceable, so startup refuses them outright.
const minSecretLen = 32

// Config holds all process configuration, read once at startup and immutable
// afterwards. Components receive it (or the values they need) explicitly;
// nothing reads the environment after Load returns.
type Config struct {
	DBPath        string
	SessionSecret string
	Port          string
	BaseURL       string
	Production    bool
}

// Load reads configuration from the environment. A missing database path or
// a missing/short signing secret is an error; callers treat that as fatal.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        os.Getenv("LEARNSTACK_DB_PATH"),
		SessionSecret: os.Getenv("LEARNSTACK_SESSION_SECRET"),
		Port:          os.Getenv("LEARNSTACK_PORT"),
		BaseURL:       os.Getenv("LEARNSTACK_BASE_URL"),
		Production:    os.Getenv("LEARNSTACK_ENV") == "production",
	}

	if cfg.DBPath == "" {
		return nil, errors.New("LEARNSTACK_DB_PATH is required")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("LEARNSTACK_SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < minSecretLen {
		return nil, fmt.Errorf("LEARNSTACK_SESSION_SECRET must be at least %d characters", minSecretLen)
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}

	return cfg, nil
}
