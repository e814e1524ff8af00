// Package config loads process settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything cmd/scrumboard needs to start.
type Config struct {
	Addr             string
	DBPath           string
	JWTSecret        string `json:"-"`
	ResolveTimeout   time.Duration
	SignInPath       string
	UnauthorizedPath string
}

// Load reads the optional .env file and the SCRUMBOARD_* variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	timeout, err := durationOrDefault("SCRUMBOARD_RESOLVE_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Addr:             envOrDefault("SCRUMBOARD_ADDR", ":8080"),
		DBPath:           envOrDefault("SCRUMBOARD_DB_PATH", "data/scrumboard.db"),
		JWTSecret:        os.Getenv("SCRUMBOARD_JWT_SECRET"),
		ResolveTimeout:   timeout,
		SignInPath:       envOrDefault("SCRUMBOARD_SIGNIN_PATH", "/login"),
		UnauthorizedPath: envOrDefault("SCRUMBOARD_UNAUTHORIZED_PATH", "/unauthorized"),
	}
	return cfg, nil
}

// Validate reports settings that make the service unusable.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("SCRUMBOARD_JWT_SECRET is required")
	}
	if c.DBPath == "" {
		return errors.New("database path must not be empty")
	}
	if c.ResolveTimeout < 0 {
		return errors.New("resolve timeout must not be negative")
	}
	return nil
}

// envOrDefault returns the environment variable value or fallback when it is empty.
func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
