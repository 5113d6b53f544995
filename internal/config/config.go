// Package config reads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLen = 32

type Config struct {
	DBDriver string
	DSN      string

	ServerPort     string
	JWTSecret      string
	RequestTimeout time.Duration
	AllowedOrigins []string

	RedisAddr     string
	StatsCacheTTL time.Duration
}

// Load reads .env when it exists and then the process environment.
// The first missing or invalid variable is reported as an error.
func Load() (*Config, error) {
	err := godotenv.Load()
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("[config] no .env file, using process environment")
	case err != nil:
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DBDriver:   getenv("DB_DRIVER", "postgres"),
		ServerPort: os.Getenv("SERVER_PORT"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
	}

	switch cfg.DBDriver {
	case "postgres":
		required := []string{"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_HOST", "POSTGRES_PORT"}
		for _, env := range required {
			if os.Getenv(env) == "" {
				return nil, fmt.Errorf("environment variable %s must be set", env)
			}
		}
		cfg.DSN = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			os.Getenv("POSTGRES_HOST"), os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD"),
			os.Getenv("POSTGRES_DB"), os.Getenv("POSTGRES_PORT"), getenv("POSTGRES_SSLMODE", "disable"))
	case "sqlite3":
		cfg.DSN = "file:" + getenv("SQLITE_PATH", "todos.db") + "?_foreign_keys=on"
	default:
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite3, got %q", cfg.DBDriver)
	}

	if cfg.ServerPort == "" {
		return nil, errors.New("environment variable SERVER_PORT must be set")
	}
	if len(cfg.JWTSecret) < minSecretLen {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLen)
	}

	var err error
	if cfg.RequestTimeout, err = duration("REQUEST_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatsCacheTTL, err = duration("STATS_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration like 30s, got %q", key, v)
	}
	return d, nil
}
