package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	// Cookie session signing key and lifetime for a logged-in principal.
	SessionSecret string
	SessionTTL    time.Duration

	// Remember-me token signing key and lifetime.
	RememberSecret string
	RememberTTL    time.Duration

	// Default administrator provisioned on first run.
	AdminEmail    string
	AdminPassword string

	StudentsPerPage int
	ResultsPerPage  int

	CORSOrigins []string
}

func FromEnv() Config {
	return Config{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		DBDriver:        envOr("DB_DRIVER", "sqlite"),
		DBDSN:           envOr("DB_DSN", ""),
		SessionSecret:   envOr("SESSION_SECRET", "dev-secret-key-change-in-production"),
		SessionTTL:      envDuration("SESSION_TTL", 2*time.Hour),
		RememberSecret:  envOr("REMEMBER_SECRET", "dev-remember-key-change-in-production"),
		RememberTTL:     envDuration("REMEMBER_TTL", 30*24*time.Hour),
		AdminEmail:      envOr("ADMIN_EMAIL", "admin@exam.com"),
		AdminPassword:   envOr("ADMIN_PASSWORD", "admin123"),
		StudentsPerPage: envInt("STUDENTS_PER_PAGE", 10),
		ResultsPerPage:  envInt("RESULTS_PER_PAGE", 20),
		CORSOrigins:     []string{envOr("CORS_ORIGIN", "http://localhost:3000")},
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return def
}
