// Package config reads the bantay server settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store names accepted in BANTAY_STORE.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
)

type AppConfig struct {
	// Server
	HTTPAddr string
	URL      string
	BasePath string
	Secret   string
	Debug    bool

	// Storage
	Store       string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Session
	SessionStrategy string
	SessionMaxAge   time.Duration
	SweepInterval   time.Duration

	// Providers
	GitHubClientID        string
	GitHubClientSecret    string
	GoogleClientID        string
	GoogleClientSecret    string
	TwitterConsumerKey    string
	TwitterConsumerSecret string

	// Email sign-in
	SMTPServer string
	EmailFrom  string
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr: getEnv("HTTP_ADDR", ":3000"),
		URL:      getEnv("BANTAY_URL", ""),
		BasePath: getEnv("BANTAY_BASE_PATH", ""),
		Secret:   getEnv("BANTAY_SECRET", ""),
		Debug:    getEnvBool("BANTAY_DEBUG", false),

		Store:       strings.ToLower(getEnv("BANTAY_STORE", StoreMemory)),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "bantay.db"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		SessionStrategy: getEnv("BANTAY_SESSION_STRATEGY", ""),
		SessionMaxAge:   getEnvDuration("BANTAY_SESSION_MAX_AGE", 30*24*time.Hour),
		SweepInterval:   getEnvDuration("BANTAY_SWEEP_INTERVAL", time.Hour),

		GitHubClientID:        getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret:    getEnv("GITHUB_CLIENT_SECRET", ""),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		TwitterConsumerKey:    getEnv("TWITTER_CONSUMER_KEY", ""),
		TwitterConsumerSecret: getEnv("TWITTER_CONSUMER_SECRET", ""),

		SMTPServer: getEnv("SMTP_SERVER", ""),
		EmailFrom:  getEnv("EMAIL_FROM", ""),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// getEnvDuration accepts Go durations ("90m") or a plain number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
