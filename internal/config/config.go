package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	BackendFile     = "fs"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	ServerPort  string
	GinMode     string
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	MaxDBConns  int32
	// RedisURL enables booking event publication. Empty disables it.
	RedisURL string

	StorageBackend string
	StorageRoot    string
	BadgerPath     string
	// MaxTasks is the largest capacity a subject may be created with.
	MaxTasks           int
	MessagesFile       string
	CatalogConcurrency int
	RateLimitPerMinute int
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "auto"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		MaxDBConns:         int32(getEnvInt("MAX_DB_CONNS", 8)),
		RedisURL:           getEnv("REDIS_URL", ""),
		StorageBackend:     strings.ToLower(getEnv("STORAGE_BACKEND", BackendFile)),
		StorageRoot:        getEnv("STORAGE_ROOT", "./data/subjects"),
		BadgerPath:         getEnv("BADGER_PATH", "./data/badger"),
		MaxTasks:           getEnvInt("MAX_TASKS", 100),
		MessagesFile:       getEnv("MESSAGES_FILE", ""),
		CatalogConcurrency: getEnvInt("CATALOG_CONCURRENCY", 8),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		AllowedOrigins:     parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

// Validate rejects settings that would leave the service unusable.
func (c *Config) Validate() error {
	if c.MaxTasks < 1 {
		return fmt.Errorf("MAX_TASKS must be at least 1, got %d", c.MaxTasks)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
