package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrMongoURIMissing is returned by Validate when the durable store is
// enabled but no connection string is configured.
var ErrMongoURIMissing = errors.New("MONGO_URI is required when USE_MONGO is enabled")

// Config holds all application configuration
type Config struct {
	Port string

	// Durable document store
	MongoURI string
	UseMongo bool

	// Local fallback store
	MemoryFilePath string

	// Conversation defaults
	DefaultUserID string
	DefaultMode   string

	// Background summary job
	SummaryInterval time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "3001"),
		MongoURI:        getEnv("MONGO_URI", ""),
		UseMongo:        getBoolEnv("USE_MONGO", true),
		MemoryFilePath:  getEnv("MEMORY_FILE", "memory/user_memory.json"),
		DefaultUserID:   getEnv("DEFAULT_USER_ID", "default-user"),
		DefaultMode:     getEnv("DEFAULT_MODE", "therapist"),
		SummaryInterval: time.Duration(getIntEnv("SUMMARY_INTERVAL_MINUTES", 15)) * time.Minute,
	}
}

// Validate surfaces configuration errors at startup. A missing Mongo URI is
// only an error when the durable store is explicitly required; otherwise the
// caller runs against the fallback store with a warning.
func (c *Config) Validate() error {
	if c.UseMongo && c.MongoURI == "" {
		return ErrMongoURIMissing
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
