// package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// database (optional, enables the report archive and postgres session storage)
	DatabaseURL string

	// nats (optional, enables completion events)
	NatsURL string

	// telegram
	TGApiID          int
	TGApiHash        string
	TGSessionStr     string
	TGSessionFile    string
	TGRequestsPerSec float64
	TGFloodRetries   int // 0 = retry flood waits without limit

	// exports
	OutputDir string

	// server
	HTTPPort int

	// logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		NatsURL:        getEnv("NATS_URL", ""),
		TGApiHash:      getEnv("TG_API_HASH", ""),
		TGSessionStr:   getEnv("TG_SESSION_STRING", ""),
		TGSessionFile:  getEnv("TG_SESSION_FILE", "tg_session.db"),
		TGFloodRetries: getEnvInt("TG_FLOOD_RETRIES", 0),
		OutputDir:      getEnv("OUTPUT_DIR", "./exports"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		HTTPPort:       getEnvInt("HTTP_PORT", 3100),
		TGApiID:        getEnvInt("TG_API_ID", 0),
	}

	cfg.TGRequestsPerSec = getEnvFloat("TG_RPS", 2.0)

	return cfg, nil
}

// HasTelegramCredentials reports whether api id and hash are configured.
func (c *Config) HasTelegramCredentials() bool {
	return c.TGApiID != 0 && c.TGApiHash != ""
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
