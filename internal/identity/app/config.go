package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Endpoint   string // Required: identity backend base URL (e.g. https://identity.example.net/v3)
	Region     string // Optional: region label attached to log lines (default: none)
	CacheFile  string // Optional: path to the friendly-id cache SQLite file (default: ./console.db)
	SecretFile string // Optional: path to the session cookie secret file (default: ./session_secret)

	SessionTTL           time.Duration // Optional: session idle TTL (default: 8h)
	AuthTimeout          time.Duration // Optional: identity backend call timeout (default: 2.5s)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Endpoint:             os.Getenv("CONSOLE_ENDPOINT"),
		Region:               os.Getenv("CONSOLE_REGION"),
		CacheFile:            getEnvOrDefault("CONSOLE_CACHE_FILE", "console.db"),
		SecretFile:           getEnvOrDefault("CONSOLE_SESSION_SECRET_FILE", "session_secret"),
		SessionTTL:           getEnvDurationOrDefault("SESSION_TTL", 8*time.Hour),
		AuthTimeout:          getEnvDurationOrDefault("AUTH_TIMEOUT", 2500*time.Millisecond),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
