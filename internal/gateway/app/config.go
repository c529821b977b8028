package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	BackendURL     string // Required: base URL of the hosted backend
	BackendAnonKey string // Required: public API key for the hosted backend

	DatabaseFile         string        // Optional: path to SQLite session database (default: ./entrada.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-session sweep interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		BackendURL:           os.Getenv("BACKEND_URL"),
		BackendAnonKey:       os.Getenv("BACKEND_ANON_KEY"),
		DatabaseFile:         getEnvOrDefault("DATABASE_FILE", "entrada.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate rejects a configuration that cannot possibly work. The backend
// endpoint and key have no sane defaults; running without them would only
// fail later and less clearly.
func (c Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("BACKEND_URL is required")
	}
	if c.BackendAnonKey == "" {
		return errors.New("BACKEND_ANON_KEY is required")
	}
	return nil
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

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
