package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, read from the environment.
type Config struct {
	// HTTP server
	Port string
	Env  string

	// Storage
	UseMemoryStore bool
	ProjectID      string

	// Logging
	LogLevel slog.Level

	// Alerts
	LowBalanceThreshold float64

	// Forecast
	DefaultHorizonMonths int
}

// Load reads configuration from the environment, optionally seeded
// from a .env file when one exists.
func Load() *Config {
	// Missing .env is fine; env vars win either way.
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "8111"),
		Env:                  getEnv("ENV", "local"),
		UseMemoryStore:       getEnvBool("USE_MEMORY_STORE", false) || getEnv("ENV", "local") == "local",
		ProjectID:            getEnv("GOOGLE_CLOUD_PROJECT", ""),
		LogLevel:             parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LowBalanceThreshold:  getEnvFloat("LOW_BALANCE_THRESHOLD", 100),
		DefaultHorizonMonths: getEnvInt("FORECAST_DEFAULT_MONTHS", 6),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
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

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
