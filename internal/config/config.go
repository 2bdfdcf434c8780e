// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Directory holding notes.db (always absolute)
	Port            int
	LogLevel        string
	DevMode         bool
	MonitorSchedule string // cron spec with seconds field for the barrier monitor
	DefaultCurrency string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("NOTES_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("NOTES_PORT", 8080),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		MonitorSchedule: getEnv("NOTES_MONITOR_SCHEDULE", "0 */15 * * * *"),
		DefaultCurrency: strings.ToUpper(getEnv("NOTES_DEFAULT_CURRENCY", "USD")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabasePath is the location of the product store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "notes.db")
}

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var errs domain.ValidationErrors

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, domain.ValidationError{Field: "NOTES_PORT", Message: fmt.Sprintf("must be between 1 and 65535, got %d", c.Port)})
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, domain.ValidationError{Field: "LOG_LEVEL", Message: fmt.Sprintf("unknown level %q", c.LogLevel)})
	}

	if strings.TrimSpace(c.MonitorSchedule) == "" {
		errs = append(errs, domain.ValidationError{Field: "NOTES_MONITOR_SCHEDULE", Message: "must not be empty"})
	} else if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.MonitorSchedule); err != nil {
		errs = append(errs, domain.ValidationError{Field: "NOTES_MONITOR_SCHEDULE", Message: err.Error()})
	}

	if len(c.DefaultCurrency) != 3 {
		errs = append(errs, domain.ValidationError{Field: "NOTES_DEFAULT_CURRENCY", Message: "must be a 3-letter ISO code"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
