package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Run    RunConfig
	Data   DataConfig
	Server ServerConfig
}

// RunConfig holds multiverse execution settings
type RunConfig struct {
	Workers    int
	FitTimeout time.Duration
	ConfLevel  float64
}

// DataConfig holds dataset input settings
type DataConfig struct {
	DatasetFile string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Run: RunConfig{
			Workers:    getEnvIntOrDefault("MV_WORKERS", 0),
			FitTimeout: getEnvDurationOrDefault("MV_FIT_TIMEOUT", 30*time.Second),
			ConfLevel:  getEnvFloatOrDefault("MV_CONF_LEVEL", 0.95),
		},
		Data: DataConfig{
			DatasetFile: getEnvOrDefault("DATASET_FILE", ""),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Run.Workers < 0 {
		return fmt.Errorf("MV_WORKERS must not be negative, got %d", cfg.Run.Workers)
	}
	if cfg.Run.ConfLevel <= 0 || cfg.Run.ConfLevel >= 1 {
		return fmt.Errorf("MV_CONF_LEVEL must lie in (0, 1), got %g", cfg.Run.ConfLevel)
	}
	if cfg.Run.FitTimeout < 0 {
		return fmt.Errorf("MV_FIT_TIMEOUT must not be negative, got %s", cfg.Run.FitTimeout)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
