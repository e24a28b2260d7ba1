package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// GitHub
	GitHubToken string

	// Search
	PageSize            int
	ContributorsPerRepo int

	// API Server
	APIPort string
	APIHost string

	// CLI
	APIEndpoint string

	// Connectivity probe
	ProbeURL         string
	ProbeIntervalSec int
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		GitHubToken:         getEnv("GITHUB_TOKEN", ""),
		PageSize:            getEnvInt("PAGE_SIZE", 10),
		ContributorsPerRepo: getEnvInt("CONTRIBUTORS_PER_REPO", 10),
		APIPort:             getEnv("API_PORT", "8080"),
		APIHost:             getEnv("API_HOST", "localhost"),
		APIEndpoint:         getEnv("API_ENDPOINT", "http://localhost:8080"),
		ProbeURL:            getEnv("PROBE_URL", "https://api.github.com"),
		ProbeIntervalSec:    getEnvInt("PROBE_INTERVAL_SEC", 15),
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.PageSize <= 0 {
		return &ConfigError{Field: "PAGE_SIZE", Message: "must be a positive integer"}
	}
	if c.ContributorsPerRepo <= 0 {
		return &ConfigError{Field: "CONTRIBUTORS_PER_REPO", Message: "must be a positive integer"}
	}
	if c.ProbeIntervalSec <= 0 {
		return &ConfigError{Field: "PROBE_INTERVAL_SEC", Message: "must be a positive integer"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
