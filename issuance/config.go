package issuance

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the configuration for the card issuance application. Values come
// from DefaultConfig, overridden by an optional YAML file, overridden by
// environment variables.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	// ExpiryTimezone is the IANA zone applied to provider expiration
	// timestamps that arrive without an offset. Empty means UTC.
	ExpiryTimezone string          `yaml:"expiry_timezone"`
	Database       DatabaseConfig  `yaml:"database"`
	Provider       ProviderConfig  `yaml:"provider"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	// Backend is "pg" or "mem". The memory backend is for tests and local
	// development only.
	Backend        string `yaml:"backend"`
	DSN            string `yaml:"dsn"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RateLimitConfig struct {
	// RPS limits card creation per user; zero disables limiting.
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr: "localhost:9090",
		Database: DatabaseConfig{
			Backend: "pg",
		},
		Provider: ProviderConfig{
			BaseURL:        "https://bankprovider.com",
			TimeoutSeconds: 10,
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 10,
		},
	}
}

// LoadConfig builds the effective configuration. path may be empty.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	config.HTTPAddr = getenv("HTTP_ADDR", config.HTTPAddr)
	config.ExpiryTimezone = getenv("EXPIRY_TZ", config.ExpiryTimezone)
	config.Database.Backend = getenv("DB_BACKEND", config.Database.Backend)
	config.Database.DSN = getenv("DB_DSN", config.Database.DSN)
	config.Provider.BaseURL = getenv("PROVIDER_BASE_URL", config.Provider.BaseURL)
	if v := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PROVIDER_TIMEOUT_SECONDS: %w", err)
		}
		config.Provider.TimeoutSeconds = seconds
	}
	if v := os.Getenv("DB_MIGRATE_ON_START"); v != "" {
		config.Database.MigrateOnStart = v == "true"
	}

	return config, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
