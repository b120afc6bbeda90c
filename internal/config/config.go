// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	HTTPAddr      string        `mapstructure:"HTTP_ADDR"`
	CacheDir      string        `mapstructure:"CACHE_DIR"`
	GithubToken   string        `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL  string        `mapstructure:"GITHUB_API_URL"`
	PageSize      int           `mapstructure:"FETCH_PAGE_SIZE"`
	MaxInflight   int           `mapstructure:"FETCH_MAX_INFLIGHT"`
	ErrorBudget   int           `mapstructure:"FETCH_ERROR_BUDGET"`
	FetchCooldown time.Duration `mapstructure:"FETCH_COOLDOWN"`
	WorkerCount   int           `mapstructure:"WORKER_COUNT"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("CACHE_DIR", "ephemeral_storage")
	viper.SetDefault("GITHUB_API_URL", "https://api.github.com")
	viper.SetDefault("FETCH_PAGE_SIZE", 100)
	viper.SetDefault("FETCH_MAX_INFLIGHT", 40)
	viper.SetDefault("FETCH_ERROR_BUDGET", 5)
	viper.SetDefault("FETCH_COOLDOWN", "15s")
	viper.SetDefault("WORKER_COUNT", 4)

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// GITHUB_TOKEN stays optional: unauthenticated reads of public data are
	// allowed, just rate limited harder.
	if cfg.CacheDir == "" {
		return nil, errors.New("CACHE_DIR is a required configuration field")
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		return nil, errors.New("FETCH_PAGE_SIZE must be between 1 and 100")
	}
	if cfg.MaxInflight <= 0 {
		return nil, errors.New("FETCH_MAX_INFLIGHT must be positive")
	}
	if cfg.WorkerCount <= 0 {
		return nil, errors.New("WORKER_COUNT must be positive")
	}

	return &cfg, nil
}
