package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/watchqueue.db unless DATABASE_FILE is set

	// Time
	Location *time.Location // Zone used for calendar days (TIMEZONE, default UTC)

	// Store
	TxMaxRetry time.Duration // How long busy transactions are retried

	// Stats
	StatsCacheTTL time.Duration // Zero disables the dashboard cache

	// Listing
	DefaultPageSize int

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables, a .env file and any
// values already bound into viper (command line flags).
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TIMEZONE", "UTC")
	viper.SetDefault("TX_MAX_RETRY_MS", 2000)
	viper.SetDefault("STATS_CACHE_TTL_SECONDS", 30)
	viper.SetDefault("DEFAULT_PAGE_SIZE", 50)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	databaseFile := viper.GetString("DATABASE_FILE")
	if databaseFile == "" {
		configDir, err := resolveConfigDir(viper.GetString("CONFIG_DIR"))
		if err != nil {
			return nil, err
		}
		databaseFile = filepath.Join(configDir, "watchqueue.db")
	}

	loc, err := time.LoadLocation(viper.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	config := &Config{
		ServerPort:      viper.GetString("SERVER_PORT"),
		DatabaseFile:    databaseFile,
		Location:        loc,
		TxMaxRetry:      time.Duration(viper.GetInt("TX_MAX_RETRY_MS")) * time.Millisecond,
		StatsCacheTTL:   time.Duration(viper.GetInt("STATS_CACHE_TTL_SECONDS")) * time.Second,
		DefaultPageSize: viper.GetInt("DEFAULT_PAGE_SIZE"),
		LogLevel:        viper.GetString("LOG_LEVEL"),
		LogFormat:       viper.GetString("LOG_FORMAT"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > 500 {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be between 1 and 500, got %d", c.DefaultPageSize)
	}
	if c.StatsCacheTTL < 0 {
		return fmt.Errorf("STATS_CACHE_TTL_SECONDS must not be negative")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

func resolveConfigDir(configDir string) (string, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "watchqueue")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}
