// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultDataDir         = "./data"
	defaultLogLevel        = "info"
	defaultLogPretty       = false
	defaultScanOnStartup   = true
	defaultWatchPaths      = false
	defaultWatchDebounce   = 2 * time.Second
	envPrefix              = "SERIESMGR"
	maxWatchDebounceWindow = time.Minute
)

// Config holds all application configuration
type Config struct {
	Data    DataConfig
	Logging LoggingConfig
	Scan    ScanConfig
}

// DataConfig holds the on-disk layout configuration
type DataConfig struct {
	// Dir is where playlist .cfg files and icons live
	Dir string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// ScanConfig holds discovery and watcher configuration
type ScanConfig struct {
	OnStartup     bool
	WatchPaths    bool
	WatchDebounce time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", defaultDataDir)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("scan.onstartup", defaultScanOnStartup)
	v.SetDefault("scan.watchpaths", defaultWatchPaths)
	v.SetDefault("scan.watchdebounce", defaultWatchDebounce)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return errors.New("data directory must not be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Scan.WatchDebounce <= 0 {
		return fmt.Errorf("invalid watch debounce: %v (must be > 0)", c.Scan.WatchDebounce)
	}
	if c.Scan.WatchDebounce > maxWatchDebounceWindow {
		return fmt.Errorf("invalid watch debounce: %v (must be <= %v)", c.Scan.WatchDebounce, maxWatchDebounceWindow)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
