package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	// ErrConfigFileNotFound indicates that no config file was found in any search path.
	ErrConfigFileNotFound = errors.New("could not find config file in any config path")
	// ErrConfigVersionMissing indicates that the config file has no version field.
	ErrConfigVersionMissing = errors.New("config file is missing version field")
	// ErrConfigVersionMismatch indicates that the config file version is outdated.
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.1.0"

// CurrentVersion is the expected version of ledger.toml.
const CurrentVersion = 1

// FileName is the name of the config file looked up in each search path.
const FileName = "ledger.toml"

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version int `koanf:"version"`
	// Debug and logging settings.
	Debug Debug `koanf:"debug"`
	// PostgreSQL connection settings.
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	// Redis connection settings.
	Redis Redis `koanf:"redis"`
	// Retry settings for database transactions.
	Retry Retry `koanf:"retry"`
	// Reputation ledger settings.
	Reputation Reputation `koanf:"reputation"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level for the console output.
	LogLevel string `koanf:"log_level"`
	// Number of log sessions to keep on disk.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Retry controls how failed database transactions are re-run.
type Retry struct {
	// Maximum number of retries after the first attempt.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial delay between retries (in milliseconds).
	Delay int `koanf:"delay"`
	// Maximum delay between retries (in milliseconds).
	MaxDelay int `koanf:"max_delay"`
	// Total time budget for all attempts (in seconds).
	MaxElapsed int `koanf:"max_elapsed"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database server hostname.
	Host string `koanf:"host"`
	// Database server port.
	Port int `koanf:"port"`
	// Database user.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum number of open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum number of idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Maximum connection lifetime (in minutes).
	MaxLifetime int `koanf:"max_lifetime"`
	// Maximum idle time for a connection (in minutes).
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis server hostname.
	Host string `koanf:"host"`
	// Redis server port.
	Port int `koanf:"port"`
	// Redis username (optional).
	Username string `koanf:"username"`
	// Redis password (optional).
	Password string `koanf:"password"`
}

// Reputation contains settings for the reputation ledger.
type Reputation struct {
	// How long a shop standing stays cached (in seconds). 0 disables the cache.
	StandingCacheTTL int `koanf:"standing_cache_ttl"`
	// Default number of events per history page.
	HistoryPageSize int `koanf:"history_page_size"`
}

// LoadConfig loads ledger.toml from the default search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadConfigFrom(
		".shopledger",
		homeDir+"/.shopledger/config",
		"/etc/shopledger/config",
		"/app/config",
		"config",
		".",
	)
}

// LoadConfigFrom loads ledger.toml from the first of the given directories
// that contains one.
func LoadConfigFrom(configPaths ...string) (*Config, string, error) {
	k := koanf.New(".")

	var usedConfigPath string
	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/%s", path, FileName)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, FileName)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion(config.Version, CurrentVersion); err != nil {
		return nil, "", err
	}

	config.applyDefaults()

	return &config, usedConfigPath, nil
}

// applyDefaults fills in settings that were left out of the file.
func (c *Config) applyDefaults() {
	if c.Debug.LogLevel == "" {
		c.Debug.LogLevel = "info"
	}
	if c.Debug.MaxLogsToKeep <= 0 {
		c.Debug.MaxLogsToKeep = 10
	}
	if c.Reputation.HistoryPageSize <= 0 {
		c.Reputation.HistoryPageSize = 20
	}
	if c.Reputation.StandingCacheTTL < 0 {
		c.Reputation.StandingCacheTTL = 0
	}
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s", ErrConfigVersionMissing, FileName)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/shopledger/tree/%s/config/%s",
			ErrConfigVersionMismatch,
			FileName,
			current,
			expected,
			RepositoryVersion,
			FileName,
		)
	}

	return nil
}
