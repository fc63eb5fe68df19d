// Package util provides configuration loading and logging for gwdns.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Platform selects the router OS implementation ("pfsense").
	Platform string `mapstructure:"platform"`

	// PowerDNS API settings
	APIURL     string        `mapstructure:"api_url"`
	APIKey     string        `mapstructure:"api_key"`
	ServerID   string        `mapstructure:"server_id"`
	Zone       string        `mapstructure:"zone"`
	RecordName string        `mapstructure:"record_name"`
	TTL        int           `mapstructure:"ttl"`
	APITimeout time.Duration `mapstructure:"api_timeout"`

	// Retry policy for transient API failures
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// Interfaces limits address enumeration to these physical interfaces.
	// Empty means every interface with a monitored gateway.
	Interfaces []string `mapstructure:"interfaces"`

	// Watcher settings
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	// WarningIsHealthy controls whether gateways in the warning state
	// keep their addresses in the record. Default true, matching the
	// router's own degraded-still-routes behavior.
	WarningIsHealthy bool `mapstructure:"warning_is_healthy"`

	// State and lock files
	StateFile string `mapstructure:"state_file"`
	LockFile  string `mapstructure:"lock_file"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".gwdns")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LogFile:  filepath.Join(dataDir, "gwdns.log"),

		Platform: "pfsense",

		ServerID:   "localhost",
		TTL:        60,
		APITimeout: 10 * time.Second,

		MaxRetries:   3,
		RetryBackoff: 2 * time.Second,

		PollInterval:    5 * time.Second,
		RefreshInterval: 6 * time.Hour,

		WarningIsHealthy: true,

		StateFile: filepath.Join(dataDir, "state.json"),
		LockFile:  filepath.Join(dataDir, "reconcile.lock"),
	}
}

// LoadConfig loads configuration from file and environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(cfg.DataDir)
	viper.AddConfigPath("/usr/local/etc/gwdns")
	viper.AddConfigPath(".")

	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("log_file", cfg.LogFile)
	viper.SetDefault("platform", cfg.Platform)
	viper.SetDefault("server_id", cfg.ServerID)
	viper.SetDefault("ttl", cfg.TTL)
	viper.SetDefault("api_timeout", cfg.APITimeout)
	viper.SetDefault("max_retries", cfg.MaxRetries)
	viper.SetDefault("retry_backoff", cfg.RetryBackoff)
	viper.SetDefault("poll_interval", cfg.PollInterval)
	viper.SetDefault("refresh_interval", cfg.RefreshInterval)
	viper.SetDefault("warning_is_healthy", cfg.WarningIsHealthy)
	viper.SetDefault("state_file", cfg.StateFile)
	viper.SetDefault("lock_file", cfg.LockFile)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate checks that everything a reconciliation run needs is present.
func (c *Config) Validate() error {
	switch {
	case c.APIURL == "":
		return fmt.Errorf("api_url is required")
	case c.APIKey == "":
		return fmt.Errorf("api_key is required")
	case c.Zone == "":
		return fmt.Errorf("zone is required")
	case c.RecordName == "":
		return fmt.Errorf("record_name is required")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %d", c.TTL)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll_interval must be at least 1s, got %s", c.PollInterval)
	}
	return nil
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}
