package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete lockreg configuration
type Config struct {
	Ledger       LedgerConfig       `mapstructure:"ledger" yaml:"ledger"`
	Certificates CertificatesConfig `mapstructure:"certificates" yaml:"certificates"`
	Store        StoreConfig        `mapstructure:"store" yaml:"store"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Output       OutputConfig       `mapstructure:"output" yaml:"output"`
}

// LedgerConfig controls lock placement
type LedgerConfig struct {
	// MaxLockDuration rejects locks whose expiry is further out than this (0 = unlimited)
	MaxLockDuration time.Duration `mapstructure:"max_lock_duration" yaml:"max_lock_duration"`
	// DefaultLockDuration is used by `lockreg lock` when neither --for nor --until is given
	DefaultLockDuration time.Duration `mapstructure:"default_lock_duration" yaml:"default_lock_duration"`
}

// CertificatesConfig controls bound certificate minting
type CertificatesConfig struct {
	// Enabled mints a bound certificate for every covered lock (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Classes limits certificates to these asset classes. Empty covers every class.
	Classes []string `mapstructure:"classes" yaml:"classes"`
}

// StoreConfig controls where lockreg keeps its state
type StoreConfig struct {
	// Dir is the state directory. If empty, defaults to DataDir().
	// Supports ~ for home directory expansion.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled writes a JSON log to the state directory (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
}

// OutputConfig controls terminal output
type OutputConfig struct {
	// Color is "auto", "always" or "never" (default: "auto")
	Color string `mapstructure:"color" yaml:"color"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			MaxLockDuration:     0,
			DefaultLockDuration: 24 * time.Hour,
		},
		Certificates: CertificatesConfig{
			Enabled: false,
			Classes: []string{},
		},
		Store: StoreConfig{
			Dir: "",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Ledger defaults
	viper.SetDefault("ledger.max_lock_duration", defaults.Ledger.MaxLockDuration)
	viper.SetDefault("ledger.default_lock_duration", defaults.Ledger.DefaultLockDuration)

	// Certificate defaults
	viper.SetDefault("certificates.enabled", defaults.Certificates.Enabled)
	viper.SetDefault("certificates.classes", defaults.Certificates.Classes)

	// Store defaults
	viper.SetDefault("store.dir", defaults.Store.Dir)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Output defaults
	viper.SetDefault("output.color", defaults.Output.Color)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ResolveStoreDir returns the absolute state directory
func (s *StoreConfig) ResolveStoreDir() string {
	path := s.Dir
	if path == "" {
		return DataDir()
	}

	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lockreg")
	}
	// Fall back to ~/.config/lockreg
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lockreg"
	}
	return filepath.Join(home, ".config", "lockreg")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the default state directory
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "lockreg")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lockreg"
	}
	return filepath.Join(home, ".local", "share", "lockreg")
}
