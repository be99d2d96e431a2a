package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Warden configuration
type Config struct {
	Resources ResourceConfig  `mapstructure:"resources"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ResourceConfig bounds executor concurrency and lock bookkeeping
type ResourceConfig struct {
	// ExecutorLimit is the maximum number of concurrently active executors
	ExecutorLimit int `mapstructure:"executor_limit"`
	// MaxRetries is the per-phase retry budget for recoverable errors
	MaxRetries int `mapstructure:"max_retries"`
	// LockTTLMinutes is the informational lock expiry horizon in minutes.
	// Locks are never auto-released; this only feeds stuck-lock diagnosis.
	LockTTLMinutes int `mapstructure:"lock_ttl_minutes"`
	// AdmitTimeoutSeconds bounds how long an executor retries semaphore
	// admission before giving up
	AdmitTimeoutSeconds int `mapstructure:"admit_timeout_seconds"`
	// StuckThresholdMinutes is the lock age past which a holder is reported
	// as stuck
	StuckThresholdMinutes int `mapstructure:"stuck_threshold_minutes"`
}

// LifecycleConfig controls phase progression
type LifecycleConfig struct {
	// PhaseTimeoutMinutes is the wall-clock budget per phase (0 = disabled)
	PhaseTimeoutMinutes int `mapstructure:"phase_timeout_minutes"`
}

// LoggingConfig controls the structured log output
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Dir is where warden.log is written; empty means stderr only
	Dir string `mapstructure:"dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Resources: ResourceConfig{
			ExecutorLimit:         4,
			MaxRetries:            3,
			LockTTLMinutes:        10,
			AdmitTimeoutSeconds:   120,
			StuckThresholdMinutes: 10,
		},
		Lifecycle: LifecycleConfig{
			PhaseTimeoutMinutes: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// LockTTL returns the informational lock expiry horizon as a time.Duration
func (c *ResourceConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// AdmitTimeout returns the admission retry budget as a time.Duration
func (c *ResourceConfig) AdmitTimeout() time.Duration {
	return time.Duration(c.AdmitTimeoutSeconds) * time.Second
}

// StuckThreshold returns the stuck-lock age threshold as a time.Duration
func (c *ResourceConfig) StuckThreshold() time.Duration {
	return time.Duration(c.StuckThresholdMinutes) * time.Minute
}

// PhaseTimeout returns the per-phase timeout as a time.Duration (0 means disabled)
func (c *LifecycleConfig) PhaseTimeout() time.Duration {
	return time.Duration(c.PhaseTimeoutMinutes) * time.Minute
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("resources.executor_limit", defaults.Resources.ExecutorLimit)
	viper.SetDefault("resources.max_retries", defaults.Resources.MaxRetries)
	viper.SetDefault("resources.lock_ttl_minutes", defaults.Resources.LockTTLMinutes)
	viper.SetDefault("resources.admit_timeout_seconds", defaults.Resources.AdmitTimeoutSeconds)
	viper.SetDefault("resources.stuck_threshold_minutes", defaults.Resources.StuckThresholdMinutes)

	viper.SetDefault("lifecycle.phase_timeout_minutes", defaults.Lifecycle.PhaseTimeoutMinutes)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
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

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "warden")
	}
	// Fall back to ~/.config/warden
	home, err := os.UserHomeDir()
	if err != nil {
		return ".warden"
	}
	return filepath.Join(home, ".config", "warden")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
