package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Resources.ExecutorLimit != 4 {
		t.Errorf("ExecutorLimit = %d, want 4", cfg.Resources.ExecutorLimit)
	}
	if cfg.Resources.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Resources.MaxRetries)
	}
	if cfg.Lifecycle.PhaseTimeoutMinutes != 30 {
		t.Errorf("PhaseTimeoutMinutes = %d, want 30", cfg.Lifecycle.PhaseTimeoutMinutes)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %s, want info", cfg.Logging.Level)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("defaults should validate cleanly, got %v", errs)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	if got := cfg.Resources.LockTTL(); got != 10*time.Minute {
		t.Errorf("LockTTL() = %v, want 10m", got)
	}
	if got := cfg.Resources.AdmitTimeout(); got != 2*time.Minute {
		t.Errorf("AdmitTimeout() = %v, want 2m", got)
	}
	if got := cfg.Resources.StuckThreshold(); got != 10*time.Minute {
		t.Errorf("StuckThreshold() = %v, want 10m", got)
	}
	if got := cfg.Lifecycle.PhaseTimeout(); got != 30*time.Minute {
		t.Errorf("PhaseTimeout() = %v, want 30m", got)
	}
}

func TestLoadUsesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Resources.ExecutorLimit != 4 {
		t.Errorf("ExecutorLimit = %d, want 4", cfg.Resources.ExecutorLimit)
	}
}

func TestLoadOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("resources.executor_limit", 8)
	viper.Set("logging.level", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Resources.ExecutorLimit != 8 {
		t.Errorf("ExecutorLimit = %d, want 8", cfg.Resources.ExecutorLimit)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %s, want debug", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("resources.executor_limit", 0)
	viper.Set("logging.level", "loud")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject invalid values")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, "", false},
		{"zero executor limit", func(c *Config) { c.Resources.ExecutorLimit = 0 }, "resources.executor_limit", true},
		{"negative retries", func(c *Config) { c.Resources.MaxRetries = -1 }, "resources.max_retries", true},
		{"zero lock ttl", func(c *Config) { c.Resources.LockTTLMinutes = 0 }, "resources.lock_ttl_minutes", true},
		{"negative phase timeout", func(c *Config) { c.Lifecycle.PhaseTimeoutMinutes = -5 }, "lifecycle.phase_timeout_minutes", true},
		{"disabled phase timeout ok", func(c *Config) { c.Lifecycle.PhaseTimeoutMinutes = 0 }, "", false},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if !tt.wantErr {
				if len(errs) != 0 {
					t.Errorf("Validate() = %v, want none", errs)
				}
				return
			}
			if len(errs) != 1 || errs[0].Field != tt.field {
				t.Errorf("Validate() = %v, want one error on %s", errs, tt.field)
			}
		})
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	msg := errs.Error()
	if msg == "" {
		t.Fatal("Error() should not be empty")
	}
	if ValidationErrors(nil).Error() != "" {
		t.Error("empty ValidationErrors should format as empty string")
	}
}
