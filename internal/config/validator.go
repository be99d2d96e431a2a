package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "resources.executor_limit")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateResources()...)
	errors = append(errors, c.validateLifecycle()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateResources() []ValidationError {
	var errors []ValidationError

	if c.Resources.ExecutorLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "resources.executor_limit",
			Value:   c.Resources.ExecutorLimit,
			Message: "must be at least 1",
		})
	}
	if c.Resources.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "resources.max_retries",
			Value:   c.Resources.MaxRetries,
			Message: "must not be negative",
		})
	}
	if c.Resources.LockTTLMinutes < 1 {
		errors = append(errors, ValidationError{
			Field:   "resources.lock_ttl_minutes",
			Value:   c.Resources.LockTTLMinutes,
			Message: "must be at least 1",
		})
	}
	if c.Resources.AdmitTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "resources.admit_timeout_seconds",
			Value:   c.Resources.AdmitTimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Resources.StuckThresholdMinutes < 1 {
		errors = append(errors, ValidationError{
			Field:   "resources.stuck_threshold_minutes",
			Value:   c.Resources.StuckThresholdMinutes,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLifecycle() []ValidationError {
	var errors []ValidationError

	if c.Lifecycle.PhaseTimeoutMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "lifecycle.phase_timeout_minutes",
			Value:   c.Lifecycle.PhaseTimeoutMinutes,
			Message: "must not be negative (0 disables the timeout)",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
