// Package errors provides centralized error definitions for the warden
// codebase. It defines the closed taxonomy of coded errors every other
// component raises against, typed errors carrying structured context, and
// classification helpers.
//
// The package provides three coded error types matching the taxonomy
// families:
//   - LifecycleError (E2xx): invalid transitions, frozen sessions, limits
//   - EvidenceError (E3xx): missing, unmet, stale, or tampered evidence
//   - LockError (E4xx): acquisition/release failures, deadlock, semaphore
//
// Creating errors:
//
//	err := errors.NewLockError(errors.CodeLockConflict, "write lock held").
//	    WithPath("pkg/foo.go").WithExecutorID("exec-2")
//
// Checking errors:
//
//	if errors.CodeOf(err) == errors.CodeSemaphoreExhausted { ... }
//
//	var lockErr *errors.LockError
//	if errors.As(err, &lockErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// General sentinel errors.
var (
	// ErrSessionNotFound indicates that a serialized session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// Coded is implemented by every error in the taxonomy.
type Coded interface {
	error

	// Code returns the stable identifier for this error.
	Code() Code

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry by the caller.
	IsRetryable() bool
}

// CodeOf returns the taxonomy code carried by err, or "" if err carries none.
func CodeOf(err error) Code {
	var coded Coded
	if As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// HasCode reports whether err carries the given taxonomy code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsRetryable returns true if the error represents a transient condition the
// caller may retry. Semaphore exhaustion is the one retryable condition in
// the taxonomy: capacity frees up when another executor releases.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var coded Coded
	if As(err, &coded) {
		return coded.IsRetryable()
	}
	return false
}

// baseError provides the shared implementation for coded errors.
type baseError struct {
	code      Code
	message   string
	cause     error
	retryable bool
}

func (e *baseError) Code() Code        { return e.code }
func (e *baseError) IsRetryable() bool { return e.retryable }

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// format renders "<prefix> <code> [k=v, ...]: message: cause".
func (e *baseError) format(prefix string, parts []string) string {
	head := fmt.Sprintf("%s %s", prefix, e.code)
	if len(parts) > 0 {
		head = fmt.Sprintf("%s [%s]", head, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", head, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", head, e.message)
}

// LifecycleError represents errors raised by the lifecycle controller.
//
// Example:
//
//	err := errors.NewLifecycleError(errors.CodeInvalidTransition, "cannot skip phases").
//	    WithPhase("planning")
type LifecycleError struct {
	baseError
	SessionID string
	Phase     string
	TaskID    string
}

// NewLifecycleError creates a LifecycleError with the given code and message.
func NewLifecycleError(code Code, message string) *LifecycleError {
	return &LifecycleError{baseError: baseError{code: code, message: message}}
}

// WithSessionID adds a session ID to the error context.
func (e *LifecycleError) WithSessionID(id string) *LifecycleError {
	e.SessionID = id
	return e
}

// WithPhase adds a phase name to the error context.
func (e *LifecycleError) WithPhase(phase string) *LifecycleError {
	e.Phase = phase
	return e
}

// WithTaskID adds a task ID to the error context.
func (e *LifecycleError) WithTaskID(id string) *LifecycleError {
	e.TaskID = id
	return e
}

// WithCause adds an underlying cause.
func (e *LifecycleError) WithCause(cause error) *LifecycleError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *LifecycleError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	return e.format("lifecycle error", parts)
}

// Is checks if this error matches the target.
func (e *LifecycleError) Is(target error) bool {
	if other, ok := target.(*LifecycleError); ok {
		return other.code == "" || other.code == e.code
	}
	return e.baseError.Is(target)
}

// EvidenceError represents errors raised when supplied evidence is missing,
// fails a gate, or cannot be trusted. Failures lists every unmet condition
// so callers see the full gate outcome in one error.
type EvidenceError struct {
	baseError
	Phase    string
	Failures []string
}

// NewEvidenceError creates an EvidenceError with the given code and message.
func NewEvidenceError(code Code, message string) *EvidenceError {
	return &EvidenceError{baseError: baseError{code: code, message: message}}
}

// WithPhase adds a phase name to the error context.
func (e *EvidenceError) WithPhase(phase string) *EvidenceError {
	e.Phase = phase
	return e
}

// WithFailures records every unmet gate condition.
func (e *EvidenceError) WithFailures(failures ...string) *EvidenceError {
	e.Failures = append(e.Failures, failures...)
	return e
}

// WithCause adds an underlying cause.
func (e *EvidenceError) WithCause(cause error) *EvidenceError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *EvidenceError) Error() string {
	var parts []string
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	msg := e.format("evidence error", parts)
	if len(e.Failures) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Failures, "; "))
	}
	return msg
}

// Is checks if this error matches the target.
func (e *EvidenceError) Is(target error) bool {
	if other, ok := target.(*EvidenceError); ok {
		return other.code == "" || other.code == e.code
	}
	return e.baseError.Is(target)
}

// LockError represents errors raised by the lock manager.
//
// Example:
//
//	err := errors.NewLockError(errors.CodeUnknownLock, "lock already released").
//	    WithLockID(id)
type LockError struct {
	baseError
	Path       string
	ExecutorID string
	LockID     string
}

// NewLockError creates a LockError with the given code and message.
// Semaphore exhaustion is marked retryable; all other lock errors are not.
func NewLockError(code Code, message string) *LockError {
	return &LockError{baseError: baseError{
		code:      code,
		message:   message,
		retryable: code == CodeSemaphoreExhausted,
	}}
}

// WithPath adds a file path to the error context.
func (e *LockError) WithPath(path string) *LockError {
	e.Path = path
	return e
}

// WithExecutorID adds an executor ID to the error context.
func (e *LockError) WithExecutorID(id string) *LockError {
	e.ExecutorID = id
	return e
}

// WithLockID adds a lock ID to the error context.
func (e *LockError) WithLockID(id string) *LockError {
	e.LockID = id
	return e
}

// WithCause adds an underlying cause.
func (e *LockError) WithCause(cause error) *LockError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.ExecutorID != "" {
		parts = append(parts, fmt.Sprintf("executor=%s", e.ExecutorID))
	}
	if e.LockID != "" {
		parts = append(parts, fmt.Sprintf("lock=%s", e.LockID))
	}
	return e.format("lock error", parts)
}

// Is checks if this error matches the target.
func (e *LockError) Is(target error) bool {
	if other, ok := target.(*LockError); ok {
		return other.code == "" || other.code == e.code
	}
	return e.baseError.Is(target)
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
