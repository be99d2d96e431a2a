package event

import "time"

// Event type identifiers. External consumers branch on these strings, so
// they are part of the stable surface.
const (
	TypePhaseStarted       = "phase.started"
	TypePhaseCompleted     = "phase.completed"
	TypePhaseRetry         = "phase.retry"
	TypeLifecycleCompleted = "lifecycle.completed"
	TypeLifecycleError     = "lifecycle.error"
	TypeLockAcquired       = "lock.acquired"
	TypeLockReleased       = "lock.released"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "phase.started", "lock.released").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Lifecycle Events
// -----------------------------------------------------------------------------

// PhaseStartedEvent is emitted when a session phase enters IN_PROGRESS.
type PhaseStartedEvent struct {
	baseEvent
	SessionID string // Session the phase belongs to
	Phase     string // Phase name
}

// NewPhaseStartedEvent creates a PhaseStartedEvent.
func NewPhaseStartedEvent(sessionID, phase string) PhaseStartedEvent {
	return PhaseStartedEvent{
		baseEvent: newBaseEvent(TypePhaseStarted),
		SessionID: sessionID,
		Phase:     phase,
	}
}

// PhaseCompletedEvent is emitted when a phase's gate passes and the phase is
// marked COMPLETED.
type PhaseCompletedEvent struct {
	baseEvent
	SessionID       string  // Session the phase belongs to
	Phase           string  // Phase name
	DurationSeconds float64 // Wall-clock time the phase was in progress
}

// NewPhaseCompletedEvent creates a PhaseCompletedEvent.
func NewPhaseCompletedEvent(sessionID, phase string, durationSeconds float64) PhaseCompletedEvent {
	return PhaseCompletedEvent{
		baseEvent:       newBaseEvent(TypePhaseCompleted),
		SessionID:       sessionID,
		Phase:           phase,
		DurationSeconds: durationSeconds,
	}
}

// PhaseRetryEvent is emitted when a recoverable error triggers another
// attempt at a phase.
type PhaseRetryEvent struct {
	baseEvent
	SessionID  string // Session the phase belongs to
	Phase      string // Phase being retried
	Attempt    int    // Retry count after this failure
	MaxRetries int    // Configured retry budget
	Reason     string // Why the previous attempt failed
}

// NewPhaseRetryEvent creates a PhaseRetryEvent.
func NewPhaseRetryEvent(sessionID, phase string, attempt, maxRetries int, reason string) PhaseRetryEvent {
	return PhaseRetryEvent{
		baseEvent:  newBaseEvent(TypePhaseRetry),
		SessionID:  sessionID,
		Phase:      phase,
		Attempt:    attempt,
		MaxRetries: maxRetries,
		Reason:     reason,
	}
}

// LifecycleCompletedEvent is emitted exactly once, when the terminal REPORT
// phase completes.
type LifecycleCompletedEvent struct {
	baseEvent
	SessionID     string // Session that completed
	OverallStatus string // Computed overall status at completion
}

// NewLifecycleCompletedEvent creates a LifecycleCompletedEvent.
func NewLifecycleCompletedEvent(sessionID, overallStatus string) LifecycleCompletedEvent {
	return LifecycleCompletedEvent{
		baseEvent:     newBaseEvent(TypeLifecycleCompleted),
		SessionID:     sessionID,
		OverallStatus: overallStatus,
	}
}

// LifecycleErrorEvent is emitted when a critical error freezes a session.
// Publishers must check Bus.HasSubscribers first: an unwatched error event
// is dropped, never queued.
type LifecycleErrorEvent struct {
	baseEvent
	SessionID string // Session that hit the error
	Phase     string // Phase that was in progress
	Err       string // Error message
}

// NewLifecycleErrorEvent creates a LifecycleErrorEvent.
func NewLifecycleErrorEvent(sessionID, phase, errMsg string) LifecycleErrorEvent {
	return LifecycleErrorEvent{
		baseEvent: newBaseEvent(TypeLifecycleError),
		SessionID: sessionID,
		Phase:     phase,
		Err:       errMsg,
	}
}

// -----------------------------------------------------------------------------
// Locking Events
// -----------------------------------------------------------------------------

// LockAcquiredEvent is emitted when an executor acquires a file lock.
type LockAcquiredEvent struct {
	baseEvent
	LockID     string // Unique lock identifier
	ExecutorID string // Executor holding the lock
	FilePath   string // Locked path
	LockType   string // "read" or "write"
}

// NewLockAcquiredEvent creates a LockAcquiredEvent.
func NewLockAcquiredEvent(lockID, executorID, filePath, lockType string) LockAcquiredEvent {
	return LockAcquiredEvent{
		baseEvent:  newBaseEvent(TypeLockAcquired),
		LockID:     lockID,
		ExecutorID: executorID,
		FilePath:   filePath,
		LockType:   lockType,
	}
}

// LockReleasedEvent is emitted when a lock is explicitly released.
type LockReleasedEvent struct {
	baseEvent
	LockID     string // Unique lock identifier
	ExecutorID string // Executor that held the lock
	FilePath   string // Path that was locked
}

// NewLockReleasedEvent creates a LockReleasedEvent.
func NewLockReleasedEvent(lockID, executorID, filePath string) LockReleasedEvent {
	return LockReleasedEvent{
		baseEvent:  newBaseEvent(TypeLockReleased),
		LockID:     lockID,
		ExecutorID: executorID,
		FilePath:   filePath,
	}
}
