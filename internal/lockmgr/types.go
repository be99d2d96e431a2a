package lockmgr

import (
	"time"

	"github.com/wardenhq/warden/internal/event"
	"github.com/wardenhq/warden/internal/logging"
)

// LockType defines the access mode of a file lock.
type LockType string

const (
	// LockRead permits concurrent readers but excludes writers.
	LockRead LockType = "read"

	// LockWrite is exclusive: it coexists with no other lock on the path.
	LockWrite LockType = "write"
)

// FileLock represents a held lock on a file path.
//
// ExpiresAt documents how long the lock was expected to be held and feeds
// stuck-executor diagnosis. It never triggers automatic release.
type FileLock struct {
	LockID     string    `json:"lock_id"`
	FilePath   string    `json:"file_path"`
	ExecutorID string    `json:"holder_executor_id"`
	Type       LockType  `json:"lock_type"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// WaitGraphEntry describes one executor's position in a waits-for graph:
// the resources it currently holds and the resources it is waiting on.
type WaitGraphEntry struct {
	ExecutorID string   `json:"executor_id"`
	Holds      []string `json:"holds"`
	Wants      []string `json:"wants"`
}

// DefaultSemaphoreLimit bounds concurrently active executors unless
// overridden via WithSemaphoreLimit.
const DefaultSemaphoreLimit = 4

// DefaultLockTTL is the informational expiry window stamped on new locks.
const DefaultLockTTL = 10 * time.Minute

// Option configures a Manager.
type Option func(*Manager)

// WithEventBus publishes lock.acquired/lock.released events to the bus.
func WithEventBus(bus *event.Bus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithLogger sets the logger for the manager.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSemaphoreLimit overrides the global executor limit.
// Values below 1 fall back to the default.
func WithSemaphoreLimit(limit int) Option {
	return func(m *Manager) {
		if limit >= 1 {
			m.semLimit = limit
		}
	}
}

// WithLockTTL overrides the informational expiry window for new locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}
