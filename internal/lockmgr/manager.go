package lockmgr

import (
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/errors"
	"github.com/wardenhq/warden/internal/event"
	"github.com/wardenhq/warden/internal/logging"
)

// lockRecord is the internal table entry for a held lock. seq preserves
// global acquisition order so executor-wide release can run LIFO.
type lockRecord struct {
	lock FileLock
	seq  uint64
}

// Manager owns the lock table and the global executor semaphore.
// All state is guarded by a single mutex; events are published and deadlock
// graphs evaluated outside it.
type Manager struct {
	mu      sync.Mutex
	locks   map[string]*lockRecord         // lockID -> record
	byPath  map[string][]string            // filePath -> lockIDs in acquisition order
	waits   map[string]map[string]struct{} // executorID -> paths it is known to be waiting on
	nextSeq uint64

	semLimit   int
	semCount   int
	semHolders map[string]int // executorID -> held semaphore slots

	lockTTL time.Duration
	bus     *event.Bus
	logger  *logging.Logger
}

// NewManager creates a lock manager with the default semaphore limit.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:      make(map[string]*lockRecord),
		byPath:     make(map[string][]string),
		waits:      make(map[string]map[string]struct{}),
		semLimit:   DefaultSemaphoreLimit,
		semHolders: make(map[string]int),
		lockTTL:    DefaultLockTTL,
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AcquireLock grants a lock on path to executorID, or fails with E401 if an
// incompatible lock exists: WRITE excludes any other lock on the path, READ
// coexists with other READs but excludes WRITE.
func (m *Manager) AcquireLock(path, executorID string, lt LockType) (FileLock, error) {
	if path == "" || executorID == "" {
		return FileLock{}, errors.NewLockError(errors.CodeLockConflict, "path and executor id are required").
			WithPath(path).WithExecutorID(executorID)
	}
	if lt != LockRead && lt != LockWrite {
		return FileLock{}, errors.NewLockError(errors.CodeLockConflict, "unknown lock type").
			WithPath(path).WithExecutorID(executorID)
	}

	m.mu.Lock()
	lock, err := m.acquireLocked(path, executorID, lt)
	m.mu.Unlock()

	if err != nil {
		return FileLock{}, err
	}
	m.publishAcquired(lock)
	return lock, nil
}

// acquireLocked performs one acquisition while the table mutex is held.
func (m *Manager) acquireLocked(path, executorID string, lt LockType) (FileLock, error) {
	for _, id := range m.byPath[path] {
		existing := m.locks[id].lock
		if existing.Type == LockWrite || lt == LockWrite {
			return FileLock{}, errors.NewLockError(errors.CodeLockConflict, "incompatible lock already held").
				WithPath(path).WithExecutorID(executorID).WithLockID(existing.LockID)
		}
	}

	now := time.Now()
	m.nextSeq++
	lock := FileLock{
		LockID:     uuid.NewString(),
		FilePath:   path,
		ExecutorID: executorID,
		Type:       lt,
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.lockTTL),
	}
	m.locks[lock.LockID] = &lockRecord{lock: lock, seq: m.nextSeq}
	m.byPath[path] = append(m.byPath[path], lock.LockID)

	// The executor is no longer waiting on this path, if it ever was.
	if wants, ok := m.waits[executorID]; ok {
		delete(wants, path)
		if len(wants) == 0 {
			delete(m.waits, executorID)
		}
	}

	return lock, nil
}

// ReleaseLock releases the lock with the given ID.
// Fails with E402 if the ID is unknown or already released.
func (m *Manager) ReleaseLock(lockID string) error {
	m.mu.Lock()
	lock, err := m.releaseLocked(lockID)
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.publishReleased(lock)
	return nil
}

// releaseLocked performs one release while the table mutex is held.
func (m *Manager) releaseLocked(lockID string) (FileLock, error) {
	rec, ok := m.locks[lockID]
	if !ok {
		return FileLock{}, errors.NewLockError(errors.CodeUnknownLock, "lock is unknown or already released").
			WithLockID(lockID)
	}

	delete(m.locks, lockID)
	ids := m.byPath[rec.lock.FilePath]
	for i, id := range ids {
		if id == lockID {
			m.byPath[rec.lock.FilePath] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.byPath[rec.lock.FilePath]) == 0 {
		delete(m.byPath, rec.lock.FilePath)
	}
	return rec.lock, nil
}

// AcquireMultipleLocks acquires locks on every path in ascending
// lexicographic order, regardless of input order, so overlapping multi-file
// requests from two executors can never form a cycle through this manager.
// On any conflict the locks already granted in this batch are rolled back in
// reverse order and the conflict error is returned. The returned slice is in
// acquisition (sorted) order; callers must release LIFO, for which
// ReleaseLocksLIFO exists.
func (m *Manager) AcquireMultipleLocks(paths []string, executorID string, lt LockType) ([]FileLock, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	m.mu.Lock()
	acquired := make([]FileLock, 0, len(sorted))
	for _, path := range sorted {
		lock, err := m.acquireLocked(path, executorID, lt)
		if err != nil {
			// Roll back this batch in reverse order.
			for i := len(acquired) - 1; i >= 0; i-- {
				_, _ = m.releaseLocked(acquired[i].LockID)
			}
			m.mu.Unlock()
			return nil, err
		}
		acquired = append(acquired, lock)
	}
	m.mu.Unlock()

	for _, lock := range acquired {
		m.publishAcquired(lock)
	}
	return acquired, nil
}

// ReleaseLocksLIFO releases a batch of locks in reverse acquisition order.
// The first release error is returned; remaining locks are still attempted.
func (m *Manager) ReleaseLocksLIFO(locks []FileLock) error {
	var firstErr error
	for i := len(locks) - 1; i >= 0; i-- {
		if err := m.ReleaseLock(locks[i].LockID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReleaseExecutorLocks releases every lock held by executorID in reverse
// acquisition order and returns the number released. Used by supervising
// callers cleaning up after a failed or stuck executor.
func (m *Manager) ReleaseExecutorLocks(executorID string) int {
	m.mu.Lock()
	var recs []*lockRecord
	for _, rec := range m.locks {
		if rec.lock.ExecutorID == executorID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })

	released := make([]FileLock, 0, len(recs))
	for _, rec := range recs {
		lock, err := m.releaseLocked(rec.lock.LockID)
		if err != nil {
			continue
		}
		released = append(released, lock)
	}
	m.mu.Unlock()

	for _, lock := range released {
		m.publishReleased(lock)
	}
	return len(released)
}

// -----------------------------------------------------------------------------
// Global Semaphore
// -----------------------------------------------------------------------------

// AcquireGlobalSemaphore claims one executor slot. Fails closed with E404
// when the limit is reached; callers needing queuing build it above this
// layer with their own retry policy.
func (m *Manager) AcquireGlobalSemaphore(executorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.semCount >= m.semLimit {
		return errors.NewLockError(errors.CodeSemaphoreExhausted, "executor semaphore at capacity").
			WithExecutorID(executorID)
	}
	m.semCount++
	m.semHolders[executorID]++
	m.logger.Debug("semaphore acquired", "executor_id", executorID, "active", m.semCount, "limit", m.semLimit)
	return nil
}

// ReleaseGlobalSemaphore frees one slot held by executorID.
// Releasing a slot the executor does not hold is a no-op.
func (m *Manager) ReleaseGlobalSemaphore(executorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.semHolders[executorID] == 0 {
		return
	}
	m.semHolders[executorID]--
	if m.semHolders[executorID] == 0 {
		delete(m.semHolders, executorID)
	}
	m.semCount--
	m.logger.Debug("semaphore released", "executor_id", executorID, "active", m.semCount)
}

// ActiveExecutors returns the number of currently held semaphore slots.
func (m *Manager) ActiveExecutors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.semCount
}

// SemaphoreLimit returns the configured executor limit.
func (m *Manager) SemaphoreLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.semLimit
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// ActiveLocks returns copies of all held locks, sorted by path then
// acquisition order for deterministic output.
func (m *Manager) ActiveLocks() []FileLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectLocked(func(FileLock) bool { return true })
}

// LocksByExecutor returns all locks held by the given executor.
func (m *Manager) LocksByExecutor(executorID string) []FileLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectLocked(func(l FileLock) bool { return l.ExecutorID == executorID })
}

// LocksByFile returns all locks held on the given path.
func (m *Manager) LocksByFile(path string) []FileLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectLocked(func(l FileLock) bool { return l.FilePath == path })
}

// IsFileLocked reports whether any lock is held on the given path.
func (m *Manager) IsFileLocked(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPath[path]) > 0
}

// LocksMatching returns all locks whose path matches the given glob pattern,
// e.g. "internal/**/*.go".
func (m *Manager) LocksMatching(pattern string) ([]FileLock, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.Wrapf(err, "invalid lock path pattern %q", pattern)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectLocked(func(l FileLock) bool { return g.Match(l.FilePath) }), nil
}

// LockAge returns how long the lock has been held.
// Fails with E402 for unknown lock IDs.
func (m *Manager) LockAge(lockID string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.locks[lockID]
	if !ok {
		return 0, errors.NewLockError(errors.CodeUnknownLock, "lock is unknown or already released").
			WithLockID(lockID)
	}
	return time.Since(rec.lock.AcquiredAt), nil
}

// HeldLongerThan returns all locks held longer than d, the input for a
// supervising caller deciding whether an executor is stuck.
func (m *Manager) HeldLongerThan(d time.Duration) []FileLock {
	cutoff := time.Now().Add(-d)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectLocked(func(l FileLock) bool { return l.AcquiredAt.Before(cutoff) })
}

// collectLocked gathers matching locks sorted by path then acquisition
// order. Callers must hold the mutex.
func (m *Manager) collectLocked(match func(FileLock) bool) []FileLock {
	var recs []*lockRecord
	for _, rec := range m.locks {
		if match(rec.lock) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].lock.FilePath != recs[j].lock.FilePath {
			return recs[i].lock.FilePath < recs[j].lock.FilePath
		}
		return recs[i].seq < recs[j].seq
	})

	out := make([]FileLock, len(recs))
	for i, rec := range recs {
		out[i] = rec.lock
	}
	return out
}

// -----------------------------------------------------------------------------
// Expiry (informational only)
// -----------------------------------------------------------------------------

// UpdateLockExpiry updates the informational expiry timestamp on a lock.
// Fails with E402 for unknown lock IDs. The new timestamp never causes a
// release, even when it is already in the past.
func (m *Manager) UpdateLockExpiry(lockID string, newExpiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.locks[lockID]
	if !ok {
		return errors.NewLockError(errors.CodeUnknownLock, "lock is unknown or already released").
			WithLockID(lockID)
	}
	rec.lock.ExpiresAt = newExpiry
	return nil
}

// AutoReleaseExpiredLocks always fails with E405 and never releases
// anything. Locks are released only by explicit caller action; this
// operation exists so the invariant is testable and shows up in audits.
func (m *Manager) AutoReleaseExpiredLocks() error {
	return errors.NewLockError(errors.CodeForbiddenAutoRelease,
		"automatic release of expired locks is forbidden; release explicitly by lock id")
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

func (m *Manager) publishAcquired(lock FileLock) {
	m.logger.Debug("lock acquired",
		"lock_id", lock.LockID,
		"executor_id", lock.ExecutorID,
		"path", lock.FilePath,
		"type", string(lock.Type),
	)
	if m.bus != nil {
		m.bus.Publish(event.NewLockAcquiredEvent(lock.LockID, lock.ExecutorID, lock.FilePath, string(lock.Type)))
	}
}

func (m *Manager) publishReleased(lock FileLock) {
	m.logger.Debug("lock released",
		"lock_id", lock.LockID,
		"executor_id", lock.ExecutorID,
		"path", lock.FilePath,
	)
	if m.bus != nil {
		m.bus.Publish(event.NewLockReleasedEvent(lock.LockID, lock.ExecutorID, lock.FilePath))
	}
}
