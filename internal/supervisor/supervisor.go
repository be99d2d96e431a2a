// Package supervisor is the caller-side layer above the lock manager and
// lifecycle controller. The locking primitives are fail-fast by design;
// admission queuing, lock choreography, and stuck-executor handling live
// here.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wardenhq/warden/internal/errors"
	"github.com/wardenhq/warden/internal/lifecycle"
	"github.com/wardenhq/warden/internal/lockmgr"
	"github.com/wardenhq/warden/internal/logging"
)

const (
	// DefaultAdmitTimeout bounds how long an executor waits for a
	// semaphore slot before giving up.
	DefaultAdmitTimeout = 2 * time.Minute

	// DefaultStuckThreshold is how long a lock may be held before the
	// supervisor reports its holder as stuck.
	DefaultStuckThreshold = 10 * time.Minute
)

// ExecutorTask describes one unit of supervised file-modifying work.
type ExecutorTask struct {
	TaskID     string
	ExecutorID string
	Files      []string
	LockType   lockmgr.LockType
	Run        func(ctx context.Context) (lifecycle.Evidence, error)
}

// Supervisor admits executors through the global semaphore, arbitrates
// their file locks, and reports their outcomes into the lifecycle
// controller's task map.
type Supervisor struct {
	locks      *lockmgr.Manager
	controller *lifecycle.Controller

	admitTimeout   time.Duration
	stuckThreshold time.Duration
	logger         *logging.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger for the supervisor.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithAdmitTimeout bounds the semaphore admission backoff loop.
func WithAdmitTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.admitTimeout = d
		}
	}
}

// WithStuckThreshold sets the lock age past which a holder counts as stuck.
func WithStuckThreshold(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.stuckThreshold = d
		}
	}
}

// New creates a Supervisor over the given lock manager and controller.
func New(locks *lockmgr.Manager, controller *lifecycle.Controller, opts ...Option) *Supervisor {
	s := &Supervisor{
		locks:          locks,
		controller:     controller,
		admitTimeout:   DefaultAdmitTimeout,
		stuckThreshold: DefaultStuckThreshold,
		logger:         logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Supervisor) backoffPolicy(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxElapsedTime = s.admitTimeout
	return backoff.WithContext(policy, ctx)
}

// admit retries semaphore acquisition with exponential backoff until a slot
// frees up, the context is cancelled, or the admission timeout elapses.
// Only retryable failures (an exhausted semaphore) are retried; anything
// else aborts immediately.
func (s *Supervisor) admit(ctx context.Context, executorID string) error {
	return backoff.Retry(func() error {
		if err := s.locks.AcquireGlobalSemaphore(executorID); err != nil {
			if errors.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}, s.backoffPolicy(ctx))
}

// acquireLocks retries the fail-fast multi-lock acquisition while another
// executor holds part of the file set. Ordering inside each attempt is the
// manager's lexicographic guarantee; the retry loop only adds patience.
func (s *Supervisor) acquireLocks(ctx context.Context, task ExecutorTask) ([]lockmgr.FileLock, error) {
	var locks []lockmgr.FileLock
	err := backoff.Retry(func() error {
		acquired, err := s.locks.AcquireMultipleLocks(task.Files, task.ExecutorID, task.LockType)
		if err != nil {
			if errors.HasCode(err, errors.CodeLockConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		locks = acquired
		return nil
	}, s.backoffPolicy(ctx))
	return locks, err
}

// Run executes one task under full supervision: semaphore admission, lock
// acquisition over the task's file set, the work itself, then LIFO lock
// release and task completion reporting. The task is recorded as failed on
// any error along the way.
func (s *Supervisor) Run(ctx context.Context, task ExecutorTask) error {
	log := s.logger.WithExecutor(task.ExecutorID).With("task_id", task.TaskID)

	if err := s.admit(ctx, task.ExecutorID); err != nil {
		log.Error("executor admission failed", "error", err.Error())
		return err
	}
	defer s.locks.ReleaseGlobalSemaphore(task.ExecutorID)

	if err := s.controller.StartParallelTask(task.TaskID); err != nil {
		return err
	}

	locks, err := s.acquireLocks(ctx, task)
	if err != nil {
		log.Error("lock acquisition failed", "error", err.Error())
		return errors.Join(err,
			s.controller.CompleteParallelTask(task.TaskID, lifecycle.TaskFailed, nil))
	}

	evidence, runErr := task.Run(ctx)
	status := lifecycle.TaskCompleted
	if runErr != nil {
		status = lifecycle.TaskFailed
		log.Error("executor failed", "error", runErr.Error())
	}

	releaseErr := s.locks.ReleaseLocksLIFO(locks)
	completeErr := s.controller.CompleteParallelTask(task.TaskID, status, evidence)
	return errors.Join(runErr, releaseErr, completeErr)
}

// RunAll runs every task concurrently and waits for all of them. Per-task
// failures are joined into the returned error; one failing task does not
// stop the others.
func (s *Supervisor) RunAll(ctx context.Context, tasks []ExecutorTask) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, task := range tasks {
		wg.Add(1)
		go func(task ExecutorTask) {
			defer wg.Done()
			if err := s.Run(ctx, task); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(task)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// StuckLocks reports every lock held longer than the stuck threshold.
// Deciding what to do about the holder stays with the caller.
func (s *Supervisor) StuckLocks() []lockmgr.FileLock {
	return s.locks.HeldLongerThan(s.stuckThreshold)
}

// ForceRelease tears down a stuck executor: all of its locks are released
// and its semaphore slot is returned. Returns the number of locks released.
func (s *Supervisor) ForceRelease(executorID string) int {
	released := s.locks.ReleaseExecutorLocks(executorID)
	s.locks.ReleaseGlobalSemaphore(executorID)
	if released > 0 {
		s.logger.WithExecutor(executorID).
			Warn("force-released stuck executor", "locks", released)
	}
	return released
}

// WatchTimeouts polls the controller's current phase against its timeout
// until the context is cancelled. Timeout handling itself happens inside
// the controller; this loop only drives the polling the controller does
// not do on its own.
func (s *Supervisor) WatchTimeouts(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			phase := s.controller.CurrentPhase()
			if s.controller.CheckAndHandleTimeout(phase) {
				s.logger.WithPhase(string(phase)).Warn("phase timed out")
			}
		}
	}
}
