package lifecycle

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/errors"
	"github.com/wardenhq/warden/internal/event"
	"github.com/wardenhq/warden/internal/logging"
)

// Controller drives one session through the seven lifecycle phases. It owns
// all per-session state; callers supervising several sessions use one
// controller per session. Methods are mutex-guarded so a controller can be
// polled from a watchdog goroutine while the main loop advances it, but the
// controller is not a work queue and does not block.
type Controller struct {
	mu             sync.Mutex
	sessionID      string
	current        Phase
	phases         map[Phase]*PhaseInfo
	tasks          map[string]*TaskInfo
	activeParallel map[string]struct{}
	flags          StatusFlags

	executorLimit int
	maxRetries    int
	phaseTimeout  time.Duration

	bus    *event.Bus
	logger *logging.Logger
}

// NewController creates a controller. Call Initialize before driving it.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		executorLimit: DefaultExecutorLimit,
		maxRetries:    DefaultMaxRetries,
		phaseTimeout:  DefaultPhaseTimeout,
		logger:        logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resetLocked("")
	return c
}

// resetLocked rebuilds all session state from scratch. Caller holds mu or
// has exclusive access.
func (c *Controller) resetLocked(sessionID string) {
	c.sessionID = sessionID
	c.phases = make(map[Phase]*PhaseInfo, len(phaseOrder))
	for _, p := range phaseOrder {
		c.phases[p] = &PhaseInfo{Phase: p, Status: PhasePending}
	}
	c.tasks = make(map[string]*TaskInfo)
	c.activeParallel = make(map[string]struct{})
	c.flags = StatusFlags{}
	c.current = phaseOrder[0]
}

// Initialize starts a fresh session. All prior state, including frozen
// status flags, is discarded; the first phase is marked in progress.
func (c *Controller) Initialize(sessionID string) {
	c.mu.Lock()
	c.resetLocked(sessionID)
	now := time.Now()
	info := c.phases[c.current]
	info.Status = PhaseInProgress
	info.StartedAt = &now
	c.mu.Unlock()

	c.logger.WithSession(sessionID).Info("session initialized",
		"phase", string(c.current))
	c.publish(event.NewPhaseStartedEvent(sessionID, string(phaseOrder[0])))
}

// SessionID returns the current session identifier.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// CurrentPhase returns the phase the session is in.
func (c *Controller) CurrentPhase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// PhaseState returns a copy of one phase's info.
func (c *Controller) PhaseState(phase Phase) (PhaseInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.phases[phase]
	if !ok {
		return PhaseInfo{}, false
	}
	return copyPhaseInfo(info), true
}

// TaskState returns a copy of one task's info.
func (c *Controller) TaskState(taskID string) (TaskInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.tasks[taskID]
	if !ok {
		return TaskInfo{}, false
	}
	return copyTaskInfo(info), true
}

// Flags returns the current status flags.
func (c *Controller) Flags() StatusFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// OverallStatus resolves the status flags into the session verdict.
func (c *Controller) OverallStatus() OverallStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags.Overall()
}

// frozenLocked reports whether the session can no longer advance. Only
// Initialize clears a frozen session.
func (c *Controller) frozenLocked() bool {
	return c.flags.Error || c.flags.Invalid || c.flags.NoEvidence
}

// CompleteCurrentPhase validates evidence against the current phase's gate
// and, on success, marks the phase completed and advances to the next one.
// Completing the final phase sets the session's completed flag instead.
func (c *Controller) CompleteCurrentPhase(evidence Evidence) error {
	c.mu.Lock()

	phase := c.current
	if c.frozenLocked() {
		c.mu.Unlock()
		return errors.NewLifecycleError(errors.CodeSessionFrozen,
			"session is frozen and cannot advance").
			WithSessionID(c.sessionID).WithPhase(string(phase))
	}
	if c.flags.Completed {
		c.mu.Unlock()
		return errors.NewLifecycleError(errors.CodePhaseOrderViolation,
			"lifecycle is already completed").
			WithSessionID(c.sessionID).WithPhase(string(phase))
	}
	if evidence == nil {
		c.mu.Unlock()
		return errors.NewEvidenceError(errors.CodeMissingEvidence,
			"evidence is required to complete a phase").
			WithPhase(string(phase))
	}
	if failures := gateFailures(phase, evidence); len(failures) > 0 {
		c.mu.Unlock()
		return errors.NewEvidenceError(errors.CodeGateUnmet,
			"phase gate conditions unmet").
			WithPhase(string(phase)).WithFailures(failures...)
	}
	if phase == PhaseExecution {
		if incomplete := c.incompleteTasksLocked(); len(incomplete) > 0 {
			c.mu.Unlock()
			return errors.NewLifecycleError(errors.CodeSessionFrozen,
				fmt.Sprintf("tasks not completed: %v", incomplete)).
				WithSessionID(c.sessionID).WithPhase(string(phase))
		}
	}

	now := time.Now()
	info := c.phases[phase]
	info.Status = PhaseCompleted
	info.CompletedAt = &now
	if info.StartedAt != nil {
		info.DurationSeconds = now.Sub(*info.StartedAt).Seconds()
	}
	info.Evidence = evidence

	events := []event.Event{
		event.NewPhaseCompletedEvent(c.sessionID, string(phase), info.DurationSeconds),
	}
	if phase.IsTerminal() {
		c.flags.Completed = true
		events = append(events,
			event.NewLifecycleCompletedEvent(c.sessionID, string(c.flags.Overall())))
	} else {
		next, _ := phase.Next()
		c.current = next
		nextInfo := c.phases[next]
		nextInfo.Status = PhaseInProgress
		nextInfo.StartedAt = &now
		events = append(events,
			event.NewPhaseStartedEvent(c.sessionID, string(next)))
	}
	sessionID := c.sessionID
	duration := info.DurationSeconds
	c.mu.Unlock()

	c.logger.WithSession(sessionID).WithPhase(string(phase)).
		Info("phase completed", "duration_seconds", duration)
	for _, ev := range events {
		c.publish(ev)
	}
	return nil
}

// incompleteTasksLocked returns the IDs of registered tasks that have not
// finished successfully, sorted for stable error messages.
func (c *Controller) incompleteTasksLocked() []string {
	var ids []string
	for id, task := range c.tasks {
		if !task.Status.IsDone() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// TransitionTo advances explicitly to the given phase. The target must be
// exactly the immediate successor of the current phase, and the current
// phase must already be completed.
func (c *Controller) TransitionTo(target Phase) error {
	c.mu.Lock()

	if !target.IsValid() {
		c.mu.Unlock()
		return errors.NewLifecycleError(errors.CodeInvalidTransition,
			fmt.Sprintf("unknown phase %q", target)).
			WithSessionID(c.sessionID)
	}
	currentIdx := c.current.Index()
	targetIdx := target.Index()
	switch {
	case targetIdx <= currentIdx:
		c.mu.Unlock()
		return errors.NewLifecycleError(errors.CodeInvalidTransition,
			fmt.Sprintf("backward transition from %s to %s is not allowed",
				c.current, target)).
			WithSessionID(c.sessionID).WithPhase(string(c.current))
	case targetIdx > currentIdx+1:
		c.mu.Unlock()
		return errors.NewLifecycleError(errors.CodeInvalidTransition,
			fmt.Sprintf("cannot skip from %s to %s", c.current, target)).
			WithSessionID(c.sessionID).WithPhase(string(c.current))
	}
	if c.phases[c.current].Status != PhaseCompleted {
		c.mu.Unlock()
		return errors.NewLifecycleError(errors.CodePhaseOrderViolation,
			fmt.Sprintf("phase %s is not completed", c.current)).
			WithSessionID(c.sessionID).WithPhase(string(c.current))
	}

	now := time.Now()
	c.current = target
	info := c.phases[target]
	info.Status = PhaseInProgress
	info.StartedAt = &now
	sessionID := c.sessionID
	c.mu.Unlock()

	c.publish(event.NewPhaseStartedEvent(sessionID, string(target)))
	return nil
}

// HandleCriticalError freezes the session: the error flag is set and the
// current phase is marked failed. The error event is published only when
// someone is subscribed, so an unwatched session never crashes a handler.
func (c *Controller) HandleCriticalError(cause error) {
	c.mu.Lock()
	c.flags.Error = true
	now := time.Now()
	info := c.phases[c.current]
	info.Status = PhaseFailed
	info.CompletedAt = &now
	phase := c.current
	sessionID := c.sessionID
	c.mu.Unlock()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	c.logger.WithSession(sessionID).WithPhase(string(phase)).
		Error("critical error", "error", msg)
	if c.bus != nil && c.bus.HasSubscribers(event.TypeLifecycleError) {
		c.bus.Publish(event.NewLifecycleErrorEvent(sessionID, string(phase), msg))
	}
}

// HandleRecoverableError charges one retry against the given phase. While
// the retry budget lasts it returns nil and the caller retries; once the
// budget is exhausted the session is frozen and E201 is returned.
func (c *Controller) HandleRecoverableError(phase Phase, cause error) error {
	c.mu.Lock()
	info, ok := c.phases[phase]
	if !ok {
		c.mu.Unlock()
		return errors.NewLifecycleError(errors.CodeInvalidTransition,
			fmt.Sprintf("unknown phase %q", phase)).
			WithSessionID(c.sessionID)
	}
	info.RetryCount++
	attempt := info.RetryCount
	sessionID := c.sessionID
	if attempt > c.maxRetries {
		c.flags.Error = true
		c.mu.Unlock()
		return errors.NewLifecycleError(errors.CodeRetriesExhausted,
			fmt.Sprintf("phase %s failed after %d retries", phase, c.maxRetries)).
			WithSessionID(sessionID).WithPhase(string(phase)).
			WithCause(cause)
	}
	maxRetries := c.maxRetries
	c.mu.Unlock()

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	c.logger.WithSession(sessionID).WithPhase(string(phase)).
		Warn("phase retry", "attempt", attempt, "max_retries", maxRetries)
	c.publish(event.NewPhaseRetryEvent(sessionID, string(phase), attempt, maxRetries, reason))
	return nil
}

// MarkIncomplete records that the session cannot honestly be called
// complete. The flag is one-way.
func (c *Controller) MarkIncomplete(reason string) {
	c.mu.Lock()
	c.flags.Incomplete = true
	sessionID := c.sessionID
	c.mu.Unlock()
	c.logger.WithSession(sessionID).Warn("marked incomplete", "reason", reason)
}

// MarkNoEvidence records that required evidence is missing. One-way; the
// session is frozen afterwards.
func (c *Controller) MarkNoEvidence(reason string) {
	c.mu.Lock()
	c.flags.NoEvidence = true
	sessionID := c.sessionID
	c.mu.Unlock()
	c.logger.WithSession(sessionID).Warn("marked no-evidence", "reason", reason)
}

// MarkInvalid records that the session's results are invalid. One-way; the
// session is frozen afterwards.
func (c *Controller) MarkInvalid(reason string) {
	c.mu.Lock()
	c.flags.Invalid = true
	sessionID := c.sessionID
	c.mu.Unlock()
	c.logger.WithSession(sessionID).Warn("marked invalid", "reason", reason)
}

// StartParallelTask admits a task into the active parallel set, failing
// when the executor limit would be exceeded.
func (c *Controller) StartParallelTask(taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, active := c.activeParallel[taskID]; active {
		return errors.Wrapf(errors.ErrInvalidInput, "task %s is already active", taskID)
	}
	if len(c.activeParallel) >= c.executorLimit {
		return errors.NewLifecycleError(errors.CodeExecutorLimitExceeded,
			fmt.Sprintf("executor limit %d reached", c.executorLimit)).
			WithSessionID(c.sessionID).WithTaskID(taskID)
	}

	c.activeParallel[taskID] = struct{}{}
	now := time.Now()
	task, ok := c.tasks[taskID]
	if !ok {
		task = &TaskInfo{TaskID: taskID}
		c.tasks[taskID] = task
	}
	task.Status = TaskInProgress
	if task.StartedAt == nil {
		task.StartedAt = &now
	}
	return nil
}

// CompleteParallelTask removes a task from the active set and records its
// final status and evidence.
func (c *Controller) CompleteParallelTask(taskID string, status TaskStatus, evidence Evidence) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, active := c.activeParallel[taskID]; !active {
		return errors.NewLifecycleError(errors.CodeUnknownTask,
			fmt.Sprintf("task %s is not an active parallel task", taskID)).
			WithSessionID(c.sessionID).WithTaskID(taskID)
	}
	status = NormalizeTaskStatus(status)
	if !status.IsValid() {
		return errors.NewLifecycleError(errors.CodeOutputInvalid,
			fmt.Sprintf("invalid task status %q", status)).
			WithSessionID(c.sessionID).WithTaskID(taskID)
	}

	delete(c.activeParallel, taskID)
	now := time.Now()
	task := c.tasks[taskID]
	task.Status = status
	task.CompletedAt = &now
	if evidence != nil {
		task.Evidence = evidence
	}
	return nil
}

// ParallelExecutionInfo reports the active parallel task set.
func (c *Controller) ParallelExecutionInfo() ParallelExecutionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.activeParallel))
	for id := range c.activeParallel {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ParallelExecutionInfo{
		ActiveCount:   len(ids),
		ActiveTaskIDs: ids,
		MaxExecutors:  c.executorLimit,
	}
}

// UpdateTaskStatus records a task's status, creating the task record on
// first use.
func (c *Controller) UpdateTaskStatus(taskID string, status TaskStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status = NormalizeTaskStatus(status)
	if !status.IsValid() {
		return errors.NewLifecycleError(errors.CodeOutputInvalid,
			fmt.Sprintf("invalid task status %q", status)).
			WithSessionID(c.sessionID).WithTaskID(taskID)
	}

	now := time.Now()
	task, ok := c.tasks[taskID]
	if !ok {
		task = &TaskInfo{TaskID: taskID}
		c.tasks[taskID] = task
	}
	task.Status = status
	switch status {
	case TaskInProgress:
		if task.StartedAt == nil {
			task.StartedAt = &now
		}
	case TaskCompleted, TaskFailed:
		task.CompletedAt = &now
	}
	return nil
}

// IsPhaseTimedOut reports whether the phase has been in progress longer
// than the configured timeout. Polling-driven; no internal timers exist.
func (c *Controller) IsPhaseTimedOut(phase Phase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseTimedOutLocked(phase, time.Now())
}

func (c *Controller) phaseTimedOutLocked(phase Phase, now time.Time) bool {
	info, ok := c.phases[phase]
	if !ok || info.Status != PhaseInProgress || info.StartedAt == nil {
		return false
	}
	return now.Sub(*info.StartedAt) > c.phaseTimeout
}

// CheckAndHandleTimeout polls the phase and, if it is stuck past the
// timeout, marks it failed and flags the session incomplete instead of
// letting it hang. Returns true when a timeout was handled.
func (c *Controller) CheckAndHandleTimeout(phase Phase) bool {
	c.mu.Lock()
	now := time.Now()
	if !c.phaseTimedOutLocked(phase, now) {
		c.mu.Unlock()
		return false
	}
	info := c.phases[phase]
	info.Status = PhaseFailed
	info.CompletedAt = &now
	c.flags.Incomplete = true
	sessionID := c.sessionID
	c.mu.Unlock()

	c.logger.WithSession(sessionID).WithPhase(string(phase)).
		Warn("phase timed out", "timeout", c.phaseTimeout.String())
	return true
}

func (c *Controller) publish(ev event.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

func copyPhaseInfo(info *PhaseInfo) PhaseInfo {
	out := *info
	out.StartedAt = copyTime(info.StartedAt)
	out.CompletedAt = copyTime(info.CompletedAt)
	out.Evidence = copyEvidence(info.Evidence)
	return out
}

func copyTaskInfo(info *TaskInfo) TaskInfo {
	out := *info
	out.StartedAt = copyTime(info.StartedAt)
	out.CompletedAt = copyTime(info.CompletedAt)
	out.Evidence = copyEvidence(info.Evidence)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func copyEvidence(ev Evidence) Evidence {
	if ev == nil {
		return nil
	}
	out := make(Evidence, len(ev))
	for k, v := range ev {
		out[k] = v
	}
	return out
}
