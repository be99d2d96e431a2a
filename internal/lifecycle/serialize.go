package lifecycle

import (
	"fmt"
	"sort"

	"github.com/wardenhq/warden/internal/errors"
)

// SessionState is the plain serialized form of a controller. It carries
// everything needed to reconstruct the controller after a process restart;
// durability of the bytes is the caller's responsibility.
type SessionState struct {
	SessionID           string              `json:"session_id" yaml:"session_id"`
	CurrentPhase        Phase               `json:"current_phase" yaml:"current_phase"`
	Phases              []PhaseInfo         `json:"phases" yaml:"phases"`
	Tasks               map[string]TaskInfo `json:"tasks" yaml:"tasks"`
	ActiveParallelTasks []string            `json:"active_parallel_tasks" yaml:"active_parallel_tasks"`
	Flags               StatusFlags         `json:"flags" yaml:"flags"`
	OverallStatus       OverallStatus       `json:"overall_status" yaml:"overall_status"`
	ExecutorLimit       int                 `json:"executor_limit" yaml:"executor_limit"`
	MaxRetries          int                 `json:"max_retries" yaml:"max_retries"`
}

// Serialize snapshots the controller into a SessionState. Phases are listed
// in lifecycle order.
func (c *Controller) Serialize() *SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := &SessionState{
		SessionID:     c.sessionID,
		CurrentPhase:  c.current,
		Phases:        make([]PhaseInfo, 0, len(phaseOrder)),
		Tasks:         make(map[string]TaskInfo, len(c.tasks)),
		Flags:         c.flags,
		OverallStatus: c.flags.Overall(),
		ExecutorLimit: c.executorLimit,
		MaxRetries:    c.maxRetries,
	}
	for _, p := range phaseOrder {
		state.Phases = append(state.Phases, copyPhaseInfo(c.phases[p]))
	}
	for id, task := range c.tasks {
		state.Tasks[id] = copyTaskInfo(task)
	}
	state.ActiveParallelTasks = make([]string, 0, len(c.activeParallel))
	for id := range c.activeParallel {
		state.ActiveParallelTasks = append(state.ActiveParallelTasks, id)
	}
	sort.Strings(state.ActiveParallelTasks)
	return state
}

// Deserialize reconstructs a controller from a serialized state. Invalid or
// internally inconsistent state is rejected with E205 rather than silently
// repaired; a missing phase entry defaults to PENDING.
func Deserialize(state *SessionState, opts ...Option) (*Controller, error) {
	if state == nil {
		return nil, errors.NewLifecycleError(errors.CodeContinuationRejected,
			"serialized state is nil")
	}
	if !state.CurrentPhase.IsValid() {
		return nil, errors.NewLifecycleError(errors.CodeContinuationRejected,
			fmt.Sprintf("unknown current phase %q", state.CurrentPhase)).
			WithSessionID(state.SessionID)
	}

	c := NewController(opts...)
	c.resetLocked(state.SessionID)
	c.current = state.CurrentPhase
	if state.ExecutorLimit > 0 {
		c.executorLimit = state.ExecutorLimit
	}
	if state.MaxRetries > 0 {
		c.maxRetries = state.MaxRetries
	}

	for i := range state.Phases {
		info := state.Phases[i]
		if !info.Phase.IsValid() {
			return nil, errors.NewLifecycleError(errors.CodeContinuationRejected,
				fmt.Sprintf("unknown phase %q in serialized state", info.Phase)).
				WithSessionID(state.SessionID)
		}
		if !info.Status.IsValid() {
			return nil, errors.NewLifecycleError(errors.CodeContinuationRejected,
				fmt.Sprintf("invalid status %q for phase %s", info.Status, info.Phase)).
				WithSessionID(state.SessionID).WithPhase(string(info.Phase))
		}
		restored := copyPhaseInfo(&info)
		c.phases[info.Phase] = &restored
	}

	for id, task := range state.Tasks {
		status := NormalizeTaskStatus(task.Status)
		if !status.IsValid() {
			return nil, errors.NewLifecycleError(errors.CodeContinuationRejected,
				fmt.Sprintf("invalid status %q for task %s", task.Status, id)).
				WithSessionID(state.SessionID).WithTaskID(id)
		}
		restored := copyTaskInfo(&task)
		restored.TaskID = id
		restored.Status = status
		c.tasks[id] = &restored
	}

	for _, id := range state.ActiveParallelTasks {
		if _, ok := c.tasks[id]; !ok {
			return nil, errors.NewLifecycleError(errors.CodeContinuationRejected,
				fmt.Sprintf("active parallel task %s has no task record", id)).
				WithSessionID(state.SessionID).WithTaskID(id)
		}
		c.activeParallel[id] = struct{}{}
	}

	c.flags = state.Flags
	return c, nil
}
