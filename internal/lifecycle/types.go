package lifecycle

import (
	"time"

	"github.com/wardenhq/warden/internal/event"
	"github.com/wardenhq/warden/internal/logging"
)

// Phase is one step in the fixed session lifecycle.
type Phase string

const (
	PhaseRequirementAnalysis  Phase = "REQUIREMENT_ANALYSIS"
	PhaseTaskDecomposition    Phase = "TASK_DECOMPOSITION"
	PhasePlanning             Phase = "PLANNING"
	PhaseExecution            Phase = "EXECUTION"
	PhaseQA                   Phase = "QA"
	PhaseCompletionValidation Phase = "COMPLETION_VALIDATION"
	PhaseReport               Phase = "REPORT"
)

// phaseOrder is the total order phases advance through. REPORT is terminal.
var phaseOrder = []Phase{
	PhaseRequirementAnalysis,
	PhaseTaskDecomposition,
	PhasePlanning,
	PhaseExecution,
	PhaseQA,
	PhaseCompletionValidation,
	PhaseReport,
}

// Phases returns the ordered phase sequence.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// Index returns the phase's position in the lifecycle order, or -1 for an
// unknown phase.
func (p Phase) Index() int {
	for i, phase := range phaseOrder {
		if phase == p {
			return i
		}
	}
	return -1
}

// IsValid reports whether p is one of the seven known phases.
func (p Phase) IsValid() bool { return p.Index() >= 0 }

// IsTerminal reports whether p is the final phase.
func (p Phase) IsTerminal() bool { return p == PhaseReport }

// Next returns the phase immediately after p, or false if p is terminal
// or unknown.
func (p Phase) Next() (Phase, bool) {
	idx := p.Index()
	if idx < 0 || idx == len(phaseOrder)-1 {
		return "", false
	}
	return phaseOrder[idx+1], true
}

// PhaseStatus is the state of a single phase within a session.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "PENDING"
	PhaseInProgress PhaseStatus = "IN_PROGRESS"
	PhaseCompleted  PhaseStatus = "COMPLETED"
	PhaseFailed     PhaseStatus = "FAILED"
)

// IsValid reports whether s is a known phase status.
func (s PhaseStatus) IsValid() bool {
	switch s {
	case PhasePending, PhaseInProgress, PhaseCompleted, PhaseFailed:
		return true
	}
	return false
}

// TaskStatus is the state of a single tracked task. The canonical terminal
// success value is COMPLETED; COMPLETE is accepted as an input alias and
// normalized on write.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
)

// NormalizeTaskStatus maps the COMPLETE alias onto COMPLETED and passes
// everything else through unchanged.
func NormalizeTaskStatus(s TaskStatus) TaskStatus {
	if s == "COMPLETE" {
		return TaskCompleted
	}
	return s
}

// IsValid reports whether s, after normalization, is a known task status.
func (s TaskStatus) IsValid() bool {
	switch NormalizeTaskStatus(s) {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// IsDone reports whether the task finished successfully.
func (s TaskStatus) IsDone() bool {
	return NormalizeTaskStatus(s) == TaskCompleted
}

// Evidence is caller-supplied structured proof that a phase's work was
// actually done. Each phase's gate inspects specific keys.
type Evidence map[string]any

// PhaseInfo records one phase's progress within a session.
type PhaseInfo struct {
	Phase           Phase       `json:"phase" yaml:"phase"`
	Status          PhaseStatus `json:"status" yaml:"status"`
	StartedAt       *time.Time  `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	DurationSeconds float64     `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
	RetryCount      int         `json:"retry_count" yaml:"retry_count"`
	Evidence        Evidence    `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// TaskInfo records one task's progress. Created on the first status update
// for its ID and kept for the life of the session.
type TaskInfo struct {
	TaskID      string     `json:"task_id" yaml:"task_id"`
	Status      TaskStatus `json:"status" yaml:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Evidence    Evidence   `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// StatusFlags are the independent condition bits a session accumulates.
// Several can be true at once; Overall resolves them by priority.
type StatusFlags struct {
	Error      bool `json:"is_error" yaml:"is_error"`
	Incomplete bool `json:"is_incomplete" yaml:"is_incomplete"`
	NoEvidence bool `json:"is_no_evidence" yaml:"is_no_evidence"`
	Invalid    bool `json:"is_invalid" yaml:"is_invalid"`
	Completed  bool `json:"is_completed" yaml:"is_completed"`
}

// OverallStatus is the session-level verdict derived from StatusFlags.
type OverallStatus string

const (
	StatusComplete   OverallStatus = "COMPLETE"
	StatusIncomplete OverallStatus = "INCOMPLETE"
	StatusError      OverallStatus = "ERROR"
	StatusNoEvidence OverallStatus = "NO_EVIDENCE"
	StatusInvalid    OverallStatus = "INVALID"
)

// Overall resolves the flags into a single status. Priority is strict and
// evaluated top to bottom: INVALID, ERROR, NO_EVIDENCE, INCOMPLETE,
// COMPLETE. A session with no flags set and Completed false defaults to
// INCOMPLETE, never to COMPLETE.
func (f StatusFlags) Overall() OverallStatus {
	switch {
	case f.Invalid:
		return StatusInvalid
	case f.Error:
		return StatusError
	case f.NoEvidence:
		return StatusNoEvidence
	case f.Incomplete:
		return StatusIncomplete
	case f.Completed:
		return StatusComplete
	default:
		return StatusIncomplete
	}
}

// ExitCode maps the status onto the process exit code the surrounding CLI
// reports.
func (s OverallStatus) ExitCode() int {
	switch s {
	case StatusComplete:
		return 0
	case StatusIncomplete:
		return 1
	case StatusNoEvidence:
		return 2
	case StatusError:
		return 3
	case StatusInvalid:
		return 4
	default:
		return 1
	}
}

// ParallelExecutionInfo is a snapshot of the parallel task set.
type ParallelExecutionInfo struct {
	ActiveCount   int      `json:"active_count" yaml:"active_count"`
	ActiveTaskIDs []string `json:"active_task_ids" yaml:"active_task_ids"`
	MaxExecutors  int      `json:"max_executors" yaml:"max_executors"`
}

const (
	// DefaultExecutorLimit bounds concurrently active parallel tasks.
	DefaultExecutorLimit = 4

	// DefaultMaxRetries bounds recoverable-error retries per phase.
	DefaultMaxRetries = 3

	// DefaultPhaseTimeout is how long a phase may stay in progress before
	// CheckAndHandleTimeout treats it as stuck.
	DefaultPhaseTimeout = 30 * time.Minute
)

// Option configures a Controller.
type Option func(*Controller)

// WithEventBus sets the bus lifecycle notifications are published on.
func WithEventBus(bus *event.Bus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

// WithLogger sets the logger for the controller.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithExecutorLimit overrides the parallel task limit.
func WithExecutorLimit(limit int) Option {
	return func(c *Controller) {
		if limit > 0 {
			c.executorLimit = limit
		}
	}
}

// WithMaxRetries overrides the per-phase retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Controller) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithPhaseTimeout overrides the per-phase wall-clock timeout.
func WithPhaseTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.phaseTimeout = d
		}
	}
}
