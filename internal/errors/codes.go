package errors

// Code is a stable, documented error identifier. External tooling (retry
// policies, reporting) branches on these values, so they must never be
// renumbered or reused.
type Code string

// Lifecycle error codes (E2xx).
const (
	// CodeRetriesExhausted indicates a phase failed more times than the
	// configured retry budget allows. Fatal: the session enters the error
	// state and no further retries are attempted.
	CodeRetriesExhausted Code = "E201"

	// CodeInvalidTransition indicates a phase transition target that is not
	// the immediate successor of the current phase (backward or skip).
	CodeInvalidTransition Code = "E202"

	// CodePhaseOrderViolation indicates an explicit transition was requested
	// while the current phase had not been completed, or an advance past the
	// terminal phase.
	CodePhaseOrderViolation Code = "E203"

	// CodeSessionFrozen indicates the session is in an unadvanceable state:
	// an error/invalid/no-evidence flag is set, or the EXECUTION phase still
	// has non-completed tasks.
	CodeSessionFrozen Code = "E204"

	// CodeContinuationRejected indicates a serialized session state could not
	// be restored into a runnable controller.
	CodeContinuationRejected Code = "E205"

	// CodeExecutorLimitExceeded indicates starting another parallel task
	// would exceed the configured executor limit.
	CodeExecutorLimitExceeded Code = "E206"

	// CodeUnknownTask indicates an operation referenced a task that is not
	// registered or not currently active.
	CodeUnknownTask Code = "E207"

	// CodeOutputInvalid indicates a final report or serialized output failed
	// validation.
	CodeOutputInvalid Code = "E208"
)

// Evidence error codes (E3xx).
const (
	// CodeMissingEvidence indicates a phase completion was attempted with no
	// evidence at all.
	CodeMissingEvidence Code = "E301"

	// CodeGateUnmet indicates supplied evidence failed one or more of the
	// phase's gate conditions.
	CodeGateUnmet Code = "E302"

	// CodeStaleRun indicates gate results carry a run identifier that does
	// not match the run currently being judged.
	CodeStaleRun Code = "E303"

	// CodeMixedRuns indicates gate results disagree among themselves about
	// which run they belong to.
	CodeMixedRuns Code = "E304"

	// CodeTamperedEvidence indicates gate results that cannot be legitimate
	// pipeline output, such as negative failure counts.
	CodeTamperedEvidence Code = "E305"
)

// Locking error codes (E4xx).
const (
	// CodeLockConflict indicates an incompatible lock already exists on the
	// requested path.
	CodeLockConflict Code = "E401"

	// CodeUnknownLock indicates a release or query referenced a lock ID that
	// is unknown or already released.
	CodeUnknownLock Code = "E402"

	// CodeDeadlock indicates acquiring the requested lock would form a cycle
	// in the waits-for graph.
	CodeDeadlock Code = "E403"

	// CodeSemaphoreExhausted indicates the global executor semaphore is at
	// capacity. Never queued; callers retry above this layer.
	CodeSemaphoreExhausted Code = "E404"

	// CodeForbiddenAutoRelease indicates an attempt to release locks based on
	// expiry timestamps, which is never permitted.
	CodeForbiddenAutoRelease Code = "E405"
)

// IsLifecycle reports whether the code belongs to the lifecycle family.
func (c Code) IsLifecycle() bool { return len(c) == 4 && c[1] == '2' }

// IsEvidence reports whether the code belongs to the evidence family.
func (c Code) IsEvidence() bool { return len(c) == 4 && c[1] == '3' }

// IsLocking reports whether the code belongs to the locking family.
func (c Code) IsLocking() bool { return len(c) == 4 && c[1] == '4' }
