package protocol

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wardenhq/warden/internal/errors"
	"github.com/wardenhq/warden/internal/logging"
)

// StaleRunError reports gate results whose run identity cannot be trusted:
// either they belong to a different run than the one being judged, or they
// disagree among themselves. It is always fatal to the Judge call: a
// process error in the caller, never a recoverable condition.
type StaleRunError struct {
	ExpectedRunID string   // The run being judged; empty if none was set
	OffendingRuns []string // Distinct run IDs that triggered the rejection
	Mixed         bool     // True when the gates disagree among themselves
}

// Error returns the formatted error message.
func (e *StaleRunError) Error() string {
	if e.Mixed {
		return fmt.Sprintf("evidence error %s: gate results mix runs [%s]",
			errors.CodeMixedRuns, strings.Join(e.OffendingRuns, ", "))
	}
	return fmt.Sprintf("evidence error %s: gate results from run [%s] do not match current run %q",
		errors.CodeStaleRun, strings.Join(e.OffendingRuns, ", "), e.ExpectedRunID)
}

// Code returns E304 for self-disagreeing evidence and E303 otherwise.
func (e *StaleRunError) Code() errors.Code {
	if e.Mixed {
		return errors.CodeMixedRuns
	}
	return errors.CodeStaleRun
}

// IsRetryable always returns false: the caller must produce fresh evidence,
// not replay the call.
func (e *StaleRunError) IsRetryable() bool { return false }

// IsStaleRun reports whether err is (or wraps) a StaleRunError.
func IsStaleRun(err error) bool {
	var stale *StaleRunError
	return errors.As(err, &stale)
}

// Judge converts gate results into completion verdicts. Its only mutable
// state is the optional current run ID; it is safe for concurrent use.
type Judge struct {
	mu           sync.Mutex
	currentRunID string
	logger       *logging.Logger
}

// Option configures a Judge.
type Option func(*Judge)

// WithLogger sets the logger for the judge.
func WithLogger(logger *logging.Logger) Option {
	return func(j *Judge) {
		j.logger = logger
	}
}

// NewJudge creates a Judge with no current run ID.
func NewJudge(opts ...Option) *Judge {
	j := &Judge{logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// SetCurrentRunID establishes the run identifier incoming gate results must
// match. An empty or missing run ID on a gate then counts as a mismatch.
func (j *Judge) SetCurrentRunID(runID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.currentRunID = runID
}

// ClearCurrentRunID removes the run constraint. Gates must still agree
// among themselves.
func (j *Judge) ClearCurrentRunID() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.currentRunID = ""
}

// CurrentRunID returns the run currently being judged, or "".
func (j *Judge) CurrentRunID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.currentRunID
}

// Judge derives a verdict from the given gate results.
//
// Rules, in order:
//  1. No gates at all -> NO_EVIDENCE.
//  2. With a current run ID set, every gate must carry exactly that run ID
//     or the call fails with a StaleRunError.
//  3. Without one, the gates must still agree on a single run ID among
//     themselves; two runs' evidence is never silently merged.
//  4. A negative failing count on any gate is tampered input and fails with
//     E305; it can never contribute to a COMPLETE.
//  5. Zero passing and zero failing across all gates -> NO_EVIDENCE.
//  6. Any failures at all -> FAILING, naming every failing gate. There is no
//     "mostly passing" leniency.
//  7. Otherwise -> COMPLETE.
func (j *Judge) Judge(gates []QAGateResult) (*CompletionVerdict, error) {
	j.mu.Lock()
	currentRun := j.currentRunID
	j.mu.Unlock()

	now := time.Now()
	if len(gates) == 0 {
		j.logger.Warn("judging with no gate results")
		return &CompletionVerdict{
			RunID:        currentRun,
			JudgedAt:     now,
			FinalStatus:  StatusNoEvidence,
			FailingGates: []string{},
			GateSummary:  []GateOutcome{},
		}, nil
	}

	if err := checkRunConsistency(currentRun, gates); err != nil {
		j.logger.Error("stale gate results rejected", "error", err.Error())
		return nil, err
	}

	verdict := &CompletionVerdict{
		RunID:        currentRun,
		JudgedAt:     now,
		FailingGates: []string{},
		GateSummary:  make([]GateOutcome, 0, len(gates)),
	}
	if currentRun == "" {
		verdict.RunID = gates[0].RunID
	}

	for _, gate := range gates {
		if gate.Failing < 0 {
			return nil, errors.NewEvidenceError(errors.CodeTamperedEvidence,
				"gate reported a negative failing count").
				WithFailures(fmt.Sprintf("%s: failing=%d", gate.GateName, gate.Failing))
		}

		verdict.PassingTotal += gate.Passing
		verdict.FailingTotal += gate.Failing
		verdict.SkippedTotal += gate.Skipped
		verdict.GateSummary = append(verdict.GateSummary, GateOutcome{
			GateName: gate.GateName,
			RunID:    gate.RunID,
			Passing:  gate.Passing,
			Failing:  gate.Failing,
			Skipped:  gate.Skipped,
			Passed:   gate.Failing == 0 && gate.Passing > 0,
		})
		if gate.Failing > 0 {
			verdict.FailingGates = append(verdict.FailingGates, gate.GateName)
		}
	}

	switch {
	case verdict.PassingTotal+verdict.FailingTotal == 0:
		verdict.FinalStatus = StatusNoEvidence
	case verdict.FailingTotal > 0:
		verdict.FinalStatus = StatusFailing
	default:
		verdict.FinalStatus = StatusComplete
		verdict.AllPass = true
	}

	j.logger.Info("run judged",
		"run_id", verdict.RunID,
		"final_status", string(verdict.FinalStatus),
		"passing", verdict.PassingTotal,
		"failing", verdict.FailingTotal,
		"skipped", verdict.SkippedTotal,
	)
	return verdict, nil
}

// checkRunConsistency enforces rules 2 and 3.
func checkRunConsistency(currentRun string, gates []QAGateResult) error {
	if currentRun != "" {
		offending := make(map[string]struct{})
		for _, gate := range gates {
			if gate.RunID != currentRun {
				offending[gate.RunID] = struct{}{}
			}
		}
		if len(offending) > 0 {
			return &StaleRunError{
				ExpectedRunID: currentRun,
				OffendingRuns: sortedKeys(offending),
			}
		}
		return nil
	}

	distinct := make(map[string]struct{})
	for _, gate := range gates {
		distinct[gate.RunID] = struct{}{}
	}
	if len(distinct) > 1 {
		return &StaleRunError{
			OffendingRuns: sortedKeys(distinct),
			Mixed:         true,
		}
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
