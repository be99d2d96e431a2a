// Package protocol converts a batch of QA gate results into a single
// completion verdict without ever letting stale, partial, or cross-run data
// manufacture a false COMPLETE.
//
// The Judge holds one piece of configuration, the current run ID. Everything
// else is a pure function of its inputs: the same gate results always
// produce the same verdict. Evidence from a different run, or evidence that
// disagrees with itself about which run it belongs to, is a hard stop
// ([StaleRunError]), not a soft status.
package protocol

import "time"

// FinalStatus is the outcome of judging one run's gate results.
type FinalStatus string

const (
	// StatusComplete means every gate passed and at least one check ran.
	StatusComplete FinalStatus = "COMPLETE"

	// StatusFailing means at least one gate reported failures.
	StatusFailing FinalStatus = "FAILING"

	// StatusNoEvidence means no checks actually ran.
	StatusNoEvidence FinalStatus = "NO_EVIDENCE"
)

// QAGateResult is one gate's outcome from the external QA pipeline, tagged
// with the run that produced it. Immutable once produced; the protocol
// consumes it and never mutates it.
type QAGateResult struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	GateName  string    `json:"gate_name" yaml:"gate_name"`
	Passing   int       `json:"passing" yaml:"passing"`
	Failing   int       `json:"failing" yaml:"failing"`
	Skipped   int       `json:"skipped" yaml:"skipped"`
}

// GateOutcome is the per-gate entry in a verdict's summary, carrying its own
// pass/fail outcome independent of the aggregate.
type GateOutcome struct {
	GateName string `json:"gate_name" yaml:"gate_name"`
	RunID    string `json:"run_id" yaml:"run_id"`
	Passing  int    `json:"passing" yaml:"passing"`
	Failing  int    `json:"failing" yaml:"failing"`
	Skipped  int    `json:"skipped" yaml:"skipped"`
	Passed   bool   `json:"passed" yaml:"passed"`
}

// CompletionVerdict is the judged outcome of one run's gate results.
// Derived, never stored by the protocol; recomputed on every Judge call.
type CompletionVerdict struct {
	RunID        string        `json:"run_id" yaml:"run_id"`
	JudgedAt     time.Time     `json:"judged_at" yaml:"judged_at"`
	FinalStatus  FinalStatus   `json:"final_status" yaml:"final_status"`
	AllPass      bool          `json:"all_pass" yaml:"all_pass"`
	PassingTotal int           `json:"passing_total" yaml:"passing_total"`
	FailingTotal int           `json:"failing_total" yaml:"failing_total"`
	SkippedTotal int           `json:"skipped_total" yaml:"skipped_total"`
	FailingGates []string      `json:"failing_gates" yaml:"failing_gates"`
	GateSummary  []GateOutcome `json:"gate_summary" yaml:"gate_summary"`
	StaleResults bool          `json:"stale_results" yaml:"stale_results"`
}
