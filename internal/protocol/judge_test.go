package protocol

import (
	"testing"

	"github.com/wardenhq/warden/internal/errors"
)

func TestJudgeNoGates(t *testing.T) {
	j := NewJudge()

	verdict, err := j.Judge(nil)
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if verdict.FinalStatus != StatusNoEvidence {
		t.Errorf("FinalStatus = %s, want %s", verdict.FinalStatus, StatusNoEvidence)
	}
	if len(verdict.GateSummary) != 0 {
		t.Errorf("GateSummary should be empty, got %v", verdict.GateSummary)
	}
}

func TestJudgeSkippedOnlyIsNoEvidence(t *testing.T) {
	j := NewJudge()

	verdict, err := j.Judge([]QAGateResult{
		{RunID: "r1", GateName: "tests", Passing: 0, Failing: 0, Skipped: 42},
	})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if verdict.FinalStatus != StatusNoEvidence {
		t.Errorf("FinalStatus = %s, want %s", verdict.FinalStatus, StatusNoEvidence)
	}
	if len(verdict.GateSummary) != 1 {
		t.Errorf("GateSummary should still list the gate, got %d entries", len(verdict.GateSummary))
	}
	if verdict.SkippedTotal != 42 {
		t.Errorf("SkippedTotal = %d, want 42", verdict.SkippedTotal)
	}
}

// Never complete with failures: no amount of passing checks outweighs a
// single failure.
func TestJudgeNeverCompleteWithFailures(t *testing.T) {
	j := NewJudge()

	for f := 1; f <= 50; f++ {
		verdict, err := j.Judge([]QAGateResult{
			{RunID: "r", GateName: "t", Passing: 1000, Failing: f, Skipped: 0},
		})
		if err != nil {
			t.Fatalf("Judge() with failing=%d error = %v", f, err)
		}
		if verdict.FinalStatus == StatusComplete {
			t.Fatalf("failing=%d produced COMPLETE", f)
		}
		if verdict.FinalStatus != StatusFailing {
			t.Errorf("failing=%d FinalStatus = %s, want %s", f, verdict.FinalStatus, StatusFailing)
		}
		if verdict.AllPass {
			t.Errorf("failing=%d AllPass = true", f)
		}
	}
}

func TestJudgeComplete(t *testing.T) {
	j := NewJudge()
	j.SetCurrentRunID("run_5")

	verdict, err := j.Judge([]QAGateResult{
		{RunID: "run_5", GateName: "lint", Passing: 12, Failing: 0},
		{RunID: "run_5", GateName: "tests", Passing: 340, Failing: 0, Skipped: 2},
	})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if verdict.FinalStatus != StatusComplete {
		t.Fatalf("FinalStatus = %s, want %s", verdict.FinalStatus, StatusComplete)
	}
	if !verdict.AllPass || verdict.FailingTotal != 0 || verdict.PassingTotal != 352 {
		t.Errorf("verdict = %+v, want all_pass with 352 passing", verdict)
	}
	if verdict.RunID != "run_5" {
		t.Errorf("RunID = %s, want run_5", verdict.RunID)
	}
	if verdict.StaleResults {
		t.Error("StaleResults must be false on a returned verdict")
	}
}

// Stale-run rejection: evidence from another run is a hard stop.
func TestJudgeStaleRun(t *testing.T) {
	j := NewJudge()
	j.SetCurrentRunID("run_5")

	_, err := j.Judge([]QAGateResult{
		{RunID: "run_3", GateName: "tests", Passing: 10, Failing: 0},
	})
	if err == nil {
		t.Fatal("Judge() should reject stale evidence")
	}
	if !IsStaleRun(err) {
		t.Fatalf("error %T is not a StaleRunError", err)
	}
	var stale *StaleRunError
	errors.As(err, &stale)
	if stale.ExpectedRunID != "run_5" || stale.Mixed {
		t.Errorf("StaleRunError = %+v, want expected run_5, not mixed", stale)
	}
	if stale.Code() != errors.CodeStaleRun {
		t.Errorf("Code() = %s, want %s", stale.Code(), errors.CodeStaleRun)
	}
}

func TestJudgeEmptyRunIDCountsAsMismatch(t *testing.T) {
	j := NewJudge()
	j.SetCurrentRunID("run_5")

	_, err := j.Judge([]QAGateResult{
		{RunID: "", GateName: "tests", Passing: 10, Failing: 0},
	})
	if !IsStaleRun(err) {
		t.Fatalf("missing run_id should be stale, got %v", err)
	}
}

func TestJudgeMixedRunsWithoutCurrentRun(t *testing.T) {
	j := NewJudge()

	_, err := j.Judge([]QAGateResult{
		{RunID: "r1", GateName: "lint", Passing: 5, Failing: 0},
		{RunID: "r2", GateName: "tests", Passing: 9, Failing: 0},
	})
	if err == nil {
		t.Fatal("mixed-run evidence must never be merged")
	}
	var stale *StaleRunError
	if !errors.As(err, &stale) {
		t.Fatalf("error %T is not a StaleRunError", err)
	}
	if !stale.Mixed {
		t.Error("Mixed should be true")
	}
	if stale.Code() != errors.CodeMixedRuns {
		t.Errorf("Code() = %s, want %s", stale.Code(), errors.CodeMixedRuns)
	}
	if len(stale.OffendingRuns) != 2 {
		t.Errorf("OffendingRuns = %v, want both run IDs", stale.OffendingRuns)
	}
}

func TestJudgeConsistentGatesWithoutCurrentRun(t *testing.T) {
	j := NewJudge()

	verdict, err := j.Judge([]QAGateResult{
		{RunID: "r9", GateName: "lint", Passing: 3, Failing: 0},
		{RunID: "r9", GateName: "tests", Passing: 7, Failing: 0},
	})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if verdict.FinalStatus != StatusComplete {
		t.Errorf("FinalStatus = %s, want %s", verdict.FinalStatus, StatusComplete)
	}
	if verdict.RunID != "r9" {
		t.Errorf("RunID = %s, want r9 adopted from the gates", verdict.RunID)
	}
}

func TestJudgeClearCurrentRunID(t *testing.T) {
	j := NewJudge()
	j.SetCurrentRunID("run_1")
	j.ClearCurrentRunID()

	if got := j.CurrentRunID(); got != "" {
		t.Fatalf("CurrentRunID() = %q, want empty", got)
	}

	// With the constraint cleared, a single foreign run is acceptable.
	verdict, err := j.Judge([]QAGateResult{
		{RunID: "run_2", GateName: "tests", Passing: 1, Failing: 0},
	})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if verdict.FinalStatus != StatusComplete {
		t.Errorf("FinalStatus = %s, want %s", verdict.FinalStatus, StatusComplete)
	}
}

func TestJudgeNegativeFailingIsTampered(t *testing.T) {
	j := NewJudge()

	_, err := j.Judge([]QAGateResult{
		{RunID: "r1", GateName: "tests", Passing: 100, Failing: -1},
	})
	if got := errors.CodeOf(err); got != errors.CodeTamperedEvidence {
		t.Fatalf("code = %s, want %s", got, errors.CodeTamperedEvidence)
	}
}

func TestJudgeFailingGatesListed(t *testing.T) {
	j := NewJudge()
	j.SetCurrentRunID("r1")

	verdict, err := j.Judge([]QAGateResult{
		{RunID: "r1", GateName: "lint", Passing: 10, Failing: 0},
		{RunID: "r1", GateName: "tests", Passing: 90, Failing: 3},
		{RunID: "r1", GateName: "build", Passing: 1, Failing: 1},
	})
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}
	if verdict.FinalStatus != StatusFailing {
		t.Fatalf("FinalStatus = %s, want %s", verdict.FinalStatus, StatusFailing)
	}

	want := []string{"tests", "build"}
	if len(verdict.FailingGates) != len(want) {
		t.Fatalf("FailingGates = %v, want %v", verdict.FailingGates, want)
	}
	for i := range want {
		if verdict.FailingGates[i] != want[i] {
			t.Errorf("FailingGates[%d] = %s, want %s", i, verdict.FailingGates[i], want[i])
		}
	}

	// Per-gate outcomes are independent of the aggregate.
	if !verdict.GateSummary[0].Passed {
		t.Error("lint gate should be marked passed")
	}
	if verdict.GateSummary[1].Passed || verdict.GateSummary[2].Passed {
		t.Error("failing gates must not be marked passed")
	}
}

func TestJudgeIsRecomputedEachCall(t *testing.T) {
	j := NewJudge()
	j.SetCurrentRunID("r1")

	gates := []QAGateResult{{RunID: "r1", GateName: "tests", Passing: 1, Failing: 1}}
	first, err := j.Judge(gates)
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}

	gates[0].Failing = 0
	second, err := j.Judge(gates)
	if err != nil {
		t.Fatalf("Judge() error = %v", err)
	}

	if first.FinalStatus != StatusFailing || second.FinalStatus != StatusComplete {
		t.Errorf("verdicts = %s then %s, want FAILING then COMPLETE", first.FinalStatus, second.FinalStatus)
	}
}
