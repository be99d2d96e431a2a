package lifecycle

import "fmt"

// qaChecks are the QA sub-results that must all be true. Each one is
// reported individually when unmet.
var qaChecks = []string{"lint_passed", "tests_passed", "type_check_passed", "build_passed"}

// gateFailures evaluates the phase-specific gate over the supplied evidence
// and returns every unmet condition. An empty result means the gate passed.
func gateFailures(phase Phase, evidence Evidence) []string {
	var failures []string

	switch phase {
	case PhaseRequirementAnalysis:
		if !hasValue(evidence["requirements"]) {
			failures = append(failures, "requirements are required")
		}
	case PhaseTaskDecomposition:
		if !hasValue(evidence["tasks"]) {
			failures = append(failures, "tasks are required")
		}
	case PhasePlanning:
		if !hasValue(evidence["plan"]) {
			failures = append(failures, "plan is required")
		}
	case PhaseExecution:
		if !hasValue(evidence["execution_results"]) {
			failures = append(failures, "execution_results are required")
		}
	case PhaseQA:
		results, ok := asMap(evidence["qa_results"])
		if !ok {
			failures = append(failures, "qa_results are required")
			break
		}
		for _, check := range qaChecks {
			if !isTrue(results[check]) {
				failures = append(failures, fmt.Sprintf("%s must be true", check))
			}
		}
	case PhaseCompletionValidation:
		inventory, ok := asMap(evidence["evidence_inventory"])
		if !ok || !isTrue(inventory["verified"]) {
			failures = append(failures, "evidence_inventory.verified must be true")
		}
	case PhaseReport:
		if !isTrue(evidence["report_generated"]) {
			failures = append(failures, "report_generated must be true")
		}
	}

	return failures
}

// hasValue reports whether an evidence field is present and non-empty.
func hasValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case []string:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	case Evidence:
		return len(val) > 0
	default:
		return true
	}
}

// asMap coerces the evidence field shapes callers actually supply.
func asMap(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case Evidence:
		return val, true
	default:
		return nil, false
	}
}

func isTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
