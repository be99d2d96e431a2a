package lifecycle

import "testing"

func TestGateFailures(t *testing.T) {
	tests := []struct {
		name     string
		phase    Phase
		evidence Evidence
		want     []string
	}{
		{"requirements missing", PhaseRequirementAnalysis, Evidence{}, []string{"requirements are required"}},
		{"requirements empty list", PhaseRequirementAnalysis, Evidence{"requirements": []any{}}, []string{"requirements are required"}},
		{"requirements ok", PhaseRequirementAnalysis, Evidence{"requirements": []any{"r1"}}, nil},
		{"tasks missing", PhaseTaskDecomposition, Evidence{}, []string{"tasks are required"}},
		{"plan empty string", PhasePlanning, Evidence{"plan": ""}, []string{"plan is required"}},
		{"plan ok", PhasePlanning, Evidence{"plan": "p"}, nil},
		{"execution results missing", PhaseExecution, Evidence{}, []string{"execution_results are required"}},
		{"qa missing entirely", PhaseQA, Evidence{}, []string{"qa_results are required"}},
		{"qa wrong shape", PhaseQA, Evidence{"qa_results": "passed"}, []string{"qa_results are required"}},
		{
			"qa one check false",
			PhaseQA,
			Evidence{"qa_results": map[string]any{
				"lint_passed": true, "tests_passed": false,
				"type_check_passed": true, "build_passed": true,
			}},
			[]string{"tests_passed must be true"},
		},
		{
			"qa all missing",
			PhaseQA,
			Evidence{"qa_results": map[string]any{}},
			[]string{
				"lint_passed must be true",
				"tests_passed must be true",
				"type_check_passed must be true",
				"build_passed must be true",
			},
		},
		{"inventory unverified", PhaseCompletionValidation, Evidence{"evidence_inventory": map[string]any{"verified": false}}, []string{"evidence_inventory.verified must be true"}},
		{"inventory verified", PhaseCompletionValidation, Evidence{"evidence_inventory": map[string]any{"verified": true}}, nil},
		{"report flag missing", PhaseReport, Evidence{}, []string{"report_generated must be true"}},
		{"report non-bool", PhaseReport, Evidence{"report_generated": "yes"}, []string{"report_generated must be true"}},
		{"report ok", PhaseReport, Evidence{"report_generated": true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gateFailures(tt.phase, tt.evidence)
			if len(got) != len(tt.want) {
				t.Fatalf("gateFailures() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("failure[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
