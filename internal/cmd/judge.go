package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wardenhq/warden/internal/errors"
	"github.com/wardenhq/warden/internal/lifecycle"
	"github.com/wardenhq/warden/internal/protocol"
)

var judgeCmd = &cobra.Command{
	Use:   "judge <gates-file>",
	Short: "Judge QA gate results into a completion verdict",
	Long: `Judge a batch of QA gate results from a YAML file and print the
verdict. With --run-id, every gate must carry exactly that run ID; stale
or mixed-run evidence is rejected outright instead of producing a
verdict.

Example gates file:

  - run_id: run_1
    gate_name: lint
    passing: 14
    failing: 0
  - run_id: run_1
    gate_name: tests
    passing: 310
    failing: 2

The exit code follows the verdict: 0 COMPLETE, 1 FAILING, 2 NO_EVIDENCE,
4 rejected evidence.`,
	Args: cobra.ExactArgs(1),
	RunE: runJudge,
}

var judgeRunID string

func init() {
	rootCmd.AddCommand(judgeCmd)

	judgeCmd.Flags().StringVar(&judgeRunID, "run-id", "", "Run ID every gate result must match")
}

func runJudge(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var gates []protocol.QAGateResult
	if err := yaml.Unmarshal(data, &gates); err != nil {
		return errors.NewLifecycleError(errors.CodeOutputInvalid,
			"gates file is not valid YAML").WithCause(err)
	}

	judge := protocol.NewJudge()
	if judgeRunID != "" {
		judge.SetCurrentRunID(judgeRunID)
	}
	verdict, err := judge.Judge(gates)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(verdict)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return err
	}

	switch verdict.FinalStatus {
	case protocol.StatusComplete:
		return nil
	case protocol.StatusNoEvidence:
		return &statusError{status: lifecycle.StatusNoEvidence}
	default:
		return &statusError{status: lifecycle.StatusIncomplete}
	}
}
