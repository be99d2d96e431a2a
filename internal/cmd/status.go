package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wardenhq/warden/internal/errors"
	"github.com/wardenhq/warden/internal/lifecycle"
)

var statusCmd = &cobra.Command{
	Use:   "status <state-file>",
	Short: "Report the status of a serialized session",
	Long: `Load a serialized session snapshot, validate it, and report its
phase progress and overall status. The exit code follows the overall
status, so scripts can branch on a session's outcome without parsing
output.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var state lifecycle.SessionState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return errors.NewLifecycleError(errors.CodeContinuationRejected,
			"state file is not valid YAML").WithCause(err)
	}

	// Deserialize validates the snapshot; a controller that cannot be
	// rebuilt is not worth reporting on.
	controller, err := lifecycle.Deserialize(&state)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:  %s\n", controller.SessionID())
	fmt.Fprintf(out, "Phase:    %s\n", controller.CurrentPhase())
	fmt.Fprintf(out, "Status:   %s\n\n", controller.OverallStatus())
	for _, phase := range lifecycle.Phases() {
		info, _ := controller.PhaseState(phase)
		line := fmt.Sprintf("  %-22s %s", phase, info.Status)
		if info.RetryCount > 0 {
			line += fmt.Sprintf(" (retries: %d)", info.RetryCount)
		}
		fmt.Fprintln(out, line)
	}

	if status := controller.OverallStatus(); status != lifecycle.StatusComplete {
		return &statusError{status: status}
	}
	return nil
}
