package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/errors"
	"github.com/wardenhq/warden/internal/lifecycle"
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Execution-safety supervisor for autonomous coding agents",
	Long: `Warden supervises autonomous coding-agent executors that modify a
shared file tree. It arbitrates file locks, bounds executor concurrency,
drives sessions through a seven-phase gated lifecycle, and judges QA
evidence before ever reporting success.

The process exit code reflects the session's overall status:
  0  COMPLETE
  1  INCOMPLETE
  2  NO_EVIDENCE
  3  ERROR
  4  INVALID`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// statusError carries a non-complete session status out of a command so the
// process exit code can honor the status contract.
type statusError struct {
	status lifecycle.OverallStatus
}

func (e *statusError) Error() string {
	return "session status " + string(e.status)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status.ExitCode()
	}
	rootCmd.PrintErrln("Error:", err)
	switch code := errors.CodeOf(err); {
	case code.IsEvidence():
		return lifecycle.StatusInvalid.ExitCode()
	case code.IsLifecycle():
		return lifecycle.StatusError.ExitCode()
	default:
		return 1
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/warden/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/warden")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WARDEN")
	// Replace dots with underscores for nested keys in env vars
	// e.g., WARDEN_RESOURCES_EXECUTOR_LIMIT for resources.executor_limit
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
