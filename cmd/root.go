package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"offersync/internal/config"
	"offersync/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates every selected resource reached its desired state.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (bad config, unreadable store, invalid arguments).
	ExitCodeError = 1
	// ExitCodeIncomplete indicates the run finished but at least one resource did not.
	ExitCodeIncomplete = 3
)

// versionTemplate is shared by --version and the version subcommand.
const versionTemplate = "offersync version {{.Version}}\n"

var (
	configPath string
	debugMode  bool
	logFormat  string
)

// rootCmd represents the base command for the offersync application.
var rootCmd = &cobra.Command{
	Use:   "offersync",
	Short: "Reconcile offer variant membership against a remote API",
	Long: `offersync makes the variant membership of each offer on a remote
preorder API match the desired membership held in a local store.

It reads both sides once per offer, removes what should not be there, adds
what is missing, retries transient failures, waits out remote job locks and
isolates the variants the remote rejects so that everything else still
gets applied.`,
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// IncompleteRunError reports a run in which some resources did not reach
// their desired state.
type IncompleteRunError struct {
	Unfinished int
	Total      int
}

func (e *IncompleteRunError) Error() string {
	return fmt.Sprintf("%d of %d resources did not reach their desired state", e.Unfinished, e.Total)
}

func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var incomplete *IncompleteRunError
	if errors.As(err, &incomplete) {
		return ExitCodeIncomplete
	}
	return ExitCodeError
}

func initLogging(cmd *cobra.Command, _ []string) error {
	level := logging.LevelInfo
	if debugMode {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if logFormat == string(logging.FormatJSON) {
		format = logging.FormatJSON
	}
	logging.Init(level, format, cmd.ErrOrStderr())
	return nil
}

// loadConfig resolves --config, loads the file and reapplies the log settings
// the file carries. --debug overrides the level and --log-format the format.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.GetDefaultConfigPath(); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		var cfgErr config.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(cmd.ErrOrStderr(), cfgErr.DetailedError())
		}
		return config.Config{}, err
	}

	level := logging.LevelDebug
	if !debugMode {
		if level, err = logging.ParseLevel(cfg.Log.Level); err != nil {
			return config.Config{}, fmt.Errorf("log.level: %w", err)
		}
	}
	format := logging.Format(logFormat)
	if !cmd.Flags().Changed("log-format") {
		format = logging.Format(cfg.Log.Format)
	}
	logging.Init(level, format, cmd.ErrOrStderr())
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file or directory (default is $HOME/.config/offersync/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", string(logging.FormatText), "log format (text, json)")

	rootCmd.SetVersionTemplate(versionTemplate)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newPlanCmd())
}
