// Package cli implements the cobra-based CLI commands for ctdeploy.
//
// Each subcommand (preflight, bootstrap, configure, compose, up, stop, down,
// status, health) is defined in its own file within this package. This file
// defines the root command, the global flags, and the per-command session
// that carries the validated configuration and the logger.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ctdeploy/internal/config"
	"github.com/mmr-tortoise/ctdeploy/internal/logging"
	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// Global flag variables shared across all subcommands.
var (
	// jsonOutput switches command results on stdout to JSON.
	jsonOutput bool

	// verbose forces debug-level logging on stderr.
	verbose bool

	// noColor disables ANSI colors in text output and logs.
	noColor bool

	// configPath is an explicit config file; empty means ctdeploy.yaml and
	// friends in the project directory.
	configPath string

	// projectDir is the repository root.
	projectDir string
)

// Version, Commit, and Date are set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// stdout, stderr and stdin are swapped in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin
)

// promptOut is where interactive questions are written.
func promptOut() io.Writer {
	return stderr
}

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ctdeploy",
		Short: "Deployment tooling for the Medical Image CT Analysis service",
		Long: `ctdeploy prepares, starts, stops and inspects the CT analysis web service.

It checks the host for the tools it needs, turns the project into a Git
repository, writes the GitHub username into the landing page, generates the
Compose file, and runs the container lifecycle with a health check.`,

		// Errors are printed by Execute, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor || jsonOutput {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ctdeploy.yaml in the project directory)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project-dir", "C", ".", "Project directory")

	rootCmd.AddCommand(NewPreflightCommand())
	rootCmd.AddCommand(NewBootstrapCommand())
	rootCmd.AddCommand(NewConfigureCommand())
	rootCmd.AddCommand(NewComposeCommand())
	rootCmd.AddCommand(NewUpCommand())
	rootCmd.AddCommand(NewStopCommand())
	rootCmd.AddCommand(NewDownCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewHealthCommand())

	return rootCmd
}

// Execute runs the root command and translates errors into exit codes.
// CLIError values carry their own code; anything else exits with 1.
func Execute(rootCmd *cobra.Command) {
	os.Exit(int(run(rootCmd)))
}

// run is Execute without the os.Exit, for tests.
func run(rootCmd *cobra.Command) model.ExitCode {
	err := rootCmd.Execute()
	if err == nil {
		return model.ExitSuccess
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(cliErr.Message, cliErr.Err)
		return cliErr.Code
	}

	printError(err.Error(), nil)
	return model.ExitGeneralError
}

// printError writes an error to stderr as JSON or as "Error: ..." text.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(stderr, string(data))
		return
	}

	prefix := color.RedString("Error:")
	if underlying != nil {
		fmt.Fprintf(stderr, "%s %s: %v\n", prefix, message, underlying)
	} else {
		fmt.Fprintf(stderr, "%s %s\n", prefix, message)
	}
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// printJSON writes v to stdout with two-space indentation.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}

// session is what a command needs once flags are parsed: the validated
// configuration and a logger writing to stderr and, for lifecycle commands,
// to logs/ctdeploy.log.
type session struct {
	cfg  *config.Config
	log  zerolog.Logger
	sink *logging.Sink
}

// enableFileLog starts writing to logs/ctdeploy.log. Lifecycle commands call
// it once their preflight has passed, never before.
func (s *session) enableFileLog() error {
	if err := s.sink.Enable(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to open log directory %s", s.cfg.LogPath()), err)
	}
	return nil
}

// Close flushes the log file.
func (s *session) Close() error {
	return s.sink.Close()
}

// newSession loads the configuration, lets the command apply its flags,
// validates the result, and builds the logger. fileLog prepares the rotating
// file sink inside the configured log directory; it stays disabled, and the
// directory uncreated, until enableFileLog.
func newSession(override func(*config.Config), fileLog bool) (*session, error) {
	cfg, err := config.Load(config.LoadOptions{
		ProjectDir: projectDir,
		Path:       configPath,
	})
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := logging.Options{
		Level:   cfg.LogLevel,
		Verbose: verbose,
		Console: stderr,
		NoColor: color.NoColor,
	}
	if fileLog {
		opts.Dir = cfg.LogPath()
		opts.Deferred = true
	}
	logger, sink, err := logging.NewLogger(opts)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to open log directory %s", cfg.LogPath()), err)
	}

	logger.Debug().Str("project_dir", cfg.ProjectDir).Str("project", cfg.Project).Msg("configuration loaded")
	return &session{cfg: cfg, log: logger, sink: sink}, nil
}
