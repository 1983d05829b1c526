// preflight.go implements "ctdeploy preflight".
//
// The command reports every executable a workflow needs, with its path and
// version, and fails with ExitMissingDependency when a required one is
// absent. The same check guards bootstrap, configure and up.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ctdeploy/internal/docker"
	"github.com/mmr-tortoise/ctdeploy/internal/model"
	"github.com/mmr-tortoise/ctdeploy/internal/preflight"
)

// newChecker is swapped in tests.
var newChecker = func() *preflight.Checker { return preflight.NewChecker() }

type preflightFlags struct {
	kind string
}

// NewPreflightCommand creates the "preflight" cobra command.
func NewPreflightCommand() *cobra.Command {
	flags := &preflightFlags{}

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check that the required tools are installed",
		Long: `Check that the executables a workflow depends on are installed.

Examples:
  ctdeploy preflight
  ctdeploy preflight --for bootstrap
  ctdeploy preflight --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreflight(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.kind, "for", string(preflight.KindDeploy),
		"Workflow to check for: deploy, bootstrap, configure")

	return cmd
}

func runPreflight(ctx context.Context, flags *preflightFlags) error {
	kind := preflight.Kind(flags.kind)
	reqs := preflight.DefaultRequirements(kind)
	if reqs == nil {
		return model.NewCLIError(model.ExitInvalidInput,
			fmt.Sprintf("unknown workflow %q: valid values are deploy, bootstrap, configure", flags.kind))
	}

	checker := newChecker()
	report, checkErr := checker.Check(ctx, reqs)

	var composeCmd string
	if kind == preflight.KindDeploy && checkErr == nil {
		cc, err := checker.DetectCompose(ctx)
		if err != nil {
			checkErr = err
		} else {
			composeCmd = cc.String()
		}
	}

	if IsJSONOutput() {
		out := struct {
			Kind    string             `json:"kind"`
			OK      bool               `json:"ok"`
			Compose string             `json:"compose,omitempty"`
			Results []preflight.Result `json:"results"`
		}{flags.kind, checkErr == nil, composeCmd, report.Results}
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		if err := printPreflightText(report, composeCmd); err != nil {
			return err
		}
	}
	return checkErr
}

func printPreflightText(report *preflight.Report, composeCmd string) error {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf)
	table.Header("Tool", "Status", "Path", "Version")

	for _, r := range report.Results {
		status := color.GreenString("ok")
		switch {
		case !r.Found && r.Optional:
			status = color.YellowString("absent (optional)")
		case !r.Found:
			status = color.RedString("missing")
		}
		if err := table.Append(r.Name, status, dash(r.Path), dash(r.Version)); err != nil {
			return fmt.Errorf("error formatting preflight report: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("error rendering preflight report: %w", err)
	}

	fmt.Fprint(stdout, buf.String())
	if composeCmd != "" {
		fmt.Fprintf(stdout, "Compose: %s\n", composeCmd)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// requireTools runs the preflight for kind and, for deploys, returns the
// detected compose flavor. Nothing else should run when it fails.
func requireTools(ctx context.Context, log zerolog.Logger, kind preflight.Kind) (docker.ComposeCommand, error) {
	checker := newChecker()
	report, err := checker.Check(ctx, preflight.DefaultRequirements(kind))
	if err != nil {
		return docker.ComposeCommand{}, err
	}
	for _, r := range report.Results {
		log.Debug().Str("tool", r.Name).Bool("found", r.Found).Str("version", r.Version).Msg("preflight")
	}

	if kind != preflight.KindDeploy {
		return docker.ComposeCommand{}, nil
	}
	return checker.DetectCompose(ctx)
}
