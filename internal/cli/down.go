// down.go implements "ctdeploy stop" and "ctdeploy down".
//
// stop keeps the containers so a later "docker compose start" resumes them;
// down removes containers and networks, and volumes with --volumes.
package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ctdeploy/internal/deploy"
)

type downFlags struct {
	volumes bool
}

// NewStopCommand creates the "stop" cobra command.
func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the service containers without removing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd.Context(), "stopped", func(ctx context.Context, d *deploy.Deployer) error {
				return d.Halt(ctx)
			})
		},
	}
}

// NewDownCommand creates the "down" cobra command.
func NewDownCommand() *cobra.Command {
	flags := &downFlags{}

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the service containers",
		Long: `Stop and remove the project's containers and networks.

Examples:
  ctdeploy down
  ctdeploy down --volumes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd.Context(), "removed", func(ctx context.Context, d *deploy.Deployer) error {
				return d.Teardown(ctx, flags.volumes)
			})
		},
	}

	cmd.Flags().BoolVar(&flags.volumes, "volumes", false, "Also remove named volumes")

	return cmd
}

// runLifecycle preflights the host and runs one compose verb through the
// deployer.
func runLifecycle(ctx context.Context, verb string, action func(context.Context, *deploy.Deployer) error) error {
	s, err := newSession(nil, true)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	host := newHostRuntime(s, false)
	defer func() { _ = host.Close() }()

	if err := host.Preflight(ctx); err != nil {
		return err
	}

	d := &deploy.Deployer{
		Config:  s.cfg,
		Compose: host.compose,
		Status:  host,
		Log:     s.log,
	}
	if err := action(ctx, d); err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(map[string]string{"project": s.cfg.Project, "result": verb})
	}
	fmt.Fprintf(stdout, "%s Project %s %s\n", color.GreenString("✓"), s.cfg.Project, verb)
	return nil
}
