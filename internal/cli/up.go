// up.go implements "ctdeploy up", the container lifecycle: preflight, tear
// down, build, start detached, wait the startup delay, and report status.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ctdeploy/internal/config"
	"github.com/mmr-tortoise/ctdeploy/internal/deploy"
	"github.com/mmr-tortoise/ctdeploy/internal/health"
	"github.com/mmr-tortoise/ctdeploy/internal/model"
	"github.com/mmr-tortoise/ctdeploy/internal/port"
)

type upFlags struct {
	noBuild bool
	wait    bool
	port    int
	delay   time.Duration

	// delaySet distinguishes an explicit --delay 0 from the default.
	delaySet bool
}

// NewUpCommand creates the "up" cobra command.
func NewUpCommand() *cobra.Command {
	flags := &upFlags{}

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Build and start the analysis service",
		Long: `Stop any running containers of the project, rebuild the image, start the
service detached, wait the startup delay, and report the container status.

A missing Compose file is generated first. With --wait the command also
polls the health endpoint until it answers or the health timeout passes.

Examples:
  ctdeploy up
  ctdeploy up --wait
  ctdeploy up --no-build --port 8600`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.delaySet = cmd.Flags().Changed("delay")
			return runUp(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.noBuild, "no-build", false, "Skip the image build")
	cmd.Flags().BoolVarP(&flags.wait, "wait", "w", false, "Wait until the health endpoint answers")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "Host port (default from config)")
	cmd.Flags().DurationVar(&flags.delay, "delay", 0, "Startup delay before the status read (default from config)")

	return cmd
}

func runUp(ctx context.Context, flags *upFlags) error {
	s, err := newSession(func(c *config.Config) {
		if flags.port != 0 {
			c.Port = flags.port
		}
		if flags.delaySet {
			c.StartupDelay = flags.delay
		}
	}, true)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	host := newHostRuntime(s, true)
	defer func() { _ = host.Close() }()

	checker := health.NewChecker(s.cfg.ServiceURL(), s.cfg.HealthPath)
	defer func() { _ = checker.Close() }()

	d := &deploy.Deployer{
		Config:    s.cfg,
		Preflight: host,
		Compose:   host.compose,
		Status:    host,
		Health:    checker,
		Ports:     port.NewScanner(),
		Log:       s.log,
	}

	res, err := d.Deploy(ctx, deploy.Options{NoBuild: flags.noBuild, Wait: flags.wait})
	if res != nil {
		if IsJSONOutput() {
			if perr := printJSON(res); perr != nil && err == nil {
				err = perr
			}
		} else {
			printDeployText(res)
		}
	}
	return err
}

func printDeployText(res *model.DeployResult) {
	dep := res.Deployment
	fmt.Fprintf(stdout, "Run:     %s\n", res.RunID)
	if dep != nil {
		fmt.Fprintf(stdout, "Status:  %s (%d container(s))\n", colorStatus(dep.Status), len(dep.Containers))
	}
	if res.Healthy != nil {
		if *res.Healthy {
			fmt.Fprintf(stdout, "Health:  %s\n", color.GreenString("healthy"))
		} else {
			fmt.Fprintf(stdout, "Health:  %s\n", color.RedString("unhealthy"))
		}
	}
	fmt.Fprintf(stdout, "URL:     %s\n", color.CyanString(res.URL))
	fmt.Fprintf(stdout, "Elapsed: %s\n", res.Elapsed.Round(100*time.Millisecond))
}

// colorStatus renders a deployment status the way the status table does.
func colorStatus(st model.DeploymentStatus) string {
	switch st {
	case model.StatusRunning:
		return color.GreenString(st.String())
	case model.StatusDegraded:
		return color.YellowString(st.String())
	case model.StatusStopped:
		return color.RedString(st.String())
	default:
		return color.New(color.Faint).Sprint(st.String())
	}
}
