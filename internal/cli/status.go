// status.go implements "ctdeploy status".
//
// Status reads the project's containers from the Docker API and shows the
// aggregate state, the run that created them, and one row per container.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ctdeploy/internal/deploy"
	"github.com/mmr-tortoise/ctdeploy/internal/docker"
	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the service containers",
		Long: `Show the project's aggregate state (running, degraded, stopped or absent),
the run that started it, and each container with its health and ports.

Examples:
  ctdeploy status
  ctdeploy status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}
}

func runStatus(ctx context.Context) error {
	s, err := newSession(nil, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	host := newHostRuntime(s, false)
	defer func() { _ = host.Close() }()

	d := &deploy.Deployer{
		Config: s.cfg,
		Status: host,
		Log:    s.log,
	}
	dep, err := d.CurrentStatus(ctx)
	if err != nil {
		return err
	}
	s.log.Debug().Int("containers", len(dep.Containers)).Msg("containers listed")

	if IsJSONOutput() {
		return printJSON(dep)
	}
	return printStatusText(dep)
}

func printStatusText(dep *model.Deployment) error {
	fmt.Fprintf(stdout, "Project: %s\n", dep.Project)
	fmt.Fprintf(stdout, "Status:  %s\n", colorStatus(dep.Status))
	if dep.RunID != "" {
		fmt.Fprintf(stdout, "Run:     %s\n", dep.RunID)
	}
	if !dep.DeployedAt.IsZero() {
		fmt.Fprintf(stdout, "Started: %s\n", dep.DeployedAt.Local().Format("2006-01-02 15:04:05"))
	}

	if len(dep.Containers) == 0 {
		fmt.Fprintln(stdout, color.YellowString("No containers found. Start the service with: ctdeploy up"))
		return nil
	}

	var buf strings.Builder
	table := tablewriter.NewTable(&buf)
	table.Header("Container", "ID", "Service", "State", "Health", "Ports")
	for _, c := range dep.Containers {
		name := c.ContainerName
		if !docker.IsManaged(c) {
			name += " *"
		}
		if err := table.Append(name, c.ShortID(), dash(c.ServiceName), colorState(c), colorHealth(c.Health), FormatPorts(c.Ports)); err != nil {
			return fmt.Errorf("error formatting status: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("error rendering status: %w", err)
	}
	fmt.Fprint(stdout, buf.String())

	for _, c := range dep.Containers {
		if !docker.IsManaged(c) {
			fmt.Fprintln(stdout, "* not started from a ctdeploy-generated Compose file")
			break
		}
	}
	return nil
}

func colorState(c model.ContainerInfo) string {
	if c.IsRunning() {
		return color.GreenString(c.State)
	}
	return color.RedString(c.State)
}

func colorHealth(h model.HealthState) string {
	switch h {
	case model.HealthHealthy:
		return color.GreenString(h.String())
	case model.HealthUnhealthy:
		return color.RedString(h.String())
	case model.HealthStarting:
		return color.YellowString(h.String())
	default:
		return h.String()
	}
}

// FormatPorts joins host ports with commas, or "-" when there are none.
func FormatPorts(ports []int) string {
	if len(ports) == 0 {
		return "-"
	}
	out := make([]string, len(ports))
	for i, p := range ports {
		out[i] = strconv.Itoa(p)
	}
	return strings.Join(out, ",")
}
