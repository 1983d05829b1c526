// container.go lists the containers of the analysis service's Compose
// project and folds their states into a model.Deployment.
package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// ListProjectContainers returns every container (running or not) that
// Compose created for the given project. Filtering happens daemon-side on
// the com.docker.compose.project label.
func ListProjectContainers(ctx context.Context, cli *Client, project string) ([]model.ContainerInfo, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", ComposeProjectLabel+"="+project),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to list containers of project %q", project),
			err,
		)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ContainerName < result[j].ContainerName
	})

	return result, nil
}

// containerToInfo maps an API summary onto the domain type. Docker prefixes
// names with "/", which is dropped.
func containerToInfo(c container.Summary) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	var ports []int
	seen := make(map[int]bool)
	for _, p := range c.Ports {
		// IPv4 and IPv6 bindings of the same port are reported separately.
		if p.PublicPort == 0 || seen[int(p.PublicPort)] {
			continue
		}
		seen[int(p.PublicPort)] = true
		ports = append(ports, int(p.PublicPort))
	}
	sort.Ints(ports)

	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		ServiceName:   c.Labels[ComposeServiceLabel],
		State:         string(c.State),
		StatusText:    c.Status,
		Health:        ParseHealth(c.Status),
		Ports:         ports,
		Labels:        c.Labels,
	}
}

// ParseHealth extracts the health state from Docker's status line, e.g.
// "Up 3 minutes (healthy)" or "Up 5 seconds (health: starting)".
func ParseHealth(status string) model.HealthState {
	switch {
	case strings.Contains(status, "(healthy)"):
		return model.HealthHealthy
	case strings.Contains(status, "(unhealthy)"):
		return model.HealthUnhealthy
	case strings.Contains(status, "(health: starting)"):
		return model.HealthStarting
	default:
		return model.HealthNone
	}
}

// BuildDeployment aggregates the containers of one project. Run metadata is
// read from the first container carrying ctdeploy labels.
func BuildDeployment(project string, containers []model.ContainerInfo) *model.Deployment {
	d := &model.Deployment{
		Project:    project,
		Containers: containers,
		Status:     DetermineStatus(containers),
	}

	for _, c := range containers {
		if IsManaged(c) {
			d.RunID, d.DeployedAt = ParseRunLabels(c.Labels)
			break
		}
	}

	return d
}

// DetermineStatus folds container states:
//  1. no containers → absent
//  2. every container running → running
//  3. some running → degraded
//  4. none running → stopped
func DetermineStatus(containers []model.ContainerInfo) model.DeploymentStatus {
	if len(containers) == 0 {
		return model.StatusAbsent
	}

	running := 0
	for _, c := range containers {
		if c.IsRunning() {
			running++
		}
	}

	switch running {
	case len(containers):
		return model.StatusRunning
	case 0:
		return model.StatusStopped
	default:
		return model.StatusDegraded
	}
}

// StatusReader reads the project's deployment through the Docker API.
type StatusReader struct {
	cli     *Client
	project string
}

// NewStatusReader binds a client to a Compose project name.
func NewStatusReader(cli *Client, project string) *StatusReader {
	return &StatusReader{cli: cli, project: project}
}

// Deployment lists the project's containers and aggregates them.
func (r *StatusReader) Deployment(ctx context.Context) (*model.Deployment, error) {
	containers, err := ListProjectContainers(ctx, r.cli, r.project)
	if err != nil {
		return nil, err
	}
	return BuildDeployment(r.project, containers), nil
}
