package cli

import (
	"context"
	"io"
	"os"

	"github.com/mmr-tortoise/ctdeploy/internal/docker"
	"github.com/mmr-tortoise/ctdeploy/internal/model"
	"github.com/mmr-tortoise/ctdeploy/internal/preflight"
)

// hostRuntime binds a session to the container runtime on this host. Its
// Preflight resolves the compose flavor and connects to the Docker daemon;
// the compose runner and status reader are usable only afterwards.
//
// Nothing in the project directory is touched until Preflight has passed:
// the log file is enabled and the Compose file written (up only) as its
// last steps.
type hostRuntime struct {
	s       *session
	compose *docker.Compose
	client  *docker.Client

	// writeCompose generates a missing Compose file during Preflight.
	// Only "up" sets it; stop and down never create project files.
	writeCompose bool
}

func newHostRuntime(s *session, writeCompose bool) *hostRuntime {
	return &hostRuntime{
		s: s,
		compose: &docker.Compose{
			ProjectDir:  s.cfg.ProjectDir,
			ProjectName: s.cfg.Project,
			Output:      composeOutput(),
		},
		writeCompose: writeCompose,
	}
}

// Preflight checks the tools and connects to Docker. Once both pass it
// enables the log file and, for up, makes sure a Compose file exists.
func (h *hostRuntime) Preflight(ctx context.Context) error {
	// Step 1: Required executables and the compose flavor.
	cc, err := requireTools(ctx, h.s.log, preflight.KindDeploy)
	if err != nil {
		return err
	}
	h.compose.Command = cc
	h.s.log.Debug().Str("compose", cc.String()).Msg("compose detected")

	// Step 2: The Docker daemon must answer.
	if err := h.connect(ctx); err != nil {
		return err
	}

	// Step 3: Preflight passed; project files may be written from here on.
	if err := h.s.enableFileLog(); err != nil {
		return err
	}
	if h.writeCompose {
		if err := ensureComposeFile(h.s); err != nil {
			return err
		}
	}

	// Step 4: Pass the Compose file with -f when there is one. Without it,
	// compose addresses the project by its -p name alone, which is enough
	// for stop and down.
	path := h.s.cfg.ComposePath()
	if _, err := os.Stat(path); err == nil {
		h.compose.Files = []string{path}
	} else {
		h.s.log.Debug().Str("path", path).Msg("no compose file; addressing the project by name")
	}
	return nil
}

// connect opens and pings the Docker client once.
func (h *hostRuntime) connect(ctx context.Context) error {
	if h.client != nil {
		return nil
	}
	cli, err := newDockerClient()
	if err != nil {
		return err
	}
	if err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return err
	}
	h.client = cli
	if v, err := cli.ServerVersion(ctx); err == nil {
		h.s.log.Debug().Str("server_version", v).Msg("connected to Docker daemon")
	}
	return nil
}

// Deployment reads the project's containers.
func (h *hostRuntime) Deployment(ctx context.Context) (*model.Deployment, error) {
	if err := h.connect(ctx); err != nil {
		return nil, err
	}
	return docker.NewStatusReader(h.client, h.s.cfg.Project).Deployment(ctx)
}

// Close releases the Docker client.
func (h *hostRuntime) Close() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

// newDockerClient is swapped in tests.
var newDockerClient = docker.NewClient

// composeOutput streams compose's progress to stderr in text mode. In JSON
// mode it stays captured and only surfaces in errors.
func composeOutput() io.Writer {
	if IsJSONOutput() {
		return nil
	}
	return stderr
}
