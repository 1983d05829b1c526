package deploy

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/ctdeploy/internal/config"
	"github.com/mmr-tortoise/ctdeploy/internal/docker"
	"github.com/mmr-tortoise/ctdeploy/internal/health"
	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// Preflighter verifies the host before anything changes.
type Preflighter interface {
	Preflight(ctx context.Context) error
}

// Composer is the subset of docker.Compose a deploy drives.
type Composer interface {
	Down(ctx context.Context, removeVolumes bool) error
	Build(ctx context.Context) error
	Up(ctx context.Context, env map[string]string) error
	Stop(ctx context.Context) error
}

// StatusReader reads the project's deployment from the container runtime.
type StatusReader interface {
	Deployment(ctx context.Context) (*model.Deployment, error)
}

// HealthWaiter polls the service's readiness endpoint.
type HealthWaiter interface {
	Wait(ctx context.Context, timeout, interval time.Duration) (*health.Result, error)
}

// PortChecker reports whether a host port is free.
type PortChecker interface {
	IsPortAvailable(port int, protocol string) bool
	FindAvailablePort(startPort, endPort int, protocol string) (int, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Deployer wires the collaborators of one project.
type Deployer struct {
	Config    *config.Config
	Preflight Preflighter
	Compose   Composer
	Status    StatusReader
	Health    HealthWaiter
	Ports     PortChecker
	Sleep     SleepFunc
	Log       zerolog.Logger

	// Now and NewRunID are overridable for tests.
	Now      func() time.Time
	NewRunID func() string
}

// Options tune one Deploy call.
type Options struct {
	// NoBuild skips the image build and reuses the last image.
	NoBuild bool

	// Wait polls the health endpoint after the status read.
	Wait bool
}

// portSearchWindow is how far past the configured port a free one is sought
// when suggesting an alternative.
const portSearchWindow = 100

// Deploy replaces the running containers with a fresh build.
func (d *Deployer) Deploy(ctx context.Context, opts Options) (*model.DeployResult, error) {
	start := d.now()
	cfg := d.Config

	if d.Preflight != nil {
		if err := d.Preflight.Preflight(ctx); err != nil {
			return nil, err
		}
	}

	for _, dir := range []string{cfg.OutputPath(), cfg.LogPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	d.Log.Info().Str("project", cfg.Project).Msg("stopping existing containers")
	if err := d.Compose.Down(ctx, false); err != nil {
		return nil, err
	}

	if err := d.checkPort(); err != nil {
		return nil, err
	}

	res := &model.DeployResult{
		RunID: d.newRunID(),
		URL:   cfg.ServiceURL(),
		Built: !opts.NoBuild,
	}

	if !opts.NoBuild {
		d.Log.Info().Str("image", cfg.Image).Msg("building image")
		if err := d.Compose.Build(ctx); err != nil {
			return nil, err
		}
	}

	d.Log.Info().Str("run_id", res.RunID).Msg("starting containers")
	if err := d.Compose.Up(ctx, docker.RunEnv(res.RunID, start)); err != nil {
		return nil, err
	}

	d.Log.Debug().Dur("delay", cfg.StartupDelay).Msg("waiting for startup")
	if err := d.sleep(ctx, cfg.StartupDelay); err != nil {
		return nil, err
	}

	dep, err := d.Status.Deployment(ctx)
	if err != nil {
		return nil, err
	}
	res.Deployment = dep
	d.Log.Info().Str("status", dep.Status.String()).Int("containers", len(dep.Containers)).Msg("deployment status")

	if opts.Wait && d.Health != nil {
		hr, err := d.Health.Wait(ctx, cfg.HealthTimeout, cfg.HealthInterval)
		healthy := err == nil
		res.Healthy = &healthy
		res.Elapsed = d.now().Sub(start)
		if err != nil {
			return res, err
		}
		d.Log.Info().Int("attempts", hr.Attempts).Dur("elapsed", hr.Elapsed).Msg("service healthy")
	}

	res.Elapsed = d.now().Sub(start)
	return res, nil
}

// checkPort runs after Down, so a busy port belongs to something other
// than this project.
func (d *Deployer) checkPort() error {
	if d.Ports == nil {
		return nil
	}
	p := d.Config.Port
	if d.Ports.IsPortAvailable(p, "tcp") {
		return nil
	}

	msg := fmt.Sprintf("port %d is already in use", p)
	if free, err := d.Ports.FindAvailablePort(p+1, min(p+portSearchWindow, 65535), "tcp"); err == nil {
		msg += fmt.Sprintf("; try STREAMLIT_SERVER_PORT=%d", free)
	}
	return model.NewCLIError(model.ExitPortConflict, msg)
}

// Teardown stops and removes the project's containers.
func (d *Deployer) Teardown(ctx context.Context, removeVolumes bool) error {
	d.Log.Info().Str("project", d.Config.Project).Bool("volumes", removeVolumes).Msg("removing containers")
	return d.Compose.Down(ctx, removeVolumes)
}

// Halt stops the containers but keeps them for a later start.
func (d *Deployer) Halt(ctx context.Context) error {
	d.Log.Info().Str("project", d.Config.Project).Msg("stopping containers")
	return d.Compose.Stop(ctx)
}

// CurrentStatus reads the current deployment.
func (d *Deployer) CurrentStatus(ctx context.Context) (*model.Deployment, error) {
	return d.Status.Deployment(ctx)
}

func (d *Deployer) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deployer) newRunID() string {
	if d.NewRunID != nil {
		return d.NewRunID()
	}
	return uuid.NewString()
}

func (d *Deployer) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return Sleep(ctx, dur)
}
