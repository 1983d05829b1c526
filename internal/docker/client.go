package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// defaultPingTimeout bounds a Ping. Docker Desktop on macOS can take a few
// seconds to answer after waking up, so this is longer than a local socket
// round trip needs.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client. It adds socket detection and
// maps connection failures to ExitDockerNotRunning, so every caller reports
// a stopped daemon with the same exit code.
//
// Usage:
//
//	c, err := docker.NewClient()
//	if err != nil { /* no socket */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* daemon not answering */ }
type Client struct {
	// inner is the SDK client. It is wrapped rather than embedded so that
	// only the calls ctdeploy needs are part of this type's API.
	inner *client.Client
}

// NewClient creates a Docker client with automatic socket detection.
//
// The host is chosen in this order:
//  1. DOCKER_HOST, used as-is when set
//  2. the platform's default socket locations:
//     - Linux: /var/run/docker.sock
//     - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//     - Windows: npipe:////./pipe/docker_engine
//
// Returns a model.CLIError with ExitDockerNotRunning when no endpoint
// exists or the client cannot be created. It does not contact the daemon;
// call Ping for that.
func NewClient() (*Client, error) {
	// Step 1: an explicit DOCKER_HOST wins, including tcp:// endpoints
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		return newClientWithHost(dockerHost)
	}

	// Step 2: look for the platform's default socket
	host, err := detectDockerHost()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
	}

	return newClientWithHost(host)
}

// newClientWithHost creates a client for a Docker connection string such
// as "unix:///var/run/docker.sock" or "tcp://127.0.0.1:2375".
func newClientWithHost(host string) (*Client, error) {
	// API version negotiation lets one binary talk to old and new daemons
	// without pinning a version.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}

	return &Client{inner: c}, nil
}

// detectDockerHost returns the first Docker endpoint that exists for the
// current platform. It only checks for presence, which is fast and works
// while the daemon is still starting; Ping checks liveness.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return detectUnixSocket([]string{"/var/run/docker.sock"})

	case "darwin":
		// Docker Desktop links /var/run/docker.sock unless the user opted
		// out, in which case only the per-user socket exists.
		candidates := []string{"/var/run/docker.sock"}
		if homeDir, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, homeDir+"/.docker/run/docker.sock")
		}
		return detectUnixSocket(candidates)

	case "windows":
		// os.Stat does not work on named pipes, so dial briefly instead.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err != nil {
			return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)
		}
		conn.Close()
		return "npipe://" + pipePath, nil

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectUnixSocket returns a unix:// URI for the first path that exists.
// Paths are checked in order, most preferred first.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		// A socket file can outlive its daemon; Ping catches that case.
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v (is Docker running?)", paths)
}

// Ping verifies that the Docker daemon answers within defaultPingTimeout.
//
// Returns a model.CLIError with ExitDockerNotRunning when the daemon does
// not answer in time or answers with an error.
func (c *Client) Ping(ctx context.Context) error {
	// A paused Docker Desktop accepts the connection but never replies;
	// the timeout turns that into a clear error instead of a hang.
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker daemon is not responding (is Docker running?)",
			err,
		)
	}
	return nil
}

// ServerVersion returns the daemon's version string, e.g. "28.5.2". The
// deploy path only logs it; it is useful when a compose feature behaves
// differently across engine releases.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	v, err := c.inner.ServerVersion(ctx)
	if err != nil {
		return "", model.WrapCLIError(model.ExitDockerNotRunning, "failed to query Docker version", err)
	}
	return v.Version, nil
}

// Close releases the client's resources. Safe to call more than once.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner exposes the SDK client for calls this wrapper does not cover, such
// as the container listing in container.go.
func (c *Client) Inner() *client.Client {
	return c.inner
}
