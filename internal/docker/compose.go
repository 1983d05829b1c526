// compose.go runs docker compose as a child process. The SDK has no Compose
// API, so the lifecycle verbs shell out the same way a user would.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// ComposeCommand is how compose is invoked on this host: either the
// "docker compose" plugin or the legacy standalone "docker-compose".
type ComposeCommand struct {
	// Binary is the executable name or path.
	Binary string `json:"binary"`

	// Args precede every compose subcommand ("compose" for the plugin).
	Args []string `json:"args,omitempty"`
}

// PluginCompose is the "docker compose" plugin invocation.
var PluginCompose = ComposeCommand{Binary: "docker", Args: []string{"compose"}}

// LegacyCompose is the standalone docker-compose v1 binary.
var LegacyCompose = ComposeCommand{Binary: "docker-compose"}

// String renders the command the way a user would type it.
func (c ComposeCommand) String() string {
	return strings.Join(append([]string{c.Binary}, c.Args...), " ")
}

// maxErrorOutput caps how much compose output is copied into an error.
const maxErrorOutput = 2048

// Compose drives one Compose project.
type Compose struct {
	// Command selects plugin or legacy compose. Zero value means plugin.
	Command ComposeCommand

	// ProjectDir is the working directory; relative paths in the compose
	// file (build context, bind mounts) resolve against it.
	ProjectDir string

	// ProjectName is passed with -p so every verb targets the same project.
	ProjectName string

	// Files are passed with -f in order. Empty means compose's default lookup.
	Files []string

	// Output, when set, receives compose's combined output as it runs.
	Output io.Writer
}

// Down stops and removes the project's containers and networks, and its
// volumes when removeVolumes is set.
func (c *Compose) Down(ctx context.Context, removeVolumes bool) error {
	args := []string{"down", "--remove-orphans"}
	if removeVolumes {
		args = append(args, "-v")
	}
	return c.run(ctx, args, nil)
}

// Build rebuilds the service images.
func (c *Compose) Build(ctx context.Context) error {
	return c.run(ctx, []string{"build"}, nil)
}

// Up starts the project detached. env is added to the compose process so
// that ${VAR} interpolation in the compose file picks it up.
func (c *Compose) Up(ctx context.Context, env map[string]string) error {
	return c.run(ctx, []string{"up", "-d"}, env)
}

// Stop stops containers without removing them.
func (c *Compose) Stop(ctx context.Context) error {
	return c.run(ctx, []string{"stop"}, nil)
}

// Args returns the full argument list for a subcommand, without the binary.
func (c *Compose) Args(sub ...string) []string {
	cmd := c.command()
	args := make([]string, 0, len(cmd.Args)+len(c.Files)*2+2+len(sub))
	args = append(args, cmd.Args...)
	for _, f := range c.Files {
		args = append(args, "-f", f)
	}
	if c.ProjectName != "" {
		args = append(args, "-p", c.ProjectName)
	}
	return append(args, sub...)
}

func (c *Compose) command() ComposeCommand {
	if c.Command.Binary == "" {
		return PluginCompose
	}
	return c.Command
}

func (c *Compose) run(ctx context.Context, sub []string, env map[string]string) error {
	args := c.Args(sub...)
	// #nosec G204 -- the binary comes from preflight detection, not user input
	cmd := exec.CommandContext(ctx, c.command().Binary, args...)
	cmd.Dir = c.ProjectDir

	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var buf bytes.Buffer
	if c.Output != nil {
		cmd.Stdout = io.MultiWriter(&buf, c.Output)
	} else {
		cmd.Stdout = &buf
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Run(); err != nil {
		return model.WrapCLIError(
			model.ExitComposeFailed,
			fmt.Sprintf("%s %s failed: %s", c.command(), strings.Join(sub, " "), tail(buf.String(), maxErrorOutput)),
			err,
		)
	}
	return nil
}

// tail keeps the last n bytes of s, trimmed. Build failures put the useful
// part at the end.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
