// Package preflight verifies that the executables a command depends on are
// installed before that command changes anything.
//
// Lookups run in parallel; a missing required executable yields a CLIError
// with ExitMissingDependency listing every missing name, so the operator can
// install them all in one go.
package preflight

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmr-tortoise/ctdeploy/internal/docker"
	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// versionTimeout bounds each "<binary> --version" call.
const versionTimeout = 10 * time.Second

// Requirement names one executable a command needs.
type Requirement struct {
	Name        string   `json:"name"`
	Binary      string   `json:"binary"`
	VersionArgs []string `json:"-"`
	// Optional requirements are reported but never fail the check.
	Optional bool `json:"optional,omitempty"`
}

// Result is the outcome for one requirement.
type Result struct {
	Requirement
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Err     error  `json:"-"`
}

// Report collects results in requirement order.
type Report struct {
	Results []Result `json:"results"`
}

// Missing returns the required results that were not found.
func (r *Report) Missing() []Result {
	var missing []Result
	for _, res := range r.Results {
		if !res.Found && !res.Optional {
			missing = append(missing, res)
		}
	}
	return missing
}

// OK reports whether no required executable is missing.
func (r *Report) OK() bool {
	return len(r.Missing()) == 0
}

// Kind selects a predefined requirement set.
type Kind string

const (
	KindDeploy    Kind = "deploy"
	KindBootstrap Kind = "bootstrap"
	KindConfigure Kind = "configure"
)

var (
	reqDocker = Requirement{Name: "docker", Binary: "docker", VersionArgs: []string{"--version"}}
	reqGit    = Requirement{Name: "git", Binary: "git", VersionArgs: []string{"--version"}}
	// docker-compose is optional on its own: the compose plugin inside
	// docker satisfies deploys too, which DetectCompose decides.
	reqLegacyCompose = Requirement{Name: "docker-compose", Binary: "docker-compose", VersionArgs: []string{"--version"}, Optional: true}
)

// DefaultRequirements returns the executables a command kind needs.
func DefaultRequirements(kind Kind) []Requirement {
	switch kind {
	case KindDeploy:
		return []Requirement{reqDocker, reqLegacyCompose, reqGit}
	case KindBootstrap, KindConfigure:
		return []Requirement{reqGit}
	default:
		return nil
	}
}

// LookPathFunc resolves an executable name to a path.
type LookPathFunc func(file string) (string, error)

// RunFunc runs a binary and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Checker resolves requirements. Both hooks default to the real os/exec
// behavior and exist so tests can simulate a bare host.
type Checker struct {
	lookPath LookPathFunc
	run      RunFunc
}

// Option configures a Checker.
type Option func(*Checker)

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn LookPathFunc) Option {
	return func(c *Checker) { c.lookPath = fn }
}

// WithRun replaces process execution for version checks.
func WithRun(fn RunFunc) Option {
	return func(c *Checker) { c.run = fn }
}

// NewChecker creates a Checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		lookPath: exec.LookPath,
		run:      runCombined,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- binaries come from the fixed requirement sets
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Check resolves every requirement concurrently. The report is returned
// even when the error is non-nil.
func (c *Checker) Check(ctx context.Context, reqs []Requirement) (*Report, error) {
	report := &Report{Results: make([]Result, len(reqs))}

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req // per-iteration copies (go directive is 1.21)
		g.Go(func() error {
			report.Results[i] = c.resolve(gctx, req)
			return nil
		})
	}
	// Goroutines never return errors; each records its own result.
	_ = g.Wait()

	if missing := report.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = m.Binary
		}
		return report, model.NewCLIError(model.ExitMissingDependency,
			fmt.Sprintf("required executable(s) not found in PATH: %s", strings.Join(names, ", ")))
	}

	return report, nil
}

func (c *Checker) resolve(ctx context.Context, req Requirement) Result {
	res := Result{Requirement: req}

	path, err := c.lookPath(req.Binary)
	if err != nil {
		res.Err = err
		return res
	}
	res.Found = true
	res.Path = path

	if len(req.VersionArgs) > 0 {
		vctx, cancel := context.WithTimeout(ctx, versionTimeout)
		defer cancel()
		if out, err := c.run(vctx, path, req.VersionArgs...); err == nil {
			res.Version = firstLine(out)
		}
	}
	return res
}

func firstLine(out []byte) string {
	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte("\n"))
	return string(bytes.TrimSpace(line))
}

// DetectCompose picks the compose flavor: the docker plugin when
// "docker compose version" succeeds, else a docker-compose binary in PATH.
func (c *Checker) DetectCompose(ctx context.Context) (docker.ComposeCommand, error) {
	if _, err := c.lookPath(docker.PluginCompose.Binary); err == nil {
		vctx, cancel := context.WithTimeout(ctx, versionTimeout)
		args := append(append([]string{}, docker.PluginCompose.Args...), "version")
		_, err := c.run(vctx, docker.PluginCompose.Binary, args...)
		cancel()
		if err == nil {
			return docker.PluginCompose, nil
		}
	}

	if path, err := c.lookPath(docker.LegacyCompose.Binary); err == nil {
		return docker.ComposeCommand{Binary: path}, nil
	}
	return docker.ComposeCommand{}, model.NewCLIError(model.ExitMissingDependency,
		"neither the docker compose plugin nor docker-compose is installed")
}
