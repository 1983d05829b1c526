package repo

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// Manager runs git commands. The zero value is not usable; call NewManager.
type Manager struct {
	// binary is the git executable, "git" unless overridden for tests.
	binary string
}

// NewManager creates a Manager that uses the git found in PATH.
func NewManager() *Manager {
	return &Manager{binary: "git"}
}

// BootstrapResult reports what Bootstrap changed.
type BootstrapResult struct {
	// Initialized is true when the directory was not yet a repository.
	Initialized bool `json:"initialized"`

	// Committed is true when staged changes were committed.
	Committed bool `json:"committed"`

	// Commit is the HEAD commit after the run; empty on an unborn branch.
	Commit string `json:"commit,omitempty"`
}

// Bootstrap makes dir a repository with everything committed:
//  1. git init, unless dir already is inside a work tree
//  2. git add -A
//  3. git commit -m message, only when something is staged
//
// A second run on an unchanged tree succeeds and commits nothing.
func (m *Manager) Bootstrap(dir, message string) (*BootstrapResult, error) {
	result := &BootstrapResult{}

	// Step 1: create the repository unless dir already is its root
	if !m.IsRepo(dir) {
		if err := m.Init(dir); err != nil {
			return nil, err
		}
		result.Initialized = true
	}

	// Step 2: stage everything, deletions included
	if err := m.AddAll(dir); err != nil {
		return nil, err
	}

	// Step 3: commit only when the index differs from HEAD
	staged, err := m.HasStagedChanges(dir)
	if err != nil {
		return nil, err
	}
	if staged {
		if err := m.Commit(dir, message); err != nil {
			return nil, err
		}
		result.Committed = true
	}

	// An unborn branch has no HEAD yet; leave Commit empty
	if sha, err := m.HeadCommit(dir); err == nil {
		result.Commit = sha
	}

	return result, nil
}

// IsRepo reports whether dir is the top level of a Git work tree. A
// directory nested inside some other repository is not one: bootstrapping
// it must create its own repository instead of committing the parent tree.
func (m *Manager) IsRepo(dir string) bool {
	out, err := m.run(context.Background(), dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return false
	}
	return samePath(strings.TrimSpace(out), dir)
}

// samePath compares two directories after resolving symlinks, so /tmp and
// /private/tmp style aliases match.
func samePath(a, b string) bool {
	ra, err := resolvePath(a)
	if err != nil {
		return false
	}
	rb, err := resolvePath(b)
	if err != nil {
		return false
	}
	return ra == rb
}

func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// Init creates an empty repository in dir.
func (m *Manager) Init(dir string) error {
	_, err := m.run(context.Background(), dir, "init")
	return err
}

// AddAll stages every change in the work tree, including deletions.
func (m *Manager) AddAll(dir string) error {
	_, err := m.run(context.Background(), dir, "add", "-A")
	return err
}

// HasStagedChanges reports whether the index differs from HEAD. On an
// unborn branch any staged file counts.
func (m *Manager) HasStagedChanges(dir string) (bool, error) {
	_, err := m.run(context.Background(), dir, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}

	// "git diff --quiet" exits 1 when there are differences; anything else
	// is a real failure.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, err
}

// Commit records the index with the given message.
func (m *Manager) Commit(dir, message string) error {
	_, err := m.run(context.Background(), dir, "commit", "-m", message)
	return err
}

// HeadCommit returns the full SHA of HEAD.
func (m *Manager) HeadCommit(dir string) (string, error) {
	out, err := m.run(context.Background(), dir, "rev-parse", "--verify", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the short name of the checked-out branch, or "HEAD"
// when detached.
func (m *Manager) CurrentBranch(dir string) (string, error) {
	out, err := m.run(context.Background(), dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RenameBranch renames the current branch, overwriting an existing one of
// the same name (git branch -M).
func (m *Manager) RenameBranch(dir, name string) error {
	_, err := m.run(context.Background(), dir, "branch", "-M", name)
	return err
}

// RemoteURL returns the fetch URL of a remote.
func (m *Manager) RemoteURL(dir, name string) (string, error) {
	out, err := m.run(context.Background(), dir, "remote", "get-url", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SetRemote adds the remote, or updates its URL when it already exists.
// Running it twice with the same URL leaves one remote entry.
func (m *Manager) SetRemote(dir, name, url string) error {
	// An existing remote is repointed rather than re-added
	if _, err := m.RemoteURL(dir, name); err == nil {
		_, err := m.run(context.Background(), dir, "remote", "set-url", name, url)
		return err
	}
	_, err := m.run(context.Background(), dir, "remote", "add", name, url)
	return err
}

// Push pushes HEAD to branch on remote and sets it as upstream. The
// refspec names the destination explicitly so the local branch name does
// not have to match.
func (m *Manager) Push(ctx context.Context, dir, remote, branch string) error {
	_, err := m.run(ctx, dir, "push", "-u", remote, "HEAD:refs/heads/"+branch)
	return err
}

// PushWithFallback pushes HEAD to primary; if that fails it makes exactly
// one more attempt against fallback. It returns the branch that accepted
// the push. When both fail, the error carries both git messages.
func (m *Manager) PushWithFallback(ctx context.Context, dir, remote, primary, fallback string) (string, error) {
	// Try the primary branch first
	primaryErr := m.Push(ctx, dir, remote, primary)
	if primaryErr == nil {
		return primary, nil
	}

	// A cancelled context would fail the fallback too; report the first error
	if ctx.Err() != nil {
		return "", primaryErr
	}

	// Exactly one more attempt
	fallbackErr := m.Push(ctx, dir, remote, fallback)
	if fallbackErr == nil {
		return fallback, nil
	}

	return "", model.WrapCLIError(model.ExitGitError,
		fmt.Sprintf("push to %s failed for both %q and %q", remote, primary, fallback),
		errors.Join(primaryErr, fallbackErr))
}

// run executes git -C dir args... and returns stdout. Failures become a
// CLIError with ExitGitError whose message includes git's stderr; the
// underlying *exec.ExitError stays reachable through errors.As.
func (m *Manager) run(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 -- args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, m.binary, fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Execute and fold stderr into the error message
	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return stdout.String(), nil
}
