package docker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// fakeCompose writes a shell script that records its arguments and the run
// ID environment variable, then exits with the given code.
func fakeCompose(t *testing.T, exitCode int) (binary, logFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compose binary is a POSIX shell script")
	}

	dir := t.TempDir()
	logFile = filepath.Join(dir, "calls.log")
	binary = filepath.Join(dir, "docker-compose")

	script := "#!/bin/sh\n" +
		"echo \"$* run=${CTDEPLOY_RUN_ID}\" >> " + logFile + "\n" +
		"echo \"compose says hello\"\n"
	if exitCode != 0 {
		script += "echo \"no such service\" >&2\nexit " + string(rune('0'+exitCode)) + "\n"
	}
	require.NoError(t, os.WriteFile(binary, []byte(script), 0o755))
	return binary, logFile
}

func readCalls(t *testing.T, logFile string) []string {
	t.Helper()
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestComposeArgs(t *testing.T) {
	c := &Compose{
		ProjectName: "medical-ct-analysis",
		Files:       []string{"docker-compose.yml", "docker-compose.prod.yml"},
	}

	assert.Equal(t,
		[]string{"compose", "-f", "docker-compose.yml", "-f", "docker-compose.prod.yml", "-p", "medical-ct-analysis", "up", "-d"},
		c.Args("up", "-d"))

	legacy := &Compose{Command: LegacyCompose, ProjectName: "p"}
	assert.Equal(t, []string{"-p", "p", "build"}, legacy.Args("build"))
}

func TestComposeCommandString(t *testing.T) {
	assert.Equal(t, "docker compose", PluginCompose.String())
	assert.Equal(t, "docker-compose", LegacyCompose.String())
}

func TestComposeLifecycle(t *testing.T) {
	binary, logFile := fakeCompose(t, 0)
	var out bytes.Buffer

	c := &Compose{
		Command:     ComposeCommand{Binary: binary},
		ProjectDir:  t.TempDir(),
		ProjectName: "ct",
		Output:      &out,
	}
	ctx := context.Background()

	require.NoError(t, c.Down(ctx, true))
	require.NoError(t, c.Build(ctx))
	require.NoError(t, c.Up(ctx, map[string]string{EnvRunID: "run-42"}))
	require.NoError(t, c.Stop(ctx))

	calls := readCalls(t, logFile)
	require.Len(t, calls, 4)
	assert.Equal(t, "-p ct down --remove-orphans -v run=", calls[0])
	assert.Equal(t, "-p ct build run=", calls[1])
	assert.Equal(t, "-p ct up -d run=run-42", calls[2])
	assert.Equal(t, "-p ct stop run=", calls[3])

	assert.Contains(t, out.String(), "compose says hello")
}

func TestComposeFailure(t *testing.T) {
	binary, _ := fakeCompose(t, 3)

	c := &Compose{Command: ComposeCommand{Binary: binary}, ProjectDir: t.TempDir(), ProjectName: "ct"}
	err := c.Build(context.Background())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitComposeFailed, cliErr.Code)
	assert.Contains(t, cliErr.Message, "no such service")
	assert.Contains(t, cliErr.Message, "build")
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short \n", 10))
	assert.Equal(t, "...6789", tail("0123456789", 4))
}
