package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
	"github.com/mmr-tortoise/ctdeploy/internal/page"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(LoadOptions{ProjectDir: dir, Getenv: envMap(nil)})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectDir)
	assert.Equal(t, 8501, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Address)
	assert.Equal(t, "/app", cfg.PythonPath)
	assert.Equal(t, page.DefaultPlaceholder, cfg.Placeholder)
	assert.Equal(t, "/_stcore/health", cfg.HealthPath)
	assert.Equal(t, 10*time.Second, cfg.StartupDelay)
	assert.Equal(t, "main", cfg.PrimaryBranch)
	assert.Equal(t, "master", cfg.FallbackBranch)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_StreamlitEnvironment(t *testing.T) {
	cfg, err := Load(LoadOptions{
		ProjectDir: t.TempDir(),
		Getenv: envMap(map[string]string{
			"STREAMLIT_SERVER_PORT":    "9000",
			"STREAMLIT_SERVER_ADDRESS": "127.0.0.1",
			"CTDEPLOY_PYTHONPATH":      "/srv/app",
			"CTDEPLOY_USERNAME":        "octocat",
			"CTDEPLOY_STARTUP_DELAY":   "3s",
			"CTDEPLOY_LOG_LEVEL":       "DEBUG",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Address)
	assert.Equal(t, "/srv/app", cfg.PythonPath)
	assert.Equal(t, "octocat", cfg.Username)
	assert.Equal(t, 3*time.Second, cfg.StartupDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_IgnoresHostPythonPath(t *testing.T) {
	cfg, err := Load(LoadOptions{
		ProjectDir: t.TempDir(),
		Getenv:     envMap(map[string]string{"PYTHONPATH": "/usr/lib/python3/dist-packages"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "/app", cfg.PythonPath)
}

func TestLoad_BadEnvironment(t *testing.T) {
	_, err := Load(LoadOptions{
		ProjectDir: t.TempDir(),
		Getenv: envMap(map[string]string{
			"STREAMLIT_SERVER_PORT":   "eighty",
			"CTDEPLOY_HEALTH_TIMEOUT": "soon",
		}),
	})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigInvalid, cliErr.Code)
	assert.Contains(t, err.Error(), "STREAMLIT_SERVER_PORT")
	assert.Contains(t, err.Error(), "CTDEPLOY_HEALTH_TIMEOUT")
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	content := `project: ct-staging
port: 8600
startupDelay: 5s
username: octocat
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ctdeploy.yaml"), []byte(content), 0644))

	cfg, err := Load(LoadOptions{ProjectDir: dir, Getenv: envMap(nil)})
	require.NoError(t, err)

	assert.Equal(t, "ct-staging", cfg.Project)
	assert.Equal(t, 8600, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.StartupDelay)
	assert.Equal(t, "octocat", cfg.Username)
	// Unset keys keep their defaults.
	assert.Equal(t, "ct-analysis", cfg.Service)
}

func TestLoad_JSONCFile(t *testing.T) {
	dir := t.TempDir()
	content := `{
  // staging overrides
  "project": "ct-json",
  "healthTimeout": "2m", /* generous */
}`
	path := filepath.Join(dir, "custom.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(LoadOptions{ProjectDir: dir, Path: path, Getenv: envMap(nil)})
	require.NoError(t, err)

	assert.Equal(t, "ct-json", cfg.Project)
	assert.Equal(t, 2*time.Minute, cfg.HealthTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ctdeploy.yml"), []byte("port: 8600\n"), 0644))

	cfg, err := Load(LoadOptions{
		ProjectDir: dir,
		Getenv:     envMap(map[string]string{"STREAMLIT_SERVER_PORT": "8700"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 8700, cfg.Port)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ProjectDir: t.TempDir(),
		Path:       filepath.Join(t.TempDir(), "nope.yaml"),
		Getenv:     envMap(nil),
	})
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ctdeploy.yaml"), []byte("port: [\n"), 0644))

	_, err := Load(LoadOptions{ProjectDir: dir, Getenv: envMap(nil)})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }, "Port"},
		{"bad project name", func(c *Config) { c.Project = "Bad Name" }, "Project"},
		{"bad address", func(c *Config) { c.Address = "not-an-ip" }, "Address"},
		{"relative health path", func(c *Config) { c.HealthPath = "_stcore/health" }, "HealthPath"},
		{"bad username", func(c *Config) { c.Username = "-nope" }, "Username"},
		{"same branches", func(c *Config) { c.FallbackBranch = c.PrimaryBranch }, "FallbackBranch"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"zero health interval", func(c *Config) { c.HealthInterval = 0 }, "HealthInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cliErr *model.CLIError
			require.True(t, errors.As(err, &cliErr))
			assert.Equal(t, model.ExitConfigInvalid, cliErr.Code)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_CustomTags(t *testing.T) {
	cfg := Default()
	cfg.Project = "Bad Name"
	cfg.Username = "-nope"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Project fails slug")
	assert.Contains(t, err.Error(), "Username fails ghuser")
}

func TestValidate_EmptyUsernameAllowed(t *testing.T) {
	cfg := Default()
	cfg.Username = ""
	assert.NoError(t, cfg.Validate())
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.ProjectDir = "/srv/ct"
	cfg.Username = "octocat"

	assert.Equal(t, "/srv/ct/docker-compose.yml", cfg.ComposePath())
	assert.Equal(t, "/srv/ct/index.html", cfg.PageFile())
	assert.Equal(t, "/srv/ct/logs", cfg.LogPath())
	assert.Equal(t, "/srv/ct/output", cfg.OutputPath())
	assert.Equal(t, "http://localhost:8501", cfg.ServiceURL())
	assert.Equal(t, "https://github.com/octocat/medical-ct-analysis.git", cfg.RemoteURL())

	cfg.LogDir = "/var/log/ct"
	assert.Equal(t, "/var/log/ct", cfg.LogPath())
}
