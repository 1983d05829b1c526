package compose

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/ctdeploy/internal/config"
	"github.com/mmr-tortoise/ctdeploy/internal/docker"
)

func defaultSpec() Spec {
	return SpecFromConfig(config.Default())
}

func TestGenerate_DefaultService(t *testing.T) {
	data, err := Generate(defaultSpec())
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# Generated by ctdeploy"))

	path := filepath.Join(t.TempDir(), "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "medical-ct-analysis", f.Name)
	require.Equal(t, []string{"ct-analysis"}, f.ServiceNames())

	svc := f.Services["ct-analysis"]
	assert.Equal(t, ".", svc.Build)
	assert.Equal(t, "medical-ct-analysis:latest", svc.Image)
	assert.Equal(t, []string{"8501:8501"}, svc.Ports)
	assert.Equal(t, "8501", svc.Environment["STREAMLIT_SERVER_PORT"])
	assert.Equal(t, "0.0.0.0", svc.Environment["STREAMLIT_SERVER_ADDRESS"])
	assert.Equal(t, "/app", svc.Environment["PYTHONPATH"])
	assert.Equal(t, []string{"./output:/app/output", "./logs:/app/logs"}, svc.Volumes)
	assert.Equal(t, "unless-stopped", svc.Restart)

	require.NotNil(t, svc.Healthcheck)
	assert.Equal(t, []string{"CMD", "curl", "-f", "http://localhost:8501/_stcore/health"}, svc.Healthcheck.Test)
	assert.Equal(t, 3, svc.Healthcheck.Retries)

	assert.Equal(t, docker.RunLabels(), svc.Labels)
}

func TestGenerate_CustomPorts(t *testing.T) {
	spec := defaultSpec()
	spec.HostPort = 9000
	spec.ContainerPort = 8502
	spec.OutputDir = "/data/out"
	spec.Build = false

	f := Build(spec)
	svc := f.Services[spec.Service]

	assert.Empty(t, svc.Build)
	assert.Equal(t, []string{"9000:8502"}, svc.Ports)
	assert.Equal(t, "8502", svc.Environment["STREAMLIT_SERVER_PORT"])
	assert.Equal(t, "/data/out:/app/output", svc.Volumes[0])
	assert.Contains(t, svc.Healthcheck.Test, "http://localhost:8502/_stcore/health")
	assert.Equal(t, []int{9000}, f.HostPorts(spec.Service))
}

func TestWrite_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte("services: {}\n"), 0644))

	err := Write(path, []byte("new"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists))

	require.NoError(t, Write(path, []byte("new"), true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestWrite_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy", "docker-compose.yml")
	require.NoError(t, Write(path, []byte("x"), false))
	assert.FileExists(t, path)
}

func TestLoad_NoServices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docker-compose.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: empty\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestHostPorts(t *testing.T) {
	f := &File{Services: map[string]Service{
		"app": {Ports: []string{"8501", "8501:8501", "127.0.0.1:9000:8501", "7000:7000/tcp", "bad:8501"}},
	}}

	assert.Equal(t, []int{8501, 9000, 7000}, f.HostPorts("app"))
	assert.Nil(t, f.HostPorts("missing"))
}

func TestBindSource(t *testing.T) {
	assert.Equal(t, "./output", bindSource("output"))
	assert.Equal(t, "./output", bindSource("./output"))
	assert.Equal(t, "../shared", bindSource("../shared"))
	assert.Equal(t, "/abs", bindSource("/abs"))
}
