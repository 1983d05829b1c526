package compose

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/ctdeploy/internal/config"
	"github.com/mmr-tortoise/ctdeploy/internal/docker"
)

// ErrExists is returned by Write when the file exists and force is false.
var ErrExists = errors.New("compose file already exists")

// Spec is everything Generate needs. SpecFromConfig fills it.
type Spec struct {
	Project       string
	Service       string
	Image         string
	HostPort      int
	ContainerPort int
	Address       string
	PythonPath    string
	HealthPath    string
	OutputDir     string
	LogDir        string
	// Build adds "build: ." so "compose build" uses the project's Dockerfile.
	Build bool
}

// SpecFromConfig derives the compose spec from the validated configuration.
func SpecFromConfig(cfg *config.Config) Spec {
	return Spec{
		Project:       cfg.Project,
		Service:       cfg.Service,
		Image:         cfg.Image,
		HostPort:      cfg.Port,
		ContainerPort: cfg.ContainerPort,
		Address:       cfg.Address,
		PythonPath:    cfg.PythonPath,
		HealthPath:    cfg.HealthPath,
		OutputDir:     cfg.OutputDir,
		LogDir:        cfg.LogDir,
		Build:         true,
	}
}

// File is the subset of the Compose file format ctdeploy writes and reads.
// Unknown keys in a hand-written file are ignored on Load.
type File struct {
	Name     string             `yaml:"name,omitempty"`
	Services map[string]Service `yaml:"services"`
}

// Service is one entry under "services".
type Service struct {
	Build       string            `yaml:"build,omitempty"`
	Image       string            `yaml:"image,omitempty"`
	Ports       []string          `yaml:"ports,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Healthcheck *Healthcheck      `yaml:"healthcheck,omitempty"`
	Restart     string            `yaml:"restart,omitempty"`
}

// Healthcheck mirrors the Compose healthcheck block.
type Healthcheck struct {
	Test        []string `yaml:"test"`
	Interval    string   `yaml:"interval,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty"`
	Retries     int      `yaml:"retries,omitempty"`
	StartPeriod string   `yaml:"start_period,omitempty"`
}

// Container-side mount points of the bind mounts. The app writes reports
// to /app/output and logs to /app/logs.
const (
	containerOutputDir = "/app/output"
	containerLogDir    = "/app/logs"
)

// Build returns the File for spec.
func Build(spec Spec) *File {
	svc := Service{
		Image: spec.Image,
		Ports: []string{fmt.Sprintf("%d:%d", spec.HostPort, spec.ContainerPort)},
		Environment: map[string]string{
			"STREAMLIT_SERVER_PORT":    strconv.Itoa(spec.ContainerPort),
			"STREAMLIT_SERVER_ADDRESS": spec.Address,
			"PYTHONPATH":               spec.PythonPath,
		},
		Volumes: []string{
			bindSource(spec.OutputDir) + ":" + containerOutputDir,
			bindSource(spec.LogDir) + ":" + containerLogDir,
		},
		Labels: docker.RunLabels(),
		Healthcheck: &Healthcheck{
			Test:        []string{"CMD", "curl", "-f", fmt.Sprintf("http://localhost:%d%s", spec.ContainerPort, spec.HealthPath)},
			Interval:    "30s",
			Timeout:     "10s",
			Retries:     3,
			StartPeriod: "20s",
		},
		Restart: "unless-stopped",
	}
	if spec.Build {
		svc.Build = "."
	}

	return &File{
		Name:     spec.Project,
		Services: map[string]Service{spec.Service: svc},
	}
}

// bindSource makes a relative directory explicit ("./output") so Compose
// treats it as a bind mount and not a named volume.
func bindSource(dir string) string {
	if filepath.IsAbs(dir) || strings.HasPrefix(dir, "./") || strings.HasPrefix(dir, "../") {
		return dir
	}
	return "./" + dir
}

// Generate renders spec as YAML with a header marking the file generated.
func Generate(spec Spec) ([]byte, error) {
	data, err := yaml.Marshal(Build(spec))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize compose file: %w", err)
	}

	header := fmt.Sprintf(
		"# Generated by ctdeploy for project %q.\n# Regenerate with: ctdeploy compose --force\n",
		spec.Project,
	)
	return append([]byte(header), data...), nil
}

// Write stores data at path. It refuses to replace an existing file unless
// force is set, so a hand-tuned compose file is never clobbered silently.
func Write(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Load parses a compose file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(f.Services) == 0 {
		return nil, fmt.Errorf("%s defines no services", path)
	}
	return &f, nil
}

// ServiceNames returns the service names sorted.
func (f *File) ServiceNames() []string {
	names := make([]string, 0, len(f.Services))
	for name := range f.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HostPorts returns the published host ports of a service. Short syntax
// forms "8501", "8501:8501", "127.0.0.1:8501:8501" and "8501:8501/tcp" are
// understood; entries without a host port are skipped.
func (f *File) HostPorts(service string) []int {
	svc, ok := f.Services[service]
	if !ok {
		return nil
	}

	var ports []int
	for _, p := range svc.Ports {
		p, _, _ = strings.Cut(p, "/")
		parts := strings.Split(p, ":")
		if len(parts) < 2 {
			continue
		}
		host, err := strconv.Atoi(parts[len(parts)-2])
		if err != nil {
			continue
		}
		ports = append(ports, host)
	}
	return ports
}
