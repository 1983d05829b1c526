// Package config builds the validated configuration that every ctdeploy
// command receives.
//
// Values are layered: built-in defaults, then an optional config file
// (ctdeploy.yaml or ctdeploy.json), then environment variables. The CLI
// applies explicitly set flags on top and calls Validate before running.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
	"github.com/mmr-tortoise/ctdeploy/internal/page"
)

// DefaultFileNames are tried in order inside the project directory when no
// explicit config path is given.
var DefaultFileNames = []string{"ctdeploy.yaml", "ctdeploy.yml", "ctdeploy.json", "ctdeploy.jsonc"}

// Config is the complete set of knobs for preflight, bootstrap, configure
// and the container lifecycle.
type Config struct {
	// ProjectDir is the repository root holding the compose file and the page.
	ProjectDir string `json:"projectDir" validate:"required"`

	// Project is the Compose project name.
	Project string `json:"project" validate:"required,slug"`

	// Service is the Compose service running the analysis app.
	Service string `json:"service" validate:"required,slug"`

	// Image is the image tag built and run for the service.
	Image string `json:"image" validate:"required"`

	// ComposeFile is relative to ProjectDir.
	ComposeFile string `json:"composeFile" validate:"required"`

	// Port is the published host port (STREAMLIT_SERVER_PORT).
	Port int `json:"port" validate:"min=1,max=65535"`

	// ContainerPort is the port the app listens on inside the container.
	ContainerPort int `json:"containerPort" validate:"min=1,max=65535"`

	// Address is the bind address inside the container (STREAMLIT_SERVER_ADDRESS).
	Address string `json:"address" validate:"required,ip"`

	// PythonPath becomes the container PYTHONPATH. It is read from
	// CTDEPLOY_PYTHONPATH so the host interpreter path never leaks in.
	PythonPath string `json:"pythonPath" validate:"required"`

	// HealthPath is the service's readiness endpoint.
	HealthPath string `json:"healthPath" validate:"required,startswith=/"`

	// OutputDir and LogDir are bind-mounted into the container.
	OutputDir string `json:"outputDir" validate:"required"`
	LogDir    string `json:"logDir" validate:"required"`

	StartupDelay   time.Duration `json:"startupDelay" validate:"gte=0"`
	HealthTimeout  time.Duration `json:"healthTimeout" validate:"gt=0"`
	HealthInterval time.Duration `json:"healthInterval" validate:"gt=0"`

	// Username is the GitHub account substituted into the landing page.
	Username string `json:"username,omitempty" validate:"omitempty,ghuser"`

	Repo           string `json:"repo" validate:"required"`
	Remote         string `json:"remote" validate:"required"`
	PrimaryBranch  string `json:"primaryBranch" validate:"required"`
	FallbackBranch string `json:"fallbackBranch" validate:"required,nefield=PrimaryBranch"`
	CommitMessage  string `json:"commitMessage" validate:"required"`

	// PagePath is relative to ProjectDir.
	PagePath    string `json:"pagePath" validate:"required"`
	Placeholder string `json:"placeholder" validate:"required"`

	LogLevel string `json:"logLevel" validate:"oneof=trace debug info warn error"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		ProjectDir:     ".",
		Project:        "medical-ct-analysis",
		Service:        "ct-analysis",
		Image:          "medical-ct-analysis:latest",
		ComposeFile:    "docker-compose.yml",
		Port:           8501,
		ContainerPort:  8501,
		Address:        "0.0.0.0",
		PythonPath:     "/app",
		HealthPath:     "/_stcore/health",
		OutputDir:      "output",
		LogDir:         "logs",
		StartupDelay:   10 * time.Second,
		HealthTimeout:  60 * time.Second,
		HealthInterval: 2 * time.Second,
		Repo:           "medical-ct-analysis",
		Remote:         "origin",
		PrimaryBranch:  "main",
		FallbackBranch: "master",
		CommitMessage:  "Initial commit: Medical Image CT Analysis System",
		PagePath:       "index.html",
		Placeholder:    page.DefaultPlaceholder,
		LogLevel:       "info",
	}
}

// LoadOptions controls where Load looks for values.
type LoadOptions struct {
	// ProjectDir overrides the default project directory before the file
	// lookup, so the file is searched where the project lives.
	ProjectDir string

	// Path is an explicit config file. A missing explicit file is an error;
	// a missing default file is not.
	Path string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds a Config from defaults, the config file, and the environment.
// It does not validate; call Validate once flags have been applied.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()
	if opts.ProjectDir != "" {
		cfg.ProjectDir = opts.ProjectDir
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	path := opts.Path
	if path == "" {
		path = findDefaultFile(cfg.ProjectDir)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, model.WrapCLIError(model.ExitConfigInvalid,
				fmt.Sprintf("failed to load config file %s", path), err)
		}
	}

	if err := cfg.mergeEnv(getenv); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid environment", err)
	}

	return cfg, nil
}

func findDefaultFile(dir string) string {
	for _, name := range DefaultFileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// fileConfig is the on-disk shape. Durations are strings ("10s") so that
// YAML and JSON files read the same way; zero values mean "not set".
type fileConfig struct {
	Project        string `yaml:"project" json:"project"`
	Service        string `yaml:"service" json:"service"`
	Image          string `yaml:"image" json:"image"`
	ComposeFile    string `yaml:"composeFile" json:"composeFile"`
	Port           int    `yaml:"port" json:"port"`
	ContainerPort  int    `yaml:"containerPort" json:"containerPort"`
	Address        string `yaml:"address" json:"address"`
	PythonPath     string `yaml:"pythonPath" json:"pythonPath"`
	HealthPath     string `yaml:"healthPath" json:"healthPath"`
	OutputDir      string `yaml:"outputDir" json:"outputDir"`
	LogDir         string `yaml:"logDir" json:"logDir"`
	StartupDelay   string `yaml:"startupDelay" json:"startupDelay"`
	HealthTimeout  string `yaml:"healthTimeout" json:"healthTimeout"`
	HealthInterval string `yaml:"healthInterval" json:"healthInterval"`
	Username       string `yaml:"username" json:"username"`
	Repo           string `yaml:"repo" json:"repo"`
	Remote         string `yaml:"remote" json:"remote"`
	PrimaryBranch  string `yaml:"primaryBranch" json:"primaryBranch"`
	FallbackBranch string `yaml:"fallbackBranch" json:"fallbackBranch"`
	CommitMessage  string `yaml:"commitMessage" json:"commitMessage"`
	PagePath       string `yaml:"pagePath" json:"pagePath"`
	Placeholder    string `yaml:"placeholder" json:"placeholder"`
	LogLevel       string `yaml:"logLevel" json:"logLevel"`
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// Comments and trailing commas are allowed.
		if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
			return fmt.Errorf("parse JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("parse YAML: %w", err)
		}
	}

	setString(&c.Project, fc.Project)
	setString(&c.Service, fc.Service)
	setString(&c.Image, fc.Image)
	setString(&c.ComposeFile, fc.ComposeFile)
	setInt(&c.Port, fc.Port)
	setInt(&c.ContainerPort, fc.ContainerPort)
	setString(&c.Address, fc.Address)
	setString(&c.PythonPath, fc.PythonPath)
	setString(&c.HealthPath, fc.HealthPath)
	setString(&c.OutputDir, fc.OutputDir)
	setString(&c.LogDir, fc.LogDir)
	setString(&c.Username, fc.Username)
	setString(&c.Repo, fc.Repo)
	setString(&c.Remote, fc.Remote)
	setString(&c.PrimaryBranch, fc.PrimaryBranch)
	setString(&c.FallbackBranch, fc.FallbackBranch)
	setString(&c.CommitMessage, fc.CommitMessage)
	setString(&c.PagePath, fc.PagePath)
	setString(&c.Placeholder, fc.Placeholder)
	setString(&c.LogLevel, fc.LogLevel)

	return errors.Join(
		setDuration(&c.StartupDelay, "startupDelay", fc.StartupDelay),
		setDuration(&c.HealthTimeout, "healthTimeout", fc.HealthTimeout),
		setDuration(&c.HealthInterval, "healthInterval", fc.HealthInterval),
	)
}

func (c *Config) mergeEnv(getenv func(string) string) error {
	setString(&c.Project, getenv("CTDEPLOY_PROJECT"))
	setString(&c.Image, getenv("CTDEPLOY_IMAGE"))
	setString(&c.Address, getenv("STREAMLIT_SERVER_ADDRESS"))
	setString(&c.PythonPath, getenv("CTDEPLOY_PYTHONPATH"))
	setString(&c.Username, getenv("CTDEPLOY_USERNAME"))
	setString(&c.LogLevel, strings.ToLower(getenv("CTDEPLOY_LOG_LEVEL")))

	var errs []error
	if v := getenv("STREAMLIT_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("STREAMLIT_SERVER_PORT: %q is not a number", v))
		} else {
			c.Port = port
		}
	}
	errs = append(errs,
		setDuration(&c.StartupDelay, "CTDEPLOY_STARTUP_DELAY", getenv("CTDEPLOY_STARTUP_DELAY")),
		setDuration(&c.HealthTimeout, "CTDEPLOY_HEALTH_TIMEOUT", getenv("CTDEPLOY_HEALTH_TIMEOUT")),
	)
	return errors.Join(errs...)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

var validate = validator.New()

func init() {
	if err := validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return model.ValidateProjectName(fl.Field().String()) == nil
	}); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("ghuser", func(fl validator.FieldLevel) bool {
		return model.ValidateUsername(fl.Field().String()) == nil
	}); err != nil {
		panic(err)
	}
}

// Validate checks every field and reports all violations at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid configuration", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s fails %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}
	return model.NewCLIError(model.ExitConfigInvalid,
		"invalid configuration: "+strings.Join(msgs, "; "))
}

// Resolve joins a project-relative path with ProjectDir. Absolute paths are
// returned unchanged.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}

// ComposePath is the absolute-or-relative path of the compose file.
func (c *Config) ComposePath() string { return c.Resolve(c.ComposeFile) }

// PageFile is the path of the landing page to template.
func (c *Config) PageFile() string { return c.Resolve(c.PagePath) }

// LogPath is the host directory bind-mounted as the container's logs.
func (c *Config) LogPath() string { return c.Resolve(c.LogDir) }

// OutputPath is the host directory bind-mounted as the container's output.
func (c *Config) OutputPath() string { return c.Resolve(c.OutputDir) }

// ServiceURL is where the published service answers from the host.
func (c *Config) ServiceURL() string {
	return "http://" + net.JoinHostPort("localhost", strconv.Itoa(c.Port))
}

// RemoteURL is the GitHub HTTPS URL for the configured username and repo.
func (c *Config) RemoteURL() string {
	return fmt.Sprintf("https://github.com/%s/%s.git", c.Username, c.Repo)
}
