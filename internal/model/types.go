package model

import (
	"fmt"
	"regexp"
	"time"
)

// DeploymentStatus is the aggregate state of all containers in the
// Compose project.
//
//	[Absent] → Running ⇄ Stopped
//	Running → Degraded (some containers exited)
type DeploymentStatus string

const (
	// StatusRunning indicates every container of the project is running.
	StatusRunning DeploymentStatus = "running"

	// StatusDegraded indicates at least one container runs and at least one
	// does not.
	StatusDegraded DeploymentStatus = "degraded"

	// StatusStopped indicates containers exist but none is running.
	StatusStopped DeploymentStatus = "stopped"

	// StatusAbsent indicates no container exists for the project.
	StatusAbsent DeploymentStatus = "absent"
)

// String returns the string representation of DeploymentStatus.
func (s DeploymentStatus) String() string {
	return string(s)
}

// IsValid checks whether the DeploymentStatus value is one of the
// predefined valid states.
func (s DeploymentStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusDegraded, StatusStopped, StatusAbsent:
		return true
	default:
		return false
	}
}

// HealthState mirrors the Docker health check state of a container.
// It is empty when the container defines no health check.
type HealthState string

const (
	HealthNone      HealthState = ""
	HealthStarting  HealthState = "starting"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// String returns the health state, or "-" when no health check is defined.
func (h HealthState) String() string {
	if h == HealthNone {
		return "-"
	}
	return string(h)
}

// ContainerInfo holds runtime information about a Docker container.
// This data is fetched dynamically from the Docker API, not persisted.
type ContainerInfo struct {
	// ContainerID is the unique Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name.
	ContainerName string `json:"containerName"`

	// ServiceName is the Docker Compose service name.
	ServiceName string `json:"serviceName,omitempty"`

	// State is the short Docker state ("running", "exited", "created").
	State string `json:"state"`

	// StatusText is Docker's human status line (e.g., "Up 2 minutes (healthy)").
	StatusText string `json:"statusText,omitempty"`

	// Health is parsed from StatusText.
	Health HealthState `json:"health,omitempty"`

	// Ports lists published host ports.
	Ports []int `json:"ports,omitempty"`

	// Labels is the full set of Docker labels on the container.
	Labels map[string]string `json:"labels,omitempty"`
}

// IsRunning reports whether the container's main process is running.
func (c ContainerInfo) IsRunning() bool {
	return c.State == "running"
}

// ShortID returns the first 12 characters of the container ID, the same
// abbreviation the docker CLI prints.
func (c ContainerInfo) ShortID() string {
	if len(c.ContainerID) > 12 {
		return c.ContainerID[:12]
	}
	return c.ContainerID
}

// Deployment is the observed state of the analysis service's Compose project.
type Deployment struct {
	// Project is the Compose project name.
	Project string `json:"project"`

	// RunID identifies the "up" invocation that created the containers.
	// Empty when the containers were started outside ctdeploy.
	RunID string `json:"runId,omitempty"`

	// DeployedAt is when that invocation ran. Zero when unknown.
	DeployedAt time.Time `json:"deployedAt,omitempty"`

	// Status is the aggregate container state.
	Status DeploymentStatus `json:"status"`

	// Containers holds every container of the project.
	Containers []ContainerInfo `json:"containers,omitempty"`
}

// DeployResult summarizes one "up" run.
type DeployResult struct {
	// RunID is the identifier labelled onto the containers.
	RunID string `json:"runId"`

	// URL is the address the service is expected to answer on.
	URL string `json:"url"`

	// Built is false when the image build was skipped.
	Built bool `json:"built"`

	// Deployment is the state read once after the startup delay.
	Deployment *Deployment `json:"deployment"`

	// Healthy is set only when a health wait was requested.
	Healthy *bool `json:"healthy,omitempty"`

	// Elapsed is the wall time of the whole run.
	Elapsed time.Duration `json:"elapsed"`
}

// usernameRegex follows GitHub's account name rules: alphanumerics and
// single hyphens, not starting or ending with a hyphen.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9]|-[a-zA-Z0-9])*$`)

// maxUsernameLength is GitHub's account name limit.
const maxUsernameLength = 39

// ValidateUsername checks if the given name is a valid GitHub username.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username must not be empty")
	}
	if len(name) > maxUsernameLength {
		return fmt.Errorf("invalid username %q: longer than %d characters", name, maxUsernameLength)
	}
	if !usernameRegex.MatchString(name) {
		return fmt.Errorf("invalid username %q: must contain only alphanumeric characters and single hyphens, and start/end with alphanumeric", name)
	}
	return nil
}

// projectNameRegex matches Compose project names: lowercase letters, digits,
// dashes and underscores, starting with a letter or digit.
var projectNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidateProjectName checks if the given name is usable as a Compose
// project name.
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if !projectNameRegex.MatchString(name) {
		return fmt.Errorf("invalid project name %q: must contain only lowercase letters, digits, '-' and '_', and start with a letter or digit", name)
	}
	return nil
}

// ExitCode defines the CLI exit codes. Scripts and CI systems can use them
// to tell failure causes apart.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitMissingDependency indicates a required executable is not installed.
	ExitMissingDependency ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitPortConflict indicates the service port is held by another process.
	ExitPortConflict ExitCode = 4

	// ExitGitError indicates a git operation failed.
	ExitGitError ExitCode = 5

	// ExitInvalidInput indicates a required answer or argument was empty
	// or malformed.
	ExitInvalidInput ExitCode = 6

	// ExitUserCancelled indicates the user declined or closed a prompt.
	ExitUserCancelled ExitCode = 7

	// ExitComposeFailed indicates a docker compose invocation failed.
	ExitComposeFailed ExitCode = 8

	// ExitHealthCheckFailed indicates the service did not become healthy.
	ExitHealthCheckFailed ExitCode = 9

	// ExitConfigInvalid indicates the configuration failed validation.
	ExitConfigInvalid ExitCode = 10
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
