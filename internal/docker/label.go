package docker

import (
	"time"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

// Label keys written into the generated compose file. Compose itself adds
// com.docker.compose.* labels; ours are namespaced under "ctdeploy.".
const (
	LabelPrefix = "ctdeploy."

	// LabelManagedBy marks containers whose compose file ctdeploy generated.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelRunID carries the uuid of the "up" run that created the container.
	LabelRunID = LabelPrefix + "run-id"

	// LabelDeployedAt carries the RFC3339 start time of that run.
	LabelDeployedAt = LabelPrefix + "deployed-at"
)

// ManagedByValue is the value of LabelManagedBy.
const ManagedByValue = "ctdeploy"

// Compose's own labels, used to find and describe project containers.
const (
	ComposeProjectLabel = "com.docker.compose.project"
	ComposeServiceLabel = "com.docker.compose.service"
)

// Environment variables the generated compose file interpolates into the
// run labels. Deploy sets them on the "up" invocation.
const (
	EnvRunID      = "CTDEPLOY_RUN_ID"
	EnvDeployedAt = "CTDEPLOY_DEPLOYED_AT"
)

// UnknownLabelValue is what the compose file falls back to when a container
// is started by plain "docker compose up" instead of ctdeploy.
const UnknownLabelValue = "manual"

// RunLabels returns the compose-file label block, with run values taken
// from the environment at "up" time.
func RunLabels() map[string]string {
	return map[string]string{
		LabelManagedBy:  ManagedByValue,
		LabelRunID:      "${" + EnvRunID + ":-" + UnknownLabelValue + "}",
		LabelDeployedAt: "${" + EnvDeployedAt + ":-" + UnknownLabelValue + "}",
	}
}

// RunEnv returns the environment that fills RunLabels for one run.
func RunEnv(runID string, at time.Time) map[string]string {
	return map[string]string{
		EnvRunID:      runID,
		EnvDeployedAt: at.UTC().Format(time.RFC3339),
	}
}

// ParseRunLabels extracts the run ID and time from container labels.
// Missing, "manual", or malformed values yield zero values.
func ParseRunLabels(labels map[string]string) (runID string, at time.Time) {
	if v := labels[LabelRunID]; v != UnknownLabelValue {
		runID = v
	}
	if v := labels[LabelDeployedAt]; v != "" && v != UnknownLabelValue {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			at = t
		}
	}
	return runID, at
}

// IsManaged reports whether the container carries ctdeploy's marker label.
func IsManaged(c model.ContainerInfo) bool {
	return c.Labels[LabelManagedBy] == ManagedByValue
}
