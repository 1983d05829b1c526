package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

func TestRunLabels(t *testing.T) {
	labels := RunLabels()

	assert.Equal(t, ManagedByValue, labels[LabelManagedBy])
	assert.Equal(t, "${CTDEPLOY_RUN_ID:-manual}", labels[LabelRunID])
	assert.Equal(t, "${CTDEPLOY_DEPLOYED_AT:-manual}", labels[LabelDeployedAt])
}

func TestRunEnv(t *testing.T) {
	at := time.Date(2026, 10, 17, 11, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	env := RunEnv("run-1", at)

	assert.Equal(t, "run-1", env[EnvRunID])
	assert.Equal(t, "2026-10-17T09:00:00Z", env[EnvDeployedAt])
}

func TestParseRunLabels(t *testing.T) {
	t.Run("round trip through RunEnv values", func(t *testing.T) {
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		env := RunEnv("abc", at)

		runID, parsed := ParseRunLabels(map[string]string{
			LabelRunID:      env[EnvRunID],
			LabelDeployedAt: env[EnvDeployedAt],
		})

		assert.Equal(t, "abc", runID)
		assert.True(t, at.Equal(parsed))
	})

	t.Run("manual start", func(t *testing.T) {
		runID, at := ParseRunLabels(map[string]string{
			LabelRunID:      UnknownLabelValue,
			LabelDeployedAt: UnknownLabelValue,
		})
		assert.Empty(t, runID)
		assert.True(t, at.IsZero())
	})

	t.Run("malformed time", func(t *testing.T) {
		runID, at := ParseRunLabels(map[string]string{
			LabelRunID:      "abc",
			LabelDeployedAt: "yesterday",
		})
		assert.Equal(t, "abc", runID)
		assert.True(t, at.IsZero())
	})
}

func TestIsManaged(t *testing.T) {
	assert.True(t, IsManaged(model.ContainerInfo{Labels: map[string]string{LabelManagedBy: ManagedByValue}}))
	assert.False(t, IsManaged(model.ContainerInfo{Labels: map[string]string{LabelManagedBy: "someone-else"}}))
	assert.False(t, IsManaged(model.ContainerInfo{}))
}
