package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("info", false))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn", false))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense", false))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("", false))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("error", true))
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, sink, err := NewLogger(Options{Level: "info", Console: &buf, NoColor: true})
	require.NoError(t, err)
	assert.Nil(t, sink)
	assert.False(t, sink.Enabled())
	require.NoError(t, sink.Enable())
	defer sink.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("step", "preflight").Msg("checking executables")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "checking executables")
	assert.Contains(t, out, "step=preflight")
}

func TestNewLogger_FileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer

	logger, sink, err := NewLogger(Options{Level: "debug", Console: &buf, NoColor: true, Dir: dir})
	require.NoError(t, err)
	assert.True(t, sink.Enabled())

	logger.Info().Str("run_id", "abc").Msg("deploy started")
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"abc"`)
	assert.Contains(t, string(data), `"message":"deploy started"`)
	assert.Contains(t, string(data), `"app":"ctdeploy"`)
}

func TestNewLogger_DeferredSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer

	logger, sink, err := NewLogger(Options{Level: "info", Console: &buf, NoColor: true, Dir: dir, Deferred: true})
	require.NoError(t, err)
	defer sink.Close()

	logger.Info().Msg("before preflight")
	assert.NoDirExists(t, dir)
	assert.False(t, sink.Enabled())
	assert.Contains(t, buf.String(), "before preflight")

	require.NoError(t, sink.Enable())
	require.NoError(t, sink.Enable())
	logger.Info().Msg("after preflight")
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "before preflight")
	assert.Contains(t, string(data), "after preflight")
}
