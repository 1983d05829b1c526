package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/ctdeploy/internal/model"
)

func init() {
	color.NoColor = true
}

func exitCode(t *testing.T, err error) model.ExitCode {
	t.Helper()
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected CLIError, got %v", err)
	return cliErr.Code
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input    string
		def      bool
		expected bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"No\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
		{"  y  \n", false, true},
		{"y", false, true}, // no trailing newline
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := New(strings.NewReader(tt.input), &out)

			got, err := p.Confirm("Continue?", tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestConfirm_DefaultHint(t *testing.T) {
	var out bytes.Buffer
	_, err := New(strings.NewReader("\n"), &out).Confirm("Deploy now?", true)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Deploy now? [Y/n]")
}

func TestConfirm_Reasks(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("maybe\ny\n"), &out)

	got, err := p.Confirm("Continue?", false)
	require.NoError(t, err)
	assert.True(t, got)
	assert.Contains(t, out.String(), "Please answer y or n.")
}

func TestConfirm_GivesUp(t *testing.T) {
	p := New(strings.NewReader("a\nb\nc\ny\n"), &bytes.Buffer{})

	_, err := p.Confirm("Continue?", false)
	require.Error(t, err)
	assert.Equal(t, model.ExitInvalidInput, exitCode(t, err))
}

func TestConfirm_EOF(t *testing.T) {
	_, err := New(strings.NewReader(""), &bytes.Buffer{}).Confirm("Continue?", false)
	require.Error(t, err)
	assert.Equal(t, model.ExitUserCancelled, exitCode(t, err))
}

func TestAsk(t *testing.T) {
	p := New(strings.NewReader("custom-repo\n\n"), &bytes.Buffer{})

	got, err := p.Ask("Repository name", "medical-ct-analysis")
	require.NoError(t, err)
	assert.Equal(t, "custom-repo", got)

	got, err = p.Ask("Repository name", "medical-ct-analysis")
	require.NoError(t, err)
	assert.Equal(t, "medical-ct-analysis", got)
}

func TestRequired(t *testing.T) {
	p := New(strings.NewReader("octocat\n"), &bytes.Buffer{})
	got, err := p.Required("GitHub username")
	require.NoError(t, err)
	assert.Equal(t, "octocat", got)
}

// TestRequired_Empty covers the fatal empty-input case of the configure flow.
func TestRequired_Empty(t *testing.T) {
	p := New(strings.NewReader("   \n"), &bytes.Buffer{})
	_, err := p.Required("GitHub username")
	require.Error(t, err)
	assert.Equal(t, model.ExitInvalidInput, exitCode(t, err))
}
