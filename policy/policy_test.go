package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writePolicy(t, `
name: strict
model: gpt-4o
temperature: 0.0
max_steps: 5
redact_thought: true
tools:
  allow:
    - calculator
    - read_file
`)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "strict", p.Name)
	assert.Equal(t, "gpt-4o", p.Model)
	assert.Equal(t, 0.0, p.Temperature)
	assert.Equal(t, 5, p.MaxSteps)
	assert.True(t, p.RedactThought)
	assert.Equal(t, []string{"calculator", "read_file"}, p.Tools.Allow)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writePolicy(t, "name: partial\nmax_steps: 3\n")

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "partial", p.Name)
	assert.Equal(t, 3, p.MaxSteps)
	assert.Equal(t, Default().Model, p.Model)
	assert.Equal(t, Default().Tools.Allow, p.Tools.Allow)
}

func TestLoad_RejectsNonPositiveMaxSteps(t *testing.T) {
	path := writePolicy(t, "max_steps: 0\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_steps")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	p, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}
