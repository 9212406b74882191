// Package policy loads the named configuration bundles that control
// model choice, step bound, redaction, and tool allow-lists. A policy
// is consumed once at engine construction.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is one named configuration bundle.
type Policy struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxSteps    int     `yaml:"max_steps"`

	// RedactThought controls secret masking in stored thoughts.
	RedactThought bool `yaml:"redact_thought"`

	Tools ToolPolicy `yaml:"tools"`
}

// ToolPolicy scopes which tools a run may dispatch.
type ToolPolicy struct {
	Allow []string `yaml:"allow"`
}

// Default returns the policy used when no file is given.
func Default() Policy {
	return Policy{
		Name:          "v1",
		Model:         "gpt-4o-mini",
		Temperature:   0.2,
		MaxSteps:      8,
		RedactThought: true,
		Tools: ToolPolicy{
			Allow: []string{"calculator", "read_file", "write_file", "list_dir", "web_search"},
		},
	}
}

// Load reads a policy from a YAML file. Missing keys fall back to the
// defaults, so a partial policy file is valid.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if p.MaxSteps <= 0 {
		return Policy{}, fmt.Errorf("policy %s: max_steps must be positive, got %d", path, p.MaxSteps)
	}
	return p, nil
}

// LoadOrDefault reads a policy file if the path exists, otherwise
// returns the default policy.
func LoadOrDefault(path string) (Policy, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}
