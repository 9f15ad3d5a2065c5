package replay

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one scripted backend response: either an event stream
// (Frames) or an error status with a raw body.
type Scenario struct {
	Name    string   `yaml:"name"`
	Match   string   `yaml:"match"`
	Status  int      `yaml:"status"`
	Body    string   `yaml:"body"`
	DelayMS int      `yaml:"delay_ms"`
	Frames  []string `yaml:"frames"`
}

// Script is a set of scenarios with a named default.
type Script struct {
	Default   string     `yaml:"default"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScript reads a scenario file.
func LoadScript(path string) (*Script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScript(raw)
}

// ParseScript parses and validates scenario YAML.
func ParseScript(raw []byte) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(raw, &script); err != nil {
		return nil, fmt.Errorf("parse scenario script: %w", err)
	}
	if len(script.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario script has no scenarios")
	}
	seen := map[string]bool{}
	for _, sc := range script.Scenarios {
		if sc.Name == "" {
			return nil, fmt.Errorf("scenario without a name")
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = true
	}
	if script.Default != "" && !seen[script.Default] {
		return nil, fmt.Errorf("default scenario %q not defined", script.Default)
	}
	return &script, nil
}

// Lookup picks the first scenario whose match substring occurs in the
// query, falling back to the default (or the first scenario).
func (s *Script) Lookup(query string) Scenario {
	lower := strings.ToLower(query)
	for _, sc := range s.Scenarios {
		if sc.Match != "" && strings.Contains(lower, strings.ToLower(sc.Match)) {
			return sc
		}
	}
	if s.Default != "" {
		for _, sc := range s.Scenarios {
			if sc.Name == s.Default {
				return sc
			}
		}
	}
	return s.Scenarios[0]
}

// DefaultScript is the built-in script used when no scenario file is
// configured: a short streamed greeting plus a canned overload error.
func DefaultScript() *Script {
	return &Script{
		Default: "greeting",
		Scenarios: []Scenario{
			{
				Name: "greeting",
				Frames: []string{
					`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
					`data: {"choices":[{"delta":{"content":" from replayd."}}]}`,
					`data: [DONE]`,
				},
			},
			{
				Name:   "overloaded",
				Match:  "overload",
				Status: 500,
				Body:   `{"error":{"message":"overloaded"}}`,
			},
		},
	}
}
