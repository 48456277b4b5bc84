package scenario

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"ghostlan-sim/internal/config"
)

// Scenario is a named match preset. Zero-valued fields leave the base
// configuration untouched when applied.
type Scenario struct {
	Name             string          `yaml:"name"`
	Description      string          `yaml:"description,omitempty"`
	NumAgents        int             `yaml:"num_agents,omitempty"`
	MatchDuration    int             `yaml:"match_duration,omitempty"`
	CheatProbability *float64        `yaml:"cheat_probability,omitempty"`
	CheatProfiles    []string        `yaml:"cheat_profiles,omitempty"`
	Network          *config.Network `yaml:"network,omitempty"`
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("parse scenario %s: missing name", path)
	}
	return &s, nil
}

// Resolve returns the built-in preset called name, or loads name as a file
// path when no preset matches.
func Resolve(name string) (*Scenario, error) {
	if s, ok := BuiltIn()[name]; ok {
		return &s, nil
	}
	if _, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("unknown scenario %q (built-in: %v)", name, Names())
	}
	return Load(name)
}

// Apply overlays the scenario on cfg and returns the result.
func (s Scenario) Apply(cfg config.Config) config.Config {
	if s.NumAgents > 0 {
		cfg.NumAgents = s.NumAgents
	}
	if s.MatchDuration > 0 {
		cfg.MatchDuration = s.MatchDuration
	}
	if s.CheatProbability != nil {
		cfg.CheatProbability = *s.CheatProbability
	}
	if len(s.CheatProfiles) > 0 {
		cfg.CheatProfiles = append([]string(nil), s.CheatProfiles...)
	}
	if n := s.Network; n != nil {
		monitor := cfg.Network.MonitorInterval
		cfg.Network = *n
		if cfg.Network.MonitorInterval == 0 {
			cfg.Network.MonitorInterval = monitor
		}
	}
	return cfg
}

// Names lists the built-in presets in sorted order.
func Names() []string {
	var out []string
	for n := range BuiltIn() {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
