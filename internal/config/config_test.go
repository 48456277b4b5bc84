package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeTemp(t, "match.yaml", `
num_agents: 4
match_duration: 30
tick_interval: 250ms
cheat_probability: 1.0
cheat_profiles: [aimbot]
network:
  base_latency_ms: 12
anticheat:
  aimbot_accuracy_threshold: 0.9
  rules:
    - id: MACRO_001
      enabled: false
`)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.NumAgents != 4 || cfg.MatchDuration != 30 {
		t.Errorf("unexpected match settings: %+v", cfg)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Errorf("tick interval = %v", cfg.TickInterval)
	}
	if cfg.Network.BaseLatencyMs != 12 {
		t.Errorf("base latency = %v", cfg.Network.BaseLatencyMs)
	}
	// untouched fields keep their defaults
	if cfg.Network.ConnectionStability != 0.99 || !cfg.VoiceEnabled {
		t.Errorf("defaults lost: %+v", cfg.Network)
	}
	if cfg.AntiCheat.AimbotAccuracy != 0.9 || cfg.AntiCheat.PatternInterval != 5*time.Second {
		t.Errorf("unexpected anticheat config: %+v", cfg.AntiCheat)
	}
	if len(cfg.AntiCheat.Rules) != 1 || cfg.AntiCheat.Rules[0].Enabled == nil || *cfg.AntiCheat.Rules[0].Enabled {
		t.Errorf("rule override not decoded: %+v", cfg.AntiCheat.Rules)
	}
}

func TestLoadConfig_RejectsOutOfRange(t *testing.T) {
	cases := map[string]string{
		"probability": "cheat_probability: 1.5\n",
		"profile":     "cheat_profiles: [wallbang]\n",
		"agents":      "num_agents: 0\n",
		"unknown":     "teams: 3\n",
		"duration":    "tick_interval: soon\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeTemp(t, "bad.yaml", body)
			if _, err := Load(path, ""); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateWithCueRepoFiles(t *testing.T) {
	if err := ValidateWithCue("../../config/simulation.yaml", "simulation.cue"); err != nil {
		t.Fatalf("shipped config does not validate: %v", err)
	}
}

func TestLoadMissingSchema(t *testing.T) {
	path := writeTemp(t, "ok.yaml", "num_agents: 2\n")
	_, err := Load(path, filepath.Join(t.TempDir(), "missing.cue"))
	if err == nil || !strings.Contains(err.Error(), "CUE schema") {
		t.Fatalf("expected schema read error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GHOSTLAN_TICK_INTERVAL", "10ms")
	t.Setenv("GHOSTLAN_SEED", "42")
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.TickInterval != 10*time.Millisecond || cfg.Seed != 42 {
		t.Fatalf("env overrides not applied: %v %d", cfg.TickInterval, cfg.Seed)
	}

	t.Setenv("GHOSTLAN_SEED", "nope")
	if err := cfg.ApplyEnv(); err == nil {
		t.Fatalf("expected error for invalid seed")
	}
}

func TestApplyDefaultsFillsZeroes(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	d := Default()
	if cfg.NumAgents != d.NumAgents || cfg.TickInterval != d.TickInterval {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.AntiCheat.AimbotAccuracy != 0.95 || cfg.AntiCheat.SpeedhackVelocity != 1.5 {
		t.Fatalf("threshold defaults not applied: %+v", cfg.AntiCheat)
	}
}
