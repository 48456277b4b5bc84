package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"ghostlan-sim/internal/config"
)

func TestLoadScenario(t *testing.T) {
	sc, err := Load("testdata/lan-party.yaml")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if sc.Name != "lan-party" || sc.NumAgents != 16 || sc.MatchDuration != 300 {
		t.Fatalf("unexpected scenario %+v", sc)
	}
	if sc.CheatProbability == nil || *sc.CheatProbability != 0 {
		t.Fatalf("explicit zero cheat probability lost: %v", sc.CheatProbability)
	}
	if sc.Network == nil || sc.Network.JitterMs != 3 {
		t.Fatalf("unexpected network %+v", sc.Network)
	}
}

func TestLoadRequiresName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("num_agents: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unnamed scenario")
	}
}

func TestApplyKeepsUnsetFields(t *testing.T) {
	base := config.Default()
	got := BuiltIn()["flaky-lan"].Apply(base)
	if got.NumAgents != base.NumAgents || got.CheatProbability != base.CheatProbability {
		t.Fatalf("unset fields changed: %+v", got)
	}
	if got.Network.PacketLossRate != 0.05 {
		t.Fatalf("network not applied: %+v", got.Network)
	}
	if got.Network.MonitorInterval != base.Network.MonitorInterval {
		t.Fatalf("monitor interval = %s, want %s", got.Network.MonitorInterval, base.Network.MonitorInterval)
	}
}

func TestApplyDoesNotAliasProfiles(t *testing.T) {
	sc := BuiltIn()["aimbot-lobby"]
	cfg := sc.Apply(config.Default())
	cfg.CheatProfiles[0] = "macro"
	if sc.CheatProfiles[0] != "aimbot" {
		t.Fatal("applied config aliases scenario profiles")
	}
}

func TestBuiltInPresetsValidate(t *testing.T) {
	for _, n := range Names() {
		t.Run(n, func(t *testing.T) {
			sc := BuiltIn()[n]
			if sc.Name != n || sc.Description == "" {
				t.Fatalf("preset %q incomplete: %+v", n, sc)
			}
			cfg := sc.Apply(config.Default())
			if cfg.NumAgents < 2 || cfg.MatchDuration < 1 {
				t.Fatalf("preset %q roster/duration out of range: %+v", n, cfg)
			}
			if cfg.CheatProbability < 0 || cfg.CheatProbability > 1 {
				t.Fatalf("preset %q cheat probability %v", n, cfg.CheatProbability)
			}
			if l := cfg.Network.PacketLossRate; l < 0 || l > 1 {
				t.Fatalf("preset %q packet loss %v", n, l)
			}
			if cfg.Network.BaseLatencyMs <= 0 || cfg.Network.MonitorInterval <= 0 {
				t.Fatalf("preset %q network incomplete: %+v", n, cfg.Network)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	if sc, err := Resolve("clean-lan"); err != nil || sc.Name != "clean-lan" {
		t.Fatalf("resolve built-in: %v %+v", err, sc)
	}
	if sc, err := Resolve("testdata/lan-party.yaml"); err != nil || sc.Name != "lan-party" {
		t.Fatalf("resolve file: %v %+v", err, sc)
	}
	if _, err := Resolve("nope"); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
}
