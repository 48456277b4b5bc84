package main

import (
	"context"
	"io"
	"os"
	"strings"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/config"
	"ghostlan-sim/internal/event"
	"ghostlan-sim/internal/logging"
	"ghostlan-sim/internal/sim"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simulation.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newSimulateFlags binds simulate's flags to a fresh command so Changed
// reports only what the test sets. Defaults are restored afterwards.
func newSimulateFlags(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "simulate"}
	bindSimulateFlags(cmd)
	t.Cleanup(func() { bindSimulateFlags(&cobra.Command{}) })
	return cmd
}

func TestLoadSimConfigPrecedence(t *testing.T) {
	cmd := newSimulateFlags(t)
	path := writeConfig(t, "num_agents: 6\nmatch_duration: 50\n")
	if err := cmd.Flags().Parse([]string{"--config", path, "--scenario", "aimbot-lobby", "--duration", "12"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	t.Setenv("GHOSTLAN_SEED", "99")

	cfg, err := loadSimConfig(cmd)
	if err != nil {
		t.Fatalf("loadSimConfig: %v", err)
	}
	// The scenario overrides the file, flags override the scenario.
	if cfg.NumAgents != 10 {
		t.Fatalf("agents = %d, want scenario value 10", cfg.NumAgents)
	}
	if cfg.MatchDuration != 12 {
		t.Fatalf("duration = %d, want flag value 12", cfg.MatchDuration)
	}
	if len(cfg.CheatProfiles) != 1 || cfg.CheatProfiles[0] != "aimbot" {
		t.Fatalf("profiles = %v", cfg.CheatProfiles)
	}
	if cfg.Seed != 99 {
		t.Fatalf("seed = %d, want env value 99", cfg.Seed)
	}
}

func TestLoadSimConfigRejectsUnknownScenario(t *testing.T) {
	cmd := newSimulateFlags(t)
	path := writeConfig(t, "num_agents: 4\n")
	if err := cmd.Flags().Parse([]string{"--config", path, "--scenario", "zombies"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := loadSimConfig(cmd); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
}

func TestPlayMatchesRunsScheduledMatches(t *testing.T) {
	cfg := config.Default()
	cfg.NumAgents = 4
	cfg.MatchDuration = 3
	cfg.TickInterval = time.Millisecond
	cfg.Seed = 1
	eng, err := anticheat.NewEngine(anticheat.DefaultConfig(), anticheat.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()
	o := sim.NewOrchestrator(cfg, eng, sim.WithLogger(logging.Discard()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer o.Shutdown(ctx)

	var ends int
	o.RegisterEventCallback(func(ev event.Event) error {
		if ev.Type == event.TypeMatchEnd {
			ends++
		}
		return nil
	})
	if err := playMatches(ctx, o, 2, false, logging.Discard()); err != errMatchesDone {
		t.Fatalf("playMatches = %v, want errMatchesDone", err)
	}
	if ends != 2 {
		t.Fatalf("match_end events = %d, want 2", ends)
	}
	if togglePause(o) {
		t.Fatal("idle orchestrator reported paused")
	}
}

func TestCloseSinksDrainsQueuedDetections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.jsonl")
	fw, err := sim.NewFileWriter(path, sim.DetectionPath(path))
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	out := &sinks{events: fw, detections: fw, closers: []io.Closer{fw}}

	eng, err := anticheat.NewEngine(anticheat.DefaultConfig(), anticheat.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	// A slow observer ahead of the file keeps the detection queued when the
	// run starts closing.
	eng.RegisterDetectionCallback(func(anticheat.Detection) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	eng.RegisterDetectionCallback(fw.WriteDetection)

	_, ok := eng.ProcessAction(context.Background(), "agent-0001", "ShadowByte", agent.Action{
		AgentID: "agent-0001", Type: agent.ActionShoot, Tick: 1,
		Payload: agent.ShootPayload{Weapon: "AWP", Accuracy: agent.Float(0.97), ReactionTime: agent.Float(0.3)},
	})
	if !ok {
		t.Fatal("expected a detection")
	}
	closeSinks(eng, out, logging.Discard())

	b, err := os.ReadFile(sim.DetectionPath(path))
	if err != nil {
		t.Fatalf("read detections: %v", err)
	}
	if n := strings.Count(string(b), "\n"); n != 1 {
		t.Fatalf("detections log has %d lines, want 1", n)
	}
}
