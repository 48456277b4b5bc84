package sim

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/config"
	"ghostlan-sim/internal/event"
)

func TestJSONStdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONStdoutWriter{out: &buf}
	ev := event.New(1, "m1", 0, fixedTime, event.AgentJoined{AgentID: "agent-0001", AgentName: "ShadowByte", Team: agent.TeamT, Behavior: agent.BehaviorNormal, SkillLevel: 4})
	if err := w.WriteEvent(ev); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := w.WriteDetection(anticheat.Detection{ID: "DET_000001", CheatType: anticheat.CheatESP}); err != nil {
		t.Fatalf("WriteDetection: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var got event.Event
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if j, ok := got.Data.(event.AgentJoined); !ok || j.AgentName != "ShadowByte" {
		t.Fatalf("unexpected event %+v", got)
	}
	var wrapped struct {
		Detection anticheat.Detection `json:"detection"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &wrapped); err != nil || wrapped.Detection.ID != "DET_000001" {
		t.Fatalf("unexpected detection line %q (%v)", lines[1], err)
	}
}

func TestColorStdoutWriter(t *testing.T) {
	cfg := config.Default()
	var buf bytes.Buffer
	w := &ColorStdoutWriter{cfg: &cfg, out: &buf}
	_ = w.WriteEvent(event.New(1, "m1", 0, fixedTime, event.AgentJoined{AgentName: "NeonSniper", Team: agent.TeamCT, CheatProfile: agent.CheatWallhack}))
	_ = w.WriteEvent(event.New(2, "m1", 5, fixedTime, event.CheatDetected{Detection: anticheat.Detection{
		PlayerName: "NeonSniper", CheatType: anticheat.CheatWallhack, Severity: anticheat.SeverityHigh, Confidence: 0.8, RuleID: anticheat.RuleWallPenetration,
	}}))
	_ = w.WriteDetection(anticheat.Detection{ID: "DET_000002", PlayerName: "NeonSniper", Severity: anticheat.SeverityLow})

	out := buf.String()
	if strings.Count(out, "Match Configuration:") != 1 {
		t.Fatalf("overview should print exactly once:\n%s", out)
	}
	for _, want := range []string{"JOIN", "cheat=wallhack", "CHEAT", "WALLHACK_001", "DETECTION", "DET_000002", colorRed} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
