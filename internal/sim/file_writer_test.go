package sim

import (
	"bufio"
	"encoding/json"
	"path/filepath"
	"testing"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/event"
)

func readLines(t *testing.T, path string) [][]byte {
	t.Helper()
	rc, err := openLog(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer rc.Close()
	var out [][]byte
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		out = append(out, append([]byte(nil), sc.Bytes()...))
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return out
}

func TestFileWriter(t *testing.T) {
	action := event.AgentAction{AgentName: "ShadowByte", Delivered: true, LatencyMs: 5, Action: agent.Action{
		AgentID: "agent-0001", Type: agent.ActionShoot, Tick: 3,
		Payload: agent.ShootPayload{Weapon: "AK-47", Accuracy: agent.Float(0.97)},
	}}
	det := anticheat.Detection{ID: "DET_000001", PlayerID: "agent-0001", CheatType: anticheat.CheatAimbot, Confidence: 0.9, RuleID: anticheat.RuleAimbotAccuracy}

	for _, name := range []string{"events.jsonl", "events.jsonl.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			fw, err := NewFileWriter(path, DetectionPath(path))
			if err != nil {
				t.Fatalf("NewFileWriter: %v", err)
			}
			evs := []event.Event{
				event.New(1, "m1", 3, fixedTime, action),
				event.New(2, "m1", 3, fixedTime, event.CheatDetected{Detection: det}),
			}
			if err := fw.WriteEvents(evs); err != nil {
				t.Fatalf("WriteEvents: %v", err)
			}
			if err := fw.WriteDetection(det); err != nil {
				t.Fatalf("WriteDetection: %v", err)
			}
			if err := fw.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			lines := readLines(t, path)
			if len(lines) != 2 {
				t.Fatalf("expected 2 event lines, got %d", len(lines))
			}
			var got event.Event
			if err := json.Unmarshal(lines[0], &got); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			rec, ok := got.Data.(event.AgentAction)
			if !ok || rec.Action.Payload.(agent.ShootPayload).Weapon != "AK-47" {
				t.Fatalf("unexpected event %#v", got)
			}

			dlines := readLines(t, DetectionPath(path))
			if len(dlines) != 1 {
				t.Fatalf("expected 1 detection line, got %d", len(dlines))
			}
			var gotDet anticheat.Detection
			if err := json.Unmarshal(dlines[0], &gotDet); err != nil {
				t.Fatalf("decode detection: %v", err)
			}
			if gotDet.ID != det.ID || gotDet.RuleID != det.RuleID {
				t.Fatalf("unexpected detection %#v", gotDet)
			}
		})
	}
}

func TestFileWriterWithoutDetections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	fw, err := NewFileWriter(path, "")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	if err := fw.WriteDetection(anticheat.Detection{ID: "DET_000001"}); err != nil {
		t.Fatalf("WriteDetection should be a no-op: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDetectionPath(t *testing.T) {
	if got := DetectionPath("run.jsonl"); got != "run.jsonl.detections" {
		t.Fatalf("got %q", got)
	}
	if got := DetectionPath("run.jsonl.zst"); got != "run.jsonl.detections.zst" {
		t.Fatalf("got %q", got)
	}
}
