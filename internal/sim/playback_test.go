package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/event"
)

func shootEvent(id int64, acc float64, ts time.Time) event.Event {
	return event.New(id, "m1", int(id), ts, event.AgentAction{AgentName: "ShadowByte", Action: agent.Action{
		AgentID: "agent-0001", Type: agent.ActionShoot, Tick: int(id),
		Payload: agent.ShootPayload{Weapon: "AWP", Accuracy: agent.Float(acc), ReactionTime: agent.Float(0.3)},
	}})
}

func TestReplayLog(t *testing.T) {
	evs := []event.Event{
		shootEvent(1, 0.5, time.Unix(0, 0)),
		event.New(2, "m1", 2, time.Unix(1, 0), event.MatchStats{Elapsed: 2}),
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	cw := &MockWriter{}
	if err := ReplayLog(context.Background(), &buf, cw, ReplayOptions{}); err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	got := cw.Events()
	if len(got) != len(evs) {
		t.Fatalf("expected %d events, got %d", len(evs), len(got))
	}
	for i, ev := range evs {
		if got[i].ID != ev.ID || got[i].Type != ev.Type {
			t.Fatalf("event %d mismatch: %+v vs %+v", i, got[i], ev)
		}
	}
}

func TestReplayLogRedetects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.jsonl.zst")
	fw, err := NewFileWriter(path, "")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	_ = fw.WriteEvent(shootEvent(1, 0.5, fixedTime))
	_ = fw.WriteEvent(shootEvent(2, 0.97, fixedTime))
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	eng, err := anticheat.NewEngine(anticheat.DefaultConfig(), anticheat.WithClock(func() time.Time { return fixedTime }))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer eng.Close()
	events, dets := &MockWriter{}, &MockWriter{}
	if err := ReplayLogFile(context.Background(), path, events, ReplayOptions{Speed: 1, Detector: eng, Detections: dets}); err != nil {
		t.Fatalf("ReplayLogFile: %v", err)
	}
	if len(events.Events()) != 2 {
		t.Fatalf("expected 2 replayed events, got %d", len(events.Events()))
	}
	got := dets.Detections()
	if len(got) != 1 || got[0].CheatType != anticheat.CheatAimbot || got[0].MatchID != "m1" {
		t.Fatalf("expected one aimbot detection for m1, got %+v", got)
	}
}

func TestReplayLogHonorsCancel(t *testing.T) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	_ = enc.Encode(shootEvent(1, 0.5, time.Unix(0, 0)))
	_ = enc.Encode(shootEvent(2, 0.5, time.Unix(3600, 0)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ReplayLog(ctx, &buf, &MockWriter{}, ReplayOptions{Speed: 1}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
