package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/config"
	"ghostlan-sim/internal/event"
	"ghostlan-sim/internal/logging"
	"ghostlan-sim/internal/sim"
)

func TestNewWritersPrintOnly(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "localhost:4001")
	out, err := newWriters(nil, true, outputJSON, "", logging.Discard())
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	defer out.Close()
	if _, ok := out.events.(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", out.events)
	}
	if _, ok := out.detections.(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", out.detections)
	}
}

func TestNewWritersColor(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	cfg := config.Default()
	out, err := newWriters(&cfg, false, outputColor, "", logging.Discard())
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	defer out.Close()
	if _, ok := out.events.(*sim.ColorStdoutWriter); !ok {
		t.Fatalf("expected *sim.ColorStdoutWriter, got %T", out.events)
	}
	if out.tui != nil {
		t.Fatal("unexpected TUI writer")
	}
}

func TestNewWritersLogFile(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	path := filepath.Join(t.TempDir(), "match.jsonl")
	out, err := newWriters(nil, true, outputJSON, path, logging.Discard())
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	if _, ok := out.events.(*sim.MultiWriter); !ok {
		t.Fatalf("expected *sim.MultiWriter, got %T", out.events)
	}
	ev := event.New(1, "m1", 0, time.Now(), event.MatchStats{Elapsed: 0})
	if err := out.events.WriteEvent(ev); err != nil {
		t.Fatalf("write event: %v", err)
	}
	if err := out.detections.WriteDetection(anticheat.Detection{ID: "DET_000001", PlayerID: "agent-0001"}); err != nil {
		t.Fatalf("write detection: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, p := range []string{path, sim.DetectionPath(path)} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if info.Size() == 0 {
			t.Fatalf("expected %s to be non-empty", p)
		}
	}
}

func TestChooseOutput(t *testing.T) {
	log := logging.Discard()
	cases := []struct {
		name           string
		json, tui, tty bool
		want           outputMode
	}{
		{"json wins", true, true, true, outputJSON},
		{"tui on terminal", false, true, true, outputTUI},
		{"tui without terminal", false, true, false, outputJSON},
		{"terminal default", false, false, true, outputColor},
		{"pipe default", false, false, false, outputJSON},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := chooseOutput(c.json, c.tui, c.tty, log); got != c.want {
				t.Fatalf("chooseOutput = %s, want %s", got, c.want)
			}
		})
	}
}
