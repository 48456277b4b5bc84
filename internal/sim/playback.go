package sim

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/event"
)

// Redetector re-evaluates recorded actions.
type Redetector interface {
	BeginMatch(matchID string)
	ProcessAction(ctx context.Context, playerID, playerName string, a agent.Action) (anticheat.Detection, bool)
}

// ReplayOptions tunes a replay.
type ReplayOptions struct {
	// Speed >0 scales the recorded gaps between events; <=0 replays without delay.
	Speed float64
	// Detector, when set, re-evaluates every agent_action and its findings go
	// to Detections.
	Detector   Redetector
	Detections DetectionWriter
}

// ReplayLog replays events from r to writer.
func ReplayLog(ctx context.Context, r io.Reader, writer EventWriter, opts ReplayOptions) error {
	dec := json.NewDecoder(r)
	var prev time.Time
	match := ""
	for {
		var ev event.Event
		if err := dec.Decode(&ev); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !prev.IsZero() && opts.Speed > 0 {
			diff := ev.Timestamp.Sub(prev)
			if opts.Speed != 1 {
				diff = time.Duration(float64(diff) / opts.Speed)
			}
			if err := sleep(ctx, diff); err != nil {
				return err
			}
		}
		if err := writer.WriteEvent(ev); err != nil {
			return err
		}
		prev = ev.Timestamp

		if opts.Detector == nil {
			continue
		}
		if ev.MatchID != match {
			match = ev.MatchID
			opts.Detector.BeginMatch(match)
		}
		rec, ok := ev.Data.(event.AgentAction)
		if !ok {
			continue
		}
		d, found := opts.Detector.ProcessAction(ctx, rec.Action.AgentID, rec.AgentName, rec.Action)
		if found && opts.Detections != nil {
			if err := opts.Detections.WriteDetection(d); err != nil {
				return err
			}
		}
	}
}

// ReplayLogFile opens a plain or zstd-compressed log and replays its events.
func ReplayLogFile(ctx context.Context, path string, writer EventWriter, opts ReplayOptions) error {
	rc, err := openLog(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return ReplayLog(ctx, rc, writer, opts)
}

// openLog opens path, transparently decompressing ".zst" files.
func openLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	zr, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdFile{Decoder: zr, file: f}, nil
}

type zstdFile struct {
	*zstd.Decoder
	file *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
