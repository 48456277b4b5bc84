package main

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"ghostlan-sim/internal/config"
	"ghostlan-sim/internal/sim"
)

// outputMode selects the console sink.
type outputMode string

const (
	outputColor outputMode = "color"
	outputJSON  outputMode = "json"
	outputTUI   outputMode = "tui"
)

// sinks bundles the writers built for a run.
type sinks struct {
	events     sim.EventWriter
	detections sim.DetectionWriter
	tui        *sim.TUIWriter
	closers    []io.Closer
}

// Close releases files and stops the UI.
func (s *sinks) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// chooseOutput resolves the console mode. The TUI and colors need a
// terminal; without one output falls back to JSON lines.
func chooseOutput(jsonOut, tui, tty bool, log *slog.Logger) outputMode {
	switch {
	case jsonOut:
		return outputJSON
	case tui && tty:
		return outputTUI
	case tui:
		log.Warn("stdout is not a terminal, TUI disabled")
		return outputJSON
	case tty:
		return outputColor
	}
	return outputJSON
}

// newWriters sets up event and detection writers based on flags and env vars.
// GREPTIMEDB_ENDPOINT routes events to GreptimeDB unless printOnly is set.
func newWriters(cfg *config.Config, printOnly bool, mode outputMode, logFile string, log *slog.Logger) (*sinks, error) {
	s := &sinks{}
	var ews []sim.EventWriter
	var dws []sim.DetectionWriter

	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	if !printOnly && endpoint != "" {
		db := os.Getenv("GREPTIMEDB_DATABASE")
		if db == "" {
			db = "public"
		}
		gw, err := sim.NewGreptimeDBWriter(endpoint, db, "", "", log)
		if err != nil {
			return nil, err
		}
		log.Info("writing to GreptimeDB", "endpoint", endpoint, "database", db)
		ews, dws = append(ews, gw), append(dws, gw)
	}

	// The TUI is interactive and always shown when selected; the line
	// writers only when nothing else consumes the stream.
	switch {
	case mode == outputTUI:
		tw := sim.NewTUIWriter(cfg)
		s.tui = tw
		s.closers = append(s.closers, tw)
		ews, dws = append(ews, tw), append(dws, tw)
	case len(ews) == 0 && mode == outputColor:
		cw := sim.NewColorStdoutWriter(cfg)
		ews, dws = append(ews, cw), append(dws, cw)
	case len(ews) == 0:
		jw := sim.NewJSONStdoutWriter()
		ews, dws = append(ews, jw), append(dws, jw)
	}

	if logFile != "" {
		fw, err := sim.NewFileWriter(logFile, sim.DetectionPath(logFile))
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, fw)
		ews, dws = append(ews, fw), append(dws, fw)
	}

	if len(ews) == 1 {
		s.events, s.detections = ews[0], dws[0]
		return s, nil
	}
	mw := sim.NewMultiWriter(ews, dws)
	s.events, s.detections = mw, mw
	return s, nil
}
