package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/config"
	"ghostlan-sim/internal/logging"
	"ghostlan-sim/internal/sim"
)

var (
	replayInput      string
	replaySpeed      float64
	replayPrintOnly  bool
	replayJSON       bool
	replayRedetect   bool
	replayConfigPath string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded match event log",
	Long:  "replay feeds events from a JSONL log (optionally zstd compressed) back into GreptimeDB or STDOUT, optionally re-running anti-cheat detection.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg := config.Default()
		if replayConfigPath != "" {
			c, err := config.Load(replayConfigPath, "")
			if err != nil {
				return err
			}
			cfg = *c
		}
		log := logging.NewWithOptions(os.Stderr, cfg.LogLevel, cfg.LogFormat)

		mode := chooseOutput(replayJSON, false, isTerminal(os.Stdout), log)
		out, err := newWriters(&cfg, replayPrintOnly, mode, "", log)
		if err != nil {
			return err
		}
		defer out.Close()

		opts := sim.ReplayOptions{Speed: replaySpeed}
		if replayRedetect {
			acCfg, err := sim.AntiCheatConfig(cfg.AntiCheat)
			if err != nil {
				return err
			}
			eng, err := anticheat.NewEngine(acCfg, anticheat.WithLogger(log))
			if err != nil {
				return err
			}
			defer eng.Close()
			opts.Detector, opts.Detections = eng, out.detections
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return sim.ReplayLogFile(logging.NewContext(ctx, log), replayInput, out.events, opts)
	},
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayInput, "input", "", "Path to event log file (.zst is decompressed)")
	f.Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 = no delay)")
	f.BoolVar(&replayPrintOnly, "print-only", false, "Print to STDOUT even when GREPTIMEDB_ENDPOINT is set")
	f.BoolVar(&replayJSON, "json", false, "Print JSON lines instead of colored output")
	f.BoolVar(&replayRedetect, "redetect", false, "Re-run anti-cheat detection on replayed actions")
	f.StringVar(&replayConfigPath, "config", "", "Config file supplying anti-cheat thresholds for --redetect")
	replayCmd.MarkFlagRequired("input")
}
