package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ghostlan-sim/internal/admin"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/config"
	"ghostlan-sim/internal/logging"
	"ghostlan-sim/internal/scenario"
	"ghostlan-sim/internal/sim"
)

var (
	simConfigPath string
	simSchemaPath string
	simScenario   string
	simTick       time.Duration
	simDuration   int
	simAgents     int
	simSeed       int64
	simLogFile    string
	simPrintOnly  bool
	simJSON       bool
	simTUI        bool
	simAdminAddr  string
	simMatches    int
)

const shutdownTimeout = 10 * time.Second

// errMatchesDone ends the run once the scheduled matches have been played.
var errMatchesDone = errors.New("scheduled matches complete")

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulated matches through the anti-cheat engine",
	Long:  "simulate plays one or more matches on a simulated LAN, streaming match events and anti-cheat detections to the configured sinks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSimConfig(cmd)
		if err != nil {
			return err
		}

		log := logging.NewWithOptions(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		mode := chooseOutput(simJSON, simTUI, isTerminal(os.Stdout), log)
		if mode == outputTUI {
			// The alt screen owns the terminal.
			log = logging.Discard()
		}
		slog.SetDefault(log)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		return runSimulation(ctx, cfg, mode, log)
	},
}

// loadSimConfig reads the config file, applies the scenario, then flags that
// were set explicitly, then environment overrides.
func loadSimConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(simConfigPath, simSchemaPath)
	if err != nil {
		return nil, err
	}
	if simScenario != "" {
		sc, err := scenario.Resolve(simScenario)
		if err != nil {
			return nil, err
		}
		*cfg = sc.Apply(*cfg)
	}
	flags := cmd.Flags()
	if flags.Changed("tick") {
		cfg.TickInterval = simTick
	}
	if flags.Changed("duration") {
		cfg.MatchDuration = simDuration
	}
	if flags.Changed("agents") {
		cfg.NumAgents = simAgents
	}
	if flags.Changed("seed") {
		cfg.Seed = simSeed
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if cfg.NumAgents < 1 || cfg.MatchDuration < 1 || cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("invalid overrides: agents=%d duration=%d tick=%s", cfg.NumAgents, cfg.MatchDuration, cfg.TickInterval)
	}
	return cfg, nil
}

func runSimulation(ctx context.Context, cfg *config.Config, mode outputMode, log *slog.Logger) error {
	acCfg, err := sim.AntiCheatConfig(cfg.AntiCheat)
	if err != nil {
		return err
	}
	eng, err := anticheat.NewEngine(acCfg, anticheat.WithLogger(log))
	if err != nil {
		return err
	}
	defer eng.Close()

	o := sim.NewOrchestrator(*cfg, eng, sim.WithLogger(log))

	out, err := newWriters(cfg, simPrintOnly, mode, simLogFile, log)
	if err != nil {
		return err
	}
	defer closeSinks(eng, out, log)
	sim.Attach(o, eng, out.events, out.detections)

	g, gctx := errgroup.WithContext(ctx)
	if simAdminAddr != "" {
		srv := admin.NewServer(o, eng, log)
		sim.Attach(o, eng, srv, srv)
		g.Go(func() error { return srv.Start(gctx, simAdminAddr) })
	}
	if out.tui != nil {
		out.tui.SetAdminStatus(simAdminAddr != "")
		out.tui.SetPauseToggle(func() bool { return togglePause(o) })
	}

	if err := o.Initialize(ctx); err != nil {
		return err
	}
	g.Go(func() error { return playMatches(gctx, o, simMatches, simAdminAddr != "", log) })

	err = g.Wait()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := o.Shutdown(sctx); serr != nil {
		err = errors.Join(err, serr)
	}
	log.Info("simulation stopped")
	if errors.Is(err, errMatchesDone) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// closeSinks drains the engine's queued detections into the writers before
// closing them.
func closeSinks(eng *anticheat.Engine, out *sinks, log *slog.Logger) {
	eng.Close()
	if err := out.Close(); err != nil {
		log.Error("closing writers", "error", err)
	}
}

// playMatches runs n matches back to back, or matches until cancelled when
// n is 0. With the admin server enabled it keeps serving afterwards.
func playMatches(ctx context.Context, o *sim.Orchestrator, n int, serve bool, log *slog.Logger) error {
	for played := 0; n == 0 || played < n; played++ {
		if _, err := o.StartMatch(ctx, ""); err != nil && !errors.Is(err, sim.ErrInvalidState) {
			return err
		}
		select {
		case <-o.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if !serve {
		return errMatchesDone
	}
	log.Info("scheduled matches complete, admin server still running")
	<-ctx.Done()
	return ctx.Err()
}

// togglePause flips between Running and Paused and reports whether the match
// is now paused.
func togglePause(o *sim.Orchestrator) bool {
	if o.Status().State == sim.StatePaused {
		o.ResumeMatch()
	} else {
		o.PauseMatch()
	}
	return o.Status().State == sim.StatePaused
}

func init() {
	bindSimulateFlags(simulateCmd)
}

func bindSimulateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&simConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	f.StringVar(&simSchemaPath, "schema", "", "Path to CUE schema file (default: built-in schema)")
	f.StringVar(&simScenario, "scenario", "", "Built-in scenario name or path to a scenario YAML")
	f.DurationVar(&simTick, "tick", time.Second, "Tick interval (e.g. 100ms, 1s)")
	f.IntVar(&simDuration, "duration", 0, "Match duration in ticks")
	f.IntVar(&simAgents, "agents", 0, "Number of agents")
	f.Int64Var(&simSeed, "seed", 0, "Random seed (0 = time based)")
	f.StringVar(&simLogFile, "log-file", "", "Export events to a JSONL file (.zst compresses); detections go to a sibling file")
	f.BoolVar(&simPrintOnly, "print-only", false, "Print to STDOUT even when GREPTIMEDB_ENDPOINT is set")
	f.BoolVar(&simJSON, "json", false, "Print JSON lines instead of colored output")
	f.BoolVar(&simTUI, "tui", false, "Show the interactive terminal UI")
	f.StringVar(&simAdminAddr, "admin", ":8080", "Admin server listen address (empty disables)")
	f.IntVar(&simMatches, "matches", 1, "Number of matches to play (0 = until interrupted)")
}
