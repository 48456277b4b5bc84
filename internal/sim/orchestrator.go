// Match orchestrator driving agents, the LAN and the anti-cheat engine
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/config"
	"ghostlan-sim/internal/event"
	"ghostlan-sim/internal/logging"
	"ghostlan-sim/internal/network"
	"ghostlan-sim/internal/voice"
)

// State is the lifecycle state of an Orchestrator.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StatePaused       State = "paused"
	StateStopped      State = "stopped"
)

var (
	// ErrInvalidState is returned when a lifecycle method is called from the wrong state.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotInitialized is returned by StartMatch before Initialize succeeded.
	ErrNotInitialized = errors.New("orchestrator not initialized")
)

const (
	issueChance = 0.05
	voiceChance = 0.1
	statsEvery  = 30
)

// Detector is the part of the anti-cheat engine the orchestrator drives.
type Detector interface {
	BeginMatch(matchID string)
	AddPlayer(id, name string)
	ProcessAction(ctx context.Context, playerID, playerName string, a agent.Action) (anticheat.Detection, bool)
	Run(ctx context.Context) error
}

// EventCallback observes every appended event.
type EventCallback func(event.Event) error

// TickerFunc returns a tick channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the time source for event timestamps.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(o *Orchestrator) { o.log = log } }

// WithTicker replaces the wall-clock tick source.
func WithTicker(fn TickerFunc) Option { return func(o *Orchestrator) { o.newTicker = fn } }

// Orchestrator runs matches. All exported methods are safe for concurrent use.
type Orchestrator struct {
	cfg       config.Config
	detector  Detector
	now       func() time.Time
	log       *slog.Logger
	newTicker TickerFunc

	mu         sync.Mutex
	state      State
	ready      bool
	closed     bool
	rand       *rand.Rand
	model      *agent.Model
	lan        *network.LAN
	voice      *voice.Chat
	agents     []*agent.Agent
	spent      bool
	matchID    string
	tick       int
	events     []event.Event
	nextID     int64
	snapshot   network.Snapshot
	callbacks  []EventCallback
	bgCancel   context.CancelFunc
	bg         *errgroup.Group
	bgCtx      context.Context
	stopMatch  context.CancelFunc
	matchDone  chan struct{}
	wasStopped bool
}

// NewOrchestrator creates an idle orchestrator for cfg. The detector is
// usually an *anticheat.Engine.
func NewOrchestrator(cfg config.Config, detector Detector, opts ...Option) *Orchestrator {
	cfg.ApplyDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	o := &Orchestrator{
		cfg:       cfg,
		detector:  detector,
		now:       time.Now,
		log:       slog.Default(),
		newTicker: realTicker,
		state:     StateIdle,
		rand:      rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AntiCheatConfig converts the anticheat section of cfg into an engine config.
func AntiCheatConfig(ac config.AntiCheat) (anticheat.Config, error) {
	overrides := make([]anticheat.RuleOverride, len(ac.Rules))
	for i, r := range ac.Rules {
		overrides[i] = anticheat.RuleOverride{ID: r.ID, Enabled: r.Enabled, Weight: r.Weight}
	}
	rules, err := anticheat.ApplyOverrides(anticheat.DefaultRules(), overrides)
	if err != nil {
		return anticheat.Config{}, err
	}
	return anticheat.Config{
		Thresholds: anticheat.Thresholds{
			AimbotAccuracy:       ac.AimbotAccuracy,
			TriggerbotReaction:   ac.TriggerbotReaction,
			SpeedhackVelocity:    ac.SpeedhackVelocity,
			ActionRatePerSecond:  ac.ActionRateLimit,
			MinActionsForRate:    ac.MinActionsForRate,
			RecentDetectionBurst: ac.RecentDetectionBurst,
		},
		Rules:           rules,
		MonitorInterval: ac.MonitorInterval,
		PatternInterval: ac.PatternInterval,
	}, nil
}

// Conditions converts the network section of cfg into LAN conditions.
func Conditions(n config.Network) network.Conditions {
	return network.Conditions{
		BaseLatencyMs: n.BaseLatencyMs,
		LossRate:      n.PacketLossRate,
		BandwidthMbps: n.BandwidthMbps,
		JitterMs:      n.JitterMs,
		Stability:     n.ConnectionStability,
	}
}

// Initialize builds the LAN, the voice channel and the roster, then starts the
// background monitors. Any failure leaves the orchestrator Stopped.
func (o *Orchestrator) Initialize(ctx context.Context) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle || o.ready {
		return fmt.Errorf("%w: initialize from %s", ErrInvalidState, o.state)
	}
	o.state = StateInitializing
	defer func() {
		if err != nil {
			o.state = StateStopped
			o.closed = true
			o.log.Error("initialization failed", "err", err)
		}
	}()

	profiles, err := o.cheatProfiles()
	if err != nil {
		return err
	}
	o.lan, err = network.New(Conditions(o.cfg.Network),
		network.WithRand(rand.New(rand.NewSource(o.rand.Int63()))),
		network.WithClock(o.now),
		network.WithLogger(o.log),
		network.WithMonitorInterval(o.cfg.Network.MonitorInterval),
	)
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if !o.lan.Connect(network.ServerID) {
		return errors.New("network: server endpoint already registered")
	}
	if o.cfg.VoiceEnabled {
		o.voice = voice.NewChat(rand.New(rand.NewSource(o.rand.Int63())), o.now, o.log)
	}
	o.model = agent.NewModel(rand.New(rand.NewSource(o.rand.Int63())))
	o.agents = o.roster(profiles)

	bgCtx, cancel := context.WithCancel(logging.NewContext(context.WithoutCancel(ctx), o.log))
	g, gctx := errgroup.WithContext(bgCtx)
	g.Go(func() error { return o.lan.Run(gctx) })
	if o.voice != nil {
		g.Go(func() error { return o.voice.Run(gctx) })
	}
	if o.detector != nil {
		g.Go(func() error { return o.detector.Run(gctx) })
	}
	o.bg, o.bgCtx, o.bgCancel = g, gctx, cancel

	o.ready = true
	o.state = StateIdle
	o.log.Info("orchestrator initialized", "agents", len(o.agents), "voice", o.voice != nil)
	return nil
}

func (o *Orchestrator) cheatProfiles() ([]agent.CheatProfile, error) {
	var out []agent.CheatProfile
	for _, s := range o.cfg.CheatProfiles {
		p, err := agent.ParseCheatProfile(s)
		if err != nil {
			return nil, err
		}
		if p != agent.CheatNone {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = agent.CheatProfiles()
	}
	return out, nil
}

// roster creates cfg.NumAgents inactive agents, alternating teams.
func (o *Orchestrator) roster(profiles []agent.CheatProfile) []*agent.Agent {
	agents := make([]*agent.Agent, o.cfg.NumAgents)
	for i := range agents {
		cheat := agent.CheatNone
		if o.rand.Float64() < o.cfg.CheatProbability {
			cheat = profiles[o.rand.Intn(len(profiles))]
		}
		team := agent.TeamT
		if i%2 == 1 {
			team = agent.TeamCT
		}
		name := agent.Names[i%len(agent.Names)]
		if i >= len(agent.Names) {
			name = fmt.Sprintf("%s%d", name, i/len(agent.Names))
		}
		agents[i] = agent.NewAgent(fmt.Sprintf("agent-%04d", i+1), name, team, cheat, 1+o.rand.Intn(10), o.rand)
	}
	return agents
}

// StartMatch begins a match and returns its id. An empty id generates one.
// ctx only gates the call: the match runs on the orchestrator's background
// context and outlives ctx, ending on its duration, StopMatch or Shutdown.
func (o *Orchestrator) StartMatch(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return "", fmt.Errorf("%w: start match from %s", ErrInvalidState, o.state)
	}
	if !o.ready {
		return "", ErrNotInitialized
	}
	if id == "" {
		id = "match-" + uuid.NewString()
	}
	if o.spent {
		profiles, err := o.cheatProfiles()
		if err != nil {
			return "", err
		}
		o.agents = o.roster(profiles)
	}
	o.spent = true
	o.matchID = id
	o.tick = 0
	o.events = nil
	o.nextID = 0
	o.wasStopped = false
	o.lan.Reset()
	o.lan.Connect(network.ServerID)
	if o.voice != nil {
		o.voice.Reset()
	}
	if o.detector != nil {
		o.detector.BeginMatch(id)
	}
	o.state = StateRunning

	mctx, cancel := context.WithCancel(o.bgCtx)
	done := make(chan struct{})
	o.stopMatch, o.matchDone = cancel, done
	go o.run(logging.NewContext(mctx, o.log), done)
	o.log.Info("match started", "match_id", id, "agents", len(o.agents), "duration", o.cfg.MatchDuration)
	return id, nil
}

// PauseMatch suspends ticking. It is a no-op unless Running.
func (o *Orchestrator) PauseMatch() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning {
		o.state = StatePaused
		o.log.Info("match paused", "match_id", o.matchID, "tick", o.tick)
	}
}

// ResumeMatch continues a paused match. It is a no-op unless Paused.
func (o *Orchestrator) ResumeMatch() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StatePaused {
		o.state = StateRunning
		o.log.Info("match resumed", "match_id", o.matchID, "tick", o.tick)
	}
}

// StopMatch ends the current match early and waits for its final event.
func (o *Orchestrator) StopMatch(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateRunning && o.state != StatePaused {
		s := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: stop match from %s", ErrInvalidState, s)
	}
	o.state = StateStopped
	o.wasStopped = true
	cancel, done := o.stopMatch, o.matchDone
	o.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops any match, cancels the background monitors and waits for
// them. The orchestrator cannot be used afterwards.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	running := o.state == StateRunning || o.state == StatePaused
	if running {
		o.wasStopped = true
	}
	o.state = StateStopped
	stop, done, cancel, g := o.stopMatch, o.matchDone, o.bgCancel, o.bg
	o.mu.Unlock()

	if running {
		stop()
	}
	if cancel != nil {
		cancel()
	}
	finished := make(chan error, 1)
	go func() {
		if done != nil {
			<-done
		}
		var err error
		if g != nil {
			err = g.Wait()
		}
		finished <- err
	}()
	select {
	case err := <-finished:
		o.log.Info("orchestrator shut down")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterEventCallback adds an observer invoked synchronously, in
// registration order, for every appended event.
func (o *Orchestrator) RegisterEventCallback(cb EventCallback) {
	o.mu.Lock()
	o.callbacks = append(o.callbacks, cb)
	o.mu.Unlock()
}

func (o *Orchestrator) notify(evs []event.Event) {
	if len(evs) == 0 {
		return
	}
	o.mu.Lock()
	cbs := append([]EventCallback(nil), o.callbacks...)
	o.mu.Unlock()
	for _, ev := range evs {
		for i, cb := range cbs {
			o.invoke(i, cb, ev)
		}
	}
}

func (o *Orchestrator) invoke(i int, cb EventCallback, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("event callback panicked", "callback", i, "event", ev.ID, "panic", r)
		}
	}()
	if err := cb(ev); err != nil {
		o.log.Warn("event callback failed", "callback", i, "event", ev.ID, "err", err)
	}
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State      State         `json:"state"`
	MatchID    string        `json:"match_id,omitempty"`
	Tick       int           `json:"tick"`
	AgentCount int           `json:"agent_count"`
	EventCount int           `json:"event_count"`
	Config     config.Config `json:"config"`
}

// Status snapshots the lifecycle state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		State:      o.state,
		MatchID:    o.matchID,
		Tick:       o.tick,
		AgentCount: len(o.agents),
		EventCount: len(o.events),
		Config:     o.cfg,
	}
}

// Events returns the most recent limit events of type t, oldest first. An
// empty t matches every type and limit <= 0 returns all matches.
func (o *Orchestrator) Events(t event.Type, limit int) []event.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []event.Event
	for i := len(o.events) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if t == "" || o.events[i].Type == t {
			out = append(out, o.events[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Agents snapshots the roster.
func (o *Orchestrator) Agents() []agent.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]agent.Status, len(o.agents))
	for i, a := range o.agents {
		out[i] = a.Status()
	}
	return out
}

// NetworkStats reports the LAN counters and the last polled conditions.
func (o *Orchestrator) NetworkStats() (network.Stats, network.Snapshot, []network.Issue) {
	o.mu.Lock()
	lan, snap := o.lan, o.snapshot
	o.mu.Unlock()
	if lan == nil {
		return network.Stats{}, snap, nil
	}
	return lan.Stats(), snap, lan.ActiveIssues()
}

// VoiceStats reports the voice channel, if enabled.
func (o *Orchestrator) VoiceStats() (voice.Stats, bool) {
	o.mu.Lock()
	ch := o.voice
	o.mu.Unlock()
	if ch == nil {
		return voice.Stats{}, false
	}
	return ch.Stats(), true
}

// Done is closed when the current match has written its match_end event.
// It returns nil before the first match.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.matchDone
}

func (o *Orchestrator) appendLocked(tick int, d event.Data) event.Event {
	o.nextID++
	ev := event.New(o.nextID, o.matchID, tick, o.now().UTC(), d)
	o.events = append(o.events, ev)
	return ev
}

func (o *Orchestrator) statsLocked() event.Stats {
	s := event.Stats{Network: o.lan.Stats()}
	for _, a := range o.agents {
		s.TotalKills += a.Stats.Kills
		s.TotalDeaths += a.Stats.Deaths
		s.SuspiciousEvents += a.Stats.SuspiciousActions
		if a.Active {
			s.ActivePlayers++
		}
	}
	if o.voice != nil {
		vs := o.voice.Stats()
		s.Voice = &vs
	}
	return s
}
