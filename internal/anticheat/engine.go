// Package anticheat evaluates agent actions against a static rule set and
// keeps per-player behavior profiles with a rolling risk score.
package anticheat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/logging"
)

var espKeywords = []string{"behind wall", "through wall", "hidden enemy", "invisible"}

const (
	patternAimConfidence   = 0.9
	patternSpeedConfidence = 0.85
	highRiskScore          = 50
)

type latchKey struct{ player, rule string }

// Engine is the detection engine. All methods are safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	cfg        Config
	rules      map[string]Rule
	profiles   map[string]*Profile
	order      []string
	detections []Detection
	latched    map[latchKey]bool
	seq        int
	matchID    string

	disp *dispatcher
	now  func() time.Time
	log  *slog.Logger
	once sync.Once
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock sets the time source for detection timestamps and time windows.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(e *Engine) { e.log = log } }

// NewEngine validates the rule set and starts the callback dispatcher.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	rules, err := indexRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = time.Second
	}
	if cfg.PatternInterval <= 0 {
		cfg.PatternInterval = 5 * time.Second
	}
	e := &Engine{
		cfg:      cfg,
		rules:    rules,
		profiles: map[string]*Profile{},
		latched:  map[latchKey]bool{},
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	e.disp = newDispatcher(e.log)
	e.log.Info("anti-cheat engine ready", "rules", len(rules))
	return e, nil
}

// RegisterDetectionCallback adds an observer. Callbacks run asynchronously,
// in registration order, one detection at a time.
func (e *Engine) RegisterDetectionCallback(cb Callback) {
	e.disp.register(cb)
}

// BeginMatch stamps subsequent detections with matchID.
func (e *Engine) BeginMatch(matchID string) {
	e.mu.Lock()
	e.matchID = matchID
	e.mu.Unlock()
}

// AddPlayer starts monitoring a player. Existing profiles are kept.
func (e *Engine) AddPlayer(id, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profileLocked(id, name, 0)
}

// RemovePlayer stops monitoring a player.
func (e *Engine) RemovePlayer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.profiles[id]; !ok {
		return
	}
	delete(e.profiles, id)
	e.order = slices.DeleteFunc(e.order, func(s string) bool { return s == id })
	e.log.Info("player removed from monitoring", "player", id)
}

func (e *Engine) profileLocked(id, name string, tick int) *Profile {
	if p, ok := e.profiles[id]; ok {
		return p
	}
	p := &Profile{PlayerID: id, PlayerName: name, JoinTick: tick, JoinedAt: e.now()}
	e.profiles[id] = p
	e.order = append(e.order, id)
	e.log.Info("player added to monitoring", "player", id, "name", name)
	return p
}

type finding struct {
	rule        string
	cheat       CheatType
	confidence  float64
	description string
	evidence    map[string]any
}

// ProcessAction evaluates one action. It returns the detection it produced,
// if any. Malformed actions never produce a detection and never fail.
func (e *Engine) ProcessAction(ctx context.Context, playerID, playerName string, a agent.Action) (Detection, bool) {
	if ctx.Err() != nil {
		return Detection{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.profileLocked(playerID, playerName, a.Tick)
	p.TotalActions++
	p.lastTick = a.Tick
	observeAction(&p.Patterns, a)

	f, ok, err := e.evaluate(a)
	if err != nil {
		e.log.Debug("skipping action", "player", playerID, "type", a.Type, "error", err)
		return Detection{}, false
	}
	if !ok {
		return Detection{}, false
	}
	return e.emitLocked(p, f, a.Tick), true
}

func (e *Engine) enabled(id string) bool {
	r, ok := e.rules[id]
	return ok && r.Enabled
}

// evaluate is the per-action rule dispatch. The first enabled rule that fires
// wins.
func (e *Engine) evaluate(a agent.Action) (finding, bool, error) {
	if !wellFormed(a) {
		return finding{}, false, fmt.Errorf("%w: %s payload %T", ErrMalformedAction, a.Type, a.Payload)
	}
	th := e.cfg.Thresholds
	switch a.Type {
	case agent.ActionShoot:
		p, ok := a.Payload.(agent.ShootPayload)
		if !ok {
			return finding{}, false, fmt.Errorf("%w: shoot payload %T", ErrMalformedAction, a.Payload)
		}
		if p.Accuracy != nil && *p.Accuracy > th.AimbotAccuracy && e.enabled(RuleAimbotAccuracy) {
			return finding{RuleAimbotAccuracy, CheatAimbot, 0.9, "High accuracy shooting detected",
				map[string]any{"accuracy": *p.Accuracy, "headshot": p.Headshot}}, true, nil
		}
		if p.ReactionTime != nil && *p.ReactionTime < th.TriggerbotReaction && e.enabled(RuleInstantReaction) {
			return finding{RuleInstantReaction, CheatTriggerbot, 0.85, "Instant reaction detected",
				map[string]any{"reaction_time": *p.ReactionTime}}, true, nil
		}
		if p.ThroughWall && e.enabled(RuleWallPenetration) {
			return finding{RuleWallPenetration, CheatWallhack, 0.8, "Shot fired through a wall",
				map[string]any{"through_wall": true, "target_id": p.TargetID}}, true, nil
		}
	case agent.ActionMove:
		p, ok := a.Payload.(agent.MovePayload)
		if !ok {
			return finding{}, false, fmt.Errorf("%w: move payload %T", ErrMalformedAction, a.Payload)
		}
		if p.Speed != nil && *p.Speed > th.SpeedhackVelocity && e.enabled(RuleSpeed) {
			return finding{RuleSpeed, CheatSpeedhack, 0.8, "Movement speed exceeds limits",
				map[string]any{"speed": *p.Speed, "distance": p.Distance}}, true, nil
		}
	case agent.ActionCommunicate:
		p, ok := a.Payload.(agent.CommunicatePayload)
		if !ok {
			return finding{}, false, fmt.Errorf("%w: communicate payload %T", ErrMalformedAction, a.Payload)
		}
		if p.Message != nil && leaksWallInfo(*p.Message) && e.enabled(RuleInfoLeak) {
			return finding{RuleInfoLeak, CheatESP, 0.7, "Potential ESP information leak",
				map[string]any{"message": *p.Message, "channel": p.Channel}}, true, nil
		}
	case agent.ActionReload, agent.ActionSwitchWeapon, agent.ActionUseAbility:
	default:
		return finding{}, false, fmt.Errorf("%w: unknown type %q", ErrMalformedAction, a.Type)
	}
	if fl := a.Payload.Flags(); fl.MacroPattern && e.enabled(RuleRepetition) {
		return finding{RuleRepetition, CheatMacro, 0.7, "Repetitive input pattern detected",
			map[string]any{"action_type": string(a.Type), "repetition_count": fl.RepetitionCount}}, true, nil
	}
	return finding{}, false, nil
}

// wellFormed accepts only the value payload types, matched to the action
// type. Pointer payloads are rejected before any method is called on them,
// so a typed nil never reaches the rules.
func wellFormed(a agent.Action) bool {
	switch a.Payload.(type) {
	case agent.ShootPayload, agent.MovePayload, agent.ReloadPayload,
		agent.SwitchWeaponPayload, agent.AbilityPayload, agent.CommunicatePayload:
		return a.Payload.Kind() == a.Type
	}
	return false
}

func leaksWallInfo(msg string) bool {
	msg = strings.ToLower(msg)
	for _, k := range espKeywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}

func observeAction(bp *BehaviorPatterns, a agent.Action) {
	switch p := a.Payload.(type) {
	case agent.ShootPayload:
		if p.Accuracy != nil {
			hs := 0.0
			if p.Headshot {
				hs = 1
			}
			n := bp.shots
			observe(&bp.AimAccuracy, &n, *p.Accuracy)
			observe(&bp.HeadshotRatio, &bp.shots, hs)
		}
		if p.ReactionTime != nil {
			observe(&bp.ReactionTime, &bp.reactions, *p.ReactionTime)
		}
	case agent.MovePayload:
		if p.Speed != nil {
			observe(&bp.MovementSpeed, &bp.moves, *p.Speed)
		}
	}
}

func (e *Engine) emitLocked(p *Profile, f finding, tick int) Detection {
	e.seq++
	d := Detection{
		ID:          fmt.Sprintf("DET_%06d", e.seq),
		PlayerID:    p.PlayerID,
		PlayerName:  p.PlayerName,
		CheatType:   f.cheat,
		Severity:    SeverityForConfidence(f.confidence),
		Confidence:  f.confidence,
		Evidence:    f.evidence,
		RuleID:      f.rule,
		Description: f.description,
		MatchID:     e.matchID,
		Tick:        tick,
		Timestamp:   e.now(),
	}
	p.Detections = append(p.Detections, d)
	e.detections = append(e.detections, d)
	e.log.Warn("cheat detected", "player", p.PlayerName, "cheat", d.CheatType, "confidence", d.Confidence, "rule", d.RuleID)
	e.disp.enqueue(d)
	return d
}

// AnalyzeProfiles recomputes the suspicion count and risk score of every
// profile from its history. Repeated calls without new history are no-ops.
func (e *Engine) AnalyzeProfiles() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	for _, id := range e.order {
		p := e.profiles[id]
		p.SuspiciousActionCount = e.suspicionLocked(p, now)
		p.RiskScore = e.riskLocked(p, now)
	}
}

func (e *Engine) suspicionLocked(p *Profile, now time.Time) int {
	th := e.cfg.Thresholds
	n := 0
	if p.TotalActions >= th.MinActionsForRate {
		if secs := now.Sub(p.JoinedAt).Seconds(); secs > 0 && float64(p.TotalActions)/secs > th.ActionRatePerSecond {
			n++
		}
	}
	if countSince(p.Detections, now.Add(-5*time.Minute)) > th.RecentDetectionBurst {
		n += 2
	}
	return n
}

func (e *Engine) riskLocked(p *Profile, now time.Time) float64 {
	var score float64
	recent := now.Add(-10 * time.Minute)
	for _, d := range p.Detections {
		w := 1.0
		if r, ok := e.rules[d.RuleID]; ok {
			w = r.Weight
		}
		score += 10 * w
		if d.Timestamp.After(recent) {
			score += 20
		}
		if d.Severity.Rank() >= SeverityHigh.Rank() {
			score += 30
		}
	}
	score += 5 * float64(p.SuspiciousActionCount)
	return min(100, score)
}

func countSince(ds []Detection, cutoff time.Time) int {
	n := 0
	for _, d := range ds {
		if d.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}

// DetectPatterns scans the smoothed behavior of every profile and emits a
// detection when a pattern crosses its threshold. A (player, rule) pair fires
// once until the pattern falls back under the threshold.
func (e *Engine) DetectPatterns() []Detection {
	e.mu.Lock()
	defer e.mu.Unlock()
	th := e.cfg.Thresholds
	var out []Detection
	for _, id := range e.order {
		p := e.profiles[id]
		bp := p.Patterns
		if d, ok := e.latchLocked(p, RuleAimbotAccuracy, bp.shots > 0 && bp.AimAccuracy > th.AimbotAccuracy, finding{
			RuleAimbotAccuracy, CheatAimbot, patternAimConfidence, "Unusually high aim accuracy detected",
			map[string]any{"accuracy": bp.AimAccuracy},
		}); ok {
			out = append(out, d)
		}
		if d, ok := e.latchLocked(p, RuleSpeed, bp.moves > 0 && bp.MovementSpeed > th.SpeedhackVelocity, finding{
			RuleSpeed, CheatSpeedhack, patternSpeedConfidence, "Movement speed exceeds normal limits",
			map[string]any{"speed": bp.MovementSpeed},
		}); ok {
			out = append(out, d)
		}
	}
	return out
}

func (e *Engine) latchLocked(p *Profile, rule string, over bool, f finding) (Detection, bool) {
	k := latchKey{p.PlayerID, rule}
	if !over {
		delete(e.latched, k)
		return Detection{}, false
	}
	if e.latched[k] || !e.enabled(rule) {
		return Detection{}, false
	}
	e.latched[k] = true
	return e.emitLocked(p, f, p.lastTick), true
}

// Detections returns up to limit most recent detections, oldest first,
// optionally filtered by player. A limit <= 0 returns all.
func (e *Engine) Detections(playerID string, limit int) []Detection {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Detection
	for _, d := range e.detections {
		if playerID == "" || d.PlayerID == playerID {
			out = append(out, d)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return slices.Clone(out)
}

// RecentDetections returns detections newer than d.
func (e *Engine) RecentDetections(d time.Duration) []Detection {
	e.mu.Lock()
	defer e.mu.Unlock()
	cutoff := e.now().Add(-d)
	var out []Detection
	for _, det := range e.detections {
		if det.Timestamp.After(cutoff) {
			out = append(out, det)
		}
	}
	return out
}

// Profiles summarizes every monitored player in join order.
func (e *Engine) Profiles() []ProfileSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ProfileSummary, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.profiles[id].summary())
	}
	return out
}

// Profile returns the summary of one player.
func (e *Engine) Profile(id string) (ProfileSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.profiles[id]
	if !ok {
		return ProfileSummary{}, false
	}
	return p.summary(), true
}

// PlayerRiskScore is a 0..1 estimate from the smoothed behavior alone,
// independent of any detection.
func (e *Engine) PlayerRiskScore(id string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.profiles[id]
	if !ok {
		return 0
	}
	bp := p.Patterns
	var r float64
	if bp.shots > 0 && bp.AimAccuracy > 0.9 {
		r += 0.3
	}
	if bp.shots > 0 && bp.HeadshotRatio > 0.7 {
		r += 0.25
	}
	if bp.reactions > 0 && bp.ReactionTime < 0.15 {
		r += 0.2
	}
	if bp.moves > 0 && bp.MovementSpeed > 1.2 {
		r += 0.15
	}
	if p.SuspiciousActionCount > 5 {
		r += 0.1
	}
	return min(1, r)
}

// Statistics summarizes detections and profiles.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Statistics{
		TotalDetections:  len(e.detections),
		RecentDetections: countSince(e.detections, e.now().Add(-time.Hour)),
		ActivePlayers:    len(e.profiles),
		ByType:           map[CheatType]int{},
	}
	for _, d := range e.detections {
		s.ByType[d.CheatType]++
	}
	for _, p := range e.profiles {
		if p.RiskScore > highRiskScore {
			s.HighRiskPlayers++
		}
	}
	return s
}

// Rules returns the rule set sorted by id.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Rule) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Reset clears profiles, detections and pattern latches.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profiles = map[string]*Profile{}
	e.order = nil
	e.detections = nil
	e.latched = map[latchKey]bool{}
	e.log.Info("anti-cheat engine reset")
}

// Run drives profile analysis and pattern detection until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	log.Info("starting anti-cheat loops", "monitor", e.cfg.MonitorInterval, "patterns", e.cfg.PatternInterval)
	monitor := time.NewTicker(e.cfg.MonitorInterval)
	defer monitor.Stop()
	patterns := time.NewTicker(e.cfg.PatternInterval)
	defer patterns.Stop()
	for {
		select {
		case <-monitor.C:
			e.AnalyzeProfiles()
		case <-patterns.C:
			e.DetectPatterns()
		case <-ctx.Done():
			log.Info("stopping anti-cheat loops")
			return nil
		}
	}
}

// Close flushes pending callbacks and stops the dispatcher.
func (e *Engine) Close() {
	e.once.Do(e.disp.close)
}
