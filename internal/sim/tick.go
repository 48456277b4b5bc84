package sim

import (
	"context"
	"time"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/event"
	"ghostlan-sim/internal/logging"
	"ghostlan-sim/internal/network"
)

// run drives one match until its duration elapses or ctx is cancelled, then
// appends exactly one match_end event.
func (o *Orchestrator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	log := logging.FromContext(ctx)

	o.join()
	ticks, stop := o.newTicker(o.cfg.TickInterval)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("match loop cancelled")
			o.finish()
			return
		case <-ticks:
		}
		if o.step(ctx) {
			o.finish()
			return
		}
	}
}

// join activates every agent and announces it.
func (o *Orchestrator) join() {
	o.mu.Lock()
	var out []event.Event
	for _, a := range o.agents {
		o.model.Initialize(a)
		a.Active = true
		o.lan.Connect(a.ID)
		if o.voice != nil {
			o.voice.AddSpeaker(a.ID)
		}
		if o.detector != nil {
			o.detector.AddPlayer(a.ID, a.Name)
		}
		out = append(out, o.appendLocked(0, event.AgentJoined{
			AgentID:      a.ID,
			AgentName:    a.Name,
			Team:         a.Team,
			Behavior:     a.Behavior,
			CheatProfile: a.Cheat,
			SkillLevel:   a.SkillLevel,
		}))
	}
	o.mu.Unlock()
	o.notify(out)
}

type submitted struct {
	agent  *agent.Agent
	action agent.Action
}

// step runs one tick and reports whether the match has reached its duration.
// Paused ticks are skipped without advancing the tick counter.
func (o *Orchestrator) step(ctx context.Context) bool {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return false
	}
	o.tick++
	tick := o.tick
	o.lan.SetTick(tick)

	// Every action is logged before any reaches the detector.
	var out []event.Event
	var batch []submitted
	for _, a := range o.agents {
		act, ok := o.model.GenerateAction(a, tick)
		if !ok {
			continue
		}
		rec := event.AgentAction{AgentName: a.Name, Action: act}
		if latency, err := o.lan.Route(a.ID, network.ServerID); err != nil {
			rec.NetworkError = err.Error()
		} else {
			rec.Delivered = true
			rec.LatencyMs = float64(latency) / float64(time.Millisecond)
		}
		out = append(out, o.appendLocked(tick, rec))
		batch = append(batch, submitted{a, act})
	}
	o.mu.Unlock()

	if o.detector != nil {
		for _, s := range batch {
			d, ok := o.detector.ProcessAction(ctx, s.agent.ID, s.agent.Name, s.action)
			if !ok {
				continue
			}
			o.mu.Lock()
			s.agent.Stats.SuspiciousActions++
			out = append(out, o.appendLocked(tick, event.CheatDetected{Detection: d}))
			o.mu.Unlock()
		}
	}

	o.mu.Lock()
	o.snapshot = o.lan.Snapshot()
	if o.rand.Float64() < issueChance {
		out = append(out, o.appendLocked(tick, event.NetworkIssue{Issue: o.lan.InjectIssue()}))
	}
	if o.voice != nil && o.rand.Float64() < voiceChance {
		out = append(out, o.appendLocked(tick, event.VoiceActivity{Activity: o.voice.SimulateActivity()}))
	}
	if tick%statsEvery == 0 {
		out = append(out, o.appendLocked(tick, event.MatchStats{Elapsed: tick, Stats: o.statsLocked()}))
	}
	over := tick >= o.cfg.MatchDuration
	o.mu.Unlock()

	o.notify(out)
	return over
}

// finish appends match_end, retires the roster and returns to Idle unless
// the orchestrator was shut down.
func (o *Orchestrator) finish() {
	o.mu.Lock()
	stats := o.statsLocked()
	ev := o.appendLocked(o.tick, event.MatchEnd{
		MatchID:     o.matchID,
		Duration:    o.cfg.MatchDuration,
		Elapsed:     o.tick,
		Stopped:     o.wasStopped,
		FinalStats:  stats,
		TotalEvents: len(o.events) + 1,
	})
	for _, a := range o.agents {
		a.Active = false
		o.lan.Disconnect(a.ID)
		if o.voice != nil {
			o.voice.RemoveSpeaker(a.ID)
		}
	}
	if !o.closed {
		o.state = StateIdle
	}
	o.log.Info("match ended", "match_id", o.matchID, "ticks", o.tick, "events", len(o.events), "stopped", o.wasStopped)
	o.mu.Unlock()
	o.notify([]event.Event{ev})
}
