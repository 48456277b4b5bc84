package network

import (
	"context"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"ghostlan-sim/internal/logging"
)

// ServerID is the endpoint every agent reports its actions to.
const ServerID = "server"

// LAN simulates the match network: connected endpoints, rolling traffic
// statistics and transient faults.
type LAN struct {
	mu        sync.Mutex
	cond      Conditions
	connected []string
	issues    []Issue
	stats     Stats
	tick      int

	rand     *rand.Rand
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	interval time.Duration
	log      *slog.Logger
}

// Option customizes a LAN.
type Option func(*LAN)

// WithRand sets the random source.
func WithRand(r *rand.Rand) Option { return func(l *LAN) { l.rand = r } }

// WithClock sets the time source used for issue expiry.
func WithClock(now func() time.Time) Option { return func(l *LAN) { l.now = now } }

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(l *LAN) { l.log = log } }

// WithMonitorInterval sets the period of Run.
func WithMonitorInterval(d time.Duration) Option { return func(l *LAN) { l.interval = d } }

// WithSleep replaces the transmission delay, mainly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(l *LAN) { l.sleep = fn }
}

// New creates a LAN with the given baseline conditions.
func New(cond Conditions, opts ...Option) (*LAN, error) {
	if err := cond.Validate(); err != nil {
		return nil, err
	}
	l := &LAN{
		cond:     cond,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		sleep:    sleepCtx,
		interval: time.Second,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Connect registers an endpoint. It reports false if it was already connected.
func (l *LAN) Connect(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.connected, id) {
		return false
	}
	l.connected = append(l.connected, id)
	l.log.Debug("endpoint connected", "endpoint", id)
	return true
}

// Disconnect removes an endpoint. It reports false if it was not connected.
func (l *LAN) Disconnect(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.Index(l.connected, id)
	if i < 0 {
		return false
	}
	l.connected = slices.Delete(l.connected, i, i+1)
	l.log.Debug("endpoint disconnected", "endpoint", id)
	return true
}

// Connected returns the registered endpoints in connection order.
func (l *LAN) Connected() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.connected)
}

// SetTick records the current match tick; new issues carry it as StartTick.
func (l *LAN) SetTick(tick int) {
	l.mu.Lock()
	l.tick = tick
	l.mu.Unlock()
}

// Conditions returns the configured baseline.
func (l *LAN) Conditions() Conditions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cond
}

// Route decides the fate of a packet without waiting for it. Unconnected
// endpoints fail before any counter is touched.
func (l *LAN) Route(from, to string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !slices.Contains(l.connected, from) || !slices.Contains(l.connected, to) {
		return 0, ErrNotConnected
	}
	l.stats.TotalPackets++
	if l.rand.Float64() < l.cond.LossRate {
		l.stats.DroppedPackets++
		return 0, ErrPacketLost
	}
	latency := l.cond.BaseLatencyMs
	for _, is := range l.issues {
		if !is.Affects(from, to) {
			continue
		}
		switch is.Type {
		case IssueHighLatency:
			latency *= 3
		case IssueJitter:
			latency += 5 + l.rand.Float64()*10
		case IssueConnectionDrop:
			l.stats.DroppedPackets++
			return 0, ErrConnectionDropped
		case IssuePacketLoss, IssueBandwidthThrottle:
		}
	}
	return time.Duration(latency * float64(time.Millisecond)), nil
}

// SendPacket routes a packet and waits out its simulated latency.
func (l *LAN) SendPacket(ctx context.Context, from, to string, payload any) (Delivery, error) {
	latency, err := l.Route(from, to)
	if err != nil {
		return Delivery{}, err
	}
	if err := l.sleep(ctx, latency); err != nil {
		return Delivery{}, err
	}
	return Delivery{From: from, To: to, Latency: latency, Payload: payload, Delivered: l.now()}, nil
}

// Step runs one monitor pass: sample traffic, maybe spawn an issue, expire
// elapsed issues. It returns the issue spawned, if any.
func (l *LAN) Step() (Issue, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	packets := 100 + l.rand.Intn(901)
	l.stats.TotalPackets += packets
	l.stats.DroppedPackets += int(float64(packets) * l.cond.LossRate)

	current := l.cond.BaseLatencyMs + (l.rand.Float64()*4 - 2)
	l.stats.AverageLatency = l.stats.AverageLatency*0.9 + current*0.1
	if current > l.stats.PeakLatency {
		l.stats.PeakLatency = current
	}
	bw := l.cond.BandwidthMbps
	l.stats.BandwidthUsage = bw*0.3 + l.rand.Float64()*bw*0.5

	var spawned Issue
	ok := false
	if l.rand.Float64() > l.cond.Stability {
		spawned, ok = l.newIssueLocked(), true
	}
	l.expireLocked()
	return spawned, ok
}

// InjectIssue forces a new random issue.
func (l *LAN) InjectIssue() Issue {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.newIssueLocked()
}

func (l *LAN) newIssueLocked() Issue {
	types := IssueTypes()
	t := types[l.rand.Intn(len(types))]

	spec := severities[len(severities)-1]
	v := l.rand.Float64()
	for _, s := range severities {
		if v < s.weight {
			spec = s
			break
		}
		v -= s.weight
	}

	// Only agents are affected; the server endpoint is never a candidate.
	agents := slices.DeleteFunc(slices.Clone(l.connected), func(id string) bool { return id == ServerID })
	var affected []string
	if n := min(5, len(agents)); n > 0 {
		k := 1 + l.rand.Intn(n)
		perm := l.rand.Perm(len(agents))[:k]
		for _, i := range perm {
			affected = append(affected, agents[i])
		}
	}

	is := Issue{
		ID:               uuid.NewString(),
		Type:             t,
		Severity:         spec.severity,
		AffectedAgentIDs: affected,
		StartTick:        l.tick,
		DurationSeconds:  spec.min + l.rand.Float64()*(spec.max-spec.min),
		Description:      describe(t, len(affected)),
		CreatedAt:        l.now(),
	}
	l.issues = append(l.issues, is)
	l.log.Warn("network issue", "type", is.Type, "severity", is.Severity, "affected", len(affected))
	return is
}

func (l *LAN) expireLocked() {
	now := l.now()
	l.issues = slices.DeleteFunc(l.issues, func(is Issue) bool {
		if is.Remaining(now) > 0 {
			return false
		}
		l.log.Info("network issue resolved", "id", is.ID, "type", is.Type)
		return true
	})
}

// Snapshot reports the effective conditions with every active issue applied.
func (l *LAN) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	latency := l.cond.BaseLatencyMs
	for _, is := range l.issues {
		switch is.Type {
		case IssueHighLatency:
			latency *= 3
		case IssueJitter:
			latency += 5 + l.rand.Float64()*10
		}
	}
	return Snapshot{
		LatencyMs:     latency,
		LossRate:      l.cond.LossRate,
		BandwidthMbps: l.cond.BandwidthMbps,
		JitterMs:      l.cond.JitterMs,
		Stability:     l.cond.Stability,
		ActiveIssues:  len(l.issues),
	}
}

// Stats returns a copy of the rolling counters.
func (l *LAN) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	if s.TotalPackets > 0 {
		s.PacketLossRate = float64(s.DroppedPackets) / float64(s.TotalPackets)
	}
	s.ConnectedAgents = len(l.connected)
	s.ActiveIssues = len(l.issues)
	return s
}

// ActiveIssues returns the issues that have not yet expired.
func (l *LAN) ActiveIssues() []Issue {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.issues)
}

// Reset disconnects every endpoint and clears issues and counters.
func (l *LAN) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = nil
	l.issues = nil
	l.stats = Stats{}
	l.tick = 0
}

// Run executes Step every monitor interval until ctx is done.
func (l *LAN) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	log.Info("starting network monitor", "interval", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Step()
		case <-ctx.Done():
			log.Info("stopping network monitor")
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
