package network

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"ghostlan-sim/internal/logging"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLAN(t *testing.T, cond Conditions, seed int64) (*LAN, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l, err := New(cond,
		WithRand(rand.New(rand.NewSource(seed))),
		WithClock(clk.Now),
		WithLogger(logging.Discard()),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, clk
}

func TestSendPacketNotConnectedLeavesCountersUntouched(t *testing.T) {
	l, _ := newTestLAN(t, DefaultConditions(), 1)
	l.Connect("agent-0001")
	before := l.Stats()

	_, err := l.SendPacket(context.Background(), "agent-0001", "agent-0002", "hi")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	_, err = l.SendPacket(context.Background(), "ghost-a", "ghost-b", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if after := l.Stats(); after != before {
		t.Fatalf("stats mutated: %+v -> %+v", before, after)
	}
}

func TestSendPacketDelivers(t *testing.T) {
	cond := DefaultConditions()
	cond.LossRate = 0
	l, _ := newTestLAN(t, cond, 2)
	l.Connect("a")
	l.Connect("b")
	d, err := l.SendPacket(context.Background(), "a", "b", 42)
	if err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	if d.Latency != 5*time.Millisecond || d.Payload != 42 {
		t.Fatalf("unexpected delivery %+v", d)
	}
	if l.Stats().TotalPackets != 1 {
		t.Fatalf("packet not counted")
	}
}

func TestSendPacketLoss(t *testing.T) {
	cond := DefaultConditions()
	cond.LossRate = 1
	l, _ := newTestLAN(t, cond, 3)
	l.Connect("a")
	l.Connect("b")
	if _, err := l.SendPacket(context.Background(), "a", "b", nil); !errors.Is(err, ErrPacketLost) {
		t.Fatalf("expected ErrPacketLost, got %v", err)
	}
	if s := l.Stats(); s.DroppedPackets != 1 || s.PacketLossRate != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestRouteAppliesIssues(t *testing.T) {
	cond := DefaultConditions()
	cond.LossRate = 0
	l, _ := newTestLAN(t, cond, 4)
	l.Connect("a")
	l.Connect("b")
	l.Connect("c")

	l.issues = []Issue{{Type: IssueHighLatency, AffectedAgentIDs: []string{"a"}, DurationSeconds: 60, CreatedAt: l.now()}}
	lat, err := l.Route("a", "c")
	if err != nil || lat != 15*time.Millisecond {
		t.Fatalf("high latency: got %v, %v", lat, err)
	}
	if lat, _ := l.Route("b", "c"); lat != 5*time.Millisecond {
		t.Fatalf("unaffected pair latency = %v", lat)
	}

	l.issues = []Issue{{Type: IssueJitter, AffectedAgentIDs: []string{"b"}, DurationSeconds: 60, CreatedAt: l.now()}}
	lat, _ = l.Route("a", "b")
	if lat < 10*time.Millisecond || lat > 20*time.Millisecond {
		t.Fatalf("jitter latency %v outside [10ms,20ms]", lat)
	}

	l.issues = []Issue{{Type: IssueConnectionDrop, AffectedAgentIDs: []string{"c"}, DurationSeconds: 60, CreatedAt: l.now()}}
	if _, err := l.Route("a", "c"); !errors.Is(err, ErrConnectionDropped) {
		t.Fatalf("expected ErrConnectionDropped, got %v", err)
	}
}

func TestSendPacketHonorsContext(t *testing.T) {
	cond := DefaultConditions()
	cond.LossRate = 0
	cond.BaseLatencyMs = 10_000
	l, err := New(cond, WithRand(rand.New(rand.NewSource(1))), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Connect("a")
	l.Connect("b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.SendPacket(ctx, "a", "b", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStepSpawnsAndExpiresIssues(t *testing.T) {
	cond := DefaultConditions()
	cond.Stability = 0
	l, clk := newTestLAN(t, cond, 5)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		l.Connect(id)
	}
	l.SetTick(12)
	is, ok := l.Step()
	if !ok {
		t.Fatalf("expected an issue with zero stability")
	}
	if n := len(is.AffectedAgentIDs); n < 1 || n > 5 {
		t.Fatalf("affected agents = %d", n)
	}
	if is.StartTick != 12 || is.ID == "" {
		t.Fatalf("unexpected issue %+v", is)
	}
	if is.DurationSeconds < 5 || is.DurationSeconds > 600 {
		t.Fatalf("duration %v out of range", is.DurationSeconds)
	}
	s := l.Stats()
	if s.TotalPackets < 100 || s.TotalPackets > 1000 || s.ActiveIssues != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}

	clk.Advance(11 * time.Minute)
	l.rand = rand.New(rand.NewSource(99))
	l.cond.Stability = 1
	l.Step()
	if n := len(l.ActiveIssues()); n != 0 {
		t.Fatalf("expected issues to expire, %d remain", n)
	}
}

func TestInjectIssueWithoutAgents(t *testing.T) {
	l, _ := newTestLAN(t, DefaultConditions(), 6)
	is := l.InjectIssue()
	if len(is.AffectedAgentIDs) != 0 {
		t.Fatalf("expected no affected agents, got %v", is.AffectedAgentIDs)
	}
	if snap := l.Snapshot(); snap.ActiveIssues != 1 {
		t.Fatalf("snapshot issues = %d", snap.ActiveIssues)
	}
}

func TestIssuesNeverAffectServer(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		l, _ := newTestLAN(t, DefaultConditions(), seed)
		l.Connect(ServerID)
		l.Connect("agent-0001")
		l.Connect("agent-0002")
		is := l.InjectIssue()
		if len(is.AffectedAgentIDs) == 0 {
			t.Fatalf("seed %d: issue affects no agents", seed)
		}
		for _, id := range is.AffectedAgentIDs {
			if id == ServerID {
				t.Fatalf("seed %d: issue %s affects the server", seed, is.Type)
			}
		}
	}
}

func TestInjectIssueWithOnlyServer(t *testing.T) {
	l, _ := newTestLAN(t, DefaultConditions(), 9)
	l.Connect(ServerID)
	if is := l.InjectIssue(); len(is.AffectedAgentIDs) != 0 {
		t.Fatalf("expected no affected agents, got %v", is.AffectedAgentIDs)
	}
}

func TestSeverityDurations(t *testing.T) {
	l, _ := newTestLAN(t, DefaultConditions(), 7)
	bounds := map[Severity][2]float64{}
	for _, s := range severities {
		bounds[s.severity] = [2]float64{s.min, s.max}
	}
	for i := 0; i < 200; i++ {
		is := l.InjectIssue()
		b := bounds[is.Severity]
		if is.DurationSeconds < b[0] || is.DurationSeconds > b[1] {
			t.Fatalf("%s duration %v outside %v", is.Severity, is.DurationSeconds, b)
		}
	}
}

func TestConnectDisconnect(t *testing.T) {
	l, _ := newTestLAN(t, DefaultConditions(), 8)
	if !l.Connect("a") || l.Connect("a") {
		t.Fatalf("connect should report first registration only")
	}
	if !l.Disconnect("a") || l.Disconnect("a") {
		t.Fatalf("disconnect should report removal only once")
	}
	if len(l.Connected()) != 0 {
		t.Fatalf("expected no endpoints")
	}
}

func TestNewRejectsInvalidConditions(t *testing.T) {
	bad := DefaultConditions()
	bad.LossRate = 2
	if _, err := New(bad); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	l, _ := newTestLAN(t, DefaultConditions(), 9)
	l.interval = time.Millisecond
	ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), logging.Discard()))
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop")
	}
	if l.Stats().TotalPackets == 0 {
		t.Fatalf("monitor never stepped")
	}
}
