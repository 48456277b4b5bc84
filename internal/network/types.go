package network

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned when an endpoint is not registered on the LAN.
	ErrNotConnected = errors.New("endpoint not connected")
	// ErrPacketLost is returned when a packet is dropped by random loss.
	ErrPacketLost = errors.New("packet lost")
	// ErrConnectionDropped is returned while a connection_drop issue affects an endpoint.
	ErrConnectionDropped = errors.New("connection dropped")
)

// Conditions is the baseline quality of the LAN.
type Conditions struct {
	BaseLatencyMs float64 `json:"base_latency_ms"`
	LossRate      float64 `json:"packet_loss_rate"`
	BandwidthMbps float64 `json:"bandwidth_mbps"`
	JitterMs      float64 `json:"jitter_ms"`
	Stability     float64 `json:"connection_stability"`
}

// DefaultConditions is a healthy gigabit LAN.
func DefaultConditions() Conditions {
	return Conditions{BaseLatencyMs: 5, LossRate: 0.001, BandwidthMbps: 100, JitterMs: 2, Stability: 0.99}
}

// Validate rejects conditions the model cannot simulate.
func (c Conditions) Validate() error {
	switch {
	case c.BaseLatencyMs <= 0:
		return fmt.Errorf("base latency must be positive, got %v", c.BaseLatencyMs)
	case c.LossRate < 0 || c.LossRate > 1:
		return fmt.Errorf("loss rate must be within [0,1], got %v", c.LossRate)
	case c.BandwidthMbps <= 0:
		return fmt.Errorf("bandwidth must be positive, got %v", c.BandwidthMbps)
	case c.JitterMs < 0:
		return fmt.Errorf("jitter must not be negative, got %v", c.JitterMs)
	case c.Stability < 0 || c.Stability > 1:
		return fmt.Errorf("stability must be within [0,1], got %v", c.Stability)
	}
	return nil
}

// IssueType enumerates network faults.
type IssueType string

const (
	IssuePacketLoss        IssueType = "packet_loss"
	IssueHighLatency       IssueType = "high_latency"
	IssueBandwidthThrottle IssueType = "bandwidth_throttle"
	IssueConnectionDrop    IssueType = "connection_drop"
	IssueJitter            IssueType = "jitter"
)

// IssueTypes lists every fault type.
func IssueTypes() []IssueType {
	return []IssueType{IssuePacketLoss, IssueHighLatency, IssueBandwidthThrottle, IssueConnectionDrop, IssueJitter}
}

// Severity grades a network issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type severitySpec struct {
	severity Severity
	weight   float64
	min, max float64 // duration seconds
}

var severities = []severitySpec{
	{SeverityLow, 0.4, 5, 30},
	{SeverityMedium, 0.3, 30, 120},
	{SeverityHigh, 0.2, 120, 300},
	{SeverityCritical, 0.1, 300, 600},
}

// Issue is an active fault on the LAN.
type Issue struct {
	ID               string    `json:"id"`
	Type             IssueType `json:"type"`
	Severity         Severity  `json:"severity"`
	AffectedAgentIDs []string  `json:"affected_agents"`
	StartTick        int       `json:"start_tick"`
	DurationSeconds  float64   `json:"duration"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"timestamp"`
}

// Affects reports whether either endpoint is in the affected set.
func (i Issue) Affects(ids ...string) bool {
	for _, a := range i.AffectedAgentIDs {
		for _, id := range ids {
			if a == id {
				return true
			}
		}
	}
	return false
}

// Remaining is how long the issue stays active after now.
func (i Issue) Remaining(now time.Time) time.Duration {
	end := i.CreatedAt.Add(time.Duration(i.DurationSeconds * float64(time.Second)))
	if d := end.Sub(now); d > 0 {
		return d
	}
	return 0
}

func describe(t IssueType, n int) string {
	switch t {
	case IssuePacketLoss:
		return fmt.Sprintf("Packet loss detected affecting %d agents", n)
	case IssueHighLatency:
		return fmt.Sprintf("High latency spike affecting %d agents", n)
	case IssueBandwidthThrottle:
		return fmt.Sprintf("Bandwidth throttling affecting %d agents", n)
	case IssueConnectionDrop:
		return fmt.Sprintf("Connection drop affecting %d agents", n)
	case IssueJitter:
		return fmt.Sprintf("Network jitter affecting %d agents", n)
	}
	return fmt.Sprintf("Network issue affecting %d agents", n)
}

// Stats are rolling LAN counters.
type Stats struct {
	TotalPackets    int     `json:"total_packets"`
	DroppedPackets  int     `json:"dropped_packets"`
	PacketLossRate  float64 `json:"packet_loss_rate"`
	AverageLatency  float64 `json:"average_latency"`
	PeakLatency     float64 `json:"peak_latency"`
	BandwidthUsage  float64 `json:"bandwidth_usage"`
	ConnectedAgents int     `json:"connected_agents"`
	ActiveIssues    int     `json:"active_issues"`
}

// Snapshot is the current effective quality of the LAN.
type Snapshot struct {
	LatencyMs     float64 `json:"latency"`
	LossRate      float64 `json:"packet_loss"`
	BandwidthMbps float64 `json:"bandwidth"`
	JitterMs      float64 `json:"jitter"`
	Stability     float64 `json:"stability"`
	ActiveIssues  int     `json:"active_issues"`
}

// Delivery is the result of a successful packet send.
type Delivery struct {
	From      string        `json:"from"`
	To        string        `json:"to"`
	Latency   time.Duration `json:"latency"`
	Payload   any           `json:"data,omitempty"`
	Delivered time.Time     `json:"timestamp"`
}
