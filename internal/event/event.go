// Package event defines the match event records streamed to observers and sinks.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/network"
	"ghostlan-sim/internal/voice"
)

// Type is the kind of a match event.
type Type string

const (
	TypeAgentJoined   Type = "agent_joined"
	TypeAgentAction   Type = "agent_action"
	TypeNetworkIssue  Type = "network_issue"
	TypeVoiceActivity Type = "voice_activity"
	TypeMatchStats    Type = "match_stats"
	TypeMatchEnd      Type = "match_end"
	TypeCheatDetected Type = "cheat_detected"
)

// Types lists every event type.
func Types() []Type {
	return []Type{TypeAgentJoined, TypeAgentAction, TypeNetworkIssue, TypeVoiceActivity, TypeMatchStats, TypeMatchEnd, TypeCheatDetected}
}

// ErrUnknownType is returned when decoding an event of an unrecognized type.
var ErrUnknownType = errors.New("unknown event type")

// Data is the typed body of an event.
type Data interface {
	EventType() Type
}

// Event is one entry of the match event log.
type Event struct {
	ID        int64     `json:"id"`
	Type      Type      `json:"type"`
	MatchID   string    `json:"match_id"`
	Tick      int       `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
	Data      Data      `json:"data"`
}

// New builds an event whose type follows its data.
func New(id int64, matchID string, tick int, ts time.Time, d Data) Event {
	return Event{ID: id, Type: d.EventType(), MatchID: matchID, Tick: tick, Timestamp: ts, Data: d}
}

// AgentJoined announces an agent entering the match.
type AgentJoined struct {
	AgentID      string             `json:"agent_id"`
	AgentName    string             `json:"agent_name"`
	Team         agent.Team         `json:"team"`
	Behavior     agent.Behavior     `json:"behavior"`
	CheatProfile agent.CheatProfile `json:"cheat_type,omitempty"`
	SkillLevel   int                `json:"skill_level"`
}

// AgentAction records an action and what the LAN did with it.
type AgentAction struct {
	AgentName    string       `json:"agent_name"`
	Action       agent.Action `json:"action"`
	Delivered    bool         `json:"delivered"`
	LatencyMs    float64      `json:"latency_ms"`
	NetworkError string       `json:"network_error,omitempty"`
}

// NetworkIssue records a fault injected on the LAN.
type NetworkIssue struct {
	network.Issue
}

// VoiceActivity records one voice chat sample.
type VoiceActivity struct {
	voice.Activity
}

// Stats are match-wide aggregates.
type Stats struct {
	TotalKills       int           `json:"total_kills"`
	TotalDeaths      int           `json:"total_deaths"`
	ActivePlayers    int           `json:"active_players"`
	SuspiciousEvents int           `json:"suspicious_events"`
	Network          network.Stats `json:"network"`
	Voice            *voice.Stats  `json:"voice,omitempty"`
}

// MatchStats is the periodic aggregate snapshot.
type MatchStats struct {
	Elapsed int   `json:"elapsed"`
	Stats   Stats `json:"stats"`
}

// MatchEnd closes a match log.
type MatchEnd struct {
	MatchID     string `json:"match_id"`
	Duration    int    `json:"duration"`
	Elapsed     int    `json:"elapsed"`
	Stopped     bool   `json:"stopped"`
	FinalStats  Stats  `json:"final_stats"`
	TotalEvents int    `json:"total_events"`
}

// CheatDetected mirrors a detection into the match log.
type CheatDetected struct {
	anticheat.Detection
}

func (AgentJoined) EventType() Type   { return TypeAgentJoined }
func (AgentAction) EventType() Type   { return TypeAgentAction }
func (NetworkIssue) EventType() Type  { return TypeNetworkIssue }
func (VoiceActivity) EventType() Type { return TypeVoiceActivity }
func (MatchStats) EventType() Type    { return TypeMatchStats }
func (MatchEnd) EventType() Type      { return TypeMatchEnd }
func (CheatDetected) EventType() Type { return TypeCheatDetected }

// UnmarshalJSON decodes Data according to the event type.
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID        int64           `json:"id"`
		Type      Type            `json:"type"`
		MatchID   string          `json:"match_id"`
		Tick      int             `json:"tick"`
		Timestamp time.Time       `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d, err := decodeData(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	*e = Event{ID: raw.ID, Type: raw.Type, MatchID: raw.MatchID, Tick: raw.Tick, Timestamp: raw.Timestamp, Data: d}
	return nil
}

func decodeData(t Type, raw json.RawMessage) (Data, error) {
	switch t {
	case TypeAgentJoined:
		return decode[AgentJoined](raw)
	case TypeAgentAction:
		return decode[AgentAction](raw)
	case TypeNetworkIssue:
		return decode[NetworkIssue](raw)
	case TypeVoiceActivity:
		return decode[VoiceActivity](raw)
	case TypeMatchStats:
		return decode[MatchStats](raw)
	case TypeMatchEnd:
		return decode[MatchEnd](raw)
	case TypeCheatDetected:
		return decode[CheatDetected](raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

func decode[T Data](raw json.RawMessage) (Data, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EventTableName is the GreptimeDB table for match events. It defaults to
// "ghostlan_events" and can be overridden with GHOSTLAN_EVENTS_TABLE.
var EventTableName = func() string {
	if env := os.Getenv("GHOSTLAN_EVENTS_TABLE"); env != "" {
		return env
	}
	return "ghostlan_events"
}()

// DetectionTableName is the GreptimeDB table for detections. It defaults to
// "ghostlan_detections" and can be overridden with GHOSTLAN_DETECTIONS_TABLE.
var DetectionTableName = func() string {
	if env := os.Getenv("GHOSTLAN_DETECTIONS_TABLE"); env != "" {
		return env
	}
	return "ghostlan_detections"
}()
