package event

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/network"
	"ghostlan-sim/internal/voice"
)

func sampleEvents() []Event {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stats := Stats{TotalKills: 3, TotalDeaths: 2, ActivePlayers: 10, Network: network.Stats{TotalPackets: 500}}
	data := []Data{
		AgentJoined{AgentID: "agent-0001", AgentName: "ShadowByte", Team: agent.TeamT, Behavior: agent.BehaviorCheat, CheatProfile: agent.CheatAimbot, SkillLevel: 7},
		AgentJoined{AgentID: "agent-0002", AgentName: "NeonSniper", Team: agent.TeamCT, Behavior: agent.BehaviorNormal, SkillLevel: 3},
		AgentAction{AgentName: "ShadowByte", Delivered: true, LatencyMs: 5, Action: agent.Action{
			AgentID: "agent-0001", Type: agent.ActionShoot, Tick: 4,
			Payload: agent.ShootPayload{Weapon: "AWP", Accuracy: agent.Float(0.97), ReactionTime: agent.Float(0.04), Headshot: true},
		}},
		AgentAction{AgentName: "NeonSniper", NetworkError: network.ErrPacketLost.Error(), Action: agent.Action{
			AgentID: "agent-0002", Type: agent.ActionCommunicate, Tick: 4,
			Payload: agent.CommunicatePayload{Message: agent.String("Rush B!"), Channel: "team"},
		}},
		NetworkIssue{network.Issue{ID: "iss-1", Type: network.IssueJitter, Severity: network.SeverityLow, AffectedAgentIDs: []string{"agent-0001"}, StartTick: 4, DurationSeconds: 12, CreatedAt: ts}},
		NetworkIssue{network.Issue{ID: "iss-2", Type: network.IssueHighLatency, Severity: network.SeverityHigh, DurationSeconds: 200, CreatedAt: ts}},
		VoiceActivity{voice.Activity{SpeakerID: "agent-0002", Type: voice.ActivitySpeech, Duration: 1.5, Quality: voice.QualityGood, Content: "Clear!", Timestamp: ts}},
		MatchStats{Elapsed: 30, Stats: stats},
		CheatDetected{anticheat.Detection{
			ID: "DET_000001", PlayerID: "agent-0001", PlayerName: "ShadowByte", CheatType: anticheat.CheatAimbot,
			Severity: anticheat.SeverityHigh, Confidence: 0.9, RuleID: "AIMBOT_001",
			Evidence: map[string]any{"accuracy": 0.97}, Timestamp: ts,
		}},
		MatchEnd{MatchID: "match-1", Duration: 420, Elapsed: 31, FinalStats: stats, TotalEvents: 10},
	}
	out := make([]Event, len(data))
	for i, d := range data {
		out[i] = New(int64(i+1), "match-1", 4, ts, d)
	}
	return out
}

func TestEventsMatchSchema(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "event.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	for _, ev := range sampleEvents() {
		b, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal %s: %v", ev.Type, err)
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			t.Fatalf("unmarshal %s: %v", ev.Type, err)
		}
		if err := schema.Validate(doc); err != nil {
			t.Fatalf("%s does not match schema: %v\n%s", ev.Type, err, b)
		}
	}

	var bad any
	_ = json.Unmarshal([]byte(`{"id":1,"type":"cheat_detected","match_id":"m","tick":1,"timestamp":"x","data":{"detection_id":"D1","player_id":"p","cheat_type":"aimbot","severity":"high","confidence":2,"rule_triggered":"AIMBOT_001","evidence":{}}}`), &bad)
	if err := schema.Validate(bad); err == nil {
		t.Fatalf("expected schema violation")
	}
}

func TestDecodeIsTypeDirected(t *testing.T) {
	for _, ev := range sampleEvents() {
		b, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got Event
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("decode %s: %v", ev.Type, err)
		}
		if got.Data == nil || got.Data.EventType() != ev.Type || got.ID != ev.ID {
			t.Fatalf("decoded %s as %T", ev.Type, got.Data)
		}
		if a, ok := got.Data.(AgentAction); ok && a.Action.Payload.Kind() != a.Action.Type {
			t.Fatalf("action payload %T for %s", a.Action.Payload, a.Action.Type)
		}
	}

	var ev Event
	if err := json.Unmarshal([]byte(`{"type":"round_won","data":{}}`), &ev); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestTypesCoverDecoder(t *testing.T) {
	for _, typ := range Types() {
		if _, err := decodeData(typ, nil); err != nil {
			t.Fatalf("no decoder for %s: %v", typ, err)
		}
	}
}
