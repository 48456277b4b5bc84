package agent

import (
	"fmt"
	"math/rand"
)

// Behavior classifies an agent as playing fair or running a cheat.
type Behavior string

const (
	BehaviorNormal Behavior = "normal"
	BehaviorCheat  Behavior = "cheat"
)

// CheatProfile is the behavioral bias applied to a cheating agent.
type CheatProfile string

const (
	CheatNone      CheatProfile = ""
	CheatAimbot    CheatProfile = "aimbot"
	CheatWallhack  CheatProfile = "wallhack"
	CheatSpeedhack CheatProfile = "speedhack"
	CheatESP       CheatProfile = "esp"
	CheatMacro     CheatProfile = "macro"
)

// CheatProfiles lists every assignable profile.
func CheatProfiles() []CheatProfile {
	return []CheatProfile{CheatAimbot, CheatWallhack, CheatSpeedhack, CheatESP, CheatMacro}
}

// ParseCheatProfile validates a config string.
func ParseCheatProfile(s string) (CheatProfile, error) {
	p := CheatProfile(s)
	switch p {
	case CheatAimbot, CheatWallhack, CheatSpeedhack, CheatESP, CheatMacro:
		return p, nil
	}
	return CheatNone, fmt.Errorf("unknown cheat profile %q", s)
}

// TargetPriority is the policy an agent uses to pick targets.
type TargetPriority string

const (
	TargetClosest   TargetPriority = "closest"
	TargetWeakest   TargetPriority = "weakest"
	TargetStrongest TargetPriority = "strongest"
	TargetRandom    TargetPriority = "random"
)

// MovementStyle flavors how an agent moves around the map.
type MovementStyle string

const (
	StyleAggressive MovementStyle = "aggressive"
	StyleDefensive  MovementStyle = "defensive"
	StyleBalanced   MovementStyle = "balanced"
)

// Team is one side of the match.
type Team string

const (
	TeamT  Team = "T"
	TeamCT Team = "CT"
)

// Patterns are the tunable action parameters of an agent.
type Patterns struct {
	ActionFrequency  float64        `json:"action_frequency"`
	AccuracyModifier float64        `json:"accuracy_modifier"`
	ReactionTime     float64        `json:"reaction_time"`
	MovementStyle    MovementStyle  `json:"movement_style"`
	TargetPriority   TargetPriority `json:"target_priority"`
}

// Position is a point on the map with a facing.
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation,omitempty"`
}

// Stats aggregates an agent's match performance.
type Stats struct {
	Kills             int     `json:"kills"`
	Deaths            int     `json:"deaths"`
	Assists           int     `json:"assists"`
	Accuracy          float64 `json:"accuracy"`
	Shots             int     `json:"shots"`
	Headshots         int     `json:"headshots"`
	DamageDealt       int     `json:"damage_dealt"`
	DamageTaken       int     `json:"damage_taken"`
	MovementDistance  float64 `json:"movement_distance"`
	SuspiciousActions int     `json:"suspicious_actions"`
}

// Agent is a simulated match participant. It is owned by the orchestrator
// and must only be mutated under the orchestrator's lock.
type Agent struct {
	ID         string
	Name       string
	Team       Team
	Behavior   Behavior
	Cheat      CheatProfile
	SkillLevel int
	Active     bool
	Health     int
	Armor      int
	Weapon     string
	Position   Position
	Velocity   Position
	Cooldown   int
	Patterns   Patterns
	Stats      Stats

	baseline    Patterns
	cheatActive bool
}

// Names used when generating a roster.
var Names = []string{
	"ShadowByte", "NeonSniper", "QuantumFrag", "CyberNinja", "VirtualPhantom",
	"DataMiner", "CodeBreaker", "PixelWarrior", "GhostHunter", "NetRunner",
}

// NewAgent creates an inactive agent with freshly drawn baseline patterns.
func NewAgent(id, name string, team Team, cheat CheatProfile, skill int, r *rand.Rand) *Agent {
	behavior := BehaviorNormal
	if cheat != CheatNone {
		behavior = BehaviorCheat
	}
	styles := []MovementStyle{StyleAggressive, StyleDefensive, StyleBalanced}
	priorities := []TargetPriority{TargetClosest, TargetWeakest, TargetStrongest, TargetRandom}
	p := Patterns{
		ActionFrequency:  uniform(r, 0.5, 2.0),
		AccuracyModifier: uniform(r, 0.7, 1.3),
		ReactionTime:     uniform(r, 0.1, 0.5),
		MovementStyle:    styles[r.Intn(len(styles))],
		TargetPriority:   priorities[r.Intn(len(priorities))],
	}
	return &Agent{
		ID:         id,
		Name:       name,
		Team:       team,
		Behavior:   behavior,
		Cheat:      cheat,
		SkillLevel: skill,
		Health:     100,
		Armor:      100,
		Weapon:     weapons[0],
		Patterns:   p,
		baseline:   p,
	}
}

// Baseline returns the patterns drawn at creation, before any cheat adjustment.
func (a *Agent) Baseline() Patterns { return a.baseline }

// SuspicionScore is a 0..100 heuristic derived from the agent's own stats.
func (a *Agent) SuspicionScore() float64 {
	score := 0.0
	if a.Cheat != CheatNone {
		score += 50
	}
	if a.Stats.Kills > 20 {
		score += 20
	}
	if a.Stats.Accuracy > 0.9 {
		score += 15
	}
	kills := a.Stats.Kills
	if kills < 1 {
		kills = 1
	}
	if float64(a.Stats.Headshots)/float64(kills) > 0.8 {
		score += 10
	}
	if a.Stats.SuspiciousActions > 5 {
		score += 25
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Status is the JSON view of an agent.
type Status struct {
	ID             string       `json:"agent_id"`
	Name           string       `json:"name"`
	Team           Team         `json:"team"`
	Behavior       Behavior     `json:"behavior"`
	Cheat          CheatProfile `json:"cheat_type,omitempty"`
	SkillLevel     int          `json:"skill_level"`
	Active         bool         `json:"is_active"`
	Health         int          `json:"health"`
	Armor          int          `json:"armor"`
	Weapon         string       `json:"weapon"`
	Position       Position     `json:"position"`
	Stats          Stats        `json:"stats"`
	SuspicionScore float64      `json:"suspicion_score"`
}

// Status snapshots the agent.
func (a *Agent) Status() Status {
	return Status{
		ID:             a.ID,
		Name:           a.Name,
		Team:           a.Team,
		Behavior:       a.Behavior,
		Cheat:          a.Cheat,
		SkillLevel:     a.SkillLevel,
		Active:         a.Active,
		Health:         a.Health,
		Armor:          a.Armor,
		Weapon:         a.Weapon,
		Position:       a.Position,
		Stats:          a.Stats,
		SuspicionScore: a.SuspicionScore(),
	}
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
