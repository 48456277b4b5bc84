package anticheat

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedAction marks an action whose payload does not match its type or
// lacks the fields a rule needs. ProcessAction treats it as "no detection".
var ErrMalformedAction = errors.New("malformed action")

// CheatType enumerates the kinds of cheating the engine can report.
type CheatType string

const (
	CheatAimbot     CheatType = "aimbot"
	CheatWallhack   CheatType = "wallhack"
	CheatSpeedhack  CheatType = "speedhack"
	CheatESP        CheatType = "esp"
	CheatMacro      CheatType = "macro"
	CheatTriggerbot CheatType = "triggerbot"
	CheatBunnyhop   CheatType = "bunnyhop"
	CheatAutostrafe CheatType = "autostrafe"
	CheatInjection  CheatType = "injection"
	CheatUnknown    CheatType = "unknown"
)

// Severity grades a detection. Values order low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// SeverityForConfidence classifies a detection confidence.
func SeverityForConfidence(c float64) Severity {
	switch {
	case c >= 0.95:
		return SeverityCritical
	case c >= 0.8:
		return SeverityHigh
	case c >= 0.6:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Thresholds are the tunable limits the rules compare against.
type Thresholds struct {
	AimbotAccuracy       float64 `json:"aimbot_accuracy"`
	TriggerbotReaction   float64 `json:"triggerbot_reaction"`
	SpeedhackVelocity    float64 `json:"speedhack_velocity"`
	ActionRatePerSecond  float64 `json:"action_rate_per_second"`
	MinActionsForRate    int     `json:"min_actions_for_rate"`
	RecentDetectionBurst int     `json:"recent_detection_burst"`
}

// DefaultThresholds are the stock detection limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AimbotAccuracy:       0.95,
		TriggerbotReaction:   0.1,
		SpeedhackVelocity:    1.5,
		ActionRatePerSecond:  10,
		MinActionsForRate:    100,
		RecentDetectionBurst: 3,
	}
}

// Config configures an Engine.
type Config struct {
	Thresholds      Thresholds
	Rules           []Rule
	MonitorInterval time.Duration
	PatternInterval time.Duration
}

// DefaultConfig uses the stock rules and thresholds with 1s/5s loops.
func DefaultConfig() Config {
	return Config{
		Thresholds:      DefaultThresholds(),
		Rules:           DefaultRules(),
		MonitorInterval: time.Second,
		PatternInterval: 5 * time.Second,
	}
}

// Detection is an immutable finding that a rule fired for a player.
type Detection struct {
	ID          string         `json:"detection_id"`
	PlayerID    string         `json:"player_id"`
	PlayerName  string         `json:"player_name"`
	CheatType   CheatType      `json:"cheat_type"`
	Severity    Severity       `json:"severity"`
	Confidence  float64        `json:"confidence"`
	Evidence    map[string]any `json:"evidence"`
	RuleID      string         `json:"rule_triggered"`
	Description string         `json:"description"`
	MatchID     string         `json:"match_id,omitempty"`
	Tick        int            `json:"tick"`
	Timestamp   time.Time      `json:"timestamp"`
}

func (d Detection) String() string {
	return fmt.Sprintf("%s %s %s (%.2f via %s)", d.ID, d.PlayerName, d.CheatType, d.Confidence, d.RuleID)
}

// BehaviorPatterns are exponentially smoothed per-player measurements.
type BehaviorPatterns struct {
	AimAccuracy   float64 `json:"aim_accuracy"`
	MovementSpeed float64 `json:"movement_speed"`
	ReactionTime  float64 `json:"reaction_time"`
	HeadshotRatio float64 `json:"headshot_ratio"`

	shots, moves, reactions int
}

const smoothing = 0.1

// observe folds a sample into an average. The first sample seeds it.
func observe(avg *float64, n *int, v float64) {
	if *n == 0 {
		*avg = v
	} else {
		*avg = *avg*(1-smoothing) + v*smoothing
	}
	*n++
}

// Profile accumulates one player's behavior over a match.
type Profile struct {
	PlayerID              string
	PlayerName            string
	JoinTick              int
	JoinedAt              time.Time
	TotalActions          int
	SuspiciousActionCount int
	Detections            []Detection
	Patterns              BehaviorPatterns
	RiskScore             float64

	lastTick int
}

// ProfileSummary is the JSON view of a profile.
type ProfileSummary struct {
	PlayerID          string           `json:"player_id"`
	PlayerName        string           `json:"player_name"`
	JoinTick          int              `json:"join_tick"`
	JoinTime          time.Time        `json:"join_time"`
	TotalActions      int              `json:"total_actions"`
	SuspiciousActions int              `json:"suspicious_actions"`
	DetectionCount    int              `json:"detection_count"`
	RiskScore         float64          `json:"risk_score"`
	BehaviorPatterns  BehaviorPatterns `json:"behavior_patterns"`
}

func (p *Profile) summary() ProfileSummary {
	return ProfileSummary{
		PlayerID:          p.PlayerID,
		PlayerName:        p.PlayerName,
		JoinTick:          p.JoinTick,
		JoinTime:          p.JoinedAt,
		TotalActions:      p.TotalActions,
		SuspiciousActions: p.SuspiciousActionCount,
		DetectionCount:    len(p.Detections),
		RiskScore:         p.RiskScore,
		BehaviorPatterns:  p.Patterns,
	}
}

// Statistics summarizes the engine state.
type Statistics struct {
	TotalDetections  int               `json:"total_detections"`
	RecentDetections int               `json:"recent_detections"`
	ActivePlayers    int               `json:"active_players"`
	ByType           map[CheatType]int `json:"detection_by_type"`
	HighRiskPlayers  int               `json:"high_risk_players"`
}
