package anticheat

import (
	"fmt"
	"regexp"
)

// Rule is a static detection rule. Rules are immutable once an Engine is built.
type Rule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CheatType   CheatType `json:"cheat_type"`
	Severity    Severity  `json:"severity"`
	Threshold   float64   `json:"threshold"`
	Weight      float64   `json:"weight"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
}

// Rule ids referenced by the detectors.
const (
	RuleAimbotAccuracy  = "AIMBOT_001"
	RuleAimbotSnap      = "AIMBOT_002"
	RuleWallPenetration = "WALLHACK_001"
	RuleWallTracking    = "WALLHACK_002"
	RuleSpeed           = "SPEEDHACK_001"
	RuleInfoLeak        = "ESP_001"
	RuleRepetition      = "MACRO_001"
	RuleInstantReaction = "TRIGGERBOT_001"
)

// DefaultRules returns the built-in rule set, all enabled with weight 1.
func DefaultRules() []Rule {
	return []Rule{
		{RuleAimbotAccuracy, "High Accuracy Detection", CheatAimbot, SeverityHigh, 0.95, 1, true, "Detects unusually high accuracy over time"},
		{RuleAimbotSnap, "Instant Aim Detection", CheatAimbot, SeverityCritical, 0.1, 1, true, "Detects instant aim adjustments"},
		{RuleWallPenetration, "Wall Penetration Detection", CheatWallhack, SeverityHigh, 0.8, 1, true, "Detects shooting through walls"},
		{RuleWallTracking, "Enemy Tracking Detection", CheatWallhack, SeverityMedium, 0.7, 1, true, "Detects tracking enemies through walls"},
		{RuleSpeed, "Movement Speed Detection", CheatSpeedhack, SeverityHigh, 1.5, 1, true, "Detects movement speed exceeding limits"},
		{RuleInfoLeak, "Information Leak Detection", CheatESP, SeverityHigh, 0.85, 1, true, "Detects access to hidden information"},
		{RuleRepetition, "Pattern Repetition Detection", CheatMacro, SeverityMedium, 0.7, 1, true, "Detects repetitive input patterns"},
		{RuleInstantReaction, "Instant Reaction Detection", CheatTriggerbot, SeverityHigh, 0.05, 1, true, "Detects instant reactions to targets"},
	}
}

var ruleID = regexp.MustCompile(`^[A-Z]+_[0-9]{3}$`)

// RuleOverride toggles or re-weights a rule by id.
type RuleOverride struct {
	ID      string
	Enabled *bool
	Weight  *float64
}

// ApplyOverrides returns a copy of rules with the overrides applied. Unknown
// ids are an error.
func ApplyOverrides(rules []Rule, overrides []RuleOverride) ([]Rule, error) {
	out := make([]Rule, len(rules))
	copy(out, rules)
	for _, o := range overrides {
		found := false
		for i := range out {
			if out[i].ID != o.ID {
				continue
			}
			found = true
			if o.Enabled != nil {
				out[i].Enabled = *o.Enabled
			}
			if o.Weight != nil {
				out[i].Weight = *o.Weight
			}
		}
		if !found {
			return nil, fmt.Errorf("override for unknown rule %q", o.ID)
		}
	}
	return out, nil
}

func indexRules(rules []Rule) (map[string]Rule, error) {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		if !ruleID.MatchString(r.ID) {
			return nil, fmt.Errorf("invalid rule id %q", r.ID)
		}
		if _, dup := m[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		if r.Weight < 0 {
			return nil, fmt.Errorf("rule %s: negative weight %v", r.ID, r.Weight)
		}
		m[r.ID] = r
	}
	return m, nil
}
