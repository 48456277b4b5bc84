package agent

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionType enumerates what an agent can do on a tick.
type ActionType string

const (
	ActionMove         ActionType = "move"
	ActionShoot        ActionType = "shoot"
	ActionReload       ActionType = "reload"
	ActionSwitchWeapon ActionType = "switch_weapon"
	ActionUseAbility   ActionType = "use_ability"
	ActionCommunicate  ActionType = "communicate"
)

// ActionTypes lists the action types in weight-table order.
func ActionTypes() []ActionType {
	return []ActionType{ActionMove, ActionShoot, ActionReload, ActionSwitchWeapon, ActionUseAbility, ActionCommunicate}
}

// ErrUnknownActionType is returned when decoding an action with an unrecognized type.
var ErrUnknownActionType = errors.New("unknown action type")

// CheatFlags are markers any payload may carry.
type CheatFlags struct {
	MacroPattern    bool `json:"macro_pattern,omitempty"`
	RepetitionCount int  `json:"repetition_count,omitempty"`
}

// Flags returns the cheat markers of a payload.
func (f CheatFlags) Flags() CheatFlags { return f }

// Payload is the type-specific body of an action.
type Payload interface {
	Flags() CheatFlags
	Kind() ActionType
}

// MovePayload describes a relocation. Speed is the measured movement speed.
type MovePayload struct {
	CheatFlags
	Direction string   `json:"direction"`
	Speed     *float64 `json:"speed,omitempty"`
	Distance  float64  `json:"distance"`
	Target    Position `json:"target_position"`
}

// ShootPayload describes a shot fired at a target.
type ShootPayload struct {
	CheatFlags
	TargetID       string   `json:"target_id"`
	Weapon         string   `json:"weapon"`
	Accuracy       *float64 `json:"accuracy,omitempty"`
	Damage         int      `json:"damage"`
	Headshot       bool     `json:"headshot"`
	ReactionTime   *float64 `json:"reaction_time,omitempty"`
	Position       Position `json:"position"`
	ThroughWall    bool     `json:"through_wall,omitempty"`
	TargetVisible  *bool    `json:"target_visible,omitempty"`
	TargetDistance float64  `json:"target_distance,omitempty"`
}

// ReloadPayload describes a reload.
type ReloadPayload struct {
	CheatFlags
	Weapon   string  `json:"weapon"`
	Duration float64 `json:"duration"`
}

// SwitchWeaponPayload describes a weapon swap.
type SwitchWeaponPayload struct {
	CheatFlags
	From     string  `json:"from_weapon"`
	To       string  `json:"to_weapon"`
	Duration float64 `json:"duration"`
}

// AbilityPayload describes utility usage.
type AbilityPayload struct {
	CheatFlags
	Ability string   `json:"ability"`
	Target  Position `json:"target_position"`
}

// CommunicatePayload is a chat or voice callout.
type CommunicatePayload struct {
	CheatFlags
	Message  *string `json:"message,omitempty"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

func (MovePayload) Kind() ActionType         { return ActionMove }
func (ShootPayload) Kind() ActionType        { return ActionShoot }
func (ReloadPayload) Kind() ActionType       { return ActionReload }
func (SwitchWeaponPayload) Kind() ActionType { return ActionSwitchWeapon }
func (AbilityPayload) Kind() ActionType      { return ActionUseAbility }
func (CommunicatePayload) Kind() ActionType  { return ActionCommunicate }

// Action is an immutable record of one thing an agent did on a tick.
type Action struct {
	AgentID string     `json:"agent_id"`
	Type    ActionType `json:"type"`
	Tick    int        `json:"tick"`
	Payload Payload    `json:"data"`
}

// UnmarshalJSON decodes the payload according to the action type.
func (a *Action) UnmarshalJSON(b []byte) error {
	var raw struct {
		AgentID string          `json:"agent_id"`
		Type    ActionType      `json:"type"`
		Tick    int             `json:"tick"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p, err := decodePayload(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	*a = Action{AgentID: raw.AgentID, Type: raw.Type, Tick: raw.Tick, Payload: p}
	return nil
}

func decodePayload(t ActionType, data json.RawMessage) (Payload, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	switch t {
	case ActionMove:
		var p MovePayload
		err := json.Unmarshal(data, &p)
		return p, err
	case ActionShoot:
		var p ShootPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case ActionReload:
		var p ReloadPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case ActionSwitchWeapon:
		var p SwitchWeaponPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case ActionUseAbility:
		var p AbilityPayload
		err := json.Unmarshal(data, &p)
		return p, err
	case ActionCommunicate:
		var p CommunicatePayload
		err := json.Unmarshal(data, &p)
		return p, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, t)
}

// Float returns a pointer to v, for building payload measurements.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
