package agent

import (
	"math"
	"math/rand"
	"strconv"
)

var (
	weapons   = []string{"AK47", "M4A1", "AWP", "Desert Eagle", "USP"}
	abilities = []string{"flash", "smoke", "grenade", "defuse", "plant"}
	callouts  = []string{"Enemy spotted!", "Need backup!", "Bomb planted!", "Clear!", "Rush B!", "Hold position!"}
	moveDirs  = []string{"forward", "backward", "left", "right"}

	// ESP users give away positions they should not know.
	leakCallouts = []string{"Two behind wall at A!", "Hidden enemy in tunnel!", "Sniper through wall, long!", "Invisible lurker mid!"}
)

var actionWeights = map[ActionType]float64{
	ActionMove:         0.4,
	ActionShoot:        0.3,
	ActionReload:       0.1,
	ActionSwitchWeapon: 0.05,
	ActionUseAbility:   0.05,
	ActionCommunicate:  0.1,
}

const (
	lowHealth          = 30
	killStreak         = 10
	killChance         = 0.3
	headshotChance     = 0.2
	aimbotHeadshot     = 0.8
	wallhackChance     = 0.3
	espLeakChance      = 0.5
	macroChance        = 0.1
	speedhackSpeedMult = 1.5
	speedhackDistMult  = 1.3
)

// Model drives agent decisions. It is not safe for concurrent use; the
// orchestrator calls it under its own lock.
type Model struct {
	rand *rand.Rand
}

// NewModel creates a behavior model drawing from r.
func NewModel(r *rand.Rand) *Model {
	return &Model{rand: r}
}

// Initialize activates the agent at a random spawn and applies its cheat
// profile adjustment. The adjustment is applied at most once per agent.
func (m *Model) Initialize(a *Agent) {
	a.Active = true
	a.Health = 100
	a.Armor = 100
	a.Position = Position{X: uniform(m.rand, -100, 100), Y: uniform(m.rand, -100, 100)}
	if a.cheatActive || a.Cheat == CheatNone {
		return
	}
	a.cheatActive = true
	switch a.Cheat {
	case CheatAimbot:
		a.Patterns.AccuracyModifier *= 2.0
		a.Patterns.ReactionTime *= 0.3
	case CheatSpeedhack:
		a.Patterns.ActionFrequency *= 1.5
	case CheatWallhack:
		a.Patterns.TargetPriority = TargetClosest
	case CheatESP:
		a.Patterns.TargetPriority = TargetWeakest
	case CheatMacro:
		a.Patterns.ActionFrequency *= 1.2
	}
}

// GenerateAction produces the agent's action for tick, or false when the
// agent is inactive, dead, or cooling down.
func (m *Model) GenerateAction(a *Agent, tick int) (Action, bool) {
	if !a.Active || a.Health <= 0 {
		return Action{}, false
	}
	if a.Cooldown > 0 {
		a.Cooldown--
		return Action{}, false
	}

	t := m.pickType(a)
	var flags CheatFlags
	if a.Cheat == CheatMacro && m.rand.Float64() < macroChance {
		flags = CheatFlags{MacroPattern: true, RepetitionCount: 3 + m.rand.Intn(6)}
	}

	var p Payload
	switch t {
	case ActionMove:
		p = m.move(a, flags)
	case ActionShoot:
		p = m.shoot(a, flags)
	case ActionReload:
		p = ReloadPayload{CheatFlags: flags, Weapon: a.Weapon, Duration: uniform(m.rand, 1.5, 3.0)}
	case ActionSwitchWeapon:
		p = m.switchWeapon(a, flags)
	case ActionUseAbility:
		p = AbilityPayload{
			CheatFlags: flags,
			Ability:    abilities[m.rand.Intn(len(abilities))],
			Target:     m.near(a.Position, 10),
		}
	case ActionCommunicate:
		channel := "team"
		if m.rand.Intn(2) == 1 {
			channel = "global"
		}
		msg := callouts[m.rand.Intn(len(callouts))]
		if a.Cheat == CheatESP && m.rand.Float64() < espLeakChance {
			msg = leakCallouts[m.rand.Intn(len(leakCallouts))]
		}
		p = CommunicatePayload{
			CheatFlags: flags,
			Message:    String(msg),
			Channel:    channel,
			Duration:   uniform(m.rand, 1, 3),
		}
	}

	a.Cooldown = int(math.Round(1 / a.Patterns.ActionFrequency))
	return Action{AgentID: a.ID, Type: t, Tick: tick, Payload: p}, true
}

func (m *Model) pickType(a *Agent) ActionType {
	types := ActionTypes()
	weights := make([]float64, len(types))
	total := 0.0
	for i, t := range types {
		w := actionWeights[t]
		if t == ActionMove && a.Health < lowHealth {
			w *= 1.5
		}
		if t == ActionShoot && a.Stats.Kills > killStreak {
			w *= 1.2
		}
		weights[i] = w
		total += w
	}
	v := m.rand.Float64() * total
	for i, w := range weights {
		if v < w {
			return types[i]
		}
		v -= w
	}
	return types[len(types)-1]
}

func (m *Model) move(a *Agent, flags CheatFlags) MovePayload {
	speed := uniform(m.rand, 0.5, 1.0)
	dist := uniform(m.rand, 5, 20)
	if a.Cheat == CheatSpeedhack {
		speed *= speedhackSpeedMult
		dist *= speedhackDistMult
	}
	target := m.near(a.Position, 20)
	prev := a.Position
	a.Position = target
	a.Velocity = Position{X: target.X - prev.X, Y: target.Y - prev.Y}
	a.Stats.MovementDistance += dist
	return MovePayload{
		CheatFlags: flags,
		Direction:  moveDirs[m.rand.Intn(len(moveDirs))],
		Speed:      Float(speed),
		Distance:   dist,
		Target:     target,
	}
}

func (m *Model) shoot(a *Agent, flags CheatFlags) ShootPayload {
	acc := math.Min(1, uniform(m.rand, 0.3, 1.0)*a.Patterns.AccuracyModifier)
	headshot := m.rand.Float64() < headshotChance
	p := ShootPayload{
		CheatFlags:   flags,
		TargetID:     "TARGET_" + strconv.Itoa(1+m.rand.Intn(10)),
		Weapon:       a.Weapon,
		Damage:       20 + m.rand.Intn(81),
		ReactionTime: Float(a.Patterns.ReactionTime * uniform(m.rand, 0.8, 1.2)),
		Position:     a.Position,
	}
	switch a.Cheat {
	case CheatAimbot:
		acc = math.Min(1, acc*2)
		headshot = m.rand.Float64() < aimbotHeadshot
	case CheatWallhack:
		p.ThroughWall = m.rand.Float64() < wallhackChance
	case CheatESP:
		p.TargetVisible = Bool(true)
		p.TargetDistance = uniform(m.rand, 10, 50)
	}
	p.Accuracy = Float(acc)
	p.Headshot = headshot

	s := &a.Stats
	s.Shots++
	s.Accuracy += (acc - s.Accuracy) / float64(s.Shots)
	if headshot {
		s.Headshots++
	}
	s.DamageDealt += p.Damage
	if m.rand.Float64() < killChance {
		s.Kills++
	}
	return p
}

func (m *Model) switchWeapon(a *Agent, flags CheatFlags) SwitchWeaponPayload {
	choices := make([]string, 0, len(weapons)-1)
	for _, w := range weapons {
		if w != a.Weapon {
			choices = append(choices, w)
		}
	}
	to := choices[m.rand.Intn(len(choices))]
	p := SwitchWeaponPayload{CheatFlags: flags, From: a.Weapon, To: to, Duration: uniform(m.rand, 0.5, 1.5)}
	a.Weapon = to
	return p
}

func (m *Model) near(p Position, spread float64) Position {
	return Position{
		X: p.X + uniform(m.rand, -spread, spread),
		Y: p.Y + uniform(m.rand, -spread, spread),
		Z: p.Z,
	}
}
