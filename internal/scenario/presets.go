package scenario

import "ghostlan-sim/internal/config"

func prob(p float64) *float64 { return &p }

// BuiltIn returns the stock match presets keyed by name.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"clean-lan": {
			Name:             "clean-lan",
			Description:      "Honest lobby on a healthy LAN. Useful as a false-positive baseline.",
			CheatProbability: prob(0),
			Network: &config.Network{
				BaseLatencyMs:       3,
				PacketLossRate:      0,
				BandwidthMbps:       1000,
				JitterMs:            0.5,
				ConnectionStability: 1,
			},
		},
		"aimbot-lobby": {
			Name:             "aimbot-lobby",
			Description:      "Half the lobby runs an aimbot.",
			NumAgents:        10,
			CheatProbability: prob(0.5),
			CheatProfiles:    []string{"aimbot"},
		},
		"flaky-lan": {
			Name:        "flaky-lan",
			Description: "Congested switch with packet loss and unstable links.",
			Network: &config.Network{
				BaseLatencyMs:       25,
				PacketLossRate:      0.05,
				BandwidthMbps:       20,
				JitterMs:            15,
				ConnectionStability: 0.9,
			},
		},
		"mixed-cheats": {
			Name:             "mixed-cheats",
			Description:      "Large lobby with every cheat profile in rotation.",
			NumAgents:        20,
			MatchDuration:    600,
			CheatProbability: prob(0.4),
			CheatProfiles:    []string{"aimbot", "wallhack", "speedhack", "esp", "macro"},
		},
	}
}
