// YAML config loader with CUE validation integration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Network describes the simulated LAN baseline.
type Network struct {
	BaseLatencyMs       float64       `yaml:"base_latency_ms" json:"base_latency_ms"`
	PacketLossRate      float64       `yaml:"packet_loss_rate" json:"packet_loss_rate"`
	BandwidthMbps       float64       `yaml:"bandwidth_mbps" json:"bandwidth_mbps"`
	JitterMs            float64       `yaml:"jitter_ms" json:"jitter_ms"`
	ConnectionStability float64       `yaml:"connection_stability" json:"connection_stability"`
	MonitorInterval     time.Duration `yaml:"monitor_interval" json:"monitor_interval"`
}

// RuleOverride toggles or re-weights a built-in detection rule by id.
type RuleOverride struct {
	ID      string   `yaml:"id" json:"id"`
	Enabled *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Weight  *float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// AntiCheat holds the detection thresholds and loop periods.
type AntiCheat struct {
	AimbotAccuracy       float64        `yaml:"aimbot_accuracy_threshold" json:"aimbot_accuracy_threshold"`
	TriggerbotReaction   float64        `yaml:"triggerbot_reaction_threshold" json:"triggerbot_reaction_threshold"`
	SpeedhackVelocity    float64        `yaml:"speedhack_velocity_threshold" json:"speedhack_velocity_threshold"`
	ActionRateLimit      float64        `yaml:"action_rate_limit" json:"action_rate_limit"`
	MinActionsForRate    int            `yaml:"min_actions_for_rate" json:"min_actions_for_rate"`
	RecentDetectionBurst int            `yaml:"recent_detection_burst" json:"recent_detection_burst"`
	MonitorInterval      time.Duration  `yaml:"monitor_interval" json:"monitor_interval"`
	PatternInterval      time.Duration  `yaml:"pattern_interval" json:"pattern_interval"`
	Rules                []RuleOverride `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Config is the root configuration of a simulation run.
type Config struct {
	NumAgents        int           `yaml:"num_agents" json:"num_agents"`
	MatchDuration    int           `yaml:"match_duration" json:"match_duration"`
	TickInterval     time.Duration `yaml:"tick_interval" json:"tick_interval"`
	CheatProbability float64       `yaml:"cheat_probability" json:"cheat_probability"`
	CheatProfiles    []string      `yaml:"cheat_profiles,omitempty" json:"cheat_profiles,omitempty"`
	VoiceEnabled     bool          `yaml:"voice_enabled" json:"voice_enabled"`
	Seed             int64         `yaml:"seed,omitempty" json:"seed,omitempty"`
	LogLevel         string        `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	LogFormat        string        `yaml:"log_format,omitempty" json:"log_format,omitempty"`
	Network          Network       `yaml:"network" json:"network"`
	AntiCheat        AntiCheat     `yaml:"anticheat" json:"anticheat"`
}

//go:embed simulation.cue
var defaultSchema []byte

// Default returns the stock match configuration.
func Default() Config {
	return Config{
		NumAgents:        10,
		MatchDuration:    420,
		TickInterval:     time.Second,
		CheatProbability: 0.3,
		CheatProfiles:    []string{"aimbot", "wallhack", "speedhack", "esp", "macro"},
		VoiceEnabled:     true,
		LogLevel:         "info",
		LogFormat:        "text",
		Network: Network{
			BaseLatencyMs:       5,
			PacketLossRate:      0.001,
			BandwidthMbps:       100,
			JitterMs:            2,
			ConnectionStability: 0.99,
			MonitorInterval:     time.Second,
		},
		AntiCheat: AntiCheat{
			AimbotAccuracy:       0.95,
			TriggerbotReaction:   0.1,
			SpeedhackVelocity:    1.5,
			ActionRateLimit:      10,
			MinActionsForRate:    100,
			RecentDetectionBurst: 3,
			MonitorInterval:      time.Second,
			PatternInterval:      5 * time.Second,
		},
	}
}

// ApplyDefaults fills zero values that have no meaningful zero setting.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.NumAgents <= 0 {
		c.NumAgents = d.NumAgents
	}
	if c.MatchDuration <= 0 {
		c.MatchDuration = d.MatchDuration
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if len(c.CheatProfiles) == 0 {
		c.CheatProfiles = d.CheatProfiles
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.Network.BaseLatencyMs <= 0 {
		c.Network.BaseLatencyMs = d.Network.BaseLatencyMs
	}
	if c.Network.BandwidthMbps <= 0 {
		c.Network.BandwidthMbps = d.Network.BandwidthMbps
	}
	if c.Network.MonitorInterval <= 0 {
		c.Network.MonitorInterval = d.Network.MonitorInterval
	}
	ac := &c.AntiCheat
	if ac.AimbotAccuracy <= 0 {
		ac.AimbotAccuracy = d.AntiCheat.AimbotAccuracy
	}
	if ac.TriggerbotReaction <= 0 {
		ac.TriggerbotReaction = d.AntiCheat.TriggerbotReaction
	}
	if ac.SpeedhackVelocity <= 0 {
		ac.SpeedhackVelocity = d.AntiCheat.SpeedhackVelocity
	}
	if ac.ActionRateLimit <= 0 {
		ac.ActionRateLimit = d.AntiCheat.ActionRateLimit
	}
	if ac.MinActionsForRate <= 0 {
		ac.MinActionsForRate = d.AntiCheat.MinActionsForRate
	}
	if ac.RecentDetectionBurst <= 0 {
		ac.RecentDetectionBurst = d.AntiCheat.RecentDetectionBurst
	}
	if ac.MonitorInterval <= 0 {
		ac.MonitorInterval = d.AntiCheat.MonitorInterval
	}
	if ac.PatternInterval <= 0 {
		ac.PatternInterval = d.AntiCheat.PatternInterval
	}
}

// ApplyEnv overrides the tick interval and seed from GHOSTLAN_TICK_INTERVAL
// and GHOSTLAN_SEED when set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("GHOSTLAN_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GHOSTLAN_TICK_INTERVAL: %w", err)
		}
		c.TickInterval = d
	}
	if v := os.Getenv("GHOSTLAN_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid GHOSTLAN_SEED: %w", err)
		}
		c.Seed = n
	}
	return nil
}

// Load loads YAML config and validates it against a CUE schema. An empty
// cueSchemaPath uses the schema compiled into the binary.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read YAML config: %w", err)
	}
	schema := defaultSchema
	schemaName := "simulation.cue"
	if cueSchemaPath != "" {
		if schema, err = os.ReadFile(cueSchemaPath); err != nil {
			return nil, fmt.Errorf("cannot read CUE schema: %w", err)
		}
		schemaName = cueSchemaPath
	}
	if err := Validate(configPath, data, schemaName, schema); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
