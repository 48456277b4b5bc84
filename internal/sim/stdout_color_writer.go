// ColorStdoutWriter prints human-friendly, colorized match events to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/config"
	"ghostlan-sim/internal/event"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// ColorStdoutWriter prints events using ANSI colors.
type ColorStdoutWriter struct {
	cfg  *config.Config
	out  io.Writer
	mu   sync.Mutex
	once sync.Once
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.Config) *ColorStdoutWriter {
	return &ColorStdoutWriter{cfg: cfg, out: os.Stdout}
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	fmt.Fprintln(w.out, "Match Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Agents:\t%d\n", w.cfg.NumAgents)
	fmt.Fprintf(tw, "Duration (ticks):\t%d\n", w.cfg.MatchDuration)
	fmt.Fprintf(tw, "Tick Interval:\t%s\n", w.cfg.TickInterval)
	fmt.Fprintf(tw, "Cheat Probability:\t%.2f\n", w.cfg.CheatProbability)
	fmt.Fprintf(tw, "Cheat Profiles:\t%v\n", w.cfg.CheatProfiles)
	fmt.Fprintf(tw, "Voice:\t%t\n", w.cfg.VoiceEnabled)
	fmt.Fprintf(tw, "Base Latency (ms):\t%.1f\n", w.cfg.Network.BaseLatencyMs)
	fmt.Fprintf(tw, "Packet Loss:\t%.3f\n", w.cfg.Network.PacketLossRate)
	fmt.Fprintf(tw, "Stability:\t%.2f\n", w.cfg.Network.ConnectionStability)
	tw.Flush()
	fmt.Fprintln(w.out)
}

func teamColor(t agent.Team) string {
	if t == agent.TeamCT {
		return colorBlue
	}
	return colorYellow
}

func severityColor(s anticheat.Severity) string {
	switch s {
	case anticheat.SeverityCritical, anticheat.SeverityHigh:
		return colorRed
	case anticheat.SeverityMedium:
		return colorMagenta
	}
	return colorYellow
}

// WriteEvent outputs a single event in colorized format.
func (w *ColorStdoutWriter) WriteEvent(ev event.Event) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Fprintf(w.out, "%s[%s]%s %stick=%d%s ", colorGray, ev.Timestamp.Format(time.RFC3339), colorReset, colorGray, ev.Tick, colorReset)
	switch d := ev.Data.(type) {
	case event.AgentJoined:
		fmt.Fprintf(w.out, "%sJOIN%s %s%s%s team=%s skill=%d", colorGreen, colorReset, teamColor(d.Team), d.AgentName, colorReset, d.Team, d.SkillLevel)
		if d.CheatProfile != agent.CheatNone {
			fmt.Fprintf(w.out, " %scheat=%s%s", colorRed, d.CheatProfile, colorReset)
		}
	case event.AgentAction:
		fmt.Fprintf(w.out, "%sACTION%s %s %s", colorCyan, colorReset, d.AgentName, d.Action.Type)
		if d.Delivered {
			fmt.Fprintf(w.out, " %slatency=%.1fms%s", colorGreen, d.LatencyMs, colorReset)
		} else {
			fmt.Fprintf(w.out, " %s%s%s", colorRed, d.NetworkError, colorReset)
		}
	case event.NetworkIssue:
		fmt.Fprintf(w.out, "%sNETWORK%s %s severity=%s agents=%v dur=%.0fs", colorYellow, colorReset, d.Type, d.Severity, d.AffectedAgentIDs, d.DurationSeconds)
	case event.VoiceActivity:
		fmt.Fprintf(w.out, "%sVOICE%s %s %s", colorMagenta, colorReset, d.SpeakerID, d.Type)
		if d.Content != "" {
			fmt.Fprintf(w.out, " %q", d.Content)
		}
	case event.MatchStats:
		fmt.Fprintf(w.out, "%sSTATS%s kills=%d deaths=%d players=%d suspicious=%d", colorBlue, colorReset,
			d.Stats.TotalKills, d.Stats.TotalDeaths, d.Stats.ActivePlayers, d.Stats.SuspiciousEvents)
	case event.MatchEnd:
		fmt.Fprintf(w.out, "%sMATCH END%s %s ticks=%d/%d events=%d stopped=%t", colorGreen, colorReset,
			d.MatchID, d.Elapsed, d.Duration, d.TotalEvents, d.Stopped)
	case event.CheatDetected:
		fmt.Fprintf(w.out, "%sCHEAT%s %s %s conf=%.2f rule=%s", severityColor(d.Severity), colorReset,
			d.PlayerName, d.CheatType, d.Confidence, d.RuleID)
	default:
		fmt.Fprintf(w.out, "%s", ev.Type)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteDetection prints an anti-cheat detection to STDOUT.
func (w *ColorStdoutWriter) WriteDetection(d anticheat.Detection) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "%s[%s]%s %sDETECTION%s %s player=%s type=%s severity=%s conf=%.2f rule=%s\n",
		colorGray, d.Timestamp.Format(time.RFC3339), colorReset,
		severityColor(d.Severity), colorReset, d.ID, d.PlayerName, d.CheatType, d.Severity, d.Confidence, d.RuleID)
	return nil
}
