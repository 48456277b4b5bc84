package sim

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/config"
	"ghostlan-sim/internal/event"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries an event line for the main viewport.
type logMsg struct {
	line   string
	player string
}

// detectionMsg carries a detection for the detections pane.
type detectionMsg struct {
	line      string
	player    string
	cheatType anticheat.CheatType
}

// statsMsg carries the latest aggregate snapshot.
type statsMsg struct {
	stats event.Stats
	tick  int
	ended bool
}

type adminMsg struct{ active bool }

type setPauseMsg struct{ fn func() bool }

const maxSectionHeightPct = 0.25

// TUIWriter renders match events using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(cfg *config.Config) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteEvent implements EventWriter.
func (w *TUIWriter) WriteEvent(ev event.Event) error {
	ts := fmt.Sprintf("%s[%s]%s ", colorGray, ev.Timestamp.Format(time.TimeOnly), colorReset)
	switch d := ev.Data.(type) {
	case event.AgentJoined:
		line := fmt.Sprintf("%s%sJOIN%s %s%s%s team=%s", ts, colorGreen, colorReset, teamColor(d.Team), d.AgentName, colorReset, d.Team)
		w.program.Send(logMsg{line: line, player: d.AgentName})
	case event.AgentAction:
		line := fmt.Sprintf("%s%sACTION%s %s %s", ts, colorCyan, colorReset, d.AgentName, d.Action.Type)
		if !d.Delivered {
			line += fmt.Sprintf(" %s%s%s", colorRed, d.NetworkError, colorReset)
		}
		w.program.Send(logMsg{line: line, player: d.AgentName})
	case event.NetworkIssue:
		w.program.Send(logMsg{line: fmt.Sprintf("%s%sNETWORK%s %s %s", ts, colorYellow, colorReset, d.Type, d.Severity)})
	case event.VoiceActivity:
		w.program.Send(logMsg{line: fmt.Sprintf("%s%sVOICE%s %s %s %s", ts, colorMagenta, colorReset, d.SpeakerID, d.Type, d.Content)})
	case event.MatchStats:
		w.program.Send(statsMsg{stats: d.Stats, tick: ev.Tick})
	case event.MatchEnd:
		w.program.Send(statsMsg{stats: d.FinalStats, tick: d.Elapsed, ended: true})
		w.program.Send(logMsg{line: fmt.Sprintf("%s%sMATCH END%s %s events=%d", ts, colorGreen, colorReset, d.MatchID, d.TotalEvents)})
	}
	return nil
}

// WriteDetection implements DetectionWriter.
func (w *TUIWriter) WriteDetection(d anticheat.Detection) error {
	line := fmt.Sprintf("%s[%s]%s %s%s%s %s %s conf=%.2f %s",
		colorGray, d.Timestamp.Format(time.TimeOnly), colorReset,
		severityColor(d.Severity), d.Severity, colorReset,
		d.PlayerName, d.CheatType, d.Confidence, d.RuleID)
	w.program.Send(detectionMsg{line: line, player: d.PlayerName, cheatType: d.CheatType})
	return nil
}

// SetAdminStatus shows whether the admin server is listening.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// SetPauseToggle binds the space key. fn returns true when the match is now paused.
func (w *TUIWriter) SetPauseToggle(fn func() bool) {
	w.program.Send(setPauseMsg{fn: fn})
}

// Close stops the UI without signalling the process.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg         *config.Config
	table       table.Model
	vp          viewport.Model
	detVP       viewport.Model
	logs        []logMsg
	detLogs     []detectionMsg
	stats       event.Stats
	tick        int
	ended       bool
	admin       bool
	paused      bool
	togglePause func() bool
	wrap        bool
	autoscroll  bool
	summary     bool
	help        bool
	filter      textinput.Model
	filtering   bool
	header      string
	height      int
	byType      map[anticheat.CheatType]int
	byPlayer    map[string]int
}

func newTUIModel(cfg *config.Config) tuiModel {
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	cols := []table.Column{
		{Title: "Config", Width: 18},
		{Title: "Value", Width: 10},
		{Title: "Config", Width: 18},
		{Title: "Value", Width: 10},
	}
	rows := []table.Row{
		{"Agents", fmt.Sprint(cfg.NumAgents), "Duration", fmt.Sprintf("%d ticks", cfg.MatchDuration)},
		{"Cheat Probability", fmt.Sprintf("%.2f", cfg.CheatProbability), "Voice", fmt.Sprint(cfg.VoiceEnabled)},
		{"Base Latency (ms)", fmt.Sprintf("%.1f", cfg.Network.BaseLatencyMs), "Packet Loss", fmt.Sprintf("%.3f", cfg.Network.PacketLossRate)},
		{"Aimbot Threshold", fmt.Sprintf("%.2f", cfg.AntiCheat.AimbotAccuracy), "Speed Threshold", fmt.Sprintf("%.2f", cfg.AntiCheat.SpeedhackVelocity)},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	fi := textinput.New()
	fi.Placeholder = "player name"
	m := tuiModel{
		cfg:        cfg,
		table:      t,
		vp:         viewport.New(0, 0),
		detVP:      viewport.New(0, 0),
		filter:     fi,
		autoscroll: true,
		byType:     make(map[anticheat.CheatType]int),
		byPlayer:   make(map[string]int),
	}
	m.header = m.table.View()
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.detVP.Width = msg.Width
		m.height = msg.Height
		m.header = m.table.View()
		m.layout()
		m.refresh()
	case tea.KeyMsg:
		return m.key(msg)
	case logMsg:
		m.logs = append(m.logs, msg)
		m.refresh()
	case detectionMsg:
		m.detLogs = append(m.detLogs, msg)
		m.byType[msg.cheatType]++
		m.byPlayer[msg.player]++
		m.layout()
		m.refresh()
	case statsMsg:
		m.stats, m.tick, m.ended = msg.stats, msg.tick, msg.ended
	case adminMsg:
		m.admin = msg.active
	case setPauseMsg:
		m.togglePause = msg.fn
	}
	return m, nil
}

func (m tuiModel) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEsc:
			if msg.Type == tea.KeyEsc {
				m.filter.SetValue("")
			}
			m.filtering = false
			m.filter.Blur()
			m.layout()
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		return m, cmd
	}
	if m.help {
		switch msg.String() {
		case "?", "h", "esc":
			m.help = false
		}
		return m, nil
	}
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "w":
		m.wrap = !m.wrap
		m.refresh()
	case "s":
		m.autoscroll = !m.autoscroll
		if m.autoscroll {
			m.vp.GotoBottom()
			m.detVP.GotoBottom()
		}
	case "t":
		m.summary = !m.summary
		m.layout()
	case "h", "?":
		m.help = true
	case "/":
		m.filtering = true
		m.filter.Focus()
		m.layout()
	case " ", "space":
		if m.togglePause != nil {
			m.paused = m.togglePause()
		}
	default:
		if m.autoscroll {
			return m, nil
		}
		switch msg.String() {
		case "j", "down":
			m.vp.LineDown(1)
		case "k", "up":
			m.vp.LineUp(1)
		case "pgdown":
			m.vp.LineDown(10)
		case "pgup":
			m.vp.LineUp(10)
		}
	}
	return m, nil
}

func (m tuiModel) matches(player string) bool {
	f := strings.TrimSpace(m.filter.Value())
	return f == "" || strings.Contains(strings.ToLower(player), strings.ToLower(f))
}

func (m *tuiModel) layout() {
	maxLines := int(float64(m.height) * maxSectionHeightPct)
	if maxLines < 1 {
		maxLines = 1
	}
	m.detVP.Height = min(max(len(m.detLogs), 1), maxLines)
	bottom := lipgloss.Height(m.renderBottom())
	h := m.height - lipgloss.Height(m.header) - bottom - m.detVP.Height - 4
	m.vp.Height = max(h, 0)
}

func (m *tuiModel) refresh() {
	var lines []string
	for _, l := range m.logs {
		if l.player != "" && !m.matches(l.player) {
			continue
		}
		if m.wrap && m.vp.Width > 0 {
			lines = append(lines, wordwrap.String(l.line, m.vp.Width))
		} else {
			lines = append(lines, l.line)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))

	dets := []string{"none"}
	if len(m.detLogs) > 0 {
		dets = dets[:0]
		for _, d := range m.detLogs {
			if m.matches(d.player) {
				dets = append(dets, d.line)
			}
		}
	}
	m.detVP.SetContent(strings.Join(dets, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
		m.detVP.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.vp.Width)
	sections := []string{m.header, divider, m.vp.View(), divider, "Detections:", m.detVP.View(), divider}
	if m.filtering {
		sections = append(sections, "Filter: "+m.filter.View())
	}
	sections = append(sections, m.renderBottom())
	return strings.Join(sections, "\n")
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderSummary() string {
	types := make([]string, 0, len(m.byType))
	for t, n := range m.byType {
		types = append(types, fmt.Sprintf("%s=%d", t, n))
	}
	sort.Strings(types)
	players := make([]string, 0, len(m.byPlayer))
	for p := range m.byPlayer {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if m.byPlayer[players[i]] != m.byPlayer[players[j]] {
			return m.byPlayer[players[i]] > m.byPlayer[players[j]]
		}
		return players[i] < players[j]
	})
	if len(players) > 3 {
		players = players[:3]
	}
	top := make([]string, len(players))
	for i, p := range players {
		top[i] = fmt.Sprintf("%s(%d)", p, m.byPlayer[p])
	}
	return fmt.Sprintf("%sSUMMARY%s %sdetections=%d%s [%s] %stop=%s%s", colorBlue, colorReset,
		colorRed, len(m.detLogs), colorReset, strings.Join(types, " "),
		colorMagenta, strings.Join(top, ","), colorReset)
}

func (m tuiModel) renderBottom() string {
	state := "running"
	switch {
	case m.ended:
		state = "ended"
	case m.paused:
		state = "paused"
	}
	line := fmt.Sprintf("%sMATCH%s %s tick=%d/%d %skills=%d%s %splayers=%d%s %ssuspicious=%d%s %sloss=%.3f%s | Admin %s | Wrap %s | Scroll %s | Summary %s",
		colorBlue, colorReset, state, m.tick, m.cfg.MatchDuration,
		colorGreen, m.stats.TotalKills, colorReset,
		colorCyan, m.stats.ActivePlayers, colorReset,
		colorRed, m.stats.SuspiciousEvents, colorReset,
		colorYellow, m.stats.Network.PacketLossRate, colorReset,
		indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll), indicator(m.summary))
	if m.summary {
		return m.renderSummary() + "\n" + line
	}
	return line
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q      quit",
		" space  pause/resume the match",
		" /      filter by player name",
		" w      toggle wrap",
		" s      toggle auto-scroll",
		" t      toggle summary footer",
		" h/?    toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
