package sim

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ghostlan-sim/internal/agent"
	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/event"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	_ = w.WriteEvent(event.New(1, "m", 0, fixedTime, event.AgentJoined{AgentName: "ShadowByte", Team: agent.TeamT}))
	if _, ok := p.msgs[0].(logMsg); !ok {
		t.Fatalf("expected logMsg, got %T", p.msgs[0])
	}
	_ = w.WriteEvent(event.New(2, "m", 30, fixedTime, event.MatchStats{Elapsed: 30, Stats: event.Stats{ActivePlayers: 10}}))
	if s, ok := p.msgs[1].(statsMsg); !ok || s.stats.ActivePlayers != 10 || s.tick != 30 {
		t.Fatalf("expected statsMsg, got %#v", p.msgs[1])
	}
	w.SetAdminStatus(true)
	if _, ok := p.msgs[2].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[2])
	}
	_ = w.WriteDetection(anticheat.Detection{PlayerName: "ShadowByte", CheatType: anticheat.CheatAimbot, Timestamp: fixedTime})
	if d, ok := p.msgs[3].(detectionMsg); !ok || d.cheatType != anticheat.CheatAimbot {
		t.Fatalf("expected detectionMsg, got %#v", p.msgs[3])
	}
}

func update(m tuiModel, msg tea.Msg) tuiModel {
	mi, _ := m.Update(msg)
	return mi.(tuiModel)
}

func TestWrapToggle(t *testing.T) {
	m := newTUIModel(nil)
	m = update(m, tea.WindowSizeMsg{Width: 20, Height: 40})
	m = update(m, logMsg{line: "one two three four five six"})
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestScrollToggle(t *testing.T) {
	m := newTUIModel(nil)
	m.vp.Height = 1
	m.vp.Width = 20
	m = update(m, logMsg{line: "l1"})
	m = update(m, logMsg{line: "l2"})
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset 1, got %d", m.vp.YOffset)
	}
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if m.autoscroll {
		t.Fatalf("autoscroll should be off")
	}
	m = update(m, logMsg{line: "l3"})
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset unchanged, got %d", m.vp.YOffset)
	}
	m = update(m, tea.KeyMsg{Type: tea.KeyUp})
	if m.vp.YOffset != 0 {
		t.Fatalf("expected YOffset 0 after scrolling up, got %d", m.vp.YOffset)
	}
}

func TestPlayerFilter(t *testing.T) {
	m := newTUIModel(nil)
	m = update(m, tea.WindowSizeMsg{Width: 80, Height: 40})
	m = update(m, logMsg{line: "ShadowByte shoot", player: "ShadowByte"})
	m = update(m, logMsg{line: "NeonSniper move", player: "NeonSniper"})
	m = update(m, detectionMsg{line: "ShadowByte aimbot", player: "ShadowByte", cheatType: anticheat.CheatAimbot})

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	if !m.filtering {
		t.Fatalf("expected filter prompt")
	}
	for _, r := range "neon" {
		m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	view := m.vp.View()
	if strings.Contains(view, "ShadowByte") || !strings.Contains(view, "NeonSniper") {
		t.Fatalf("filter not applied:\n%s", view)
	}
	if strings.Contains(m.detVP.View(), "ShadowByte") {
		t.Fatalf("detections not filtered")
	}
}

func TestPauseToggleAndSummary(t *testing.T) {
	m := newTUIModel(nil)
	paused := false
	m = update(m, setPauseMsg{fn: func() bool { paused = !paused; return paused }})
	m = update(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !m.paused || !paused {
		t.Fatalf("space should pause the match")
	}
	m = update(m, detectionMsg{player: "A", cheatType: anticheat.CheatESP})
	m = update(m, detectionMsg{player: "A", cheatType: anticheat.CheatESP})
	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	out := m.renderBottom()
	if !strings.Contains(out, "esp=2") || !strings.Contains(out, "A(2)") || !strings.Contains(out, "paused") {
		t.Fatalf("unexpected footer: %s", out)
	}
}
