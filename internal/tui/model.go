// Package tui provides the Bubble Tea rule reveal interface.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/ruletype/internal/model"
)

const speedStep = 5

const (
	typingCaret   = "▌"
	thinkingCaret = "●"
)

// Engine receives the commands issued from the keyboard. Calls must not block.
type Engine interface {
	Advance()
	Stop()
	SetPaused(paused bool)
	AdjustSpeed(delta float64) float64
}

// EventMsg carries a session event into the program.
type EventMsg struct {
	Event model.Event
}

// Options configures the view.
type Options struct {
	Engine Engine
	Game   model.GameInfo
	Speed  float64
	// LastRule is the number of the final rule in the deck.
	LastRule int
}

// Model implements the Bubble Tea reveal UI.
type Model struct {
	engine   Engine
	game     model.GameInfo
	lastRule int

	keys     keyMap
	help     help.Model
	viewport viewport.Model
	gauge    progress.Model
	board    *board

	width  int
	height int
	follow bool

	state      model.SessionState
	paused     bool
	ruleNum    int
	gaugeValue float64
	textShare  float64
	speed      float64
	batches    int
	last       *model.BatchRecord
}

var (
	settledStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	generatingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	secondaryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	numberStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	typoStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	caretStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	buttonStyle     = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Background(lipgloss.Color("#7A5C1E"))
	buttonBusyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8C8C8C")).
			Padding(0, 1).
			Background(lipgloss.Color("#2A2A2A"))
)

// NewModel constructs the reveal view.
func NewModel(opts Options) *Model {
	keys := defaultKeyMap()
	vp := viewport.New(0, 0)
	vp.KeyMap = keys.scrollKeys()
	return &Model{
		engine:   opts.Engine,
		game:     opts.Game,
		lastRule: opts.LastRule,
		keys:     keys,
		help:     help.New(),
		viewport: vp,
		gauge:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		board:    newBoard(),
		follow:   true,
		speed:    opts.Speed,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.SetWindowTitle(m.title())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case EventMsg:
		cmd := m.applyEvent(msg.Event)
		m.refreshContent()
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.renderHeader()
	footer := m.renderFooter()
	return strings.Join([]string{header, m.viewport.View(), footer}, "\n")
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.updateLayout()
	case key.Matches(msg, m.keys.Advance):
		if m.state == model.SessionIdle && !m.paused && !m.finished() {
			m.follow = true
			m.viewport.GotoBottom()
			m.engine.Advance()
		}
	case key.Matches(msg, m.keys.Pause):
		m.engine.SetPaused(!m.paused)
	case key.Matches(msg, m.keys.Stop):
		m.engine.Stop()
	case key.Matches(msg, m.keys.Faster):
		m.speed = m.engine.AdjustSpeed(speedStep)
	case key.Matches(msg, m.keys.Slower):
		m.speed = m.engine.AdjustSpeed(-speedStep)
	case key.Matches(msg, m.keys.Bottom):
		m.follow = true
		m.viewport.GotoBottom()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd
	}
	return m, nil
}

func (m *Model) applyEvent(ev model.Event) tea.Cmd {
	switch ev := ev.(type) {
	case model.InitialEvent:
		m.board.applyInitial(ev)
		m.ruleNum = ev.SettledThrough
	case model.RevealEvent:
		m.board.applyReveal(ev)
	case model.ProgressEvent:
		m.textShare = ev.Fraction
	case model.GaugeEvent:
		m.gaugeValue = ev.Value
	case model.StateEvent:
		if ev.State == model.SessionIdle {
			m.board.interrupt()
		}
		m.state = ev.State
		m.paused = ev.Paused
		m.ruleNum = ev.RuleNum
		return tea.SetWindowTitle(m.title())
	case model.BatchDoneEvent:
		rec := ev.Record
		m.batches++
		m.last = &rec
		m.textShare = 0
		return tea.SetWindowTitle(m.title())
	}
	return nil
}

func (m *Model) finished() bool {
	if m.lastRule == 0 {
		return false
	}
	rv, ok := m.board.byNum[m.lastRule]
	return ok && rv.settled
}

func (m *Model) statusLabel() string {
	var label string
	switch m.state {
	case model.SessionGenerating:
		label = "Generating Rules..."
	case model.SessionThinking, model.SessionCompletePending:
		label = "Thinking..."
	default:
		switch {
		case m.paused:
			return "Paused"
		case m.finished():
			return "All Rules Generated"
		default:
			return "Continue Generating"
		}
	}
	if m.paused {
		label += " (paused)"
	}
	return label
}

func (m *Model) title() string {
	if m.ruleNum <= 0 {
		return m.statusLabel()
	}
	return fmt.Sprintf("#%d %s", m.ruleNum, m.statusLabel())
}

func (m *Model) caret() string {
	switch m.state {
	case model.SessionGenerating:
		return typingCaret
	case model.SessionThinking, model.SessionCompletePending:
		return thinkingCaret
	default:
		return ""
	}
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.help.Width = m.width
	m.gauge.Width = maxInt(10, m.width-2)
	headerHeight := lipgloss.Height(m.renderHeader())
	footerHeight := lipgloss.Height(m.renderFooter())
	m.viewport.Width = m.width
	m.viewport.Height = maxInt(1, m.height-headerHeight-footerHeight)
	m.refreshContent()
}

func (m *Model) refreshContent() {
	m.viewport.SetContent(m.renderRules(m.contentWidth()))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return 0
	}
	return maxInt(1, m.width-2)
}

func (m *Model) renderRules(width int) string {
	caret := m.caret()
	blocks := make([]string, 0, len(m.board.rules))
	for _, rv := range m.board.rules {
		primaryCaret, secondaryCaret := "", ""
		if rv == m.board.active || (m.board.active == nil && rv.num == m.board.lastRule()) {
			if m.board.phase == model.PhaseSecondary && rv.secondary != "" {
				secondaryCaret = caret
			} else {
				primaryCaret = caret
			}
		}
		lines := []string{wrapStyledRunes(buildPrimaryRunes(rv, primaryCaret), width)}
		if rv.secondary != "" || secondaryCaret != "" {
			secondary := buildSecondaryRunes(rv)
			if secondaryCaret != "" {
				secondary = styleRunes(secondary, secondaryCaret, caretStyle)
			}
			lines = append(lines, indent(wrapStyledRunes(secondary, width-2), "  "))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	if len(blocks) == 0 {
		return headerStyle.Render("Press space to start generating rules.")
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderHeader() string {
	lines := []string{}
	if title := joinBilingual(m.game.Title); title != "" {
		lines = append(lines, titleStyle.Render(truncateLine(title, m.width)))
	}
	if len(m.game.Components) > 0 {
		lines = append(lines, headerStyle.Render(truncateLine("Components: "+joinList(m.game.Components), m.width)))
	}
	if len(m.game.Actions) > 0 {
		lines = append(lines, headerStyle.Render(truncateLine("Actions: "+joinList(m.game.Actions), m.width)))
	}
	if victory := joinBilingual(m.game.Victory); victory != "" {
		lines = append(lines, headerStyle.Render(truncateLine("Victory: "+victory, m.width)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	gauge := m.gauge.ViewAs(m.gaugeValue)
	style := buttonBusyStyle
	if m.state == model.SessionIdle && !m.paused && !m.finished() {
		style = buttonStyle
	}
	button := style.Render(m.statusLabel())
	return strings.Join([]string{gauge, button, m.renderStatus(), m.help.View(m.keys)}, "\n")
}

func (m *Model) renderStatus() string {
	segments := []string{}
	if m.ruleNum > 0 {
		segments = append(segments, fmt.Sprintf("#%d %s", m.ruleNum, m.statusLabel()))
	}
	segments = append(segments, fmt.Sprintf("Speed %.0f", m.speed))
	if m.state != model.SessionIdle {
		segments = append(segments, fmt.Sprintf("Text %d%%", int(m.textShare*100)))
	}
	if m.last != nil {
		segments = append(segments, fmt.Sprintf("Last %.1fs · %d chars", float64(m.last.GaugeMs)/1000, m.last.Chars))
	}
	segments = append(segments, fmt.Sprintf("Batches %d", m.batches))
	if !m.follow {
		segments = append(segments, "G to follow")
	}
	return footerStyle.Render(truncateLine(strings.Join(segments, "  "), m.width))
}

func joinBilingual(b model.Bilingual) string {
	switch {
	case b.Primary != "" && b.Secondary != "":
		return b.Primary + " / " + b.Secondary
	case b.Primary != "":
		return b.Primary
	default:
		return b.Secondary
	}
}

func joinList(items []model.Bilingual) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Secondary == "" {
			parts = append(parts, item.Primary)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", item.Primary, item.Secondary))
	}
	return strings.Join(parts, ", ")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
