package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/ruletype/internal/loop"
	"github.com/verte-zerg/ruletype/internal/model"
	"github.com/verte-zerg/ruletype/internal/segment"
	"github.com/verte-zerg/ruletype/internal/session"
	"github.com/verte-zerg/ruletype/internal/tuning"
	"github.com/verte-zerg/ruletype/internal/typist"
)

type fakeEngine struct {
	advances int
	stops    int
	paused   []bool
	speed    float64
}

func (e *fakeEngine) Advance()         { e.advances++ }
func (e *fakeEngine) Stop()            { e.stops++ }
func (e *fakeEngine) SetPaused(p bool) { e.paused = append(e.paused, p) }

func (e *fakeEngine) AdjustSpeed(d float64) float64 {
	e.speed += d
	return e.speed
}

func newTestModel(t *testing.T) (*Model, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{speed: 50}
	m := NewModel(Options{
		Engine:   eng,
		Game:     model.GameInfo{Title: model.Bilingual{Primary: "陣取り", Secondary: "Territory"}},
		Speed:    50,
		LastRule: 2,
	})
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	return m, eng
}

func send(m *Model, ev model.Event) {
	m.Update(EventMsg{Event: ev})
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	segFirst = model.Segment{Num: 1, Primary: "一、", IsFirst: true}
	segLast  = model.Segment{Num: 1, Primary: "二。", SecondaryFull: "One, two.", HasSecondary: true, IsLast: true}
	segNext  = model.Segment{Num: 2, Primary: "三。", SecondaryFull: "Three.", HasSecondary: true, IsFirst: true, IsLast: true}
)

func TestInitialDisplaySettlesThroughStartRule(t *testing.T) {
	m, _ := newTestModel(t)
	send(m, model.InitialEvent{Segments: []model.Segment{segFirst, segLast, segNext}, SettledThrough: 1})
	first := m.board.byNum[1]
	if first == nil || first.primary != "一、二。" || first.secondary != "One, two." || !first.settled {
		t.Fatalf("unexpected first rule %+v", first)
	}
	second := m.board.byNum[2]
	if second == nil || second.settled || second.number != "#2" {
		t.Fatalf("expected rule after the start rule to render unsettled, got %+v", second)
	}
}

func TestRevealEventsBuildRule(t *testing.T) {
	m, _ := newTestModel(t)
	events := []model.RevealEvent{
		{Kind: model.RevealChar, Rune: '#', Phase: model.PhaseNumber, Segment: segNext},
		{Kind: model.RevealChar, Rune: '2', Phase: model.PhaseNumber, Segment: segNext},
		{Kind: model.RevealTypo, Rune: 'x', Phase: model.PhasePrimary, Segment: segNext},
	}
	for _, ev := range events {
		send(m, ev)
	}
	rv := m.board.byNum[2]
	if rv.number != "#2" || rv.typo != 'x' {
		t.Fatalf("unexpected rule after typo %+v", rv)
	}
	send(m, model.RevealEvent{Kind: model.RevealErase, Rune: 'x', Phase: model.PhasePrimary, Segment: segNext})
	if rv.typo != 0 {
		t.Fatalf("expected typo erased")
	}
	for _, r := range "三。" {
		send(m, model.RevealEvent{Kind: model.RevealChar, Rune: r, Phase: model.PhasePrimary, Segment: segNext})
	}
	for _, r := range "Three." {
		send(m, model.RevealEvent{Kind: model.RevealChar, Rune: r, Phase: model.PhaseSecondary, Segment: segNext})
	}
	if rv.settled {
		t.Fatalf("rule must not settle before the settle event")
	}
	send(m, model.RevealEvent{Kind: model.RevealSettle, Phase: model.PhaseSecondary, Segment: segNext})
	if rv.primary != "三。" || rv.secondary != "Three." || !rv.settled {
		t.Fatalf("unexpected settled rule %+v", rv)
	}
	if !m.finished() {
		t.Fatalf("expected finished once the last rule settles")
	}
	if got := m.statusLabel(); got != "All Rules Generated" {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestAdvanceOnlyWhenIdle(t *testing.T) {
	m, eng := newTestModel(t)
	m.Update(keyRunes(" "))
	if eng.advances != 1 {
		t.Fatalf("expected advance, got %d", eng.advances)
	}
	send(m, model.StateEvent{State: model.SessionGenerating, Generating: true, RuleNum: 1})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if eng.advances != 1 {
		t.Fatalf("advance must be ignored while generating")
	}
	send(m, model.StateEvent{State: model.SessionIdle, Paused: true, RuleNum: 1})
	m.Update(keyRunes(" "))
	if eng.advances != 1 {
		t.Fatalf("advance must be ignored while paused")
	}
}

func TestControlKeysReachEngine(t *testing.T) {
	m, eng := newTestModel(t)
	m.Update(keyRunes("p"))
	m.Update(keyRunes("s"))
	m.Update(keyRunes("+"))
	if len(eng.paused) != 1 || !eng.paused[0] {
		t.Fatalf("expected pause request, got %v", eng.paused)
	}
	if eng.stops != 1 {
		t.Fatalf("expected stop request")
	}
	if m.speed != 55 {
		t.Fatalf("expected speed 55, got %.0f", m.speed)
	}
	m.Update(keyRunes("-"))
	m.Update(keyRunes("-"))
	if m.speed != 45 {
		t.Fatalf("expected speed 45, got %.0f", m.speed)
	}
	if _, cmd := m.Update(keyRunes("q")); cmd == nil {
		t.Fatalf("expected quit command")
	}
}

func TestStatusLabels(t *testing.T) {
	cases := []struct {
		state  model.SessionState
		paused bool
		want   string
	}{
		{model.SessionIdle, false, "Continue Generating"},
		{model.SessionIdle, true, "Paused"},
		{model.SessionGenerating, false, "Generating Rules..."},
		{model.SessionGenerating, true, "Generating Rules... (paused)"},
		{model.SessionThinking, false, "Thinking..."},
		{model.SessionCompletePending, false, "Thinking..."},
	}
	for _, tc := range cases {
		m, _ := newTestModel(t)
		send(m, model.StateEvent{State: tc.state, Paused: tc.paused, RuleNum: 7})
		if got := m.statusLabel(); got != tc.want {
			t.Fatalf("state %s paused=%v: expected %q, got %q", tc.state, tc.paused, tc.want, got)
		}
		if got := m.title(); got != "#7 "+tc.want {
			t.Fatalf("unexpected title %q", got)
		}
	}
}

func TestRenderStatusAfterBatch(t *testing.T) {
	m, _ := newTestModel(t)
	send(m, model.StateEvent{State: model.SessionIdle, RuleNum: 3})
	send(m, model.BatchDoneEvent{Record: model.BatchRecord{GaugeMs: 12500, Chars: 42}})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 20})
	out := m.renderStatus()
	for _, want := range []string{"#3 Continue Generating", "Speed 50", "Last 12.5s", "42 chars", "Batches 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status %q missing %q", out, want)
		}
	}
}

func TestCaretFollowsActivePhase(t *testing.T) {
	m, _ := newTestModel(t)
	send(m, model.StateEvent{State: model.SessionGenerating, RuleNum: 2})
	send(m, model.RevealEvent{Kind: model.RevealChar, Rune: '#', Phase: model.PhaseNumber, Segment: segNext})
	if out := m.renderRules(40); !strings.Contains(out, typingCaret) {
		t.Fatalf("expected typing caret in %q", out)
	}
	send(m, model.StateEvent{State: model.SessionThinking, RuleNum: 2})
	out := m.renderRules(40)
	if !strings.Contains(out, thinkingCaret) || strings.Contains(out, typingCaret) {
		t.Fatalf("expected thinking dot only in %q", out)
	}
	send(m, model.StateEvent{State: model.SessionIdle, RuleNum: 2})
	out = m.renderRules(40)
	if strings.Contains(out, thinkingCaret) || strings.Contains(out, typingCaret) {
		t.Fatalf("expected no caret while idle in %q", out)
	}
}

func TestScrollUpDisablesFollow(t *testing.T) {
	m, _ := newTestModel(t)
	segs := []model.Segment{}
	for i := 1; i <= 30; i++ {
		segs = append(segs, model.Segment{Num: i, Primary: "規則。", IsFirst: true, IsLast: true})
	}
	send(m, model.InitialEvent{Segments: segs, SettledThrough: 30})
	if !m.viewport.AtBottom() {
		t.Fatalf("expected the view to follow new content")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	if m.follow {
		t.Fatalf("expected follow off after scrolling up")
	}
	m.Update(keyRunes("G"))
	if !m.follow || !m.viewport.AtBottom() {
		t.Fatalf("expected follow restored")
	}
}

func TestStopClearsPendingTypo(t *testing.T) {
	m, _ := newTestModel(t)
	send(m, model.StateEvent{State: model.SessionGenerating, Generating: true, RuleNum: 2})
	send(m, model.RevealEvent{Kind: model.RevealChar, Rune: '#', Phase: model.PhaseNumber, Segment: segNext, Index: 2})
	send(m, model.RevealEvent{Kind: model.RevealTypo, Rune: 'x', Phase: model.PhasePrimary, Segment: segNext, Index: 2})
	send(m, model.StateEvent{State: model.SessionIdle, RuleNum: 2})
	rv := m.board.byNum[2]
	if rv.typo != 0 || rv.number != "#" {
		t.Fatalf("expected typo dropped and partial text kept, got %+v", rv)
	}
}

func TestRestartedSegmentIsNotDuplicated(t *testing.T) {
	m, _ := newTestModel(t)
	send(m, model.InitialEvent{Segments: []model.Segment{segFirst, segLast}, SettledThrough: 1})
	for _, r := range "#2三" {
		phase := model.PhaseNumber
		if r == '三' {
			phase = model.PhasePrimary
		}
		send(m, model.RevealEvent{Kind: model.RevealChar, Rune: r, Phase: phase, Segment: segNext, Index: 2})
	}
	send(m, model.StateEvent{State: model.SessionIdle, RuleNum: 2})
	send(m, model.RevealEvent{Kind: model.RevealChar, Rune: '#', Phase: model.PhaseNumber, Segment: segNext, Index: 2})
	rv := m.board.byNum[2]
	if rv.number != "#" || rv.primary != "" {
		t.Fatalf("expected restart from the segment start, got %+v", rv)
	}
	if first := m.board.byNum[1]; first.primary != "一、二。" || !first.settled {
		t.Fatalf("earlier rule changed: %+v", first)
	}
}

func TestStopAndAdvanceRevealsRuleOnce(t *testing.T) {
	params := tuning.New()
	if err := params.Apply(map[string]float64{
		"speed":             1,
		"typoProbability":   0,
		"primaryVariance":   0,
		"secondaryVariance": 0,
		"gaugeDuration":     1000,
	}); err != nil {
		t.Fatalf("apply tuning: %v", err)
	}
	segs := segment.Split([]model.Rule{{Num: 1, Primary: "あいうえお。", Secondary: "Aiueo."}})
	m := NewModel(Options{Engine: &fakeEngine{}, Speed: 1, LastRule: 1})
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	l := loop.NewVirtual(time.Unix(0, 0))
	ctrl := session.New(l, params, typist.NewWithSeed(params, 7), segs, session.Options{
		Emit: func(ev model.Event) { send(m, ev) },
	})

	if !ctrl.Advance() {
		t.Fatalf("expected advance to start a batch")
	}
	l.RunFor(time.Second)
	ctrl.Stop()
	rv := m.board.byNum[1]
	if rv == nil || rv.number == "" || rv.settled {
		t.Fatalf("expected a partly revealed rule after stop, got %+v", rv)
	}
	if ctrl.Cursor() != 0 {
		t.Fatalf("expected cursor 0 after stop, got %d", ctrl.Cursor())
	}

	if !ctrl.Advance() {
		t.Fatalf("expected advance after stop")
	}
	l.RunUntilIdle(100000)
	if rv.number != "#1" || rv.primary != "あいうえお。" || rv.secondary != "Aiueo." || !rv.settled {
		t.Fatalf("unexpected rule after re-advance %+v", rv)
	}
	if rv.typo != 0 {
		t.Fatalf("unexpected typo %q", rv.typo)
	}
}
