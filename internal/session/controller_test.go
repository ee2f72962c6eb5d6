package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/ruletype/internal/loop"
	"github.com/verte-zerg/ruletype/internal/model"
	"github.com/verte-zerg/ruletype/internal/segment"
	"github.com/verte-zerg/ruletype/internal/tuning"
	"github.com/verte-zerg/ruletype/internal/typist"
)

type fakeRecorder struct {
	records []model.BatchRecord
	err     error
}

func (f *fakeRecorder) InsertBatch(_ context.Context, rec model.BatchRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

type harness struct {
	loop   *loop.Loop
	ctrl   *Controller
	events []model.Event
	rec    *fakeRecorder
}

func sampleRules() []model.Rule {
	return []model.Rule{
		{Num: 1, Primary: "一、二。", Secondary: "One, two."},
		{Num: 2, Primary: "三。", Secondary: "Three."},
		{Num: 5, Primary: "四、五、六。", Secondary: "Four, five, six."},
		{Num: 6, Primary: "七。", Secondary: "Seven."},
	}
}

func newHarness(t *testing.T, values map[string]float64) *harness {
	t.Helper()
	p := tuning.New()
	base := map[string]float64{
		"speed":             100,
		"typoProbability":   0,
		"primaryVariance":   0,
		"secondaryVariance": 0,
		"gaugeDuration":     1000,
	}
	for k, v := range values {
		base[k] = v
	}
	if err := p.Apply(base); err != nil {
		t.Fatalf("apply tuning: %v", err)
	}
	h := &harness{loop: loop.NewVirtual(time.Unix(0, 0)), rec: &fakeRecorder{}}
	h.ctrl = New(h.loop, p, typist.NewWithSeed(p, 3), segment.Split(sampleRules()), Options{
		Emit:     func(ev model.Event) { h.events = append(h.events, ev) },
		Recorder: h.rec,
		RunID:    "run-1",
	})
	return h
}

func (h *harness) states() []model.SessionState {
	var out []model.SessionState
	for _, ev := range h.events {
		if st, ok := ev.(model.StateEvent); ok {
			out = append(out, st.State)
		}
	}
	return out
}

func (h *harness) batchDone() []model.BatchDoneEvent {
	var out []model.BatchDoneEvent
	for _, ev := range h.events {
		if done, ok := ev.(model.BatchDoneEvent); ok {
			out = append(out, done)
		}
	}
	return out
}

func TestDisplayInitial(t *testing.T) {
	h := newHarness(t, nil)
	if !h.ctrl.DisplayInitial(1) {
		t.Fatalf("expected initial display for rule 1")
	}
	// Rule 1 ends at index 1; the next breakpoint is 四、 at index 3.
	if h.ctrl.Cursor() != 4 {
		t.Fatalf("expected cursor 4, got %d", h.ctrl.Cursor())
	}
	initial, ok := h.events[0].(model.InitialEvent)
	if !ok {
		t.Fatalf("expected InitialEvent first, got %T", h.events[0])
	}
	if len(initial.Segments) != 4 || initial.SettledThrough != 1 {
		t.Fatalf("unexpected initial event %+v", initial)
	}
}

func TestDisplayInitialMissingRule(t *testing.T) {
	h := newHarness(t, nil)
	if h.ctrl.DisplayInitial(4) {
		t.Fatalf("rule 4 does not exist")
	}
	if len(h.events) != 0 || h.ctrl.Cursor() != 0 {
		t.Fatalf("missing rule must show nothing")
	}
}

func TestAdvanceTextFirstRendezvous(t *testing.T) {
	h := newHarness(t, map[string]float64{"gaugeDuration": 600000})
	if !h.ctrl.Advance() {
		t.Fatalf("expected advance to start a batch")
	}
	h.loop.RunFor(30 * time.Second)
	if h.ctrl.State() != model.SessionCompletePending {
		t.Fatalf("expected complete-pending while gauge runs, got %v", h.ctrl.State())
	}
	if len(h.batchDone()) != 0 {
		t.Fatalf("batch completed before the gauge")
	}

	h.loop.RunFor(10 * time.Minute)
	if h.ctrl.State() != model.SessionIdle {
		t.Fatalf("expected idle after rendezvous, got %v", h.ctrl.State())
	}
	done := h.batchDone()
	if len(done) != 1 {
		t.Fatalf("expected exactly one completion, got %d", len(done))
	}
	rec := done[0].Record
	if !rec.TextFirst || rec.FromIndex != 0 || rec.ToIndex != 3 || rec.SettledRule != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.RunID != "run-1" || rec.TextMs >= rec.GaugeMs {
		t.Fatalf("unexpected timing in record %+v", rec)
	}
	if len(h.rec.records) != 1 {
		t.Fatalf("expected recorder to receive the batch")
	}
}

func TestAdvanceGaugeFirstRendezvous(t *testing.T) {
	h := newHarness(t, map[string]float64{"gaugeDuration": 10})
	h.ctrl.Advance()
	h.loop.RunUntilIdle(100000)

	if h.ctrl.State() != model.SessionIdle {
		t.Fatalf("expected idle, got %v", h.ctrl.State())
	}
	done := h.batchDone()
	if len(done) != 1 || done[0].Record.TextFirst {
		t.Fatalf("expected one gauge-first completion, got %+v", done)
	}
	if h.ctrl.GaugeValue() != 1 {
		t.Fatalf("expected full gauge, got %v", h.ctrl.GaugeValue())
	}
}

func TestAdvanceIgnoredWhileBusyPausedOrAtEnd(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.Advance()
	if h.ctrl.Advance() {
		t.Fatalf("advance while busy must be ignored")
	}
	h.loop.RunUntilIdle(100000)

	h.ctrl.SetPaused(true)
	if h.ctrl.Advance() {
		t.Fatalf("advance while paused must be ignored")
	}
	h.ctrl.SetPaused(false)

	for h.ctrl.Advance() {
		h.loop.RunUntilIdle(100000)
	}
	if !h.ctrl.Finished() {
		t.Fatalf("expected end of content, cursor %d", h.ctrl.Cursor())
	}
	if h.ctrl.Advance() {
		t.Fatalf("advance at end must be ignored")
	}
}

func TestBatchesCoverEverySegmentOnce(t *testing.T) {
	h := newHarness(t, nil)
	next := 0
	for h.ctrl.Advance() {
		h.loop.RunUntilIdle(100000)
		done := h.batchDone()
		rec := done[len(done)-1].Record
		if rec.FromIndex != next {
			t.Fatalf("batch starts at %d, expected %d", rec.FromIndex, next)
		}
		next = rec.ToIndex + 1
		if h.ctrl.Cursor() != next {
			t.Fatalf("cursor %d does not follow batch end %d", h.ctrl.Cursor(), rec.ToIndex)
		}
	}
	if next != 7 {
		t.Fatalf("expected all 7 segments revealed, stopped at %d", next)
	}
}

func TestMidBatchThinking(t *testing.T) {
	h := newHarness(t, nil)
	h.ctrl.DisplayInitial(1)
	h.events = nil
	// From index 4 the batch covers 五、 then the rest of rule 5 and rule 6.
	h.ctrl.Advance()
	h.loop.RunUntilIdle(100000)

	states := h.states()
	want := []model.SessionState{
		model.SessionGenerating,
		model.SessionThinking,
		model.SessionGenerating,
		model.SessionCompletePending,
		model.SessionIdle,
	}
	if len(states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, states)
		}
	}
}

func TestStopLeavesCursorAtCompletedSegment(t *testing.T) {
	h := newHarness(t, map[string]float64{"speed": 1})
	h.ctrl.Advance()
	// #1 and 一、 are out after 400ms + 1200ms + 200ms + 1500ms.
	h.loop.RunFor(3400 * time.Millisecond)
	if h.ctrl.Cursor() != 1 {
		t.Fatalf("expected first segment complete, cursor %d", h.ctrl.Cursor())
	}
	h.ctrl.Stop()
	h.loop.RunUntilIdle(100000)
	if h.ctrl.State() != model.SessionIdle {
		t.Fatalf("expected idle after stop")
	}
	if h.ctrl.Cursor() != 1 {
		t.Fatalf("stop moved the cursor to %d", h.ctrl.Cursor())
	}
	if len(h.batchDone()) != 0 {
		t.Fatalf("stopped batch must not complete")
	}
	if !h.ctrl.Advance() {
		t.Fatalf("expected a new batch after stop")
	}
}

func TestSignals(t *testing.T) {
	h := newHarness(t, map[string]float64{"gaugeDuration": 600000})
	h.ctrl.Advance()
	h.loop.RunFor(time.Minute)
	var last model.StateEvent
	for _, ev := range h.events {
		if st, ok := ev.(model.StateEvent); ok {
			last = st
		}
	}
	if !last.Generating || !last.Thinking {
		t.Fatalf("complete-pending must signal generating and thinking, got %+v", last)
	}
}

func TestRecorderErrorDoesNotBlockCompletion(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.err = errors.New("disk full")
	h.ctrl.Advance()
	h.loop.RunUntilIdle(100000)
	if h.ctrl.State() != model.SessionIdle || len(h.batchDone()) != 1 {
		t.Fatalf("recorder failure must not stall the session")
	}
}
