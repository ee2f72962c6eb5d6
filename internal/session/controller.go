// Package session orchestrates reveal batches and their gauge rendezvous.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/verte-zerg/ruletype/internal/gauge"
	"github.com/verte-zerg/ruletype/internal/loop"
	"github.com/verte-zerg/ruletype/internal/model"
	"github.com/verte-zerg/ruletype/internal/reveal"
	"github.com/verte-zerg/ruletype/internal/segment"
	"github.com/verte-zerg/ruletype/internal/tuning"
	"github.com/verte-zerg/ruletype/internal/typist"
)

// Recorder persists finished batches.
type Recorder interface {
	InsertBatch(ctx context.Context, rec model.BatchRecord) error
}

// Options configures a Controller. Every field is optional.
type Options struct {
	// Context scopes logging and recording.
	Context  context.Context
	Emit     func(model.Event)
	Logger   *slog.Logger
	Recorder Recorder
	RunID    string
}

// Controller owns the cursor and arbitrates between the reveal scheduler and
// the gauge. All methods must be called from the loop goroutine.
type Controller struct {
	ctx      context.Context
	loop     *loop.Loop
	segs     []model.Segment
	sched    *reveal.Scheduler
	gauge    *gauge.Gauge
	emit     func(model.Event)
	log      *slog.Logger
	recorder Recorder
	runID    string

	cursor  int
	state   model.SessionState
	paused  bool
	ruleNum int

	batch     model.Batch
	startedAt time.Time
	textAt    time.Time
	textFirst bool
	settled   int
}

// New builds a controller over segs. The segment list is never modified.
func New(l *loop.Loop, params *tuning.Params, ty *typist.Typist, segs []model.Segment, opts Options) *Controller {
	c := &Controller{
		ctx:      opts.Context,
		loop:     l,
		segs:     segs,
		sched:    reveal.New(l, ty),
		emit:     opts.Emit,
		log:      opts.Logger,
		recorder: opts.Recorder,
		runID:    opts.RunID,
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	if c.emit == nil {
		c.emit = func(model.Event) {}
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	c.gauge = gauge.New(l, params, gauge.Hooks{
		Progress: c.onGauge,
		Complete: c.onGaugeComplete,
	})
	return c
}

// DisplayInitial shows, without animation, every segment from the start of
// the list through the first breakpoint at or after the end of startRule. It
// returns false and shows nothing when startRule is absent.
func (c *Controller) DisplayInitial(startRule int) bool {
	if c.state != model.SessionIdle {
		c.log.DebugContext(c.ctx, "initial display ignored", "reason", "busy")
		return false
	}
	ruleEnd, ok := segment.LocateRuleBoundary(c.segs, startRule, segment.Last)
	if !ok {
		c.log.InfoContext(c.ctx, "start rule not found", "rule", startRule)
		return false
	}
	end := segment.LocateNextBreakpoint(c.segs, ruleEnd+1)
	if end < ruleEnd {
		end = ruleEnd
	}
	shown := make([]model.Segment, end+1)
	copy(shown, c.segs[:end+1])
	c.cursor = end + 1
	c.ruleNum = startRule
	c.emit(model.InitialEvent{Segments: shown, SettledThrough: startRule})
	c.log.InfoContext(c.ctx, "initial display", "rule", startRule, "segments", len(shown))
	c.emitState()
	return true
}

// Advance reveals the next batch. It is a no-op while a batch is in flight,
// while paused, or at the end of content.
func (c *Controller) Advance() bool {
	if c.state != model.SessionIdle {
		c.log.DebugContext(c.ctx, "advance ignored", "reason", "busy")
		return false
	}
	if c.paused {
		c.log.DebugContext(c.ctx, "advance ignored", "reason", "paused")
		return false
	}
	batch := segment.NextBatch(c.segs, c.cursor)
	if batch.Empty() {
		c.log.DebugContext(c.ctx, "advance ignored", "reason", "end of content")
		return false
	}

	c.batch = batch
	c.startedAt = c.loop.Now()
	c.textAt = time.Time{}
	c.textFirst = false
	c.settled = 0
	c.ruleNum = batch.Items[0].Segment.Num
	c.setState(model.SessionGenerating)
	c.log.InfoContext(c.ctx, "batch start",
		"from", batch.Items[0].Index,
		"to", batch.Items[len(batch.Items)-1].Index,
		"total_chars", batch.TotalChars,
	)

	c.gauge.Reset()
	c.gauge.Start()
	c.sched.Start(batch, reveal.Hooks{
		Reveal:      c.onReveal,
		Progress:    c.onProgress,
		Thinking:    c.onThinking,
		SegmentDone: c.onSegmentDone,
		Done:        c.onTextDone,
	})
	return true
}

// Stop abandons the batch in flight. Segments already completed stay
// consumed; the cursor is left after the last of them.
func (c *Controller) Stop() {
	if c.state == model.SessionIdle {
		return
	}
	c.sched.Stop()
	c.gauge.Reset()
	c.log.InfoContext(c.ctx, "batch stopped", "cursor", c.cursor)
	c.setState(model.SessionIdle)
}

// SetPaused toggles the paused flag. A batch in flight runs to completion;
// pausing only blocks the next Advance.
func (c *Controller) SetPaused(paused bool) {
	if c.paused == paused {
		return
	}
	c.paused = paused
	c.emitState()
}

// Paused reports whether Advance is blocked by pause.
func (c *Controller) Paused() bool {
	return c.paused
}

// Cursor returns the index of the next segment to reveal.
func (c *Controller) Cursor() int {
	return c.cursor
}

// State returns the session state.
func (c *Controller) State() model.SessionState {
	return c.state
}

// Finished reports whether every segment has been revealed.
func (c *Controller) Finished() bool {
	return c.cursor >= len(c.segs)
}

// GaugeValue returns the gauge's displayed value.
func (c *Controller) GaugeValue() float64 {
	return c.gauge.Value()
}

func (c *Controller) onReveal(ev model.RevealEvent) {
	c.ruleNum = ev.Segment.Num
	c.emit(ev)
	if c.state == model.SessionThinking && ev.Phase == model.PhasePrimary && ev.Kind != model.RevealSettle {
		c.setState(model.SessionGenerating)
	}
}

func (c *Controller) onProgress(fraction float64) {
	c.emit(model.ProgressEvent{Fraction: fraction})
}

func (c *Controller) onThinking() {
	if c.state == model.SessionGenerating {
		c.setState(model.SessionThinking)
	}
}

func (c *Controller) onSegmentDone(item model.BatchItem) {
	c.cursor = item.Index + 1
	if item.Segment.IsLast {
		c.settled = item.Segment.Num
	}
}

func (c *Controller) onTextDone() {
	c.textAt = c.loop.Now()
	c.textFirst = c.gauge.State() == model.GaugeRunning
	c.log.DebugContext(c.ctx, "text complete", "gauge_state", c.gauge.State().String())
	c.setState(model.SessionCompletePending)
	c.gauge.TextComplete()
}

func (c *Controller) onGauge(value float64, state model.GaugeState) {
	c.emit(model.GaugeEvent{Value: value, State: state})
}

func (c *Controller) onGaugeComplete() {
	if c.state != model.SessionCompletePending {
		return
	}
	rec := c.buildRecord(c.loop.Now())
	c.setState(model.SessionIdle)
	c.log.InfoContext(c.ctx, "batch complete",
		"settled_rule", rec.SettledRule,
		"chars", rec.Chars,
		"typos", rec.Typos,
		"text_ms", rec.TextMs,
		"gauge_ms", rec.GaugeMs,
	)
	if c.recorder != nil {
		if err := c.recorder.InsertBatch(c.ctx, rec); err != nil {
			c.log.ErrorContext(c.ctx, "failed to record batch", "err", err)
		}
	}
	c.emit(model.BatchDoneEvent{Record: rec})
}

func (c *Controller) buildRecord(end time.Time) model.BatchRecord {
	items := c.batch.Items
	return model.BatchRecord{
		RunID:        c.runID,
		StartedAt:    c.startedAt,
		EndedAt:      end,
		FromIndex:    items[0].Index,
		ToIndex:      items[len(items)-1].Index,
		FirstRule:    items[0].Segment.Num,
		SettledRule:  c.settled,
		Chars:        c.batch.TotalChars,
		Typos:        c.sched.Typos(),
		TextMs:       c.textAt.Sub(c.startedAt).Milliseconds(),
		GaugeMs:      end.Sub(c.startedAt).Milliseconds(),
		TextFirst:    c.textFirst,
		SegmentCount: len(items),
	}
}

func (c *Controller) setState(state model.SessionState) {
	if c.state == state {
		return
	}
	c.state = state
	c.emitState()
}

func (c *Controller) emitState() {
	c.emit(model.StateEvent{
		State:      c.state,
		Generating: c.state != model.SessionIdle,
		Thinking:   c.state == model.SessionThinking || c.state == model.SessionCompletePending,
		Paused:     c.paused,
		RuleNum:    c.ruleNum,
	})
}
