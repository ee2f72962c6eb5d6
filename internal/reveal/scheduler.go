// Package reveal drives the character-by-character reveal of a batch.
package reveal

import (
	"strconv"
	"time"

	"github.com/verte-zerg/ruletype/internal/loop"
	"github.com/verte-zerg/ruletype/internal/model"
	"github.com/verte-zerg/ruletype/internal/tuning"
	"github.com/verte-zerg/ruletype/internal/typist"
)

// Hooks receive the scheduler's output. Nil hooks are skipped.
type Hooks struct {
	Reveal   func(model.RevealEvent)
	Progress func(fraction float64)
	// Thinking fires when a new rule starts mid-batch.
	Thinking func()
	// SegmentDone fires once a segment's reveal work is fully emitted.
	SegmentDone func(item model.BatchItem)
	Done        func()
}

// Scheduler reveals one batch at a time on a loop. Per rule it runs the
// number, primary and, for a rule's last segment, secondary phases.
// All methods must be called from the loop goroutine.
type Scheduler struct {
	loop   *loop.Loop
	typist *typist.Typist

	hooks   Hooks
	batch   model.Batch
	item    int
	phase   model.Phase
	runes   []rune
	pos     int
	rolled  bool
	running bool
	timer   *loop.Timer

	charsDone int
	typos     int
}

// New returns an idle scheduler.
func New(l *loop.Loop, t *typist.Typist) *Scheduler {
	return &Scheduler{loop: l, typist: t}
}

// Start begins revealing batch, abandoning any batch in flight.
func (s *Scheduler) Start(batch model.Batch, hooks Hooks) {
	s.Stop()
	s.hooks = hooks
	s.batch = batch
	s.item = 0
	s.charsDone = 0
	s.typos = 0
	if batch.Empty() {
		s.finish()
		return
	}
	s.running = true
	s.wait(0, s.startItem)
}

// Stop halts emission before the next step. Already emitted events stand.
func (s *Scheduler) Stop() {
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Running reports whether a batch is in flight.
func (s *Scheduler) Running() bool {
	return s.running
}

// Phase returns the phase of the step in flight.
func (s *Scheduler) Phase() model.Phase {
	return s.phase
}

// CharsDone returns the primary and secondary characters revealed so far.
func (s *Scheduler) CharsDone() int {
	return s.charsDone
}

// Typos returns the number of typo excursions in the current batch.
func (s *Scheduler) Typos() int {
	return s.typos
}

func (s *Scheduler) current() model.BatchItem {
	return s.batch.Items[s.item]
}

func (s *Scheduler) startItem() {
	if s.item >= len(s.batch.Items) {
		s.finish()
		return
	}
	seg := s.current().Segment
	if !seg.IsFirst {
		s.enter(model.PhasePrimary, seg.Primary)
		s.step()
		return
	}
	if s.item > 0 && s.hooks.Thinking != nil {
		s.hooks.Thinking()
	}
	s.enter(model.PhaseNumber, "#"+strconv.Itoa(seg.Num))
	s.step()
}

func (s *Scheduler) enter(phase model.Phase, text string) {
	s.phase = phase
	s.runes = []rune(text)
	s.pos = 0
	s.rolled = false
}

func (s *Scheduler) step() {
	if s.pos >= len(s.runes) {
		s.endPhase()
		return
	}
	r := s.runes[s.pos]
	switch s.phase {
	case model.PhaseNumber:
		s.emit(model.RevealChar, r)
		s.pos++
		s.wait(s.typist.BaseDelay(), s.step)
	case model.PhasePrimary:
		if !s.rolled {
			s.rolled = true
			if foreign, ok := s.typist.Typo(r); ok {
				s.excursion(foreign)
				return
			}
		}
		s.revealCounted(r)
		s.wait(s.typist.Delay(r, model.StreamPrimary), s.step)
	case model.PhaseSecondary:
		s.revealCounted(r)
		s.wait(s.typist.Delay(r, model.StreamSecondary), s.step)
	}
}

// excursion shows a foreign rune, holds it, then erases it. The correct rune
// follows on the next step with its own delay.
func (s *Scheduler) excursion(foreign rune) {
	s.typos++
	s.emit(model.RevealTypo, foreign)
	s.wait(s.typist.TypoShow(), func() {
		s.wait(s.typist.TypoHold(), func() {
			s.emit(model.RevealErase, foreign)
			s.wait(s.typist.TypoErase(), s.step)
		})
	})
}

func (s *Scheduler) revealCounted(r rune) {
	s.emit(model.RevealChar, r)
	s.pos++
	s.rolled = false
	s.charsDone++
	if s.hooks.Progress != nil && s.batch.TotalChars > 0 {
		s.hooks.Progress(float64(s.charsDone) / float64(s.batch.TotalChars))
	}
}

func (s *Scheduler) endPhase() {
	seg := s.current().Segment
	switch s.phase {
	case model.PhaseNumber:
		s.enter(model.PhasePrimary, seg.Primary)
		s.wait(s.typist.Pause(tuning.PauseNumToPrimary), s.step)
	case model.PhasePrimary:
		if !seg.IsLast {
			s.segmentDone()
			return
		}
		if !seg.HasSecondary || seg.SecondaryFull == "" {
			s.emit(model.RevealSettle, 0)
			s.segmentDone()
			return
		}
		s.enter(model.PhaseSecondary, seg.SecondaryFull)
		s.wait(s.typist.Pause(tuning.PausePrimaryToSecondary), s.step)
	case model.PhaseSecondary:
		s.emit(model.RevealSettle, 0)
		s.wait(s.typist.SettlePause(), s.segmentDone)
	}
}

func (s *Scheduler) segmentDone() {
	item := s.current()
	s.item++
	if s.hooks.SegmentDone != nil {
		s.hooks.SegmentDone(item)
	}
	if !s.running {
		return
	}
	s.startItem()
}

func (s *Scheduler) finish() {
	s.running = false
	s.timer = nil
	if s.hooks.Done != nil {
		s.hooks.Done()
	}
}

func (s *Scheduler) emit(kind model.RevealKind, r rune) {
	if s.hooks.Reveal == nil {
		return
	}
	item := s.current()
	s.hooks.Reveal(model.RevealEvent{
		Kind:    kind,
		Rune:    r,
		Phase:   s.phase,
		Segment: item.Segment,
		Index:   item.Index,
	})
}

func (s *Scheduler) wait(d time.Duration, next func()) {
	s.timer = s.loop.After(d, func() {
		if !s.running {
			return
		}
		next()
	})
}
