package tui

import (
	"strconv"

	"github.com/verte-zerg/ruletype/internal/model"
)

type ruleView struct {
	num       int
	number    string
	primary   string
	secondary string
	// typo is a wrong rune shown after primary until erased.
	typo    rune
	settled bool
}

// board is the revealed state of every rule on screen, in reveal order.
type board struct {
	rules  []*ruleView
	byNum  map[int]*ruleView
	active *ruleView
	phase  model.Phase
	// index is the segment the last reveal event belonged to, or -1.
	index int
	// starts holds each revealed segment's rule view as it was before the
	// segment's first event.
	starts map[int]ruleView
}

func newBoard() *board {
	return &board{byNum: map[int]*ruleView{}, index: -1, starts: map[int]ruleView{}}
}

func (b *board) rule(num int) *ruleView {
	if rv, ok := b.byNum[num]; ok {
		return rv
	}
	rv := &ruleView{num: num}
	b.rules = append(b.rules, rv)
	b.byNum[num] = rv
	return rv
}

// applyInitial replaces the board with segments shown without animation.
// Rules completed up to settledThrough render settled; anything after is
// shown as still generating.
func (b *board) applyInitial(ev model.InitialEvent) {
	*b = *newBoard()
	passed := false
	for _, seg := range ev.Segments {
		rv := b.rule(seg.Num)
		if seg.IsFirst {
			rv.number = "#" + strconv.Itoa(seg.Num)
		}
		rv.primary += seg.Primary
		if seg.IsLast {
			if seg.HasSecondary {
				rv.secondary = seg.SecondaryFull
			}
			rv.settled = !passed
		}
		if seg.Num == ev.SettledThrough && seg.IsLast {
			passed = true
		}
	}
}

// applyReveal folds one reveal step into the board.
// A segment revealed again after an interrupt restarts from its saved start.
func (b *board) applyReveal(ev model.RevealEvent) {
	rv := b.rule(ev.Segment.Num)
	if ev.Index != b.index {
		if start, ok := b.starts[ev.Index]; ok && start.num == rv.num {
			*rv = start
		} else {
			b.starts[ev.Index] = *rv
		}
		b.index = ev.Index
	}
	b.active = rv
	b.phase = ev.Phase
	switch ev.Kind {
	case model.RevealChar:
		switch ev.Phase {
		case model.PhaseNumber:
			rv.number += string(ev.Rune)
		case model.PhasePrimary:
			rv.typo = 0
			rv.primary += string(ev.Rune)
		case model.PhaseSecondary:
			rv.secondary += string(ev.Rune)
		}
		rv.settled = false
	case model.RevealTypo:
		rv.typo = ev.Rune
	case model.RevealErase:
		rv.typo = 0
	case model.RevealSettle:
		rv.typo = 0
		rv.settled = true
	}
}

// interrupt ends the segment in flight. Its partial text stays until the
// segment is revealed again; a pending typo is dropped.
func (b *board) interrupt() {
	if b.active != nil {
		b.active.typo = 0
	}
	b.index = -1
}

// lastRule returns the number of the last rule on the board, or 0.
func (b *board) lastRule() int {
	if len(b.rules) == 0 {
		return 0
	}
	return b.rules[len(b.rules)-1].num
}
