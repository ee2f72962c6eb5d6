// Package model defines shared data structures.
package model

import "time"

// Rule is one numbered unit of bilingual content.
type Rule struct {
	Num       int
	Primary   string
	Secondary string
}

// Segment is a piece of a rule's primary text split at soft-break punctuation.
type Segment struct {
	Num     int
	Primary string
	// SecondaryFull holds the owning rule's whole secondary text and is only
	// set when IsLast is true.
	SecondaryFull string
	HasSecondary  bool
	IsFirst       bool
	IsLast        bool
}

// BatchItem pairs a segment with its index in the segment list.
type BatchItem struct {
	Segment Segment
	Index   int
}

// Batch is the run of segments revealed by one advance.
type Batch struct {
	Items      []BatchItem
	TotalChars int
}

// Empty reports whether the batch has nothing to reveal.
func (b Batch) Empty() bool {
	return len(b.Items) == 0
}

// Phase is the reveal sub-phase of a rule.
type Phase int

const (
	PhaseNumber Phase = iota
	PhasePrimary
	PhaseSecondary
)

func (p Phase) String() string {
	switch p {
	case PhaseNumber:
		return "number"
	case PhasePrimary:
		return "primary"
	case PhaseSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Stream selects the delay table for a character.
type Stream int

const (
	StreamPrimary Stream = iota
	StreamSecondary
)

// RevealKind distinguishes reveal events.
type RevealKind int

const (
	// RevealChar appends Rune to the phase's text.
	RevealChar RevealKind = iota
	// RevealTypo shows a wrong rune after the current text.
	RevealTypo
	// RevealErase removes the wrong rune shown by the last RevealTypo.
	RevealErase
	// RevealSettle marks the rule as finished.
	RevealSettle
)

// Event is delivered to collaborators of the session.
type Event interface {
	sessionEvent()
}

// RevealEvent is emitted for every visible step of the reveal.
type RevealEvent struct {
	Kind    RevealKind
	Rune    rune
	Phase   Phase
	Segment Segment
	Index   int
}

// ProgressEvent reports the share of batch characters revealed so far.
type ProgressEvent struct {
	Fraction float64
}

// GaugeEvent reports the displayed gauge value.
type GaugeEvent struct {
	Value float64
	State GaugeState
}

// StateEvent reports a session state transition.
type StateEvent struct {
	State      SessionState
	Generating bool
	Thinking   bool
	Paused     bool
	RuleNum    int
}

// InitialEvent carries the segments shown without animation at startup.
type InitialEvent struct {
	Segments []Segment
	// SettledThrough is the last rule number rendered in its final appearance.
	SettledThrough int
}

// BatchDoneEvent is emitted once a batch's rendezvous completes.
type BatchDoneEvent struct {
	Record BatchRecord
}

func (RevealEvent) sessionEvent()    {}
func (ProgressEvent) sessionEvent()  {}
func (GaugeEvent) sessionEvent()     {}
func (StateEvent) sessionEvent()     {}
func (InitialEvent) sessionEvent()   {}
func (BatchDoneEvent) sessionEvent() {}

// SessionState is the controller's state.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionGenerating
	SessionThinking
	// SessionCompletePending means text is done and the gauge has not completed.
	SessionCompletePending
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionGenerating:
		return "generating"
	case SessionThinking:
		return "thinking"
	case SessionCompletePending:
		return "complete-pending"
	default:
		return "unknown"
	}
}

// GaugeState is the gauge engine's state.
type GaugeState int

const (
	GaugeIdle GaugeState = iota
	GaugeRunning
	GaugeCapped
	// GaugeFinishing is the fixed cap to full transition.
	GaugeFinishing
	GaugeComplete
)

func (s GaugeState) String() string {
	switch s {
	case GaugeIdle:
		return "idle"
	case GaugeRunning:
		return "running"
	case GaugeCapped:
		return "capped"
	case GaugeFinishing:
		return "finishing"
	case GaugeComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// BatchRecord summarizes a finished batch.
type BatchRecord struct {
	RunID        string
	StartedAt    time.Time
	EndedAt      time.Time
	FromIndex    int
	ToIndex      int
	FirstRule    int
	SettledRule  int
	Chars        int
	Typos        int
	TextMs       int64
	GaugeMs      int64
	TextFirst    bool
	SegmentCount int
}

// RunAggregate summarizes the batches of one process run.
type RunAggregate struct {
	RunID     string
	StartedAt time.Time
	EndedAt   time.Time
	Batches   int
	Chars     int
	Typos     int
	MaxRule   int
}

// HistoryConfig defines filters for batch history output.
type HistoryConfig struct {
	Since *time.Time
	Last  int
	RunID string
}

// Bilingual is a primary/secondary text pair.
type Bilingual struct {
	Primary   string
	Secondary string
}

// GameInfo describes the game the rules belong to.
type GameInfo struct {
	Title      Bilingual
	Components []Bilingual
	Actions    []Bilingual
	Victory    Bilingual
}

// Deck is a loaded rule set.
type Deck struct {
	Game  GameInfo
	Rules []Rule
}
