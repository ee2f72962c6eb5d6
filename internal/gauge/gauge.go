// Package gauge animates the batch progress bar independently of the text.
package gauge

import (
	"math"
	"time"

	"github.com/verte-zerg/ruletype/internal/loop"
	"github.com/verte-zerg/ruletype/internal/model"
	"github.com/verte-zerg/ruletype/internal/tuning"
)

const (
	// DefaultFrame is the tick interval of a running gauge.
	DefaultFrame = 16 * time.Millisecond
	// FinishDuration is how long the cap-to-full transition takes.
	FinishDuration = 500 * time.Millisecond
)

// Shape holds the parameters that determine the gauge curve.
type Shape struct {
	Duration  time.Duration
	Cap       float64
	Amplitude float64
	Frequency float64
}

// ShapeFrom reads the live gauge parameters.
func ShapeFrom(p *tuning.Params) Shape {
	return Shape{
		Duration:  p.GaugeDuration(),
		Cap:       p.Get(tuning.GaugeCapFraction),
		Amplitude: p.Get(tuning.GaugeWaveAmplitude),
		Frequency: p.Get(tuning.GaugeWaveFrequency),
	}
}

// Sample returns the unwaved base value and the displayed value after
// elapsed. Both stay within [0, cap]; base never decreases with elapsed.
func Sample(elapsed time.Duration, shape Shape) (base, shown float64) {
	if shape.Duration <= 0 {
		base = shape.Cap
	} else {
		base = math.Min(float64(elapsed)/float64(shape.Duration), shape.Cap)
	}
	ms := float64(elapsed) / float64(time.Millisecond)
	wave := shape.Amplitude * math.Sin(ms*shape.Frequency*2*math.Pi/1000)
	shown = math.Max(0, math.Min(shape.Cap, base+wave))
	return base, shown
}

// Hooks receive gauge output. Nil hooks are skipped.
type Hooks struct {
	Progress func(value float64, state model.GaugeState)
	Complete func()
}

// Gauge is a time-driven progress value that holds at its cap until the text
// reveal reports completion, then runs to full.
type Gauge struct {
	loop   *loop.Loop
	params *tuning.Params
	hooks  Hooks
	frame  time.Duration

	state       model.GaugeState
	value       float64
	textDone    bool
	startedAt   time.Time
	finishFrom  float64
	finishStart time.Time
	ticker      *loop.Timer
}

// New returns an idle gauge ticking every DefaultFrame.
func New(l *loop.Loop, params *tuning.Params, hooks Hooks) *Gauge {
	return &Gauge{loop: l, params: params, hooks: hooks, frame: DefaultFrame}
}

// SetFrame overrides the tick interval.
func (g *Gauge) SetFrame(d time.Duration) {
	if d > 0 {
		g.frame = d
	}
}

// Start begins a new run from zero, replacing any run in progress.
func (g *Gauge) Start() {
	g.stopTicker()
	g.state = model.GaugeRunning
	g.value = 0
	g.textDone = false
	g.startedAt = g.loop.Now()
	g.publish()
	g.schedule()
}

// TextComplete records that the text reveal finished. A capped gauge begins
// finishing at once; a running one finishes when it reaches the cap.
func (g *Gauge) TextComplete() {
	switch g.state {
	case model.GaugeRunning:
		g.textDone = true
	case model.GaugeCapped:
		g.textDone = true
		g.beginFinish()
		g.publish()
	}
}

// Reset returns the gauge to idle without firing the completion hook.
func (g *Gauge) Reset() {
	g.stopTicker()
	g.state = model.GaugeIdle
	g.value = 0
	g.textDone = false
	g.publish()
}

// State returns the current state.
func (g *Gauge) State() model.GaugeState {
	return g.state
}

// Value returns the displayed fraction in [0, 1].
func (g *Gauge) Value() float64 {
	return g.value
}

// Elapsed returns the time since the current run started.
func (g *Gauge) Elapsed() time.Duration {
	if g.state == model.GaugeIdle {
		return 0
	}
	return g.loop.Now().Sub(g.startedAt)
}

func (g *Gauge) tick() {
	g.ticker = nil
	now := g.loop.Now()
	switch g.state {
	case model.GaugeRunning, model.GaugeCapped:
		shape := ShapeFrom(g.params)
		base, shown := Sample(now.Sub(g.startedAt), shape)
		g.value = shown
		if base >= shape.Cap {
			if g.textDone {
				g.beginFinish()
			} else {
				g.state = model.GaugeCapped
			}
		}
	case model.GaugeFinishing:
		frac := float64(now.Sub(g.finishStart)) / float64(FinishDuration)
		if frac >= 1 {
			g.complete()
			return
		}
		g.value = g.finishFrom + (1-g.finishFrom)*frac
	default:
		return
	}
	g.publish()
	g.schedule()
}

func (g *Gauge) beginFinish() {
	g.state = model.GaugeFinishing
	g.finishFrom = g.value
	g.finishStart = g.loop.Now()
}

func (g *Gauge) complete() {
	g.stopTicker()
	g.state = model.GaugeComplete
	g.value = 1
	g.publish()
	if g.hooks.Complete != nil {
		g.hooks.Complete()
	}
}

func (g *Gauge) schedule() {
	g.ticker = g.loop.After(g.frame, g.tick)
}

func (g *Gauge) stopTicker() {
	if g.ticker != nil {
		g.ticker.Stop()
		g.ticker = nil
	}
}

func (g *Gauge) publish() {
	if g.hooks.Progress != nil {
		g.hooks.Progress(g.value, g.state)
	}
}
