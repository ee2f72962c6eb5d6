// Package tuning holds the live reveal and gauge parameters.
package tuning

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"
)

// Key names a tuning parameter.
type Key string

const (
	Speed                   Key = "speed"
	GaugeDuration           Key = "gaugeDuration"
	GaugeCapFraction        Key = "gaugeCapFraction"
	GaugeWaveAmplitude      Key = "gaugeWaveAmplitude"
	GaugeWaveFrequency      Key = "gaugeWaveFrequency"
	TypoProbability         Key = "typoProbability"
	TypoHoldMultiplier      Key = "typoHoldMultiplier"
	PauseNumToPrimary       Key = "pauseNumToPrimary"
	PausePrimaryToSecondary Key = "pausePrimaryToSecondary"
	PauseSecondaryToNumber  Key = "pauseSecondaryToNumber"
	PauseSentenceEnd        Key = "pauseSentenceEnd"
	PauseComma              Key = "pauseComma"
	PauseOpenBracket        Key = "pauseOpenBracket"
	PauseCloseBracket       Key = "pauseCloseBracket"
	PausePeriod             Key = "pausePeriod"
	PauseCommaSecondary     Key = "pauseCommaSecondary"
	PauseSpace              Key = "pauseSpace"
	PrimaryVariance         Key = "primaryVariance"
	SecondaryVariance       Key = "secondaryVariance"
)

// MaxMillis is the longest millisecond value that fits a time.Duration.
const MaxMillis = float64(math.MaxInt64 / int64(time.Millisecond))

type bound struct {
	def      float64
	min, max float64
}

var bounds = map[Key]bound{
	Speed:                   {def: 8, min: 1, max: 100},
	GaugeDuration:           {def: 54000, min: 0, max: MaxMillis},
	GaugeCapFraction:        {def: 0.90, min: 0, max: 1},
	GaugeWaveAmplitude:      {def: 0.015, min: 0, max: 1},
	GaugeWaveFrequency:      {def: 0.3, min: 0, max: math.MaxFloat64},
	TypoProbability:         {def: 0.05, min: 0, max: 1},
	TypoHoldMultiplier:      {def: 4, min: 0, max: math.MaxFloat64},
	PauseNumToPrimary:       {def: 6, min: 0, max: math.MaxFloat64},
	PausePrimaryToSecondary: {def: 7.5, min: 0, max: math.MaxFloat64},
	PauseSecondaryToNumber:  {def: 24, min: 0, max: math.MaxFloat64},
	PauseSentenceEnd:        {def: 9, min: 0, max: math.MaxFloat64},
	PauseComma:              {def: 7.5, min: 0, max: math.MaxFloat64},
	PauseOpenBracket:        {def: 4, min: 0, max: math.MaxFloat64},
	PauseCloseBracket:       {def: 4, min: 0, max: math.MaxFloat64},
	PausePeriod:             {def: 6.5, min: 0, max: math.MaxFloat64},
	PauseCommaSecondary:     {def: 3, min: 0, max: math.MaxFloat64},
	PauseSpace:              {def: 0.5, min: 0, max: math.MaxFloat64},
	PrimaryVariance:         {def: 0.64, min: 0, max: 1},
	SecondaryVariance:       {def: 0.64, min: 0, max: 1},
}

// Keys returns every known key in sorted order.
func Keys() []Key {
	keys := make([]Key, 0, len(bounds))
	for k := range bounds {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Default returns the default value for key.
func Default(key Key) float64 {
	return bounds[key].def
}

// Defaults returns the default value of every key.
func Defaults() map[string]float64 {
	out := make(map[string]float64, len(bounds))
	for k, s := range bounds {
		out[string(k)] = s.def
	}
	return out
}

// Validate checks every entry of values without storing anything.
func Validate(values map[string]float64) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := bounds[Key(k)]; !ok {
			return fmt.Errorf("unknown tuning key %q", k)
		}
		if err := check(Key(k), values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Params is a set of parameters that may be read and written from any
// goroutine. Every read observes the latest write; there is no snapshot.
type Params struct {
	values map[Key]*atomic.Uint64
}

// New returns parameters set to their defaults.
func New() *Params {
	p := &Params{values: make(map[Key]*atomic.Uint64, len(bounds))}
	for k, s := range bounds {
		v := new(atomic.Uint64)
		v.Store(math.Float64bits(s.def))
		p.values[k] = v
	}
	return p
}

// Clone returns an independent copy of the current values.
func (p *Params) Clone() *Params {
	c := New()
	for k, v := range p.values {
		c.values[k].Store(v.Load())
	}
	return c
}

// Get returns the live value of key. Unknown keys read as zero.
func (p *Params) Get(key Key) float64 {
	v, ok := p.values[key]
	if !ok {
		return 0
	}
	return math.Float64frombits(v.Load())
}

// Set stores value for key after range validation.
func (p *Params) Set(key Key, value float64) error {
	v, ok := p.values[key]
	if !ok {
		return fmt.Errorf("unknown tuning key %q", key)
	}
	if err := check(key, value); err != nil {
		return err
	}
	v.Store(math.Float64bits(value))
	return nil
}

// Apply sets every value in the map, stopping at the first invalid entry.
func (p *Params) Apply(values map[string]float64) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := p.Set(Key(k), values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Values returns the current value of every key.
func (p *Params) Values() map[string]float64 {
	out := make(map[string]float64, len(p.values))
	for k, v := range p.values {
		out[string(k)] = math.Float64frombits(v.Load())
	}
	return out
}

// AdjustSpeed adds delta to the speed, clamped to its valid range.
func (p *Params) AdjustSpeed(delta float64) float64 {
	s := bounds[Speed]
	next := math.Max(s.min, math.Min(s.max, p.Get(Speed)+delta))
	p.values[Speed].Store(math.Float64bits(next))
	return next
}

// Speed returns the reveal speed clamped to 1-100.
func (p *Params) Speed() float64 {
	s := bounds[Speed]
	return math.Max(s.min, math.Min(s.max, p.Get(Speed)))
}

// GaugeDuration returns the time the gauge takes to reach its cap.
func (p *Params) GaugeDuration() time.Duration {
	return time.Duration(math.Min(p.Get(GaugeDuration), MaxMillis) * float64(time.Millisecond))
}

func check(key Key, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%s must be a finite number", key)
	}
	s := bounds[key]
	if value < s.min || value > s.max {
		if s.max == math.MaxFloat64 {
			return fmt.Errorf("%s must be >= %g", key, s.min)
		}
		return fmt.Errorf("%s must be between %g and %g", key, s.min, s.max)
	}
	return nil
}
