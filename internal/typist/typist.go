// Package typist computes per-character reveal delays and typo excursions.
package typist

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/verte-zerg/ruletype/internal/model"
	"github.com/verte-zerg/ruletype/internal/tuning"
)

const (
	maxBaseMs = 200.0
	minRatio  = 0.05

	typoShowFactor  = 0.8
	typoEraseFactor = 0.5

	// settleUnitMs scales the settle pause, which does not follow the speed.
	settleUnitMs = 100.0
)

// noTypo lists primary-stream runes that never get a typo excursion.
const noTypo = "。、．，「」『』（）()"

// typoRunes is the pool of foreign runes shown during an excursion.
var typoRunes = []rune("あいうえおかきくけこさしすせそたちつてとなにぬねのはひふへほまみむめもやゆよらりるれろわをん")

// Typist produces randomized reveal timing.
type Typist struct {
	params *tuning.Params
	rnd    *rand.Rand
}

// New returns a Typist seeded with the current time.
func New(params *tuning.Params) *Typist {
	return NewWithSeed(params, time.Now().UnixNano())
}

// NewWithSeed returns a Typist with a deterministic random source.
func NewWithSeed(params *tuning.Params, seed int64) *Typist {
	return &Typist{params: params, rnd: rand.New(rand.NewSource(seed))}
}

// BaseDelay maps the speed to a per-character delay: speed 1 is about
// 200ms and speed 100 about 10ms.
func (t *Typist) BaseDelay() time.Duration {
	return msToDuration(t.baseMs())
}

func (t *Typist) baseMs() float64 {
	speed := t.params.Speed()
	return maxBaseMs * math.Pow(minRatio, (speed-1)/99)
}

// Delay returns the wait after revealing r on the given stream.
func (t *Typist) Delay(r rune, stream model.Stream) time.Duration {
	base := t.baseMs()
	var (
		mult     float64
		matched  bool
		variance float64
	)
	if stream == model.StreamSecondary {
		mult, matched = t.secondaryMultiplier(r)
		variance = t.params.Get(tuning.SecondaryVariance)
	} else {
		mult, matched = t.primaryMultiplier(r)
		variance = t.params.Get(tuning.PrimaryVariance)
	}
	if matched {
		return msToDuration(base * mult)
	}
	jitter := 1 + (t.rnd.Float64()-0.5)*2*variance
	return msToDuration(base * jitter)
}

func (t *Typist) primaryMultiplier(r rune) (float64, bool) {
	switch r {
	case '。', '．':
		return t.params.Get(tuning.PauseSentenceEnd), true
	case '、', '，':
		return t.params.Get(tuning.PauseComma), true
	case '「', '『', '(', '（':
		return t.params.Get(tuning.PauseOpenBracket), true
	case '」', '』', ')', '）':
		return t.params.Get(tuning.PauseCloseBracket), true
	}
	return 0, false
}

func (t *Typist) secondaryMultiplier(r rune) (float64, bool) {
	switch r {
	case '.':
		return t.params.Get(tuning.PausePeriod), true
	case ',':
		return t.params.Get(tuning.PauseCommaSecondary), true
	case ' ':
		return t.params.Get(tuning.PauseSpace), true
	}
	return 0, false
}

// Typo decides whether a typo excursion precedes r on the primary stream and
// returns the foreign rune to show.
func (t *Typist) Typo(r rune) (rune, bool) {
	if strings.ContainsRune(noTypo, r) {
		return 0, false
	}
	p := t.params.Get(tuning.TypoProbability)
	if p <= 0 {
		return 0, false
	}
	if t.rnd.Float64() >= p {
		return 0, false
	}
	return typoRunes[t.rnd.Intn(len(typoRunes))], true
}

// TypoShow is how long the foreign rune stays before the writer notices.
func (t *Typist) TypoShow() time.Duration {
	return msToDuration(t.baseMs() * typoShowFactor)
}

// TypoHold is the noticing pause before the foreign rune is erased.
func (t *Typist) TypoHold() time.Duration {
	return msToDuration(t.baseMs() * t.params.Get(tuning.TypoHoldMultiplier))
}

// TypoErase is the pause after erasing before the correct rune appears.
func (t *Typist) TypoErase() time.Duration {
	return msToDuration(t.baseMs() * typoEraseFactor)
}

// Pause scales the base delay by the multiplier stored under key.
func (t *Typist) Pause(key tuning.Key) time.Duration {
	return msToDuration(t.baseMs() * t.params.Get(key))
}

// SettlePause is the wait after a rule's secondary text, before the next
// rule's number appears.
func (t *Typist) SettlePause() time.Duration {
	return msToDuration(settleUnitMs * t.params.Get(tuning.PauseSecondaryToNumber))
}

func msToDuration(ms float64) time.Duration {
	if ms <= 0 {
		return 0
	}
	if ms >= tuning.MaxMillis {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms * float64(time.Millisecond))
}
