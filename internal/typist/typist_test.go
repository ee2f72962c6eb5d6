package typist

import (
	"testing"
	"time"

	"github.com/verte-zerg/ruletype/internal/model"
	"github.com/verte-zerg/ruletype/internal/tuning"
)

func newTypist(t *testing.T, values map[string]float64) *Typist {
	t.Helper()
	p := tuning.New()
	if err := p.Apply(values); err != nil {
		t.Fatalf("apply tuning: %v", err)
	}
	return NewWithSeed(p, 1)
}

func TestBaseDelayCurve(t *testing.T) {
	ty := newTypist(t, map[string]float64{"speed": 1})
	if got := ty.BaseDelay(); got != 200*time.Millisecond {
		t.Fatalf("expected 200ms at speed 1, got %v", got)
	}
	ty.params.Set(tuning.Speed, 100)
	got := ty.BaseDelay()
	if got < 9999*time.Microsecond || got > 10001*time.Microsecond {
		t.Fatalf("expected ~10ms at speed 100, got %v", got)
	}
}

func TestPunctuationMultipliers(t *testing.T) {
	ty := newTypist(t, map[string]float64{"speed": 1})
	tests := []struct {
		r      rune
		stream model.Stream
		want   time.Duration
	}{
		{r: '。', stream: model.StreamPrimary, want: 1800 * time.Millisecond},
		{r: '、', stream: model.StreamPrimary, want: 1500 * time.Millisecond},
		{r: '「', stream: model.StreamPrimary, want: 800 * time.Millisecond},
		{r: '）', stream: model.StreamPrimary, want: 800 * time.Millisecond},
		{r: '.', stream: model.StreamSecondary, want: 1300 * time.Millisecond},
		{r: ',', stream: model.StreamSecondary, want: 600 * time.Millisecond},
		{r: ' ', stream: model.StreamSecondary, want: 100 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := ty.Delay(tt.r, tt.stream); got != tt.want {
			t.Fatalf("%q: expected %v, got %v", tt.r, tt.want, got)
		}
	}
}

func TestStreamsUseSeparateTables(t *testing.T) {
	ty := newTypist(t, map[string]float64{"speed": 1, "primaryVariance": 0, "secondaryVariance": 0})
	if got := ty.Delay('.', model.StreamPrimary); got != 200*time.Millisecond {
		t.Fatalf("'.' is not punctuation on the primary stream, got %v", got)
	}
	if got := ty.Delay('。', model.StreamSecondary); got != 200*time.Millisecond {
		t.Fatalf("'。' is not punctuation on the secondary stream, got %v", got)
	}
}

func TestJitterStaysInBounds(t *testing.T) {
	ty := newTypist(t, map[string]float64{"speed": 1, "primaryVariance": 0.5})
	lo, hi := 100*time.Millisecond, 300*time.Millisecond
	for i := 0; i < 500; i++ {
		got := ty.Delay('あ', model.StreamPrimary)
		if got < lo || got > hi {
			t.Fatalf("delay %v outside [%v, %v]", got, lo, hi)
		}
	}
}

func TestDelayReadsLiveSpeed(t *testing.T) {
	ty := newTypist(t, map[string]float64{"speed": 1})
	before := ty.Delay('。', model.StreamPrimary)
	ty.params.Set(tuning.Speed, 100)
	after := ty.Delay('。', model.StreamPrimary)
	if after >= before {
		t.Fatalf("expected faster delay after speed change, got %v then %v", before, after)
	}
}

func TestTypoNeverFiresWhenDisabled(t *testing.T) {
	ty := newTypist(t, map[string]float64{"typoProbability": 0})
	for i := 0; i < 1000; i++ {
		if _, ok := ty.Typo('あ'); ok {
			t.Fatalf("unexpected typo with probability 0")
		}
	}
}

func TestTypoSkipsPunctuation(t *testing.T) {
	ty := newTypist(t, map[string]float64{"typoProbability": 1})
	for _, r := range noTypo {
		if _, ok := ty.Typo(r); ok {
			t.Fatalf("unexpected typo on %q", r)
		}
	}
	r, ok := ty.Typo('字')
	if !ok {
		t.Fatalf("expected typo with probability 1")
	}
	found := false
	for _, c := range typoRunes {
		if c == r {
			found = true
		}
	}
	if !found {
		t.Fatalf("typo rune %q not from the foreign pool", r)
	}
}

func TestTypoTimings(t *testing.T) {
	ty := newTypist(t, map[string]float64{"speed": 1, "typoHoldMultiplier": 4})
	if got := ty.TypoShow(); got != 160*time.Millisecond {
		t.Fatalf("expected 160ms show, got %v", got)
	}
	if got := ty.TypoHold(); got != 800*time.Millisecond {
		t.Fatalf("expected 800ms hold, got %v", got)
	}
	if got := ty.TypoErase(); got != 100*time.Millisecond {
		t.Fatalf("expected 100ms erase, got %v", got)
	}
}

func TestSettlePauseIgnoresSpeed(t *testing.T) {
	ty := newTypist(t, map[string]float64{"speed": 100, "pauseSecondaryToNumber": 24})
	if got := ty.SettlePause(); got != 2400*time.Millisecond {
		t.Fatalf("expected 2.4s settle pause, got %v", got)
	}
}

func TestHugePauseSaturates(t *testing.T) {
	ty := newTypist(t, map[string]float64{"pauseSecondaryToNumber": 1e300})
	if got := ty.SettlePause(); got <= 0 {
		t.Fatalf("expected a positive settle pause, got %v", got)
	}
}
