package tui

import (
	"strings"
	"testing"
)

func plainRunes(text string) []styledRune {
	out := make([]styledRune, 0, len(text))
	for _, r := range text {
		width := 1
		if r > 0x2E80 {
			width = 2
		}
		out = append(out, styledRune{s: string(r), width: width, isSpace: r == ' '})
	}
	return out
}

func TestWrapBreaksAtSpaces(t *testing.T) {
	got := wrapStyledRunes(plainRunes("place a piece"), 8)
	if got != "place a\npiece" {
		t.Fatalf("unexpected wrap %q", got)
	}
}

func TestWrapBreaksWideRunesWithoutSpaces(t *testing.T) {
	got := wrapStyledRunes(plainRunes("一二三四五"), 6)
	if got != "一二三\n四五" {
		t.Fatalf("unexpected wrap %q", got)
	}
	for _, line := range strings.Split(got, "\n") {
		if lineWidthOf(plainRunes(line)) > 6 {
			t.Fatalf("line %q exceeds width", line)
		}
	}
}

func TestWrapZeroWidthKeepsSingleLine(t *testing.T) {
	got := wrapStyledRunes(plainRunes("a b c"), 0)
	if got != "a b c" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestBuildPrimaryRunesStyles(t *testing.T) {
	rv := &ruleView{num: 2, number: "#2", primary: "駒", typo: 'x'}
	runes := buildPrimaryRunes(rv, typingCaret)
	if len(runes) != 6 {
		t.Fatalf("expected 6 runes, got %d", len(runes))
	}
	if runes[0].s != numberStyle.Render("#") {
		t.Fatalf("expected number style for the rule number")
	}
	if !runes[2].isSpace {
		t.Fatalf("expected a space between number and text")
	}
	if runes[3].s != generatingStyle.Render("駒") || runes[3].width != 2 {
		t.Fatalf("expected dim wide rune for a rule still generating")
	}
	if runes[4].s != typoStyle.Render("x") {
		t.Fatalf("expected typo style for the pending typo")
	}
	if runes[5].s != caretStyle.Render(typingCaret) {
		t.Fatalf("expected caret last")
	}

	rv.settled = true
	rv.typo = 0
	runes = buildPrimaryRunes(rv, "")
	if runes[len(runes)-1].s != settledStyle.Render("駒") {
		t.Fatalf("expected settled style once the rule settles")
	}
}
