package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

type styledRune struct {
	s       string
	width   int
	isSpace bool
}

func styleRunes(out []styledRune, text string, style lipgloss.Style) []styledRune {
	for _, r := range text {
		out = append(out, styledRune{
			s:       style.Render(string(r)),
			width:   runewidth.RuneWidth(r),
			isSpace: r == ' ',
		})
	}
	return out
}

// buildPrimaryRunes renders a rule's number and primary text. A pending typo
// follows the text; the caret, if any, comes last.
func buildPrimaryRunes(rv *ruleView, caret string) []styledRune {
	style := settledStyle
	if !rv.settled {
		style = generatingStyle
	}
	out := make([]styledRune, 0, len(rv.number)+len(rv.primary)+2)
	out = styleRunes(out, rv.number, numberStyle)
	if rv.number != "" && rv.primary != "" {
		out = append(out, styledRune{s: " ", width: 1, isSpace: true})
	}
	out = styleRunes(out, rv.primary, style)
	if rv.typo != 0 {
		out = styleRunes(out, string(rv.typo), typoStyle)
	}
	if caret != "" {
		out = styleRunes(out, caret, caretStyle)
	}
	return out
}

func buildSecondaryRunes(rv *ruleView) []styledRune {
	style := secondaryStyle
	if !rv.settled {
		style = generatingStyle
	}
	out := make([]styledRune, 0, len(rv.secondary))
	out = styleRunes(out, rv.secondary, style)
	return out
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapStyledRunes breaks at the last space that fits. Lines without spaces,
// as in unspaced scripts, break at the rune that overflows.
func wrapStyledRunes(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	var out strings.Builder
	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				out.WriteString(renderStyledRunes(line[:lastSpaceIdx]))
				out.WriteRune('\n')
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				out.WriteString(renderStyledRunes(line))
				out.WriteRune('\n')
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
