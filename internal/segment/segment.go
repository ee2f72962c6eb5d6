// Package segment splits rules into reveal segments and plans reveal batches.
package segment

import (
	"strings"

	"github.com/verte-zerg/ruletype/internal/model"
)

// SoftBreak is the punctuation mark segments are split after.
const SoftBreak = "、"

// Split turns rules into an ordered segment list. Rules with empty primary
// text are dropped. Each rule's primary text is split after every SoftBreak,
// keeping the mark on the preceding piece.
func Split(rules []model.Rule) []model.Segment {
	segments := make([]model.Segment, 0, len(rules))
	for _, rule := range rules {
		if rule.Primary == "" {
			continue
		}
		parts := splitAfter(rule.Primary)
		for i, part := range parts {
			last := i == len(parts)-1
			seg := model.Segment{
				Num:     rule.Num,
				Primary: part,
				IsFirst: i == 0,
				IsLast:  last,
			}
			if last {
				seg.SecondaryFull = rule.Secondary
				seg.HasSecondary = true
			}
			segments = append(segments, seg)
		}
	}
	return segments
}

func splitAfter(text string) []string {
	raw := strings.SplitAfter(text, SoftBreak)
	parts := raw[:0]
	for _, part := range raw {
		if part == "" {
			continue
		}
		parts = append(parts, part)
	}
	return parts
}

// IsBreakpoint reports whether a segment ends a pause unit.
func IsBreakpoint(seg model.Segment) bool {
	return strings.HasSuffix(seg.Primary, SoftBreak)
}
