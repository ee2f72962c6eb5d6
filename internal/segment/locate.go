package segment

import (
	"unicode/utf8"

	"github.com/verte-zerg/ruletype/internal/model"
)

// Which selects the first or last segment of a rule.
type Which int

const (
	First Which = iota
	Last
)

// NotFound is returned by LocateRuleBoundary for an absent rule.
const NotFound = -1

// LocateRuleBoundary returns the index of the first or last segment owned by
// rule num.
func LocateRuleBoundary(segs []model.Segment, num int, which Which) (int, bool) {
	first, last := NotFound, NotFound
	for i, seg := range segs {
		if seg.Num != num {
			continue
		}
		if first == NotFound {
			first = i
		}
		last = i
	}
	idx := first
	if which == Last {
		idx = last
	}
	return idx, idx != NotFound
}

// LocateNextBreakpoint scans forward from from (inclusive) for the first
// breakpoint segment. End of content counts as a breakpoint, so the last
// index is returned when none is found. An empty list yields NotFound.
func LocateNextBreakpoint(segs []model.Segment, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(segs); i++ {
		if IsBreakpoint(segs[i]) {
			return i
		}
	}
	return len(segs) - 1
}

// NextBatch plans the batch starting at cursor: the remainder of the current
// rule, then the following content up to its first breakpoint.
func NextBatch(segs []model.Segment, cursor int) model.Batch {
	var batch model.Batch
	if cursor < 0 || cursor >= len(segs) {
		return batch
	}
	i := cursor
	for ; i < len(segs); i++ {
		addItem(&batch, segs[i], i)
		if segs[i].IsLast {
			break
		}
	}
	if i+1 >= len(segs) {
		return batch
	}
	end := LocateNextBreakpoint(segs, i+1)
	for j := i + 1; j <= end; j++ {
		addItem(&batch, segs[j], j)
	}
	return batch
}

func addItem(batch *model.Batch, seg model.Segment, index int) {
	batch.Items = append(batch.Items, model.BatchItem{Segment: seg, Index: index})
	batch.TotalChars += Chars(seg)
}

// Chars counts the revealed characters of a segment.
func Chars(seg model.Segment) int {
	n := utf8.RuneCountInString(seg.Primary)
	if seg.IsLast && seg.HasSecondary {
		n += utf8.RuneCountInString(seg.SecondaryFull)
	}
	return n
}
