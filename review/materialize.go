package review

import (
	"fmt"

	"diffreview/logger"
	"diffreview/text"
)

// materialize replaces selection with modified and then inserts the
// original lines of every delete and change delta in front of the place
// they were removed from, so both versions are visible at once.
func materialize(buf Buffer, tracker *OffsetTracker, selection Span, modified string, deltas []text.Delta) (*region, []*Chunk, error) {
	defer logger.Trace("review.materialize")()

	if err := buf.ReplaceRange(selection.Start, selection.End, modified); err != nil {
		return nil, nil, fmt.Errorf("replace selection: %w", err)
	}

	r := &region{
		buf:     buf,
		tracker: tracker,
		start:   selection.Start,
		size:    len(modified) + 1,
	}

	offsets := lineOffsets(text.SplitLines(modified))
	chunks := make([]*Chunk, 0, len(deltas))
	anchors := make([]*Span, len(deltas))

	for i, d := range deltas {
		c := &Chunk{
			Index:         i,
			Delta:         d,
			State:         StateUnprocessed,
			originalBlock: text.Block(d.SourceLines),
			modifiedBlock: text.Block(d.TargetLines),
		}
		start := r.start + offsetAt(offsets, d.Target.Start)
		if d.Target.Count > 0 {
			c.Modified = &Span{Start: start, End: r.start + offsetAt(offsets, d.Target.End()), Line: -1}
			tracker.Track(c.Modified)
		} else {
			anchors[i] = &Span{Start: start, End: start, Line: -1}
			tracker.Track(anchors[i])
		}
		chunks = append(chunks, c)
	}

	for i, c := range chunks {
		if c.Delta.Source.Count == 0 {
			continue
		}

		var p int
		if c.Modified != nil {
			p = c.Modified.Start
		} else {
			p = anchors[i].Start
			tracker.Untrack(anchors[i])
		}

		if p < r.start || p > r.end() {
			logger.Warn("review: %s insertion offset %d outside region [%d,%d], clamping", c, p, r.start, r.end())
			p = clamp(p, r.start, r.end())
		}
		if n, err := buf.Len(); err == nil && p > n+1 {
			logger.Warn("review: %s insertion offset %d past buffer length %d, clamping", c, p, n)
			p = r.end()
		}

		if err := r.insert(p, c.originalBlock); err != nil {
			logger.Warn("review: %s original text not placed: %v", c, err)
			continue
		}

		c.Original = &Span{Start: p, End: p + len(c.originalBlock), Line: -1}
		tracker.Track(c.Original)
	}

	for _, c := range chunks {
		cacheLine(buf, c.Original)
		cacheLine(buf, c.Modified)
	}

	return r, chunks, nil
}

// lineOffsets returns the byte offset of every line of the
// newline-terminated form of lines, plus the total length.
func lineOffsets(lines []string) []int {
	offsets := make([]int, len(lines)+1)
	for i, line := range lines {
		offsets[i+1] = offsets[i] + len(line) + 1
	}
	return offsets
}

// offsetAt returns the offset of line. Lines past the end count as empty
// so a delta addressing them lands outside the region and gets clamped.
func offsetAt(offsets []int, line int) int {
	last := len(offsets) - 1
	if line > last {
		return offsets[last] + line - last
	}
	return offsets[max(line, 0)]
}

func cacheLine(buf Buffer, s *Span) {
	if s == nil {
		return
	}
	line, err := buf.LineNumberFor(s.Start)
	if err != nil {
		s.Line = -1
		return
	}
	s.Line = line
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
