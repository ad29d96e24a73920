package review

import (
	"fmt"
	"strings"
)

// region is the part of the buffer owned by a session.
//
// The session works on the region text as if it ended with one extra
// newline, so that every line, including the last, is newline terminated
// and chunk blocks can be moved around as whole lines. That final newline
// is virtual: the buffer holds the region text without it. A span ending
// at end() therefore covers the virtual newline and is translated when it
// is read or deleted.
type region struct {
	buf     Buffer
	tracker *OffsetTracker
	start   int
	size    int
}

// end returns the logical end of the region, including the virtual newline
func (r *region) end() int {
	return r.start + r.size
}

// hostEnd returns the buffer offset where the region text stops
func (r *region) hostEnd() int {
	if r.size == 0 {
		return r.start
	}
	return r.end() - 1
}

func (r *region) checkSpan(s Span) error {
	if s.Start < r.start || s.End > r.end() || s.Start > s.End {
		return fmt.Errorf("%w: span [%d,%d) outside region [%d,%d)", ErrSpanInvalid, s.Start, s.End, r.start, r.end())
	}
	return nil
}

// read returns the logical text of s from the buffer
func (r *region) read(s Span) (string, error) {
	if err := r.checkSpan(s); err != nil {
		return "", err
	}
	content, err := r.buf.Text()
	if err != nil {
		return "", err
	}
	hostEnd := s.End
	virtual := s.End == r.end() && s.End > s.Start
	if virtual {
		hostEnd--
	}
	if hostEnd > len(content) {
		return "", fmt.Errorf("%w: span [%d,%d) past buffer end %d", ErrSpanInvalid, s.Start, s.End, len(content))
	}
	out := content[s.Start:hostEnd]
	if virtual {
		out += "\n"
	}
	return out, nil
}

// insert places a newline-terminated block at logical offset p and shifts
// every tracked span at or after p.
func (r *region) insert(p int, block string) error {
	if block == "" {
		return nil
	}
	if p < r.start || p > r.end() {
		return fmt.Errorf("%w: insert at %d outside region [%d,%d]", ErrSpanInvalid, p, r.start, r.end())
	}

	var err error
	switch {
	case p < r.end():
		err = r.buf.InsertText(p, block)
	case r.size == 0:
		err = r.buf.InsertText(r.start, strings.TrimSuffix(block, "\n"))
	default:
		// Appending after the last line: the virtual newline becomes real
		// and the block's own final newline becomes the new virtual one.
		err = r.buf.InsertText(r.hostEnd(), "\n"+strings.TrimSuffix(block, "\n"))
	}
	if err != nil {
		return fmt.Errorf("insert block at %d: %w", p, err)
	}

	r.size += len(block)
	r.tracker.ShiftLinesAfter(p, strings.Count(block, "\n"))
	r.tracker.ShiftAfter(p, len(block))
	return nil
}

// remove deletes the logical span s from the buffer and shifts every
// tracked span after it. The caller untracks s.
func (r *region) remove(s Span, block string) error {
	if err := r.checkSpan(s); err != nil {
		return err
	}
	if s.Len() == 0 {
		return nil
	}

	var err error
	switch {
	case s.End < r.end():
		err = r.buf.DeleteRange(s.Start, s.End)
	case s.Start > r.start:
		// The last line goes along with the newline in front of it.
		err = r.buf.DeleteRange(s.Start-1, s.End-1)
	default:
		err = r.buf.DeleteRange(s.Start, s.End-1)
	}
	if err != nil {
		return fmt.Errorf("delete [%d,%d): %w", s.Start, s.End, err)
	}

	r.size -= s.Len()
	r.tracker.ShiftLinesAfter(s.End, -strings.Count(block, "\n"))
	r.tracker.ShiftAfter(s.End, -s.Len())
	return nil
}

// text returns the region's host text
func (r *region) text() (string, error) {
	content, err := r.buf.Text()
	if err != nil {
		return "", err
	}
	if r.hostEnd() > len(content) {
		return "", fmt.Errorf("%w: region end %d past buffer end %d", ErrSpanInvalid, r.hostEnd(), len(content))
	}
	return content[r.start:r.hostEnd()], nil
}

// noteHostDelete records a deletion of [start, end) made outside the
// logical span bookkeeping, such as during recovery.
func (r *region) noteHostDelete(start, end int, removed string) {
	n := end - start
	if start >= r.start && start < r.end() {
		r.size -= n
		if r.size < 0 {
			r.size = 0
		}
	} else if start < r.start {
		r.start -= n
		if r.start < 0 {
			r.start = 0
		}
	}
	r.tracker.ShiftLinesAfter(end, -strings.Count(removed, "\n"))
	r.tracker.ShiftAfter(end, -n)
}

// noteHostInsert records an insertion of inserted at offset made outside
// the logical span bookkeeping.
func (r *region) noteHostInsert(offset int, inserted string) {
	n := len(inserted)
	switch {
	case offset < r.start:
		r.start += n
	case offset <= r.end():
		r.size += n
	}
	r.tracker.ShiftLinesAfter(offset, strings.Count(inserted, "\n"))
	r.tracker.ShiftAfter(offset, n)
}
