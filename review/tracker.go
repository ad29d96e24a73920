package review

// OffsetTracker keeps the recorded spans of a session consistent with the
// buffer. Every mutation made by the session is reported through
// ShiftAfter so offsets are patched in O(spans) rather than re-diffed.
type OffsetTracker struct {
	spans []*Span
}

// NewOffsetTracker creates an empty tracker
func NewOffsetTracker() *OffsetTracker {
	return &OffsetTracker{}
}

// Track starts following the given spans
func (t *OffsetTracker) Track(spans ...*Span) {
	for _, s := range spans {
		if s != nil {
			t.spans = append(t.spans, s)
		}
	}
}

// Untrack stops following s
func (t *OffsetTracker) Untrack(s *Span) {
	for i, tracked := range t.spans {
		if tracked == s {
			t.spans = append(t.spans[:i], t.spans[i+1:]...)
			return
		}
	}
}

// Len returns the number of tracked spans
func (t *OffsetTracker) Len() int {
	return len(t.spans)
}

// ShiftAfter moves every span starting at or after pivot by delta bytes.
// A span that straddles the pivot keeps its start and has its end moved.
func (t *OffsetTracker) ShiftAfter(pivot, delta int) {
	if delta == 0 {
		return
	}
	for _, s := range t.spans {
		switch {
		case s.Start >= pivot:
			s.Start += delta
			s.End += delta
		case s.End > pivot:
			s.End += delta
		}
		if s.End < s.Start {
			s.End = s.Start
		}
	}
}

// ShiftLinesAfter moves the cached line of every span starting at or after
// pivot by delta lines.
func (t *OffsetTracker) ShiftLinesAfter(pivot, delta int) {
	if delta == 0 {
		return
	}
	for _, s := range t.spans {
		if s.Start >= pivot && s.Line >= 0 {
			s.Line += delta
		}
	}
}

// Clear drops every tracked span
func (t *OffsetTracker) Clear() {
	t.spans = nil
}
