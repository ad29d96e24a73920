package review

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"diffreview/logger"
	"diffreview/text"
)

// Session is one review of a proposed replacement for one selection. All
// buffer mutations of a session are serialized by its mutex.
type Session struct {
	ID string

	mu        sync.Mutex
	buf       Buffer
	original  string
	modified  string
	selection Span
	origLines []string
	tracker   *OffsetTracker
	region    *region
	registry  *Registry
	nav       *Navigator
	closed    bool
}

// Status is a read-only summary of a session
type Status struct {
	Total     int
	Resolved  int
	Remaining int
	Current   int
	Label     string
	Closed    bool
}

// Begin materializes modified over selection in buf and opens a session.
// It returns ErrNothingToReview when the texts do not differ.
func Begin(buf Buffer, original, modified string, selection Span) (*Session, error) {
	defer logger.Trace("review.Begin")()

	var (
		tracker = NewOffsetTracker()
		r       *region
		chunks  []*Chunk
	)
	err := edit(buf, func() error {
		n, err := buf.Len()
		if err != nil {
			return fmt.Errorf("buffer length: %w", err)
		}
		if selection.Start < 0 || selection.End < selection.Start || selection.End > n {
			return fmt.Errorf("%w: selection [%d,%d) in buffer of %d bytes", ErrSpanInvalid, selection.Start, selection.End, n)
		}

		deltas := text.ComputeTextDeltas(original, modified)
		if len(deltas) == 0 {
			return ErrNothingToReview
		}
		r, chunks, err = materialize(buf, tracker, selection, modified, deltas)
		return err
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		buf:       buf,
		original:  original,
		modified:  modified,
		selection: selection,
		origLines: text.SplitLines(original),
		tracker:   tracker,
		region:    r,
		registry:  NewRegistry(chunks),
		nav:       NewNavigator(len(chunks)),
	}
	logger.Info("review: session %s opened with %d chunks", s.ID, len(chunks))
	return s, nil
}

// Accept keeps the proposed text of chunk index
func (s *Session) Accept(index int) (Outcome, error) {
	return s.resolveIndex(index, true)
}

// Reject keeps the original text of chunk index
func (s *Session) Reject(index int) (Outcome, error) {
	return s.resolveIndex(index, false)
}

func (s *Session) resolveIndex(index int, accept bool) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Outcome{}, ErrSessionClosed
	}
	c, err := s.registry.Get(index)
	if err != nil {
		return Outcome{}, err
	}
	var out Outcome
	err = edit(s.buf, func() error {
		out = s.resolve(c, accept)
		return nil
	})
	s.finishIfDone()
	return out, err
}

// AcceptAll keeps the proposed text of every unresolved chunk
func (s *Session) AcceptAll() (BulkResult, error) {
	return s.bulkLocked(true)
}

// RejectAll keeps the original text of every unresolved chunk
func (s *Session) RejectAll() (BulkResult, error) {
	return s.bulkLocked(false)
}

func (s *Session) bulkLocked(accept bool) (BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return BulkResult{}, ErrSessionClosed
	}
	var result BulkResult
	err := edit(s.buf, func() error {
		result = s.bulk(accept)
		return nil
	})
	s.finishIfDone()
	return result, err
}

// Close ends the session. Unresolved chunks are rejected first so the
// buffer is left with the original text for them.
func (s *Session) Close() (BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return BulkResult{}, nil
	}
	var result BulkResult
	err := edit(s.buf, func() error {
		result = s.bulk(false)
		return nil
	})
	s.closed = true
	s.tracker.Clear()
	logger.Info("review: session %s closed", s.ID)
	return result, err
}

func (s *Session) finishIfDone() {
	if s.closed || len(s.registry.Unresolved()) > 0 {
		return
	}
	s.closed = true
	s.tracker.Clear()
	logger.Info("review: session %s complete", s.ID)
}

// Closed reports whether the session has ended
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Next moves the navigator forward and returns the new chunk index
func (s *Session) Next() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1, ErrSessionClosed
	}
	return s.nav.Next(), nil
}

// Previous moves the navigator back and returns the new chunk index
func (s *Session) Previous() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1, ErrSessionClosed
	}
	return s.nav.Previous(), nil
}

// CurrentOffset returns the buffer offset to scroll to for the current
// chunk, or -1 when it has no span left.
func (s *Session) CurrentOffset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.registry.Get(s.nav.Current())
	if err != nil {
		return -1
	}
	return c.Offset()
}

// CurrentLine returns the cached host line of CurrentOffset, or -1
func (s *Session) CurrentLine() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.registry.Get(s.nav.Current())
	if err != nil {
		return -1
	}
	return c.Line()
}

// Status summarizes the session
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Total:    s.registry.Len(),
		Resolved: s.registry.ResolvedCount(),
		Current:  s.nav.Current() + 1,
		Closed:   s.closed,
	}
	st.Remaining = st.Total - st.Resolved
	if st.Remaining > 0 {
		st.Label = fmt.Sprintf("diff %d / %d (remaining %d)", st.Current, st.Total, st.Remaining)
	} else {
		st.Label = fmt.Sprintf("diff %d / %d (all done)", st.Current, st.Total)
	}
	return st
}

// Chunks returns a snapshot of every chunk
func (s *Session) Chunks() []Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Chunk, 0, s.registry.Len())
	for _, c := range s.registry.All() {
		out = append(out, c.snapshot())
	}
	return out
}

// Region returns the host range currently occupied by the session's text
func (s *Session) Region() Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Span{Start: s.region.start, End: s.region.hostEnd(), Line: -1}
}

// Selection returns the selection the session was opened on
func (s *Session) Selection() Span {
	return s.selection
}

// Original returns the original text of the selection
func (s *Session) Original() string {
	return s.original
}

// Modified returns the proposed replacement
func (s *Session) Modified() string {
	return s.modified
}
