// Package review places a proposed replacement next to the original text
// inside a live buffer and resolves it chunk by chunk.
package review

import "errors"

// Buffer is the host text buffer a review session edits. Offsets are byte
// offsets, lines are zero-indexed.
type Buffer interface {
	Len() (int, error)
	Text() (string, error)
	ReplaceRange(start, end int, text string) error
	InsertText(offset int, text string) error
	DeleteRange(start, end int) error
	LineStartOffset(line int) (int, error)
	LineEndOffset(line int) (int, error)
	LineNumberFor(offset int) (int, error)
}

// Transactional is implemented by buffers that can group edits. Reads
// between BeginEdit and CommitEdit see the edits made so far, and the
// buffer applies them together on CommitEdit.
type Transactional interface {
	BeginEdit() error
	CommitEdit() error
}

// edit runs fn as one transaction when buf supports it
func edit(buf Buffer, fn func() error) error {
	tx, ok := buf.(Transactional)
	if !ok {
		return fn()
	}
	if err := tx.BeginEdit(); err != nil {
		return err
	}
	err := fn()
	if cerr := tx.CommitEdit(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

// Span is a half-open byte range [Start, End) in the buffer. Line caches the
// host line of Start and is kept in step with the offsets by the tracker.
type Span struct {
	Start int
	End   int
	Line  int
}

// Len returns the number of bytes covered by the span
func (s Span) Len() int {
	return s.End - s.Start
}

// Contains reports whether offset lies inside the span
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}
