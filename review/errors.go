package review

import "errors"

var (
	// ErrNothingToReview is returned when the proposal does not differ from
	// the original text. No session is opened.
	ErrNothingToReview = errors.New("nothing to review")

	// ErrSessionClosed is returned by operations on a finished session
	ErrSessionClosed = errors.New("review session closed")

	// ErrChunkIndex is returned for a chunk index outside the session
	ErrChunkIndex = errors.New("chunk index out of range")

	// ErrSpanInvalid marks a recorded span that no longer fits the buffer
	ErrSpanInvalid = errors.New("span outside buffer")

	// ErrSpanMismatch marks a recorded span whose text no longer matches
	// the chunk it belongs to
	ErrSpanMismatch = errors.New("span text does not match chunk")

	// ErrNotFound is reported when recovery could not locate the text to remove
	ErrNotFound = errors.New("chunk text not found in buffer")
)
