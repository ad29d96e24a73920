package review

import (
	"fmt"
	"sort"

	"diffreview/logger"
)

// Recovery names the path taken to resolve a chunk
type Recovery int

const (
	RecoveryNone Recovery = iota
	RecoveryLines
	RecoverySearch
	RecoveryInserted
	RecoveryAbandoned
	RecoveryForced
)

func (r Recovery) String() string {
	switch r {
	case RecoveryNone:
		return "none"
	case RecoveryLines:
		return "lines"
	case RecoverySearch:
		return "search"
	case RecoveryInserted:
		return "inserted"
	case RecoveryAbandoned:
		return "abandoned"
	case RecoveryForced:
		return "forced"
	default:
		return "unknown"
	}
}

// Outcome is the structured result of resolving one chunk. Err carries
// the failure that sent the chunk through recovery, if any.
type Outcome struct {
	Index    int
	State    State
	Already  bool
	Recovery Recovery
	Err      error
}

// BulkResult is the result of AcceptAll or RejectAll. Forced is set when
// the buffer had diverged from every tracked chunk and the region was
// rewritten as a whole.
type BulkResult struct {
	Outcomes  []Outcome
	Processed int
	Forced    bool
}

// plan describes what resolving a chunk one way removes and keeps
type plan struct {
	target      State
	remove      *Span
	removeBlock string
	keepBlock   string
}

func planFor(c *Chunk, accept bool) plan {
	if accept {
		return plan{target: StateAccepted, remove: c.Original, removeBlock: c.originalBlock, keepBlock: c.modifiedBlock}
	}
	return plan{target: StateRejected, remove: c.Modified, removeBlock: c.modifiedBlock, keepBlock: c.originalBlock}
}

// resolve accepts or rejects a single chunk. A resolved chunk is reported
// as already processed without touching the buffer.
func (s *Session) resolve(c *Chunk, accept bool) Outcome {
	if c.State.Resolved() {
		return Outcome{Index: c.Index, State: c.State, Already: true}
	}

	p := planFor(c, accept)
	out := Outcome{Index: c.Index, State: p.target}

	if p.remove != nil {
		if err := s.removeVerified(p.remove, p.removeBlock); err != nil {
			logger.Warn("review: %s: %v, recovering", c, err)
			out.Err = err
			out.Recovery = s.recoverChunk(c, p)
		}
		s.tracker.Untrack(p.remove)
		if accept {
			c.Original = nil
		} else {
			c.Modified = nil
		}
	}

	c.State = p.target
	logger.Debug("review: %s resolved, recovery=%s", c, out.Recovery)
	return out
}

// removeVerified deletes span after checking it still holds block
func (s *Session) removeVerified(span *Span, block string) error {
	got, err := s.region.read(*span)
	if err != nil {
		return err
	}
	if got != block {
		return fmt.Errorf("%w: want %q, have %q", ErrSpanMismatch, block, got)
	}
	return s.region.remove(*span, block)
}

// bulk resolves every unresolved chunk the same way, highest offset first
func (s *Session) bulk(accept bool) BulkResult {
	defer logger.Trace("review.bulk")()

	unresolved := s.registry.Unresolved()
	if len(unresolved) == 0 {
		return BulkResult{}
	}

	if !s.anyLocatable(unresolved, accept) {
		logger.Warn("review: session %s diverged from every chunk, rewriting region", s.ID)
		return s.forceResolve(accept)
	}

	sort.SliceStable(unresolved, func(i, j int) bool {
		return position(unresolved[i], accept) > position(unresolved[j], accept)
	})

	result := BulkResult{Outcomes: make([]Outcome, 0, len(unresolved))}
	for _, c := range unresolved {
		out := s.resolve(c, accept)
		if out.Err != nil {
			logger.Warn("review: bulk %s: %v", c, out.Err)
		}
		result.Outcomes = append(result.Outcomes, out)
		result.Processed++
	}
	return result
}

// position orders chunks for bulk processing. Chunks without a span left
// to remove sort by their kept span.
func position(c *Chunk, accept bool) int {
	if p := planFor(c, accept); p.remove != nil {
		return p.remove.Start
	}
	return c.Offset()
}

// anyLocatable reports whether bulk resolution can find at least one of
// the spans it has to remove. Chunks with nothing to remove do not count.
func (s *Session) anyLocatable(chunks []*Chunk, accept bool) bool {
	content, err := s.buf.Text()
	if err != nil {
		logger.Warn("review: read buffer: %v", err)
		return false
	}

	needed := 0
	for _, c := range chunks {
		p := planFor(c, accept)
		if p.remove == nil {
			continue
		}
		needed++
		if got, err := s.region.read(*p.remove); err == nil && got == p.removeBlock {
			return true
		}
		if _, ok := s.locateByLine(content, *p.remove, p.removeBlock); ok {
			return true
		}
		if _, ok := locateNearest(content, p.removeBlock, p.remove.Start); ok {
			return true
		}
	}
	return needed == 0
}
