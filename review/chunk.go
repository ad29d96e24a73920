package review

import (
	"fmt"

	"diffreview/text"
)

// State is the lifecycle state of a chunk
type State int

const (
	StateUnprocessed State = iota
	StateAccepted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateUnprocessed:
		return "unprocessed"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Resolved reports whether s is terminal
func (s State) Resolved() bool {
	return s == StateAccepted || s == StateRejected
}

// Chunk is the buffer-resident counterpart of a delta. Original holds the
// materialized original lines and is nil for a pure insert, Modified holds
// the proposed lines and is nil for a pure delete. Once resolved only the
// kept span remains.
type Chunk struct {
	Index    int
	Delta    text.Delta
	State    State
	Original *Span
	Modified *Span

	originalBlock string
	modifiedBlock string
}

// OriginalBlock returns the original lines as a newline-terminated block
func (c *Chunk) OriginalBlock() string { return c.originalBlock }

// ModifiedBlock returns the proposed lines as a newline-terminated block
func (c *Chunk) ModifiedBlock() string { return c.modifiedBlock }

// Offset returns the scroll target of the chunk: the original span start,
// else the modified span start, else -1.
func (c *Chunk) Offset() int {
	if c.Original != nil {
		return c.Original.Start
	}
	if c.Modified != nil {
		return c.Modified.Start
	}
	return -1
}

// Line returns the cached host line of Offset, or -1
func (c *Chunk) Line() int {
	if c.Original != nil {
		return c.Original.Line
	}
	if c.Modified != nil {
		return c.Modified.Line
	}
	return -1
}

// snapshot returns a copy that shares no spans with c
func (c *Chunk) snapshot() Chunk {
	out := *c
	if c.Original != nil {
		s := *c.Original
		out.Original = &s
	}
	if c.Modified != nil {
		s := *c.Modified
		out.Modified = &s
	}
	return out
}

func (c *Chunk) String() string {
	return fmt.Sprintf("chunk %d (%s, %s, -%d +%d)", c.Index, c.Delta.Kind, c.State, c.Delta.Source.Count, c.Delta.Target.Count)
}

// Registry owns the chunks of one session in ascending buffer order.
// Resolved chunks stay in the registry until the session ends.
type Registry struct {
	chunks []*Chunk
}

// NewRegistry creates a registry over chunks
func NewRegistry(chunks []*Chunk) *Registry {
	return &Registry{chunks: chunks}
}

// Get returns the chunk at index
func (r *Registry) Get(index int) (*Chunk, error) {
	if index < 0 || index >= len(r.chunks) {
		return nil, fmt.Errorf("%w: %d of %d", ErrChunkIndex, index, len(r.chunks))
	}
	return r.chunks[index], nil
}

// All returns every chunk, resolved or not
func (r *Registry) All() []*Chunk {
	return r.chunks
}

// Unresolved returns the chunks still awaiting a decision
func (r *Registry) Unresolved() []*Chunk {
	var out []*Chunk
	for _, c := range r.chunks {
		if !c.State.Resolved() {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of chunks
func (r *Registry) Len() int {
	return len(r.chunks)
}

// ResolvedCount returns the number of chunks in a terminal state
func (r *Registry) ResolvedCount() int {
	n := 0
	for _, c := range r.chunks {
		if c.State.Resolved() {
			n++
		}
	}
	return n
}
