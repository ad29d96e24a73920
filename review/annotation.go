package review

import (
	"fmt"

	"diffreview/text"
)

// Action is an operation a presentation layer can bind to a chunk
type Action struct {
	Name  string // "accept" or "reject"
	Label string
}

var (
	actionKeep = Action{Name: "accept", Label: "Keep"}
	actionUndo = Action{Name: "reject", Label: "Undo"}
)

// Annotation is the per-chunk interactive marker emitted for the
// presentation layer. Kind is "added" for the proposed text and "deleted"
// for the original text. Inline is set when a single line was changed.
type Annotation struct {
	Chunk     int
	Kind      string
	Offset    int
	End       int
	Line      int
	Tooltip   string
	Primary   Action
	Secondary Action
	Inline    *text.LineChange
}

// Annotations returns the markers of every unresolved chunk in buffer
// order: one for the original text, if shown, then one for the proposal.
func (s *Session) Annotations() []Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Annotation
	total := s.registry.Len()
	for _, c := range s.registry.Unresolved() {
		tooltip := fmt.Sprintf("Suggested %s %d/%d: -%d +%d lines", c.Delta.Kind, c.Index+1, total, c.Delta.Source.Count, c.Delta.Target.Count)

		var inline *text.LineChange
		if c.Delta.Kind == text.DeltaChange && c.Delta.Source.Count == 1 && c.Delta.Target.Count == 1 {
			lc := text.ClassifyLineChange(c.Delta.SourceLines[0], c.Delta.TargetLines[0])
			if lc.Type != text.ChangeModification {
				inline = &lc
			}
		}

		if c.Original != nil {
			out = append(out, Annotation{
				Chunk:     c.Index,
				Kind:      "deleted",
				Offset:    c.Original.Start,
				End:       c.Original.End,
				Line:      c.Original.Line,
				Tooltip:   tooltip,
				Primary:   actionKeep,
				Secondary: actionUndo,
				Inline:    inline,
			})
		}
		if c.Modified != nil {
			out = append(out, Annotation{
				Chunk:     c.Index,
				Kind:      "added",
				Offset:    c.Modified.Start,
				End:       c.Modified.End,
				Line:      c.Modified.Line,
				Tooltip:   tooltip,
				Primary:   actionKeep,
				Secondary: actionUndo,
				Inline:    inline,
			})
		}
	}
	return out
}
