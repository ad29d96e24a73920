package review

import (
	"strings"

	"diffreview/logger"
	"diffreview/text"
)

// targetLines rebuilds the region as it would read once every chunk is
// resolved: resolved chunks keep their decision and unresolved ones take
// the bulk direction. With materialized set, unresolved chunks contribute
// both versions, as they currently appear in the buffer.
func (s *Session) targetLines(accept, materialized bool) []string {
	var out []string
	pos := 0
	for _, c := range s.registry.All() {
		out = append(out, s.origLines[pos:c.Delta.Source.Start]...)
		switch {
		case c.State == StateAccepted:
			out = append(out, c.Delta.TargetLines...)
		case c.State == StateRejected:
			out = append(out, c.Delta.SourceLines...)
		case materialized:
			out = append(out, c.Delta.SourceLines...)
			out = append(out, c.Delta.TargetLines...)
		case accept:
			out = append(out, c.Delta.TargetLines...)
		default:
			out = append(out, c.Delta.SourceLines...)
		}
		pos = c.Delta.Source.End()
	}
	return append(out, s.origLines[pos:]...)
}

// forceResolve rewrites the whole region to its resolved form when none of
// the tracked spans can be found any more. The region is located by its
// expected current text, then by the original or proposed text, and as a
// last resort the target is inserted at the selection start. Every chunk
// is marked resolved and the session is closed.
func (s *Session) forceResolve(accept bool) BulkResult {
	target := text.JoinLines(s.targetLines(accept, false))
	candidates := []string{
		text.JoinLines(s.targetLines(accept, true)),
		s.original,
		s.modified,
	}

	if err := s.rewriteRegion(target, candidates); err != nil {
		logger.Error("review: session %s force resolve: %v", s.ID, err)
	}

	result := BulkResult{Forced: true}
	for _, c := range s.registry.Unresolved() {
		c.State = StateRejected
		if accept {
			c.State = StateAccepted
		}
		result.Outcomes = append(result.Outcomes, Outcome{Index: c.Index, State: c.State, Recovery: RecoveryForced})
		result.Processed++
	}
	for _, c := range s.registry.All() {
		c.Original, c.Modified = nil, nil
	}
	s.tracker.Clear()
	s.closed = true
	return result
}

func (s *Session) rewriteRegion(target string, candidates []string) error {
	content, err := s.buf.Text()
	if err != nil {
		return err
	}

	if host, err := s.region.text(); err == nil && host == candidates[0] {
		return s.replaceHost(s.region.start, s.region.hostEnd(), target)
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		if idx := nearestIndex(content, candidate, s.region.start); idx >= 0 {
			logger.Warn("review: session %s region found by search at %d", s.ID, idx)
			return s.replaceHost(idx, idx+len(candidate), target)
		}
	}

	at := clamp(s.selection.Start, 0, len(content))
	logger.Warn("review: session %s region lost, inserting result at %d", s.ID, at)
	if err := s.buf.InsertText(at, target); err != nil {
		return err
	}
	s.region.start, s.region.size = at, len(target)+1
	return nil
}

func (s *Session) replaceHost(start, end int, target string) error {
	if err := s.buf.ReplaceRange(start, end, target); err != nil {
		return err
	}
	s.region.start, s.region.size = start, len(target)+1
	return nil
}
