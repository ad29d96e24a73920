package review

import (
	"strings"

	"diffreview/logger"
)

// hostRange is a range of buffer bytes found during recovery
type hostRange struct {
	start int
	end   int
}

// recoverChunk resolves a chunk whose recorded span no longer matches the
// buffer. It tries the cached line first, then a search for the text
// nearest to where the span used to be, and finally makes sure the kept
// text exists by inserting it at the selection start. It never fails: the
// caller marks the chunk resolved whatever is returned.
func (s *Session) recoverChunk(c *Chunk, p plan) Recovery {
	content, err := s.buf.Text()
	if err != nil {
		logger.Warn("review: %s recovery: read buffer: %v", c, err)
		return RecoveryAbandoned
	}

	if hr, ok := s.locateByLine(content, *p.remove, p.removeBlock); ok {
		err := s.deleteHost(hr, content)
		if err == nil {
			logger.Info("review: %s recovered by line %d", c, p.remove.Line)
			return RecoveryLines
		}
		logger.Warn("review: %s line recovery: %v", c, err)
	}

	if hr, ok := locateNearest(content, p.removeBlock, p.remove.Start); ok {
		err := s.deleteHost(hr, content)
		if err == nil {
			logger.Info("review: %s recovered by search at %d", c, hr.start)
			return RecoverySearch
		}
		logger.Warn("review: %s search recovery: %v", c, err)
	}

	return s.restoreKept(c, p)
}

// locateByLine matches block at the start of the span's cached line
func (s *Session) locateByLine(content string, span Span, block string) (hostRange, bool) {
	if span.Line < 0 {
		return hostRange{}, false
	}
	start, err := s.buf.LineStartOffset(span.Line)
	if err != nil {
		return hostRange{}, false
	}
	return matchAt(content, start, block)
}

// matchAt checks whether block sits at start. A block that ends the
// buffer has no newline of its own, so it also matches when its text runs
// to the end and is then removed together with the newline before it.
func matchAt(content string, start int, block string) (hostRange, bool) {
	if start < 0 || start > len(content) || block == "" {
		return hostRange{}, false
	}
	if strings.HasPrefix(content[start:], block) {
		return hostRange{start: start, end: start + len(block)}, true
	}
	tail := strings.TrimSuffix(block, "\n")
	if tail == "" || !strings.HasPrefix(content[start:], tail) {
		return hostRange{}, false
	}
	end := start + len(tail)
	if end != len(content) {
		return hostRange{}, false
	}
	if start > 0 && content[start-1] == '\n' {
		return hostRange{start: start - 1, end: end}, true
	}
	return hostRange{start: start, end: end}, true
}

// locateNearest finds the occurrence of block closest to near. Blank
// blocks are never searched for since any newline would match.
func locateNearest(content, block string, near int) (hostRange, bool) {
	if strings.TrimSpace(block) == "" {
		return hostRange{}, false
	}

	if idx := nearestIndex(content, block, near); idx >= 0 {
		return hostRange{start: idx, end: idx + len(block)}, true
	}

	if tail := "\n" + strings.TrimSuffix(block, "\n"); strings.HasSuffix(content, tail) {
		return hostRange{start: len(content) - len(tail), end: len(content)}, true
	}
	return hostRange{}, false
}

// nearestIndex returns the index of the occurrence of needle closest to
// near, or -1
func nearestIndex(content, needle string, near int) int {
	if needle == "" {
		return -1
	}
	best, bestDist := -1, 0
	for from := 0; from <= len(content); {
		i := strings.Index(content[from:], needle)
		if i < 0 {
			break
		}
		idx := from + i
		dist := idx - near
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = idx, dist
		}
		from = idx + 1
	}
	return best
}

func (s *Session) deleteHost(hr hostRange, content string) error {
	if err := s.buf.DeleteRange(hr.start, hr.end); err != nil {
		return err
	}
	s.region.noteHostDelete(hr.start, hr.end, content[hr.start:hr.end])
	return nil
}

// restoreKept is the last resort: the text to remove is gone, so only make
// sure the text to keep is somewhere in the buffer.
func (s *Session) restoreKept(c *Chunk, p plan) Recovery {
	keep := strings.TrimSuffix(p.keepBlock, "\n")
	if keep == "" {
		logger.Warn("review: %s text not found, nothing to keep", c)
		return RecoveryAbandoned
	}

	content, err := s.buf.Text()
	if err != nil {
		logger.Warn("review: %s restore: read buffer: %v", c, err)
		return RecoveryAbandoned
	}
	if strings.Contains(content, keep) {
		logger.Warn("review: %s text not found, kept text already present", c)
		return RecoveryAbandoned
	}

	at := clamp(s.selection.Start, 0, len(content))
	if err := s.buf.InsertText(at, p.keepBlock); err != nil {
		logger.Warn("review: %s restore kept text: %v", c, err)
		return RecoveryAbandoned
	}
	s.region.noteHostInsert(at, p.keepBlock)
	logger.Warn("review: %s kept text reinserted at selection start %d", c, at)
	return RecoveryInserted
}
