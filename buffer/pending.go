package buffer

import (
	"bytes"
	"fmt"
	"strings"
)

// lineEdit is one nvim_buf_set_text call, in the coordinates of the
// buffer as it is when the call runs
type lineEdit struct {
	startRow, startCol int
	endRow, endCol     int
	replacement        [][]byte
}

// pendingEdits is a local copy of a buffer's lines plus the edits made to
// it that have not been sent yet
type pendingEdits struct {
	lines [][]byte
	edits []lineEdit
}

func newPendingEdits(lines [][]byte) *pendingEdits {
	if len(lines) == 0 {
		lines = [][]byte{{}}
	}
	return &pendingEdits{lines: lines}
}

func (p *pendingEdits) text() string {
	return string(bytes.Join(p.lines, []byte("\n")))
}

// replace swaps bytes [start, end) for text in the local lines and queues
// the matching edit
func (p *pendingEdits) replace(start, end int, text string) error {
	if end < start {
		return fmt.Errorf("invalid range [%d,%d)", start, end)
	}
	startRow, startCol, err := position(p.lines, start)
	if err != nil {
		return err
	}
	endRow, endCol, err := position(p.lines, end)
	if err != nil {
		return err
	}
	replacement := splitText(text)

	head := p.lines[startRow][:startCol]
	tail := p.lines[endRow][endCol:]
	middle := make([][]byte, len(replacement))
	copy(middle, replacement)
	middle[0] = append(append([]byte{}, head...), middle[0]...)
	last := len(middle) - 1
	middle[last] = append(append([]byte{}, middle[last]...), tail...)

	lines := make([][]byte, 0, len(p.lines)-(endRow-startRow)+last)
	lines = append(lines, p.lines[:startRow]...)
	lines = append(lines, middle...)
	lines = append(lines, p.lines[endRow+1:]...)
	p.lines = lines

	p.edits = append(p.edits, lineEdit{
		startRow:    startRow,
		startCol:    startCol,
		endRow:      endRow,
		endCol:      endCol,
		replacement: replacement,
	})
	return nil
}

func (p *pendingEdits) lineStart(line int) (int, error) {
	if line < 0 || line >= len(p.lines) {
		return 0, fmt.Errorf("line %d out of range [0,%d)", line, len(p.lines))
	}
	offset := 0
	for i := range line {
		offset += len(p.lines[i]) + 1
	}
	return offset, nil
}

func splitText(text string) [][]byte {
	parts := strings.Split(text, "\n")
	out := make([][]byte, len(parts))
	for i, part := range parts {
		out[i] = []byte(part)
	}
	return out
}
