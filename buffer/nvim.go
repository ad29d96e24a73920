package buffer

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/neovim/go-client/nvim"

	"diffreview/logger"
)

// NvimBuffer is a host buffer living in a Neovim instance. Outside an edit
// every call reads the buffer over RPC so offsets always refer to the
// editor's current text. Between BeginEdit and CommitEdit reads and edits
// go to a local copy and the edits are sent together as one undo step.
type NvimBuffer struct {
	client *nvim.Nvim
	id     nvim.Buffer

	mu      sync.Mutex
	depth   int
	pending *pendingEdits
}

// Mark is a highlighted range shown by Highlight
type Mark struct {
	Start    int
	End      int
	Group    string
	VirtText string
}

// NewNvim wraps buffer id of client. Id 0 means the current buffer.
func NewNvim(client *nvim.Nvim, id nvim.Buffer) *NvimBuffer {
	return &NvimBuffer{client: client, id: id}
}

// ID returns the Neovim buffer handle
func (b *NvimBuffer) ID() nvim.Buffer { return b.id }

func (b *NvimBuffer) fetch() ([][]byte, error) {
	if b.client == nil {
		return nil, fmt.Errorf("nvim client not set")
	}
	return b.client.BufferLines(b.id, 0, -1, true)
}

// BeginEdit starts an edit. Edits nest, only the outermost CommitEdit
// sends anything.
func (b *NvimBuffer) BeginEdit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.depth == 0 {
		lines, err := b.fetch()
		if err != nil {
			return err
		}
		b.pending = newPendingEdits(lines)
	}
	b.depth++
	return nil
}

// CommitEdit ends an edit. The outermost one sends every queued change in
// a single atomic batch, joined into one undo step.
func (b *NvimBuffer) CommitEdit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.depth == 0 {
		return errors.New("commit without begin")
	}
	b.depth--
	if b.depth > 0 {
		return nil
	}
	p := b.pending
	b.pending = nil
	if len(p.edits) == 0 {
		return nil
	}

	defer logger.Trace("buffer.CommitEdit")()
	batch := b.client.NewBatch()
	for i, e := range p.edits {
		if i > 0 {
			batch.ExecLua("pcall(vim.cmd, 'undojoin')", nil, nil)
		}
		batch.SetBufferText(b.id, e.startRow, e.startCol, e.endRow, e.endCol, e.replacement)
	}
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("apply %d edits: %w", len(p.edits), err)
	}
	return nil
}

// lines returns the current lines, from the pending copy inside an edit.
// The caller holds b.mu.
func (b *NvimBuffer) lines() ([][]byte, error) {
	if b.pending != nil {
		return b.pending.lines, nil
	}
	return b.fetch()
}

func (b *NvimBuffer) Text() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines, err := b.lines()
	if err != nil {
		return "", err
	}
	return string(bytes.Join(lines, []byte("\n"))), nil
}

func (b *NvimBuffer) Len() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		return textLen(b.pending.lines), nil
	}
	if b.client == nil {
		return 0, fmt.Errorf("nvim client not set")
	}

	var size int
	err := b.client.ExecLua("local buf = ...; return vim.api.nvim_buf_get_offset(buf, vim.api.nvim_buf_line_count(buf))", &size, b.id)
	if err != nil {
		return 0, err
	}
	// get_offset counts a newline after the last line too
	return max(size-1, 0), nil
}

func (b *NvimBuffer) ReplaceRange(start, end int, text string) error {
	defer logger.Trace("buffer.ReplaceRange")()
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending != nil {
		return b.pending.replace(start, end, text)
	}
	lines, err := b.fetch()
	if err != nil {
		return err
	}
	p := newPendingEdits(lines)
	if err := p.replace(start, end, text); err != nil {
		return err
	}
	e := p.edits[0]
	return b.client.SetBufferText(b.id, e.startRow, e.startCol, e.endRow, e.endCol, e.replacement)
}

func (b *NvimBuffer) InsertText(offset int, text string) error {
	return b.ReplaceRange(offset, offset, text)
}

func (b *NvimBuffer) DeleteRange(start, end int) error {
	return b.ReplaceRange(start, end, "")
}

func (b *NvimBuffer) LineStartOffset(line int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		return b.pending.lineStart(line)
	}
	start, _, err := b.lineOffsets(line)
	return start, err
}

func (b *NvimBuffer) LineEndOffset(line int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		start, err := b.pending.lineStart(line)
		if err != nil {
			return 0, err
		}
		return start + len(b.pending.lines[line]), nil
	}
	_, end, err := b.lineOffsets(line)
	return end, err
}

// lineOffsets asks Neovim for the start and end byte offsets of line
func (b *NvimBuffer) lineOffsets(line int) (int, int, error) {
	if b.client == nil {
		return 0, 0, fmt.Errorf("nvim client not set")
	}
	count, err := b.client.BufferLineCount(b.id)
	if err != nil {
		return 0, 0, err
	}
	if line < 0 || line >= count {
		return 0, 0, fmt.Errorf("line %d out of range [0,%d)", line, count)
	}

	var start, next int
	batch := b.client.NewBatch()
	batch.BufferOffset(b.id, line, &start)
	batch.BufferOffset(b.id, line+1, &next)
	if err := batch.Execute(); err != nil {
		return 0, 0, err
	}
	return start, next - 1, nil
}

func (b *NvimBuffer) LineNumberFor(offset int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines, err := b.lines()
	if err != nil {
		return 0, err
	}
	row, _, err := position(lines, offset)
	return row, err
}

// Highlight replaces the marks of namespace nsID with marks
func (b *NvimBuffer) Highlight(nsID int, marks []Mark) error {
	b.mu.Lock()
	lines, err := b.lines()
	b.mu.Unlock()
	if err != nil {
		return err
	}

	batch := b.client.NewBatch()
	batch.ClearBufferNamespace(b.id, nsID, 0, -1)
	for _, m := range marks {
		startRow, startCol, err := position(lines, m.Start)
		if err != nil {
			logger.Warn("skipping mark at %d: %v", m.Start, err)
			continue
		}
		endRow, endCol, err := position(lines, min(m.End, textLen(lines)))
		if err != nil {
			logger.Warn("skipping mark ending at %d: %v", m.End, err)
			continue
		}
		opts := map[string]any{
			"end_row":  endRow,
			"end_col":  endCol,
			"hl_group": m.Group,
		}
		if m.VirtText != "" {
			opts["virt_text"] = [][]string{{m.VirtText, "Comment"}}
			opts["virt_text_pos"] = "eol"
		}
		var id int
		batch.SetBufferExtmark(b.id, nsID, startRow, startCol, opts, &id)
	}
	return batch.Execute()
}

// Scroll moves the cursor of the current window to offset
func (b *NvimBuffer) Scroll(offset int) error {
	b.mu.Lock()
	lines, err := b.lines()
	b.mu.Unlock()
	if err != nil {
		return err
	}
	row, col, err := position(lines, offset)
	if err != nil {
		return err
	}
	batch := b.client.NewBatch()
	batch.SetWindowCursor(0, [2]int{row + 1, col})
	batch.ExecLua("vim.cmd('normal! zz')", nil, nil)
	return batch.Execute()
}

func textLen(lines [][]byte) int {
	n := 0
	for _, l := range lines {
		n += len(l) + 1
	}
	if n > 0 {
		n--
	}
	return n
}

// position converts a byte offset into a zero-based row and byte column
func position(lines [][]byte, offset int) (int, int, error) {
	if offset < 0 {
		return 0, 0, fmt.Errorf("offset %d out of range", offset)
	}
	remaining := offset
	for row, l := range lines {
		if remaining <= len(l) {
			return row, remaining, nil
		}
		remaining -= len(l) + 1
	}
	return 0, 0, fmt.Errorf("offset %d past buffer end %d", offset, textLen(lines))
}
