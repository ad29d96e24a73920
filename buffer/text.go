package buffer

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Edit records one mutation applied to a Text buffer
type Edit struct {
	Offset  int
	OldText string
	NewText string
}

// Text is an in-memory host buffer. It backs the CLI and the tests.
type Text struct {
	mu    sync.RWMutex
	text  string
	path  string
	edits []Edit
}

// NewText creates a buffer holding s
func NewText(s string) *Text {
	return &Text{text: s}
}

// OpenText reads path into a new buffer
func OpenText(path string) (*Text, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Text{text: string(data), path: path}, nil
}

// Save writes the buffer back to the file it was opened from
func (b *Text) Save() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.path == "" {
		return fmt.Errorf("buffer has no file path")
	}
	return os.WriteFile(b.path, []byte(b.text), 0o644)
}

// Path returns the file the buffer was opened from, if any
func (b *Text) Path() string { return b.path }

func (b *Text) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// SetText replaces the whole content without recording an edit, the way
// an unrelated change by another actor would.
func (b *Text) SetText(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = s
}

// Edits returns the mutations applied through the review Buffer methods
func (b *Text) Edits() []Edit {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Edit(nil), b.edits...)
}

func (b *Text) Len() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.text), nil
}

func (b *Text) Text() (string, error) {
	return b.String(), nil
}

func (b *Text) ReplaceRange(start, end int, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkRange(start, end); err != nil {
		return err
	}
	b.apply(start, b.text[start:end], text)
	return nil
}

func (b *Text) InsertText(offset int, text string) error {
	return b.ReplaceRange(offset, offset, text)
}

func (b *Text) DeleteRange(start, end int) error {
	return b.ReplaceRange(start, end, "")
}

func (b *Text) LineStartOffset(line int) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if line < 0 {
		return 0, fmt.Errorf("line %d out of range", line)
	}
	offset := 0
	for i := 0; i < line; i++ {
		next := strings.IndexByte(b.text[offset:], '\n')
		if next < 0 {
			return 0, fmt.Errorf("line %d out of range", line)
		}
		offset += next + 1
	}
	return offset, nil
}

func (b *Text) LineEndOffset(line int) (int, error) {
	start, err := b.LineStartOffset(line)
	if err != nil {
		return 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if next := strings.IndexByte(b.text[start:], '\n'); next >= 0 {
		return start + next, nil
	}
	return len(b.text), nil
}

func (b *Text) LineNumberFor(offset int) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if offset < 0 || offset > len(b.text) {
		return 0, fmt.Errorf("offset %d out of range [0,%d]", offset, len(b.text))
	}
	return strings.Count(b.text[:offset], "\n"), nil
}

func (b *Text) checkRange(start, end int) error {
	if start < 0 || end < start || end > len(b.text) {
		return fmt.Errorf("range [%d,%d) out of bounds [0,%d]", start, end, len(b.text))
	}
	return nil
}

func (b *Text) apply(offset int, oldText, newText string) {
	if oldText == "" && newText == "" {
		return
	}
	b.edits = append(b.edits, Edit{Offset: offset, OldText: oldText, NewText: newText})
	b.text = b.text[:offset] + newText + b.text[offset+len(oldText):]
}
