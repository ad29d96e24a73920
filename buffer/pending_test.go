package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linesOf(s ...string) [][]byte {
	out := make([][]byte, len(s))
	for i, l := range s {
		out[i] = []byte(l)
	}
	return out
}

func TestPendingEditsReplace(t *testing.T) {
	p := newPendingEdits(linesOf("foo", "bar", "baz"))

	require.NoError(t, p.replace(4, 4, "FOO\n"))
	assert.Equal(t, "foo\nFOO\nbar\nbaz", p.text())

	// spans three lines
	require.NoError(t, p.replace(2, 8, "X"))
	assert.Equal(t, "foXbar\nbaz", p.text())

	require.NoError(t, p.replace(8, 9, ""))
	assert.Equal(t, "foXbar\nbz", p.text())

	assert.Equal(t, []lineEdit{
		{startRow: 1, startCol: 0, endRow: 1, endCol: 0, replacement: linesOf("FOO", "")},
		{startRow: 0, startCol: 2, endRow: 2, endCol: 0, replacement: linesOf("X")},
		{startRow: 1, startCol: 1, endRow: 1, endCol: 2, replacement: linesOf("")},
	}, p.edits, "coordinates refer to the text before each edit")
}

func TestPendingEditsReadsSeeEdits(t *testing.T) {
	p := newPendingEdits(linesOf("a", "b"))
	require.NoError(t, p.replace(2, 2, "x\ny\n"))

	assert.Equal(t, "a\nx\ny\nb", p.text())
	assert.Equal(t, 7, textLen(p.lines))

	start, err := p.lineStart(3)
	require.NoError(t, err)
	assert.Equal(t, 6, start)

	_, err = p.lineStart(4)
	assert.Error(t, err)

	row, col, err := position(p.lines, 4)
	require.NoError(t, err)
	assert.Equal(t, [2]int{2, 0}, [2]int{row, col})

	assert.Error(t, p.replace(3, 20, ""))
	assert.Error(t, p.replace(3, 2, ""))
	assert.Len(t, p.edits, 1, "failed edits are not queued")
}

func TestPendingEditsEmptyBuffer(t *testing.T) {
	p := newPendingEdits(nil)
	require.NoError(t, p.replace(0, 0, "hi"))
	assert.Equal(t, "hi", p.text())
}
