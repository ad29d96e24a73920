package buffer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextEdits(t *testing.T) {
	buf := NewText("hello world")

	require.NoError(t, buf.ReplaceRange(6, 11, "there"))
	assert.Equal(t, "hello there", buf.String())

	require.NoError(t, buf.InsertText(0, ">> "))
	assert.Equal(t, ">> hello there", buf.String())

	require.NoError(t, buf.DeleteRange(0, 3))
	assert.Equal(t, "hello there", buf.String())

	assert.Len(t, buf.Edits(), 3, "every mutation recorded")
}

func TestTextRejectsOutOfBounds(t *testing.T) {
	buf := NewText("abc")

	assert.Error(t, buf.DeleteRange(2, 5))
	assert.Error(t, buf.InsertText(-1, "x"))
	assert.Error(t, buf.ReplaceRange(2, 1, "x"))
	assert.Equal(t, "abc", buf.String(), "failed edits leave the text alone")
	assert.Empty(t, buf.Edits())
}

func TestTextEmptyEditNotRecorded(t *testing.T) {
	buf := NewText("abc")
	require.NoError(t, buf.InsertText(1, ""))
	assert.Empty(t, buf.Edits())
}

func TestTextLineOffsets(t *testing.T) {
	buf := NewText("one\ntwo\n\nfour")

	start, err := buf.LineStartOffset(1)
	require.NoError(t, err)
	assert.Equal(t, 4, start)

	end, err := buf.LineEndOffset(1)
	require.NoError(t, err)
	assert.Equal(t, 7, end)

	start, err = buf.LineStartOffset(2)
	require.NoError(t, err)
	assert.Equal(t, 8, start, "empty line")

	end, err = buf.LineEndOffset(3)
	require.NoError(t, err)
	assert.Equal(t, 13, end, "last line without newline")

	_, err = buf.LineStartOffset(4)
	assert.Error(t, err)
}

func TestTextLineNumberFor(t *testing.T) {
	buf := NewText("one\ntwo\nthree")

	cases := map[int]int{0: 0, 3: 0, 4: 1, 8: 2, 13: 2}
	for offset, want := range cases {
		got, err := buf.LineNumberFor(offset)
		require.NoError(t, err)
		assert.Equal(t, want, got, "offset %d", offset)
	}

	_, err := buf.LineNumberFor(14)
	assert.Error(t, err)
}

func TestTextOpenSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	buf, err := OpenText(path)
	require.NoError(t, err)
	require.NoError(t, buf.InsertText(0, "// Command main.\n"))
	require.NoError(t, buf.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "// Command main.\npackage main\n", string(data))

	assert.Error(t, NewText("x").Save(), "no path to save to")
}

func TestPosition(t *testing.T) {
	lines := [][]byte{[]byte("ab"), []byte(""), []byte("cde")}

	cases := []struct {
		offset   int
		row, col int
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 1, 0},
		{4, 2, 0},
		{7, 2, 3},
	}
	for _, tc := range cases {
		row, col, err := position(lines, tc.offset)
		require.NoError(t, err)
		assert.Equal(t, tc.row, row, "row for %d", tc.offset)
		assert.Equal(t, tc.col, col, "col for %d", tc.offset)
	}

	_, _, err := position(lines, 8)
	assert.Error(t, err)
	assert.Equal(t, 7, textLen(lines))
}
