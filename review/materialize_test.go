package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diffreview/buffer"
	"diffreview/text"
)

func TestMaterializeClampsOffsetsPastRegion(t *testing.T) {
	buf := buffer.NewText("keep\nold")
	tracker := NewOffsetTracker()
	deltas := []text.Delta{
		{
			Kind:        text.DeltaChange,
			Source:      text.LineRange{Start: 0, Count: 1},
			Target:      text.LineRange{Start: 0, Count: 1},
			SourceLines: []string{"old"},
			TargetLines: []string{"new"},
		},
		{
			// addresses a line the proposal does not have
			Kind:        text.DeltaDelete,
			Source:      text.LineRange{Start: 1, Count: 1},
			Target:      text.LineRange{Start: 5, Count: 0},
			SourceLines: []string{"gone"},
		},
	}

	r, chunks, err := materialize(buf, tracker, Span{Start: 5, End: 8}, "new", deltas)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	got, err := buf.Text()
	require.NoError(t, err)
	assert.Equal(t, "keep\nold\nnew\ngone", got, "clamped block lands at the region end")

	require.NotNil(t, chunks[0].Original)
	assert.Equal(t, Span{Start: 5, End: 9, Line: 1}, *chunks[0].Original)
	assert.Equal(t, Span{Start: 9, End: 13, Line: 2}, *chunks[0].Modified)

	require.NotNil(t, chunks[1].Original)
	assert.Equal(t, 13, chunks[1].Original.Start)
	assert.Equal(t, r.end(), chunks[1].Original.End)
	block, err := r.read(*chunks[1].Original)
	require.NoError(t, err)
	assert.Equal(t, "gone\n", block)
}

func TestOffsetAt(t *testing.T) {
	offsets := lineOffsets([]string{"ab", "c"})
	assert.Equal(t, []int{0, 3, 5}, offsets)
	assert.Equal(t, 0, offsetAt(offsets, -1))
	assert.Equal(t, 3, offsetAt(offsets, 1))
	assert.Equal(t, 5, offsetAt(offsets, 2))
	assert.Equal(t, 7, offsetAt(offsets, 4))
}
