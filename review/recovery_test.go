package review

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverByCachedLine(t *testing.T) {
	buf, s := beginOn(t, "", "a\nb\nc", "a\nX\nc", "")
	require.Equal(t, "a\nb\nX\nc", buf.String())

	// Same line count, different offsets.
	buf.SetText("aaaa\nb\nX\nc")

	out, err := s.Accept(0)
	require.NoError(t, err)
	assert.Equal(t, RecoveryLines, out.Recovery)
	assert.True(t, errors.Is(out.Err, ErrSpanMismatch), "fast path failure reported")
	assert.Equal(t, StateAccepted, out.State)
	assert.Equal(t, "aaaa\nX\nc", buf.String())
}

func TestRecoverBySearch(t *testing.T) {
	buf, s := beginOn(t, "", "a\nb\nc", "a\nX\nc", "")

	// A line the session never saw shifts both offsets and lines.
	buf.SetText("xx\na\nb\nX\nc")

	out, err := s.Accept(0)
	require.NoError(t, err)
	assert.Equal(t, RecoverySearch, out.Recovery)
	assert.Equal(t, "xx\na\nX\nc", buf.String())
	assert.True(t, s.Closed())
}

func TestRecoverTailBlockBySearch(t *testing.T) {
	buf, s := beginOn(t, "", "foo()", "foo()\nbar()", "")
	require.Equal(t, "foo()\nbar()", buf.String())

	buf.SetText("// note\nfoo()\nbar()")

	out, err := s.Reject(0)
	require.NoError(t, err)
	assert.Equal(t, RecoverySearch, out.Recovery)
	assert.Equal(t, "// note\nfoo()", buf.String())
}

func TestRecoverReinsertsMissingKeptText(t *testing.T) {
	buf, s := beginOn(t, "", "a\nb\nc", "a\nX\nc", "")

	// Both versions of the chunk vanished.
	buf.SetText("a\nc")

	out, err := s.Reject(0)
	require.NoError(t, err)
	assert.Equal(t, RecoveryInserted, out.Recovery)
	assert.Equal(t, StateRejected, out.State)
	assert.Equal(t, "b\na\nc", buf.String(), "original line restored at the selection start")
	assert.True(t, s.Closed(), "recovery always terminates")
}

func TestRecoverAbandonsWhenKeptTextPresent(t *testing.T) {
	buf, s := beginOn(t, "", "a\nb\nc", "a\nX\nc", "")

	buf.SetText("a\nb\nc")

	out, err := s.Reject(0)
	require.NoError(t, err)
	assert.Equal(t, RecoveryAbandoned, out.Recovery)
	assert.Equal(t, "a\nb\nc", buf.String(), "nothing left to remove")
	assert.True(t, s.Closed())
}

func TestBulkRecoversPerChunk(t *testing.T) {
	original, modified := twelveLines()
	buf, s := beginOn(t, "", original, modified, "")

	buf.SetText("// inserted by someone else\n" + buf.String())

	res, err := s.AcceptAll()
	require.NoError(t, err)
	assert.False(t, res.Forced)
	assert.Equal(t, 3, res.Processed)
	for _, out := range res.Outcomes {
		assert.NotEqual(t, RecoveryNone, out.Recovery)
		assert.NotEqual(t, RecoveryAbandoned, out.Recovery)
	}
	assert.Equal(t, "// inserted by someone else\n"+modified, buf.String())
}

func TestBulkForcedWhenNothingLocatable(t *testing.T) {
	original, modified := twelveLines()
	buf, s := beginOn(t, "", original, modified, "")

	// The proposal is gone entirely; only the original text survives.
	buf.SetText("top\n" + original + "\nbottom")

	res, err := s.RejectAll()
	require.NoError(t, err)
	assert.True(t, res.Forced)
	assert.Equal(t, 3, res.Processed)
	for _, out := range res.Outcomes {
		assert.Equal(t, RecoveryForced, out.Recovery)
		assert.Equal(t, StateRejected, out.State)
	}
	assert.Equal(t, "top\n"+original+"\nbottom", buf.String())
	assert.True(t, s.Closed())
}

func TestBulkForcedTerminatesOnUnrelatedBuffer(t *testing.T) {
	original, modified := twelveLines()
	for _, accept := range []bool{true, false} {
		buf, s := beginOn(t, "", original, modified, "")
		buf.SetText("something else entirely")

		var res BulkResult
		var err error
		if accept {
			res, err = s.AcceptAll()
		} else {
			res, err = s.RejectAll()
		}
		require.NoError(t, err)
		assert.True(t, res.Forced)
		assert.True(t, s.Closed(), "session always reaches a terminal state")
		assert.Equal(t, 3, s.Status().Resolved)

		// Best effort only: the result is placed somewhere in the buffer.
		want := modified
		if !accept {
			want = original
		}
		assert.True(t, strings.Contains(buf.String(), want))
	}
}

func TestForcedRespectsEarlierDecisions(t *testing.T) {
	original, modified := twelveLines()
	buf, s := beginOn(t, "", original, modified, "")

	_, err := s.Accept(1)
	require.NoError(t, err)

	materialized := buf.String()
	buf.SetText(strings.Repeat("=", 3) + "\n" + materialized)
	// Rename every proposed line so no chunk can be found by its text.
	buf.SetText(strings.NewReplacer("changed 0", "gone 0", "changed 10", "gone 10").Replace(buf.String()))

	res, err := s.RejectAll()
	require.NoError(t, err)
	assert.True(t, res.Forced)
	assert.Equal(t, 2, res.Processed)
	assert.True(t, s.Closed())
}

func TestMatchAt(t *testing.T) {
	hr, ok := matchAt("a\nb\nc", 2, "b\n")
	require.True(t, ok)
	assert.Equal(t, hostRange{start: 2, end: 4}, hr)

	hr, ok = matchAt("a\nb", 2, "b\n")
	require.True(t, ok, "last line without its newline")
	assert.Equal(t, hostRange{start: 1, end: 3}, hr, "newline before it goes too")

	_, ok = matchAt("a\nbb\n", 2, "b\n")
	assert.False(t, ok)

	_, ok = matchAt("a", 5, "a\n")
	assert.False(t, ok)
}

func TestLocateNearest(t *testing.T) {
	content := "x\nfoo\ny\nfoo\nz"

	hr, ok := locateNearest(content, "foo\n", 0)
	require.True(t, ok)
	assert.Equal(t, 2, hr.start)

	hr, ok = locateNearest(content, "foo\n", 12)
	require.True(t, ok)
	assert.Equal(t, 8, hr.start)

	hr, ok = locateNearest(content, "z\n", 0)
	require.True(t, ok, "tail form")
	assert.Equal(t, hostRange{start: 11, end: 13}, hr)

	_, ok = locateNearest(content, "\n", 0)
	assert.False(t, ok, "blank blocks are not searched")
}
