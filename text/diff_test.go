package text

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// applyDeltas rebuilds the modified lines from the original lines and deltas.
func applyDeltas(original []string, deltas []Delta) []string {
	var out []string
	pos := 0
	for _, d := range deltas {
		out = append(out, original[pos:d.Source.Start]...)
		out = append(out, d.TargetLines...)
		pos = d.Source.End()
	}
	return append(out, original[pos:]...)
}

func TestComputeDeltasIdentical(t *testing.T) {
	inputs := []string{"", "a", "a\n", "a\nb\nc", "\n\n\n", "func main() {\n}\n"}
	for _, in := range inputs {
		deltas := ComputeTextDeltas(in, in)
		assert.Empty(t, deltas, fmt.Sprintf("identical input %q", in))
	}
}

func TestComputeDeltasSingleChange(t *testing.T) {
	deltas := ComputeDeltas([]string{"a", "b", "c"}, []string{"a", "X", "c"})

	want := []Delta{{
		Kind:        DeltaChange,
		Source:      LineRange{Start: 1, Count: 1},
		Target:      LineRange{Start: 1, Count: 1},
		SourceLines: []string{"b"},
		TargetLines: []string{"X"},
	}}
	if diff := cmp.Diff(want, deltas); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeDeltasInsert(t *testing.T) {
	deltas := ComputeDeltas([]string{"foo()"}, []string{"foo()", "bar()"})

	want := []Delta{{
		Kind:        DeltaInsert,
		Source:      LineRange{Start: 1, Count: 0},
		Target:      LineRange{Start: 1, Count: 1},
		TargetLines: []string{"bar()"},
	}}
	if diff := cmp.Diff(want, deltas); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeDeltasDelete(t *testing.T) {
	deltas := ComputeDeltas([]string{"a", "b", "c"}, []string{"a", "c"})

	want := []Delta{{
		Kind:        DeltaDelete,
		Source:      LineRange{Start: 1, Count: 1},
		Target:      LineRange{Start: 1, Count: 0},
		SourceLines: []string{"b"},
	}}
	if diff := cmp.Diff(want, deltas); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeDeltasThreeIndependentChanges(t *testing.T) {
	original := make([]string, 12)
	for i := range original {
		original[i] = fmt.Sprintf("line %d", i)
	}
	modified := append([]string(nil), original...)
	modified[0] = "changed 0"
	modified[5] = "changed 5"
	modified[10] = "changed 10"

	deltas := ComputeDeltas(original, modified)

	require.Len(t, deltas, 3)
	for i, line := range []int{0, 5, 10} {
		assert.Equal(t, DeltaChange, deltas[i].Kind, "kind")
		assert.Equal(t, LineRange{Start: line, Count: 1}, deltas[i].Source, "source range")
		assert.Equal(t, LineRange{Start: line, Count: 1}, deltas[i].Target, "target range")
	}
}

func TestComputeDeltasPrefersLeadingEqualLines(t *testing.T) {
	deltas := ComputeDeltas([]string{"x"}, []string{"x", "x"})
	require.Len(t, deltas, 1)
	assert.Equal(t, DeltaInsert, deltas[0].Kind)
	assert.Equal(t, LineRange{Start: 1, Count: 1}, deltas[0].Target, "insert placed after the kept line")

	deltas = ComputeDeltas([]string{"a"}, []string{"a", "b", "a"})
	require.Len(t, deltas, 1)
	assert.Equal(t, LineRange{Start: 1, Count: 2}, deltas[0].Target)
	assert.Equal(t, []string{"b", "a"}, deltas[0].TargetLines)

	deltas = ComputeDeltas([]string{"x", "x", "y"}, []string{"x", "y"})
	require.Len(t, deltas, 1)
	assert.Equal(t, DeltaDelete, deltas[0].Kind)
	assert.Equal(t, LineRange{Start: 1, Count: 1}, deltas[0].Source)
}

func TestComputeDeltasTrailingNewline(t *testing.T) {
	deltas := ComputeTextDeltas("a\nb", "a\nb\n")
	require.Len(t, deltas, 1)
	assert.Equal(t, DeltaInsert, deltas[0].Kind)
	assert.Equal(t, []string{""}, deltas[0].TargetLines)

	deltas = ComputeTextDeltas("a\nb", "a\nc")
	require.Len(t, deltas, 1)
	assert.Equal(t, DeltaChange, deltas[0].Kind, "last line without newline still diffs as a line")
}

func TestComputeDeltasCoverage(t *testing.T) {
	cases := []struct {
		name     string
		original string
		modified string
	}{
		{"empty to text", "", "a\nb"},
		{"text to empty", "a\nb", ""},
		{"replace all", "a\nb\nc", "x\ny"},
		{"interleaved", "a\nb\nc\nd\ne", "a\nB\nc\ne\nf"},
		{"duplicates", "x\nx\nx\ny", "x\ny\nx\nx"},
		{"function", "func f() {\n\treturn 1\n}", "// f returns one.\nfunc f() int {\n\treturn 1\n}\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			original := SplitLines(tc.original)
			modified := SplitLines(tc.modified)
			deltas := ComputeDeltas(original, modified)

			assert.Equal(t, modified, applyDeltas(original, deltas), "deltas rebuild modified")

			for i, d := range deltas {
				assert.Equal(t, d.Source.Count, len(d.SourceLines), "source count")
				assert.Equal(t, d.Target.Count, len(d.TargetLines), "target count")
				if i > 0 {
					prev := deltas[i-1]
					assert.Greater(t, d.Source.Start, prev.Source.End()-1, "ordered source")
					assert.True(t, d.Source.Start > prev.Source.End() || d.Target.Start > prev.Target.End(),
						"deltas separated by an equal run")
				}
			}
		})
	}
}

func TestComputeDeltasDeterministic(t *testing.T) {
	original := SplitLines(strings.Repeat("a\nb\n", 20))
	modified := SplitLines(strings.Repeat("b\na\n", 20))

	first := ComputeDeltas(original, modified)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, ComputeDeltas(original, modified)); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}

func TestSplitJoinRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "a\n", "\n", "a\n\nb"} {
		assert.Equal(t, s, JoinLines(SplitLines(s)), fmt.Sprintf("round trip %q", s))
	}
	assert.Equal(t, "a\nb\n", Block([]string{"a", "b"}))
	assert.Equal(t, "", Block(nil))
}

func TestClassifyLineChange(t *testing.T) {
	cases := []struct {
		name string
		old  string
		new  string
		want LineChange
	}{
		{"append", "Hello world", "Hello world!", LineChange{Type: ChangeAppendChars, ColStart: 11, ColEnd: 12}},
		{"replace", "foo(a)", "foo(b)", LineChange{Type: ChangeReplaceChars, ColStart: 4, ColEnd: 5}},
		{"delete", "abc def", "abc", LineChange{Type: ChangeDeleteChars, ColStart: 3, ColEnd: 7}},
		{"rewrite", "return a + b", "log.Fatalf(\"unreachable %d\", value)", LineChange{Type: ChangeModification}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyLineChange(tc.old, tc.new))
		})
	}
}
