package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// SplitLines splits text on newlines. Unlike a file reader it keeps the
// trailing empty element, so JoinLines(SplitLines(s)) == s for every s.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// Block renders lines as a newline-terminated block, each line followed by "\n".
func Block(lines []string) string {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DeltaKind represents the type of a line-level delta
type DeltaKind int

const (
	DeltaInsert DeltaKind = iota
	DeltaDelete
	DeltaChange
)

// String returns the string representation of DeltaKind
func (k DeltaKind) String() string {
	switch k {
	case DeltaInsert:
		return "insert"
	case DeltaDelete:
		return "delete"
	case DeltaChange:
		return "change"
	default:
		return "unknown"
	}
}

// LineRange is a zero-indexed run of Count lines starting at Start.
type LineRange struct {
	Start int
	Count int
}

// End returns the first line after the range
func (r LineRange) End() int {
	return r.Start + r.Count
}

// Delta is one unit of difference between two line sequences.
// Source addresses the original lines, Target the modified lines.
type Delta struct {
	Kind        DeltaKind
	Source      LineRange
	Target      LineRange
	SourceLines []string
	TargetLines []string
}

type lineOp struct {
	op    diffmatchpatch.Operation
	lines []string
}

// ComputeDeltas returns the ordered, non-overlapping deltas that turn
// original into modified. Identical inputs yield an empty result.
// When several minimal alignments exist the one keeping unchanged lines
// at the start is chosen.
func ComputeDeltas(original, modified []string) []Delta {
	ops := diffLines(original, modified)
	ops = slideEditsDown(ops)

	var deltas []Delta
	srcLine, tgtLine := 0, 0
	var pending *Delta

	flush := func() {
		if pending == nil {
			return
		}
		switch {
		case pending.Source.Count > 0 && pending.Target.Count > 0:
			pending.Kind = DeltaChange
		case pending.Source.Count > 0:
			pending.Kind = DeltaDelete
		default:
			pending.Kind = DeltaInsert
		}
		deltas = append(deltas, *pending)
		pending = nil
	}

	for _, op := range ops {
		if op.op == diffmatchpatch.DiffEqual {
			flush()
			srcLine += len(op.lines)
			tgtLine += len(op.lines)
			continue
		}

		// Adjacent delete and insert runs, in either order, form one delta.
		if pending == nil {
			pending = &Delta{
				Source: LineRange{Start: srcLine},
				Target: LineRange{Start: tgtLine},
			}
		}
		switch op.op {
		case diffmatchpatch.DiffDelete:
			pending.Source.Count += len(op.lines)
			pending.SourceLines = append(pending.SourceLines, op.lines...)
			srcLine += len(op.lines)
		case diffmatchpatch.DiffInsert:
			pending.Target.Count += len(op.lines)
			pending.TargetLines = append(pending.TargetLines, op.lines...)
			tgtLine += len(op.lines)
		}
	}
	flush()

	return deltas
}

// ComputeTextDeltas is ComputeDeltas over newline-separated texts.
func ComputeTextDeltas(original, modified string) []Delta {
	return ComputeDeltas(SplitLines(original), SplitLines(modified))
}

// diffLines runs a line-mode diff where every line, including the last one,
// is newline terminated so that a missing final newline never makes the
// last line differ.
func diffLines(original, modified []string) []lineOp {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	chars1, chars2, lineArray := dmp.DiffLinesToChars(Block(original), Block(modified))
	diffs := dmp.DiffMain(chars1, chars2, false)
	lineDiffs := dmp.DiffCharsToLines(diffs, lineArray)

	ops := make([]lineOp, 0, len(lineDiffs))
	for _, d := range lineDiffs {
		if d.Text == "" {
			continue
		}
		lines := strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
		ops = append(ops, lineOp{op: d.Type, lines: lines})
	}
	return ops
}

// slideEditsDown moves pure insert or delete runs as far down as the
// following equal run allows, so equal lines stay grouped at the start.
func slideEditsDown(ops []lineOp) []lineOp {
	isEdit := func(i int) bool {
		return i >= 0 && i < len(ops) && ops[i].op != diffmatchpatch.DiffEqual
	}

	for i := 0; i < len(ops); i++ {
		if !isEdit(i) || isEdit(i-1) || i+1 >= len(ops) || ops[i+1].op != diffmatchpatch.DiffEqual {
			continue
		}
		edit := &ops[i]
		for len(ops[i+1].lines) > 0 && edit.lines[0] == ops[i+1].lines[0] {
			first := edit.lines[0]
			if i > 0 {
				ops[i-1].lines = append(ops[i-1].lines, first)
			} else {
				ops = append([]lineOp{{op: diffmatchpatch.DiffEqual, lines: []string{first}}}, ops...)
				i++
				edit = &ops[i]
			}
			rotated := make([]string, 0, len(edit.lines))
			rotated = append(rotated, edit.lines[1:]...)
			rotated = append(rotated, ops[i+1].lines[0])
			edit.lines = rotated
			ops[i+1].lines = ops[i+1].lines[1:]
		}
		if len(ops[i+1].lines) == 0 {
			ops = append(ops[:i+1], ops[i+2:]...)
		}
	}
	return ops
}
