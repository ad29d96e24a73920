package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Bounds past which a one-line edit is shown as a whole-line modification
// instead of inline columns
const (
	maxInlineWords     = 2   // words per side
	maxInlineWordDelta = 1   // difference in word count
	minLongInsertion   = 10  // insertion length treated as a rewrite when nothing was deleted
	wordRatioHigh      = 3.0 // length ratio bounds for a single word
	wordRatioLow       = 0.33
	phraseRatioHigh    = 2.0 // length ratio bounds for several words
	phraseRatioLow     = 0.5
)

// ChangeType classifies how a single line changed
type ChangeType int

const (
	ChangeModification ChangeType = iota
	ChangeAppendChars
	ChangeDeleteChars
	ChangeReplaceChars
)

// String returns the string representation of ChangeType for Lua integration
func (ct ChangeType) String() string {
	switch ct {
	case ChangeModification:
		return "modification"
	case ChangeAppendChars:
		return "append_chars"
	case ChangeDeleteChars:
		return "delete_chars"
	case ChangeReplaceChars:
		return "replace_chars"
	default:
		return "unknown"
	}
}

// LineChange describes an intra-line edit. ColStart and ColEnd are
// zero-based byte columns; for deletions they address the old line,
// otherwise the new one. Both are zero for ChangeModification.
type LineChange struct {
	Type     ChangeType
	ColStart int
	ColEnd   int
}

// ClassifyLineChange categorizes the edit from oldLine to newLine and
// returns the column range of the changed characters.
func ClassifyLineChange(oldLine, newLine string) LineChange {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldLine, newLine, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var insertions, deletions int
	var hasEqual bool
	var deletedText, insertedText string

	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			insertions++
			insertedText = diff.Text
		case diffmatchpatch.DiffDelete:
			deletions++
			deletedText = diff.Text
		case diffmatchpatch.DiffEqual:
			hasEqual = true
		}
	}

	if deletions == 0 && insertions > 0 && hasEqual {
		return classifyPureInsertion(oldLine, newLine, diffs, insertions)
	}

	if insertions == 0 && deletions > 0 && hasEqual {
		return classifyPureDeletion(diffs)
	}

	if insertions == 1 && deletions == 1 && hasEqual {
		return classifySingleReplacement(diffs, deletedText, insertedText)
	}

	return LineChange{Type: ChangeModification}
}

func classifyPureInsertion(oldLine, newLine string, diffs []diffmatchpatch.Diff, insertions int) LineChange {
	if strings.HasPrefix(newLine, oldLine) {
		return LineChange{Type: ChangeAppendChars, ColStart: len(oldLine), ColEnd: len(newLine)}
	}

	if insertions == 1 {
		if start, end, ok := findOp(diffs, diffmatchpatch.DiffInsert); ok {
			return LineChange{Type: ChangeReplaceChars, ColStart: start, ColEnd: end}
		}
	}

	return LineChange{Type: ChangeModification}
}

func classifyPureDeletion(diffs []diffmatchpatch.Diff) LineChange {
	if start, end, ok := findOp(diffs, diffmatchpatch.DiffDelete); ok {
		return LineChange{Type: ChangeDeleteChars, ColStart: start, ColEnd: end}
	}
	return LineChange{Type: ChangeModification}
}

func classifySingleReplacement(diffs []diffmatchpatch.Diff, deletedText, insertedText string) LineChange {
	if isComplexModification(deletedText, insertedText) {
		return LineChange{Type: ChangeModification}
	}
	if start, end, ok := findOp(diffs, diffmatchpatch.DiffInsert); ok {
		return LineChange{Type: ChangeReplaceChars, ColStart: start, ColEnd: end}
	}
	return LineChange{Type: ChangeModification}
}

// findOp returns the column range of the first diff of type want.
// Only equal runs advance the column.
func findOp(diffs []diffmatchpatch.Diff, want diffmatchpatch.Operation) (int, int, bool) {
	pos := 0
	for _, diff := range diffs {
		if diff.Type == want {
			return pos, pos + len(diff.Text), true
		}
		if diff.Type == diffmatchpatch.DiffEqual {
			pos += len(diff.Text)
		}
	}
	return 0, 0, false
}

// isComplexModification reports whether a deletion+insertion pair is too
// large for a column-level highlight
func isComplexModification(deletedText, insertedText string) bool {
	deletedWords := len(strings.Fields(deletedText))
	insertedWords := len(strings.Fields(insertedText))

	if deletedWords > maxInlineWords || insertedWords > maxInlineWords {
		return true
	}

	if abs(deletedWords-insertedWords) > maxInlineWordDelta {
		return true
	}

	deletedLen := len(deletedText)
	insertedLen := len(insertedText)

	if deletedLen == 0 {
		return insertedLen > minLongInsertion
	}

	lengthRatio := float64(insertedLen) / float64(deletedLen)

	if deletedWords == 1 && insertedWords == 1 {
		return lengthRatio > wordRatioHigh || lengthRatio < wordRatioLow
	}

	return lengthRatio > phraseRatioHigh || lengthRatio < phraseRatioLow
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
