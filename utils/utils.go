package utils

// Token estimation constants
const (
	AvgCharsPerToken = 2 // Conservative estimate for mixed content (code + prose)
)

// EstimateCharsFromTokens estimates the number of characters for a given token count
func EstimateCharsFromTokens(tokens int) int {
	return tokens * AvgCharsPerToken
}

// EstimateTokens estimates the token count of s
func EstimateTokens(s string) int {
	return (len(s) + AvgCharsPerToken - 1) / AvgCharsPerToken
}

// Window is the part of a file kept as prompt context
type Window struct {
	Lines   []string
	Start   int // 0-indexed line of Lines[0] in the file
	Trimmed bool
}

// TrimAroundRange trims lines to fit within maxTokens while keeping the
// selected lines [startLine, endLine] and as much context around them as
// the budget allows. The selection itself is never cut, even when it alone
// exceeds the budget.
func TrimAroundRange(lines []string, startLine, endLine, maxTokens int) Window {
	if len(lines) == 0 {
		return Window{Lines: lines}
	}

	startLine = clamp(startLine, 0, len(lines)-1)
	endLine = clamp(endLine, startLine, len(lines)-1)

	if maxTokens <= 0 {
		return Window{Lines: lines}
	}

	maxChars := EstimateCharsFromTokens(maxTokens)

	totalChars := 0
	for _, line := range lines {
		totalChars += len(line) + 1 // +1 for newline
	}
	if totalChars <= maxChars {
		return Window{Lines: lines}
	}

	selectionChars := 0
	for _, line := range lines[startLine : endLine+1] {
		selectionChars += len(line) + 1
	}

	// Half of what is left goes above the selection, the rest below
	remainingBudget := max(maxChars-selectionChars, 0)
	halfBudget := remainingBudget / 2

	first := startLine
	charsBefore := 0
	for first > 0 {
		newChars := len(lines[first-1]) + 1
		if charsBefore+newChars > halfBudget {
			break
		}
		first--
		charsBefore += newChars
	}

	budgetAfter := remainingBudget - charsBefore
	last := endLine
	charsAfter := 0
	for last < len(lines)-1 {
		newChars := len(lines[last+1]) + 1
		if charsAfter+newChars > budgetAfter {
			break
		}
		last++
		charsAfter += newChars
	}

	// Budget left below goes back to the lines above
	unused := remainingBudget - charsBefore - charsAfter
	for first > 0 {
		newChars := len(lines[first-1]) + 1
		if newChars > unused {
			break
		}
		first--
		unused -= newChars
	}

	trimmed := make([]string, last-first+1)
	copy(trimmed, lines[first:last+1])

	return Window{
		Lines:   trimmed,
		Start:   first,
		Trimmed: first > 0 || last < len(lines)-1,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
