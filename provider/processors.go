package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"diffreview/client/openai"
	langctx "diffreview/ctx"
	"diffreview/logger"
	"diffreview/review"
	"diffreview/types"
	"diffreview/utils"
)

// Preprocessor processes the context before prompt building.
// Return ErrSkipGeneration to skip without error, or another error to fail.
type Preprocessor func(p *Provider, ctx *Context) error

// PromptBuilder builds the chat request from the context
type PromptBuilder func(p *Provider, ctx *Context) *openai.ChatRequest

// Postprocessor inspects or rewrites ctx.Result. A non-nil error stops the
// pipeline and is returned to the caller.
type Postprocessor func(p *Provider, ctx *Context) error

var (
	// ErrSkipGeneration is returned by preprocessors that decide there is
	// nothing to ask for
	ErrSkipGeneration = fmt.Errorf("skip generation: %w", review.ErrNothingToReview)

	// ErrIdentical is returned when the proposal equals the selection once
	// whitespace is normalised
	ErrIdentical = fmt.Errorf("suggestion identical to selection: %w", review.ErrNothingToReview)

	// ErrEmptySuggestion is returned when the model proposed nothing
	ErrEmptySuggestion = fmt.Errorf("empty suggestion: %w", review.ErrNothingToReview)

	// ErrTruncated is returned when the model stopped at its token limit
	ErrTruncated = errors.New("suggestion truncated")
)

// --- Preprocessors ---

// SkipBlankSelection returns a preprocessor that skips whitespace-only selections
func SkipBlankSelection() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		if strings.TrimSpace(ctx.Request.Selected) == "" {
			logger.Debug("%s: skipping, blank selection", p.Name)
			return ErrSkipGeneration
		}
		return nil
	}
}

// TrimContent returns a preprocessor that trims the file around the selection
func TrimContent() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		r := ctx.Request.Range
		ctx.Window = utils.TrimAroundRange(ctx.Request.Lines, r.StartLine, r.EndLine, p.Config.MaxContextTokens)
		if ctx.Window.Trimmed {
			logger.Debug("%s: context trimmed to lines %d-%d", p.Name, ctx.Window.Start+1, ctx.Window.Start+len(ctx.Window.Lines))
		}
		return nil
	}
}

// GatherScope returns a preprocessor that looks up the construct enclosing
// the selection
func GatherScope() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		if p.Scopes == nil {
			return nil
		}
		req := ctx.Request
		res := p.Scopes.Gather(context.Background(), &langctx.SourceRequest{
			FilePath:  req.FilePath,
			FileType:  req.FileType,
			Content:   []byte(strings.Join(req.Lines, "\n")),
			StartLine: req.Range.StartLine,
			EndLine:   req.Range.EndLine,
		})
		ctx.Scope = res.Scope
		return nil
	}
}

// --- Prompt ---

const systemPrompt = "You are a careful code editor. Reply with code only: no explanations and no markdown fences."

// BuildChatPrompt builds a two-message chat request: the instructions,
// then the file context, enclosing scope and selection
func BuildChatPrompt(p *Provider, ctx *Context) *openai.ChatRequest {
	req := ctx.Request
	var b strings.Builder

	if req.FilePath != "" {
		fmt.Fprintf(&b, "File: %s\n", req.FilePath)
	}
	if len(ctx.Window.Lines) > 0 {
		first := ctx.Window.Start + 1
		fmt.Fprintf(&b, "File content (lines %d-%d):\n%s\n\n", first, first+len(ctx.Window.Lines)-1, strings.Join(ctx.Window.Lines, "\n"))
	}
	if s := ctx.Scope; s != nil {
		header, _, _ := strings.Cut(s.Text, "\n")
		fmt.Fprintf(&b, "The selection is inside %s %s (lines %d-%d):\n%s\n\n", s.Kind, s.Name, s.StartLine+1, s.EndLine+1, header)
	}
	b.WriteString(instructions(req.Mode))
	b.WriteString("\n\nSelected code:\n")
	b.WriteString(req.Selected)

	return &openai.ChatRequest{
		Model: p.Config.Model,
		Messages: []openai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: b.String()},
		},
		Temperature: p.Config.Temperature,
		MaxTokens:   p.Config.MaxTokens,
		N:           1,
	}
}

func instructions(mode types.Mode) string {
	switch mode {
	case types.ModeComment:
		return "Add clear comments to the selected code below without changing its behavior. Return only the code."
	default:
		return "Using the whole file as context, improve the selected code below. Keep the logic the same but improve readability and performance. Return only the code."
	}
}

// --- Postprocessors ---

// RejectTruncated returns a postprocessor that rejects truncated suggestions
func RejectTruncated() Postprocessor {
	return func(p *Provider, ctx *Context) error {
		if ctx.FinishReason == "length" {
			logger.Info("%s: rejected, truncated (finish_reason=length)", p.Name)
			return ErrTruncated
		}
		return nil
	}
}

// CleanResult returns a postprocessor that strips fences and lead-in text
func CleanResult() Postprocessor {
	return func(p *Provider, ctx *Context) error {
		ctx.Result = CleanSuggestion(ctx.Result)
		return nil
	}
}

// RejectEmpty returns a postprocessor that rejects empty suggestions
func RejectEmpty() Postprocessor {
	return func(p *Provider, ctx *Context) error {
		if strings.TrimSpace(ctx.Result) == "" {
			logger.Debug("%s: rejected, empty or whitespace-only", p.Name)
			return ErrEmptySuggestion
		}
		return nil
	}
}

// MatchTrailingNewline returns a postprocessor that gives the suggestion the
// same trailing newline as the selection, so it is not proposed as a change
func MatchTrailingNewline() Postprocessor {
	return func(p *Provider, ctx *Context) error {
		ctx.Result = strings.TrimRight(ctx.Result, "\n")
		if strings.HasSuffix(ctx.Request.Selected, "\n") {
			ctx.Result += "\n"
		}
		return nil
	}
}

// RejectIdentical returns a postprocessor that rejects suggestions that only
// differ from the selection in whitespace
func RejectIdentical() Postprocessor {
	return func(p *Provider, ctx *Context) error {
		if IsIdentical(ctx.Request.Selected, ctx.Result) {
			logger.Debug("%s: rejected, identical to selection", p.Name)
			return ErrIdentical
		}
		return nil
	}
}

// --- Helper functions ---

var (
	fenceOpen = regexp.MustCompile("(?i)```[\\w+#.-]*[ \\t]*\\n?")
	leadIn    = regexp.MustCompile(`(?i)^\s*(here is|here's|below is)\b[^\n]*:[ \t]*\n|^\s*(improved|updated|refactored|commented) code[^\n]*:[ \t]*\n`)
)

// CleanSuggestion strips markdown code fences and lead-in phrases such as
// "Here is the improved code:" from a model reply. If that leaves nothing,
// the reply with only its fences removed is used instead. Indentation of
// the first line is kept.
func CleanSuggestion(s string) string {
	unfenced := strings.ReplaceAll(fenceOpen.ReplaceAllString(s, ""), "```", "")

	cleaned := trimBlankLines(leadIn.ReplaceAllString(unfenced, ""))
	if strings.TrimSpace(cleaned) != "" {
		return cleaned
	}
	return trimBlankLines(unfenced)
}

// trimBlankLines removes whitespace-only lines at both ends and trailing
// whitespace
func trimBlankLines(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	for {
		line, rest, found := strings.Cut(s, "\n")
		if !found || strings.TrimSpace(line) != "" {
			return s
		}
		s = rest
	}
}

// IsIdentical reports whether a and b are equal once every run of
// whitespace is collapsed to one space
func IsIdentical(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}
