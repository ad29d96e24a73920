package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diffreview/client/openai"
	langctx "diffreview/ctx"
	"diffreview/review"
	"diffreview/types"
)

// mockClient implements Client for testing
type mockClient struct {
	reply        string
	finishReason string
	err          error
	lastRequest  *openai.ChatRequest
}

func (c *mockClient) DoChat(_ context.Context, req *openai.ChatRequest) (*openai.ChatResponse, error) {
	c.lastRequest = req
	if c.err != nil {
		return nil, c.err
	}
	resp := &openai.ChatResponse{Model: req.Model}
	resp.Choices = append(resp.Choices, struct {
		Index        int            `json:"index"`
		Message      openai.Message `json:"message"`
		FinishReason string         `json:"finish_reason"`
	}{Message: openai.Message{Role: "assistant", Content: c.reply}, FinishReason: c.finishReason})
	resp.Usage.PromptTokens = 40
	resp.Usage.CompletionTokens = 8
	return resp, nil
}

func newTestProvider(client *mockClient) *Provider {
	p := NewProvider(&types.ProviderConfig{
		Model:            "gpt-4o-mini",
		Temperature:      0.2,
		MaxTokens:        256,
		MaxContextTokens: 4000,
	})
	p.Client = client
	return p
}

func goRequest() *types.GenerationRequest {
	lines := []string{
		"package main",
		"",
		"func sum(xs []int) int {",
		"\tt := 0",
		"\tfor i := 0; i < len(xs); i++ { t += xs[i] }",
		"\treturn t",
		"}",
	}
	return &types.GenerationRequest{
		FilePath: "sum.go",
		FileType: "go",
		Lines:    lines,
		Range:    types.Range{StartLine: 4, EndLine: 4},
		Selected: lines[4],
		Mode:     types.ModeImprove,
	}
}

func TestGenerate(t *testing.T) {
	client := &mockClient{reply: "```go\n\tfor _, x := range xs { t += x }\n```"}
	p := newTestProvider(client)

	resp, err := p.Generate(context.Background(), goRequest())
	require.NoError(t, err)
	assert.Equal(t, "\tfor _, x := range xs { t += x }", resp.Text)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 40, resp.PromptTokens)
	assert.Equal(t, 8, resp.CompletionTokens)

	req := client.lastRequest
	require.NotNil(t, req)
	assert.Equal(t, 0.2, req.Temperature)
	assert.Equal(t, 256, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)

	user := req.Messages[1].Content
	assert.Contains(t, user, "File: sum.go")
	assert.Contains(t, user, "File content (lines 1-7):")
	assert.Contains(t, user, "inside function sum (lines 3-7):\nfunc sum(xs []int) int {")
	assert.Contains(t, user, "improve the selected code")
	assert.True(t, strings.HasSuffix(user, "Selected code:\n"+goRequest().Selected))
}

func TestGenerateCommentMode(t *testing.T) {
	client := &mockClient{reply: "\t// add every element\n\tfor i := 0; i < len(xs); i++ { t += xs[i] }"}
	p := newTestProvider(client)

	req := goRequest()
	req.Mode = types.ModeComment
	_, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, client.lastRequest.Messages[1].Content, "Add clear comments")
}

func TestGenerateIdentical(t *testing.T) {
	client := &mockClient{reply: "for i := 0;  i < len(xs); i++ {\n t += xs[i] }"}
	p := newTestProvider(client)

	_, err := p.Generate(context.Background(), goRequest())
	assert.ErrorIs(t, err, ErrIdentical)
	assert.ErrorIs(t, err, review.ErrNothingToReview)
}

func TestGenerateEmpty(t *testing.T) {
	p := newTestProvider(&mockClient{reply: "```\n```"})

	_, err := p.Generate(context.Background(), goRequest())
	assert.ErrorIs(t, err, ErrEmptySuggestion)
	assert.ErrorIs(t, err, review.ErrNothingToReview)
}

func TestGenerateTruncated(t *testing.T) {
	p := newTestProvider(&mockClient{reply: "\tfor _, x := range", finishReason: "length"})

	_, err := p.Generate(context.Background(), goRequest())
	assert.ErrorIs(t, err, ErrTruncated)
	assert.NotErrorIs(t, err, review.ErrNothingToReview)
}

func TestGenerateSkipsBlankSelection(t *testing.T) {
	client := &mockClient{reply: "x"}
	p := newTestProvider(client)

	req := goRequest()
	req.Selected = "  \n"
	_, err := p.Generate(context.Background(), req)
	assert.ErrorIs(t, err, ErrSkipGeneration)
	assert.Nil(t, client.lastRequest, "no call for a blank selection")
}

func TestGenerateClientError(t *testing.T) {
	boom := errors.New("boom")
	p := newTestProvider(&mockClient{err: boom})

	_, err := p.Generate(context.Background(), goRequest())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "openai:")
}

func TestGenerateKeepsSelectionTrailingNewline(t *testing.T) {
	p := newTestProvider(&mockClient{reply: "b := 2"})

	req := goRequest()
	req.Selected = "a := 1\n"
	resp, err := p.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "b := 2\n", resp.Text)

	p = newTestProvider(&mockClient{reply: "b := 2\n\n"})
	req.Selected = "a := 1"
	resp, err = p.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "b := 2", resp.Text)
}

func TestGenerateWithoutScopes(t *testing.T) {
	client := &mockClient{reply: "\tfor _, x := range xs { t += x }"}
	p := newTestProvider(client)
	p.Scopes = nil

	_, err := p.Generate(context.Background(), goRequest())
	require.NoError(t, err)
	assert.NotContains(t, client.lastRequest.Messages[1].Content, "The selection is inside")
}

func TestBuildChatPromptTrimmedWindow(t *testing.T) {
	p := newTestProvider(&mockClient{})
	ctx := &Context{
		Request: &types.GenerationRequest{Selected: "x", Mode: types.ModeImprove},
		Scope:   &langctx.Scope{Kind: "class", Name: "Loader", StartLine: 9, EndLine: 20, Text: "class Loader:\n    pass"},
	}
	ctx.Window.Lines = []string{"a", "b"}
	ctx.Window.Start = 10

	req := BuildChatPrompt(p, ctx)
	user := req.Messages[1].Content
	assert.Contains(t, user, "File content (lines 11-12):\na\nb\n")
	assert.Contains(t, user, "inside class Loader (lines 10-21):\nclass Loader:\n\n")
	assert.NotContains(t, user, "File:")
}

func TestCleanSuggestion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "x := 1", "x := 1"},
		{"fenced with language", "```go\nfunc a() {}\n```", "func a() {}"},
		{"fenced without language", "```\nb()\n```\n", "b()"},
		{"lead-in phrase", "Here is the improved code:\n```python\n    x = 1\n```\n", "    x = 1"},
		{"lead-in without fence", "Improved code:\ny = 2\n", "y = 2"},
		{"keeps first line indentation", "\n\n    return x\n", "    return x"},
		{"only lead-in falls back", "Here is the code:\n", "Here is the code:"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanSuggestion(tt.input))
		})
	}
}

func TestIsIdentical(t *testing.T) {
	assert.True(t, IsIdentical("a  b\n\tc", "a b c"))
	assert.True(t, IsIdentical("  x\n", "x"))
	assert.False(t, IsIdentical("a b", "ab"))
	assert.True(t, IsIdentical("", "  \n"))
}
