package provider

import (
	"context"
	"errors"
	"fmt"

	"diffreview/client/openai"
	langctx "diffreview/ctx"
	"diffreview/logger"
	"diffreview/types"
	"diffreview/utils"
)

// Compile-time check that Provider implements types.Provider
var _ types.Provider = (*Provider)(nil)

// Client interface for API calls (enables mocking in tests)
type Client interface {
	DoChat(ctx context.Context, req *openai.ChatRequest) (*openai.ChatResponse, error)
}

// Context carries data through the generation pipeline
type Context struct {
	Request      *types.GenerationRequest
	Window       utils.Window
	Scope        *langctx.Scope
	Result       string
	FinishReason string
}

// Provider implements types.Provider with a configurable pipeline
type Provider struct {
	Name           string
	Config         *types.ProviderConfig
	Client         Client
	Scopes         *langctx.Registry
	Preprocessors  []Preprocessor
	PromptBuilder  PromptBuilder
	Postprocessors []Postprocessor
}

// NewProvider creates the chat-completions provider for config
func NewProvider(config *types.ProviderConfig) *Provider {
	client := openai.NewClient(config.URL, config.APIKey)
	client.Compress = config.Compress

	return &Provider{
		Name:   "openai",
		Config: config,
		Client: client,
		Scopes: langctx.NewRegistry(),
		Preprocessors: []Preprocessor{
			SkipBlankSelection(),
			TrimContent(),
			GatherScope(),
		},
		PromptBuilder: BuildChatPrompt,
		Postprocessors: []Postprocessor{
			RejectTruncated(),
			CleanResult(),
			RejectEmpty(),
			MatchTrailingNewline(),
			RejectIdentical(),
		},
	}
}

// Generate implements types.Provider
func (p *Provider) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResponse, error) {
	pctx := &Context{Request: req}

	for _, pre := range p.Preprocessors {
		if err := pre(p, pctx); err != nil {
			if errors.Is(err, ErrSkipGeneration) {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
	}

	chatReq := p.PromptBuilder(p, pctx)
	p.logRequest(chatReq)

	resp, err := p.Client.DoChat(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	if len(resp.Choices) > 0 {
		pctx.Result = resp.Choices[0].Message.Content
		pctx.FinishReason = resp.Choices[0].FinishReason
	}
	p.logResponse(pctx)

	for _, post := range p.Postprocessors {
		if err := post(p, pctx); err != nil {
			return nil, err
		}
	}

	return &types.GenerationResponse{
		Text:             pctx.Result,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (p *Provider) logRequest(req *openai.ChatRequest) {
	promptChars := 0
	for _, m := range req.Messages {
		promptChars += len(m.Content)
	}
	logger.Debug("%s provider request:\n  URL: %s%s\n  Model: %s\n  Temperature: %.2f\n  MaxTokens: %d\n  Messages: %d\n  Prompt length: %d chars",
		p.Name,
		p.Config.URL,
		openai.ChatPath,
		req.Model,
		req.Temperature,
		req.MaxTokens,
		len(req.Messages),
		promptChars)
}

func (p *Provider) logResponse(ctx *Context) {
	logger.Debug("%s provider response:\n  Text length: %d chars\n  FinishReason: %s\n  Text: %q",
		p.Name,
		len(ctx.Result),
		ctx.FinishReason,
		ctx.Result)
}
