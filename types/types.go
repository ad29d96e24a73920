package types

import "context"

// Range is a selected region of a file. Lines are 0-indexed and inclusive,
// offsets are byte offsets into the file text (end exclusive).
type Range struct {
	StartLine   int
	EndLine     int
	StartOffset int
	EndOffset   int
}

// Lines returns the number of lines covered by the range
func (r Range) Lines() int {
	if r.EndLine < r.StartLine {
		return 0
	}
	return r.EndLine - r.StartLine + 1
}

// Mode decides what the generation service is asked to do with a selection
type Mode string

const (
	ModeImprove Mode = "improve"
	ModeComment Mode = "comment"
)

// ParseMode maps a user supplied name to a Mode, defaulting to ModeImprove
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeComment:
		return ModeComment
	default:
		return ModeImprove
	}
}

// GenerationRequest contains everything a provider needs to propose a
// replacement for the selected text
type GenerationRequest struct {
	FilePath string
	FileType string // editor filetype tag, e.g. "go" or "python"
	Lines    []string
	Range    Range
	Selected string
	Mode     Mode
}

// GenerationResponse is the proposal for a GenerationRequest
type GenerationResponse struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Provider proposes replacement text for a selection
type Provider interface {
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error)
}

// ProviderConfig holds the settings for the generation service
type ProviderConfig struct {
	URL              string  `json:"url" yaml:"url"`
	APIKey           string  `json:"api_key" yaml:"api_key"`
	Model            string  `json:"model" yaml:"model"`
	Temperature      float64 `json:"temperature" yaml:"temperature"`
	MaxTokens        int     `json:"max_tokens" yaml:"max_tokens"`
	MaxContextTokens int     `json:"max_context_tokens" yaml:"max_context_tokens"`
	Compress         bool    `json:"compress" yaml:"compress"`
}
