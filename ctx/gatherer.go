package ctx

import (
	"context"
	"strings"
	"sync"
	"time"

	"diffreview/logger"
)

// GatherTimeout is the maximum time allowed for a language adapter to answer
const GatherTimeout = 200 * time.Millisecond

// Scope is the innermost named construct enclosing a selection. Lines are
// 0-indexed and inclusive.
type Scope struct {
	Kind      string
	Name      string
	StartLine int
	EndLine   int
	Text      string
}

// SourceRequest contains what an adapter needs to look at a selection
type SourceRequest struct {
	FilePath  string
	FileType  string
	Content   []byte
	StartLine int
	EndLine   int
}

// Result is the gathered context for a selection
type Result struct {
	Language string
	Scope    *Scope
}

// Adapter extracts structural context for one language
type Adapter interface {
	Language() string
	EnclosingScope(ctx context.Context, req *SourceRequest) (*Scope, error)
}

// Registry selects an adapter by editor file-type tag
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	fallback Adapter
}

// NewRegistry creates a Registry with the built-in adapters
func NewRegistry() *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		fallback: plain{},
	}
	r.Register(newGoAdapter(), "go", "golang")
	r.Register(newPythonAdapter(), "python", "py")
	return r
}

// Register binds a to every tag in tags
func (r *Registry) Register(a Adapter, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tag := range tags {
		r.adapters[strings.ToLower(tag)] = a
	}
}

// For returns the adapter of fileType, or the plain-text fallback
func (r *Registry) For(fileType string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.adapters[strings.ToLower(fileType)]; ok {
		return a
	}
	return r.fallback
}

// Gather finds the enclosing scope of a selection within GatherTimeout.
// Failures only cost context, so they are logged and yield a Result
// without a Scope.
func (r *Registry) Gather(ctx context.Context, req *SourceRequest) *Result {
	a := r.For(req.FileType)
	res := &Result{Language: a.Language()}

	ctx, cancel := context.WithTimeout(ctx, GatherTimeout)
	defer cancel()

	scope, err := a.EnclosingScope(ctx, req)
	if err != nil {
		logger.Debug("ctx: %s scope for %s: %v", a.Language(), req.FilePath, err)
		return res
	}
	res.Scope = scope
	return res
}

// plain is used for file types without a parser
type plain struct{}

func (plain) Language() string { return "text" }

func (plain) EnclosingScope(context.Context, *SourceRequest) (*Scope, error) {
	return nil, nil
}
