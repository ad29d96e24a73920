package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"diffreview/logger"
	"diffreview/review"
	"diffreview/text"
	"diffreview/types"
)

// RequestParams describes one generation for a region of a buffer
type RequestParams struct {
	BufferID  string
	Buffer    review.Buffer
	FilePath  string
	FileType  string
	Selection review.Span
	Mode      types.Mode

	// Done receives the outcome of a scheduled request
	Done func(*review.Session, error)
}

// Request asks the provider for a proposal for the selection and opens a
// review session with it. A newer request for the same region cancels this
// one, in which case ErrStaleResult is returned and nothing is applied.
func (e *Engine) Request(ctx context.Context, p RequestParams) (*review.Session, error) {
	defer logger.Trace("engine.Request")()

	content, err := p.Buffer.Text()
	if err != nil {
		return nil, fmt.Errorf("read buffer: %w", err)
	}
	sel := p.Selection
	if sel.Start < 0 || sel.End < sel.Start || sel.End > len(content) {
		return nil, fmt.Errorf("%w: selection [%d,%d) in buffer of %d bytes", review.ErrSpanInvalid, sel.Start, sel.End, len(content))
	}
	selected := content[sel.Start:sel.End]

	req := &types.GenerationRequest{
		FilePath: p.FilePath,
		FileType: p.FileType,
		Lines:    text.SplitLines(content),
		Range:    selectionRange(content, sel),
		Selected: selected,
		Mode:     p.Mode,
	}

	key := regionKey(p.BufferID, sel)
	reqCtx, done, seq, err := e.track(ctx, key, p.BufferID, p.Buffer)
	if err != nil {
		return nil, err
	}
	defer done()

	resp, err := e.provider.Generate(reqCtx, req)
	if !e.finish(key, seq) {
		logger.Debug("engine: discarding superseded result for %s", key)
		return nil, ErrStaleResult
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("engine: generation for %s cancelled", key)
			return nil, fmt.Errorf("%w: %v", ErrStaleResult, err)
		}
		if errors.Is(err, review.ErrNothingToReview) {
			logger.Debug("engine: nothing to review for %s: %v", key, err)
			return nil, err
		}
		logger.Error("engine: generation for %s failed: %v", key, err)
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	// The selection may have been edited while waiting
	now, err := p.Buffer.Text()
	if err != nil {
		return nil, fmt.Errorf("read buffer: %w", err)
	}
	if sel.End > len(now) || now[sel.Start:sel.End] != selected {
		logger.Debug("engine: selection %s changed during generation", key)
		return nil, ErrStaleResult
	}

	return e.begin(p.BufferID, p.Buffer, selected, resp.Text, sel)
}

// Schedule runs Request after delay, replacing any previously scheduled
// request. A delay of zero uses the configured trigger delay.
func (e *Engine) Schedule(delay time.Duration, p RequestParams) *Handle {
	if delay <= 0 {
		delay = e.config.TriggerDelay
	}
	return e.debouncer.Schedule(delay, func() {
		s, err := e.Request(e.mainCtx, p)
		if err != nil && !errors.Is(err, ErrStaleResult) {
			logger.Warn("engine: scheduled request: %v", err)
		}
		if p.Done != nil {
			p.Done(s, err)
		}
	})
}

// CancelRequest cancels the in-flight generation for a region, if any
func (e *Engine) CancelRequest(bufferID string, sel review.Span) bool {
	key := regionKey(bufferID, sel)
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.inflight[key]
	if !ok {
		return false
	}
	p.cancel()
	delete(e.inflight, key)
	return true
}

// track registers a new generation for key, cancelling the previous one.
// A buffer that is already under review gets no generation.
func (e *Engine) track(ctx context.Context, key, bufferID string, buf review.Buffer) (context.Context, func(), uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return nil, nil, 0, ErrStopped
	}
	if err := e.checkFreeLocked(bufferID, buf); err != nil {
		return nil, nil, 0, err
	}
	if prev, ok := e.inflight[key]; ok {
		prev.cancel()
		logger.Debug("engine: superseding generation for %s", key)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	stop := context.AfterFunc(e.mainCtx, cancel)
	e.seq++
	e.inflight[key] = &pending{seq: e.seq, cancel: cancel}

	return reqCtx, func() {
		stop()
		cancel()
	}, e.seq, nil
}

// finish reports whether generation seq is still the current one for key
func (e *Engine) finish(key string, seq uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.inflight[key]
	if !ok || p.seq != seq {
		return false
	}
	delete(e.inflight, key)
	return true
}

func selectionRange(content string, sel review.Span) types.Range {
	startLine := strings.Count(content[:sel.Start], "\n")
	selected := content[sel.Start:sel.End]
	endLine := startLine + strings.Count(selected, "\n")
	if strings.HasSuffix(selected, "\n") {
		endLine--
	}
	return types.Range{
		StartLine:   startLine,
		EndLine:     max(endLine, startLine),
		StartOffset: sel.Start,
		EndOffset:   sel.End,
	}
}
