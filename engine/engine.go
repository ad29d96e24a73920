package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"diffreview/logger"
	"diffreview/review"
	"diffreview/types"
)

var (
	// ErrSessionNotFound is returned for an unknown or finished session id
	ErrSessionNotFound = errors.New("session not found")

	// ErrStaleResult is returned when a generation finished after it was
	// superseded or cancelled. Its proposal is discarded.
	ErrStaleResult = errors.New("generation result is stale")

	// ErrSessionActive is returned when a buffer is already under review
	ErrSessionActive = errors.New("buffer already under review")

	// ErrStopped is returned once the engine has been stopped
	ErrStopped = errors.New("engine stopped")
)

type EngineConfig struct {
	RequestTimeout time.Duration
	TriggerDelay   time.Duration
}

// entry is a live session together with the buffer it edits
type entry struct {
	session  *review.Session
	bufferID string
	buf      review.Buffer
}

// pending is the in-flight generation of one region
type pending struct {
	seq    uint64
	cancel context.CancelFunc
}

// Engine owns review sessions and the generations that start them. Each
// session serializes its own buffer edits; the engine mutex guards the
// session and request tables.
type Engine struct {
	provider  types.Provider
	clock     Clock
	config    EngineConfig
	debouncer *Debouncer

	mu       sync.Mutex
	sessions map[string]*entry
	inflight map[string]*pending
	seq      uint64

	// Main context and cancel for the engine lifecycle
	mainCtx    context.Context
	mainCancel context.CancelFunc
	stopped    bool
	stopOnce   sync.Once
}

func NewEngine(provider types.Provider, config EngineConfig, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	mainCtx, mainCancel := context.WithCancel(context.Background())
	return &Engine{
		provider:   provider,
		clock:      clock,
		config:     config,
		debouncer:  NewDebouncer(clock),
		sessions:   make(map[string]*entry),
		inflight:   make(map[string]*pending),
		mainCtx:    mainCtx,
		mainCancel: mainCancel,
	}
}

// Stop cancels every in-flight generation and closes every open session.
// Closing rejects what is still unresolved, leaving the original text.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		logger.Info("stopping engine...")
		e.debouncer.Stop()

		e.mu.Lock()
		e.stopped = true
		e.mainCancel()
		for key, p := range e.inflight {
			p.cancel()
			delete(e.inflight, key)
		}
		open := make([]*review.Session, 0, len(e.sessions))
		for id, ent := range e.sessions {
			open = append(open, ent.session)
			delete(e.sessions, id)
		}
		e.mu.Unlock()

		for _, s := range open {
			if _, err := s.Close(); err != nil {
				logger.Warn("closing session %s: %v", s.ID, err)
			}
		}
		logger.Info("engine stopped")
	})
}

// BeginSession opens a review of modified over selection in buf. original
// is the text of the selection the proposal was made for.
func (e *Engine) BeginSession(buf review.Buffer, original, modified string, selection review.Span) (*review.Session, error) {
	return e.begin("", buf, original, modified, selection)
}

// begin opens a session unless buf already has one. Sessions each track
// only their own edits, so two of them on one buffer would shift each
// other's spans unseen.
func (e *Engine) begin(bufferID string, buf review.Buffer, original, modified string, selection review.Span) (*review.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return nil, ErrStopped
	}
	if err := e.checkFreeLocked(bufferID, buf); err != nil {
		return nil, err
	}

	s, err := review.Begin(buf, original, modified, selection)
	if err != nil {
		return nil, err
	}
	e.sessions[s.ID] = &entry{session: s, bufferID: bufferID, buf: buf}
	return s, nil
}

// checkFreeLocked fails with ErrSessionActive when a session is open on the
// buffer named bufferID or on buf itself. e.mu must be held.
func (e *Engine) checkFreeLocked(bufferID string, buf review.Buffer) error {
	for _, ent := range e.sessions {
		if (bufferID != "" && ent.bufferID == bufferID) || sameBuffer(ent.buf, buf) {
			return fmt.Errorf("%w: session %s", ErrSessionActive, ent.session.ID)
		}
	}
	return nil
}

func sameBuffer(a, b review.Buffer) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	return ta == tb && ta.Comparable() && a == b
}

// Session returns the open session id
func (e *Engine) Session(id string) (*review.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return ent.session, nil
}

// Sessions returns the ids of every open session, sorted
func (e *Engine) Sessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// forget drops s from the table once it has finished
func (e *Engine) forget(s *review.Session) {
	if !s.Closed() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[s.ID]; ok {
		delete(e.sessions, s.ID)
		logger.Debug("engine: session %s removed", s.ID)
	}
}

func (e *Engine) Accept(id string, index int) (review.Outcome, error) {
	return e.resolve(id, index, true)
}

func (e *Engine) Reject(id string, index int) (review.Outcome, error) {
	return e.resolve(id, index, false)
}

func (e *Engine) resolve(id string, index int, accept bool) (review.Outcome, error) {
	s, err := e.Session(id)
	if err != nil {
		return review.Outcome{}, err
	}
	defer e.forget(s)
	if accept {
		return s.Accept(index)
	}
	return s.Reject(index)
}

func (e *Engine) AcceptAll(id string) (review.BulkResult, error) {
	s, err := e.Session(id)
	if err != nil {
		return review.BulkResult{}, err
	}
	defer e.forget(s)
	return s.AcceptAll()
}

func (e *Engine) RejectAll(id string) (review.BulkResult, error) {
	s, err := e.Session(id)
	if err != nil {
		return review.BulkResult{}, err
	}
	defer e.forget(s)
	return s.RejectAll()
}

// Close ends session id, rejecting its unresolved chunks
func (e *Engine) Close(id string) (review.BulkResult, error) {
	s, err := e.Session(id)
	if err != nil {
		return review.BulkResult{}, err
	}
	defer e.forget(s)
	return s.Close()
}

// Next moves to the next chunk of session id and returns its index
func (e *Engine) Next(id string) (int, error) {
	s, err := e.Session(id)
	if err != nil {
		return -1, err
	}
	return s.Next()
}

// Previous moves to the previous chunk of session id and returns its index
func (e *Engine) Previous(id string) (int, error) {
	s, err := e.Session(id)
	if err != nil {
		return -1, err
	}
	return s.Previous()
}

func (e *Engine) Status(id string) (review.Status, error) {
	s, err := e.Session(id)
	if err != nil {
		return review.Status{}, err
	}
	return s.Status(), nil
}

func (e *Engine) Annotations(id string) ([]review.Annotation, error) {
	s, err := e.Session(id)
	if err != nil {
		return nil, err
	}
	return s.Annotations(), nil
}

// CurrentOffset is the scroll target of session id, -1 when there is none
func (e *Engine) CurrentOffset(id string) (int, error) {
	s, err := e.Session(id)
	if err != nil {
		return -1, err
	}
	return s.CurrentOffset(), nil
}

func regionKey(bufferID string, sel review.Span) string {
	return fmt.Sprintf("%s:%d-%d", bufferID, sel.Start, sel.End)
}
