package engine

import (
	"context"
	"sync"
	"time"

	"diffreview/types"
)

// --- Mock implementations ---

// mockProvider implements types.Provider. reply decides each response;
// without it the selection is echoed back upper-cased on its first line.
type mockProvider struct {
	mu       sync.Mutex
	calls    int
	requests []*types.GenerationRequest
	reply    func(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResponse, error)
}

func (p *mockProvider) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResponse, error) {
	p.mu.Lock()
	p.calls++
	p.requests = append(p.requests, req)
	reply := p.reply
	p.mu.Unlock()

	if reply != nil {
		return reply(ctx, req)
	}
	return &types.GenerationResponse{Text: req.Selected}, nil
}

func (p *mockProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *mockProvider) lastRequest() *types.GenerationRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}

// mockClock implements Clock for testing
type mockClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Unix(0, 0)}
}

func (c *mockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &mockTimer{fireTime: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves time forward and runs every timer that became due
func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var toFire []*mockTimer
	for _, t := range c.timers {
		if !t.fireTime.After(c.now) {
			toFire = append(toFire, t)
		}
	}
	c.mu.Unlock()

	for _, t := range toFire {
		t.fire()
	}
}

type mockTimer struct {
	mu       sync.Mutex
	fireTime time.Time
	f        func()
	stopped  bool
}

func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

func (t *mockTimer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	f := t.f
	t.mu.Unlock()
	if f != nil {
		f()
	}
}

// --- Helper functions ---

func createTestEngine(prov *mockProvider, clock *mockClock) *Engine {
	return NewEngine(prov, EngineConfig{
		RequestTimeout: 5 * time.Second,
		TriggerDelay:   500 * time.Millisecond,
	}, clock)
}
