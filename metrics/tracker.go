package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"diffreview/logger"
	"diffreview/review"
)

const (
	EventShown    = "review_chunk_shown"
	EventAccepted = "review_chunk_accepted"
	EventRejected = "review_chunk_rejected"
)

type MetricsRequest struct {
	EventType string `json:"event_type"`
	SessionID string `json:"session_id"`
	Chunk     int    `json:"chunk"`
	Kind      string `json:"kind"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Recovery  string `json:"recovery,omitempty"`
	Lifespan  *int64 `json:"lifespan"`
	DeviceID  string `json:"device_id"`
}

// Counts are the totals seen by a tracker since it was created
type Counts struct {
	Shown         int
	Accepted      int
	Rejected      int
	LinesAccepted int
	LinesRejected int
}

// MetricsTracker records review outcomes. Events are always counted and
// are posted to url when one is configured.
type MetricsTracker struct {
	url        string
	deviceID   string
	httpClient *http.Client

	mu      sync.Mutex
	counts  Counts
	shownAt map[string]time.Time
	wg      sync.WaitGroup
}

func NewTracker(url, dataDir string) *MetricsTracker {
	return &MetricsTracker{
		url:        url,
		deviceID:   loadOrCreateDeviceID(dataDir),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		shownAt:    make(map[string]time.Time),
	}
}

// TrackShown records every chunk of a freshly opened session
func (t *MetricsTracker) TrackShown(s *review.Session) {
	chunks := s.Chunks()

	t.mu.Lock()
	t.shownAt[s.ID] = time.Now()
	t.counts.Shown += len(chunks)
	t.mu.Unlock()

	for _, c := range chunks {
		t.sendRequest(&MetricsRequest{
			EventType: EventShown,
			SessionID: s.ID,
			Chunk:     c.Index,
			Kind:      c.Delta.Kind.String(),
			Additions: c.Delta.Target.Count,
			Deletions: c.Delta.Source.Count,
			DeviceID:  t.deviceID,
		})
	}
}

// TrackOutcomes records the decisions reported by a session operation.
// Outcomes for chunks that were already resolved are ignored.
func (t *MetricsTracker) TrackOutcomes(s *review.Session, outcomes ...review.Outcome) {
	chunks := s.Chunks()
	closed := s.Closed()

	t.mu.Lock()
	var lifespan *int64
	if shown, ok := t.shownAt[s.ID]; ok {
		ms := time.Since(shown).Milliseconds()
		lifespan = &ms
		if closed {
			delete(t.shownAt, s.ID)
		}
	}
	var reqs []*MetricsRequest
	for _, out := range outcomes {
		if out.Already || out.Index < 0 || out.Index >= len(chunks) {
			continue
		}
		c := chunks[out.Index]
		event := EventRejected
		if out.State == review.StateAccepted {
			event = EventAccepted
			t.counts.Accepted++
			t.counts.LinesAccepted += c.Delta.Target.Count
		} else {
			t.counts.Rejected++
			t.counts.LinesRejected += c.Delta.Target.Count
		}
		reqs = append(reqs, &MetricsRequest{
			EventType: event,
			SessionID: s.ID,
			Chunk:     c.Index,
			Kind:      c.Delta.Kind.String(),
			Additions: c.Delta.Target.Count,
			Deletions: c.Delta.Source.Count,
			Recovery:  out.Recovery.String(),
			Lifespan:  lifespan,
			DeviceID:  t.deviceID,
		})
	}
	t.mu.Unlock()

	for _, req := range reqs {
		t.sendRequest(req)
	}
}

// Counts returns the totals recorded so far
func (t *MetricsTracker) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts
}

// Flush waits for posts in flight
func (t *MetricsTracker) Flush() {
	t.wg.Wait()
}

func (t *MetricsTracker) sendRequest(req *MetricsRequest) {
	if t.url == "" {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		body, err := json.Marshal(req)
		if err != nil {
			logger.Debug("metrics: marshal error: %v", err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
		if err != nil {
			logger.Debug("metrics: create request error: %v", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := t.httpClient.Do(httpReq)
		if err != nil {
			logger.Debug("metrics: send error: %v", err)
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 400 {
			logger.Debug("metrics: server returned %d for %s", resp.StatusCode, req.EventType)
		} else {
			logger.Debug("metrics: sent %s (session=%s chunk=%d)", req.EventType, req.SessionID, req.Chunk)
		}
	}()
}

func loadOrCreateDeviceID(dataDir string) string {
	if dataDir == "" {
		return uuid.NewString()
	}

	idPath := filepath.Join(dataDir, "device_id")

	data, err := os.ReadFile(idPath)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Warn("metrics: could not create data dir %s: %v", dataDir, err)
		return id
	}
	if err := os.WriteFile(idPath, []byte(id), 0644); err != nil {
		logger.Warn("metrics: could not write device_id: %v", err)
	}
	return id
}
