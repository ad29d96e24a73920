package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diffreview/buffer"
	"diffreview/review"
)

type collector struct {
	mu     sync.Mutex
	events []MetricsRequest
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req MetricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	c.events = append(c.events, req)
	c.mu.Unlock()
}

func (c *collector) byType(event string) []MetricsRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []MetricsRequest
	for _, e := range c.events {
		if e.EventType == event {
			out = append(out, e)
		}
	}
	return out
}

func openSession(t *testing.T) *review.Session {
	t.Helper()
	buf := buffer.NewText("a\nb\nc\nd")
	s, err := review.Begin(buf, "a\nb\nc\nd", "A\nb\nc\nD\nE", review.Span{Start: 0, End: 7})
	require.NoError(t, err)
	return s
}

func TestTrackerPostsEvents(t *testing.T) {
	c := &collector{}
	server := httptest.NewServer(c)
	defer server.Close()

	tracker := NewTracker(server.URL, t.TempDir())
	s := openSession(t)

	tracker.TrackShown(s)
	out, err := s.Accept(0)
	require.NoError(t, err)
	tracker.TrackOutcomes(s, out)
	res, err := s.RejectAll()
	require.NoError(t, err)
	tracker.TrackOutcomes(s, res.Outcomes...)
	tracker.Flush()

	assert.Len(t, c.byType(EventShown), 2)
	accepted := c.byType(EventAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, s.ID, accepted[0].SessionID)
	assert.Equal(t, 0, accepted[0].Chunk)
	assert.Equal(t, "none", accepted[0].Recovery)
	assert.NotNil(t, accepted[0].Lifespan)

	rejected := c.byType(EventRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, 1, rejected[0].Chunk)
	assert.Equal(t, 2, rejected[0].Additions)
	assert.Equal(t, 1, rejected[0].Deletions)

	assert.Equal(t, Counts{Shown: 2, Accepted: 1, Rejected: 1, LinesAccepted: 1, LinesRejected: 2}, tracker.Counts())
}

func TestTrackerIgnoresAlreadyResolved(t *testing.T) {
	tracker := NewTracker("", "")
	s := openSession(t)

	out, err := s.Accept(0)
	require.NoError(t, err)
	tracker.TrackOutcomes(s, out)
	again, err := s.Accept(0)
	require.NoError(t, err)
	require.True(t, again.Already)
	tracker.TrackOutcomes(s, again)

	assert.Equal(t, 1, tracker.Counts().Accepted)
}

func TestDeviceIDPersisted(t *testing.T) {
	dir := t.TempDir()
	first := loadOrCreateDeviceID(dir)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, loadOrCreateDeviceID(dir))
	assert.NotEqual(t, loadOrCreateDeviceID(""), loadOrCreateDeviceID(""))
}
