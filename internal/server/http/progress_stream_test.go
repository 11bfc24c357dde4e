package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

// sequenceReader replays a fixed sequence of states, repeating the last one.
type sequenceReader struct {
	mu     sync.Mutex
	states []*domain.StatusReport
	errs   map[int]error
	calls  int
}

func (s *sequenceReader) GetReport(_ context.Context, _ uuid.UUID) (*domain.StatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if err, ok := s.errs[i]; ok {
		return nil, err
	}
	if i >= len(s.states) {
		i = len(s.states) - 1
	}
	return s.states[i], nil
}

func state(id uuid.UUID, st domain.Status, logs ...string) *domain.StatusReport {
	return &domain.StatusReport{ID: id, Status: st, LastUpdated: time.Now().UTC(), Logs: logs}
}

func streamEvents(t *testing.T, srv *Server, id uuid.UUID) []sseEvent {
	t.Helper()
	rr := doRequest(t, srv, http.MethodGet, "/status/"+id.String()+"/stream", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rr.Header().Get("Cache-Control"))

	var out []sseEvent
	for _, raw := range parseSSEEvents(t, rr.Body.String()) {
		var ev sseEvent
		require.NoError(t, json.Unmarshal([]byte(raw.data), &ev))
		assert.Equal(t, raw.eventType, ev.EventType)
		out = append(out, ev)
	}
	return out
}

func TestStreamProgress_FollowsUntilCompleted(t *testing.T) {
	id := uuid.New()
	done := state(id, domain.StatusCompleted, "Resolving companies", "Scoring", "Done")
	done.Report = &domain.ScreenerReport{
		ThemeScoring: map[string]domain.CompanyScoring{"Acme": {CompositeScore: 3}},
		Content:      []domain.LabeledChunk{},
	}
	reader := &sequenceReader{states: []*domain.StatusReport{
		state(id, domain.StatusQueued),
		state(id, domain.StatusInProgress, "Resolving companies"),
		state(id, domain.StatusInProgress, "Resolving companies"),
		state(id, domain.StatusInProgress, "Resolving companies", "Scoring"),
		done,
	}}
	srv := newTestServer(Config{StreamInterval: 5 * time.Millisecond}, Dependencies{Statuses: reader})

	events := streamEvents(t, srv, id)

	require.Len(t, events, 4, "unchanged polls must not emit events")
	assert.Equal(t, sseEventStatus, events[0].EventType)
	assert.Equal(t, domain.StatusQueued, events[0].Status)
	assert.Empty(t, events[0].Logs)

	assert.Equal(t, domain.StatusInProgress, events[1].Status)
	assert.Equal(t, []string{"Resolving companies"}, events[1].Logs)

	assert.Equal(t, []string{"Scoring"}, events[2].Logs)
	assert.Equal(t, 2, events[2].LogCount)

	last := events[3]
	assert.Equal(t, sseEventCompleted, last.EventType)
	assert.Equal(t, []string{"Done"}, last.Logs)
	assert.Equal(t, 3, last.LogCount)
	require.NotNil(t, last.Report)
	assert.Equal(t, 3, last.Report.ThemeScoring["Acme"].CompositeScore)
}

func TestStreamProgress_TerminalSendsSingleEvent(t *testing.T) {
	id := uuid.New()
	reader := &sequenceReader{states: []*domain.StatusReport{
		state(id, domain.StatusFailed, "Workflow failed: no companies"),
	}}
	srv := newTestServer(Config{StreamInterval: 5 * time.Millisecond}, Dependencies{Statuses: reader})

	events := streamEvents(t, srv, id)

	require.Len(t, events, 1)
	assert.Equal(t, sseEventFailed, events[0].EventType)
	assert.Equal(t, []string{"Workflow failed: no companies"}, events[0].Logs)
	assert.Nil(t, events[0].Report)
}

func TestStreamProgress_PollErrorsAreSkipped(t *testing.T) {
	id := uuid.New()
	reader := &sequenceReader{
		states: []*domain.StatusReport{
			state(id, domain.StatusInProgress),
			state(id, domain.StatusInProgress),
			state(id, domain.StatusCompleted, "Done"),
		},
		errs: map[int]error{1: errors.New("temporary failure")},
	}
	srv := newTestServer(Config{StreamInterval: 5 * time.Millisecond}, Dependencies{Statuses: reader})

	events := streamEvents(t, srv, id)

	require.Len(t, events, 2)
	assert.Equal(t, sseEventCompleted, events[1].EventType)
}

func TestStreamProgress_NotFound(t *testing.T) {
	srv := newTestServer(Config{}, Dependencies{})

	for _, target := range []string{uuid.NewString(), "not-a-uuid"} {
		rr := doRequest(t, srv, http.MethodGet, "/status/"+target+"/stream", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "request not found", decodeBody(t, rr)["error"])
	}
}

func TestStreamProgress_StopsOnClientDisconnect(t *testing.T) {
	id := uuid.New()
	reader := &sequenceReader{states: []*domain.StatusReport{state(id, domain.StatusInProgress)}}
	srv := newTestServer(Config{StreamInterval: 5 * time.Millisecond}, Dependencies{Statuses: reader})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/status/"+id.String()+"/stream", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	finished := make(chan struct{})
	go func() {
		srv.Handler().ServeHTTP(rr, req)
		close(finished)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after the client went away")
	}
}

func TestEventTypeFor(t *testing.T) {
	assert.Equal(t, sseEventStatus, eventTypeFor(domain.StatusQueued))
	assert.Equal(t, sseEventStatus, eventTypeFor(domain.StatusInProgress))
	assert.Equal(t, sseEventCompleted, eventTypeFor(domain.StatusCompleted))
	assert.Equal(t, sseEventFailed, eventTypeFor(domain.StatusFailed))
}

func TestSendSSEEvent(t *testing.T) {
	rr := httptest.NewRecorder()
	sendSSEEvent(rr, rr, sseEvent{EventType: sseEventStatus, RequestID: "abc", Logs: []string{}})

	body := rr.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: status\ndata: {"))
	assert.True(t, strings.HasSuffix(body, "\n\n"))
	assert.True(t, rr.Flushed)
}

// ---------------------------------------------------------------------------
// SSE parsing helper
// ---------------------------------------------------------------------------

type parsedSSEEvent struct {
	eventType string
	data      string
}

// parseSSEEvents parses SSE-formatted text into individual events.
func parseSSEEvents(t *testing.T, body string) []parsedSSEEvent {
	t.Helper()
	var events []parsedSSEEvent
	var current parsedSSEEvent

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Empty line = event boundary.
			if current.eventType != "" || current.data != "" {
				events = append(events, current)
				current = parsedSSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			current.eventType = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			current.data = strings.TrimPrefix(line, "data: ")
		}
	}

	if current.eventType != "" || current.data != "" {
		events = append(events, current)
	}

	return events
}
