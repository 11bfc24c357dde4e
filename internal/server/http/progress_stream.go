package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

const (
	// sseQueryInterval is how often the status store is polled.
	sseQueryInterval = time.Second
	// sseMaxDuration is the maximum time an SSE stream may remain open.
	sseMaxDuration = 4 * time.Hour
)

// SSE event types.
const (
	sseEventStatus    = "status"
	sseEventCompleted = "completed"
	sseEventFailed    = "failed"
	sseEventTimeout   = "timeout"
)

// sseEvent represents an event sent via SSE. Logs holds only the lines
// appended since the previous event.
type sseEvent struct {
	EventType   string                 `json:"event_type"`
	RequestID   string                 `json:"request_id"`
	Status      domain.Status          `json:"status,omitempty"`
	LastUpdated time.Time              `json:"last_updated"`
	Logs        []string               `json:"logs"`
	LogCount    int                    `json:"log_count"`
	Report      *domain.ScreenerReport `json:"report,omitempty"`
}

// streamProgress handles GET /status/{requestID}/stream (SSE).
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(w, chi.URLParam(r, "requestID"))
	if !ok {
		return
	}

	current, err := s.statuses.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgRequestNotFound)
			return
		}
		writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The server write timeout would cut long analyses short.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sent := 0
	lastStatus := current.Status
	sent = s.emitState(w, flusher, current, sent)
	if current.Status.IsTerminal() {
		return
	}

	ctx := r.Context()
	deadlineTimer := time.NewTimer(sseMaxDuration)
	defer deadlineTimer.Stop()
	ticker := time.NewTicker(s.cfg.StreamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-deadlineTimer.C:
			sendSSEEvent(w, flusher, sseEvent{
				EventType:   sseEventTimeout,
				RequestID:   id.String(),
				LastUpdated: time.Now().UTC(),
				Logs:        []string{},
				LogCount:    sent,
			})
			return

		case <-ticker.C:
			next, pollErr := s.statuses.GetReport(ctx, id)
			if pollErr != nil {
				s.logger.Error().Err(pollErr).Str("request_id", id.String()).Msg("failed to poll screening status")
				continue
			}

			if next.Status == lastStatus && len(next.Logs) == sent {
				continue
			}
			lastStatus = next.Status
			sent = s.emitState(w, flusher, next, sent)
			if next.Status.IsTerminal() {
				return
			}
		}
	}
}

// emitState writes one event for sr, carrying the log lines after index sent.
// It returns the new number of lines delivered.
func (s *Server) emitState(w http.ResponseWriter, flusher http.Flusher, sr *domain.StatusReport, sent int) int {
	if sent > len(sr.Logs) {
		sent = len(sr.Logs)
	}
	fresh := make([]string, len(sr.Logs)-sent)
	copy(fresh, sr.Logs[sent:])

	event := sseEvent{
		EventType:   eventTypeFor(sr.Status),
		RequestID:   sr.ID.String(),
		Status:      sr.Status,
		LastUpdated: sr.LastUpdated,
		Logs:        fresh,
		LogCount:    len(sr.Logs),
	}
	if sr.Status == domain.StatusCompleted {
		event.Report = sr.Report
	}
	sendSSEEvent(w, flusher, event)
	return len(sr.Logs)
}

// eventTypeFor maps a lifecycle status to its SSE event type.
func eventTypeFor(status domain.Status) string {
	switch status {
	case domain.StatusCompleted:
		return sseEventCompleted
	case domain.StatusFailed:
		return sseEventFailed
	default:
		return sseEventStatus
	}
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}
