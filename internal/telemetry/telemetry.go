// Package telemetry sends best-effort usage events.
//
// Events go to one or more sinks: the Bigdata tracking API and an optional
// Kafka topic. Sink failures are logged at debug level and dropped, so a
// broken sink never affects a screening request.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Event names reported by the service.
const (
	EventServiceStart    = "onPremThematicScreenerServiceStart"
	EventReportGenerated = "onPremThematicScreenerReportGenerated"
)

// DefaultSendTimeout bounds each sink call.
const DefaultSendTimeout = 5 * time.Second

// Event is a single usage event.
type Event struct {
	// Name is one of the Event* constants.
	Name string `json:"event_name"`
	// Key groups related events, e.g. the request ID. May be empty.
	Key string `json:"key,omitempty"`
	// Properties are free-form event attributes.
	Properties map[string]any `json:"properties"`
	// OccurredAt is when the event happened.
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink delivers events somewhere.
type Sink interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

// Tracker fans events out to every sink. A nil *Tracker discards events.
type Tracker struct {
	sinks   []Sink
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewTracker creates a Tracker over sinks.
func NewTracker(logger zerolog.Logger, sinks ...Sink) *Tracker {
	return &Tracker{
		sinks:   sinks,
		timeout: DefaultSendTimeout,
		logger:  logger.With().Str("component", "telemetry").Logger(),
		now:     time.Now,
	}
}

// Track sends event to every sink. It never fails.
func (t *Tracker) Track(ctx context.Context, event Event) {
	if t == nil || len(t.sinks) == 0 {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = t.now().UTC()
	}
	if event.Properties == nil {
		event.Properties = map[string]any{}
	}

	for _, sink := range t.sinks {
		sendCtx, cancel := context.WithTimeout(ctx, t.timeout)
		err := sink.Send(sendCtx, event)
		cancel()
		if err != nil {
			t.logger.Debug().Err(err).
				Str("event", event.Name).
				Msg("telemetry event dropped")
		}
	}
}

// Close closes every sink.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	var errs []error
	for _, sink := range t.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
