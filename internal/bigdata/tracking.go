package bigdata

import (
	"context"
	"net/http"
)

// TraceEvent is a usage tracking event.
type TraceEvent struct {
	EventName  string         `json:"event_name"`
	Properties map[string]any `json:"properties"`
}

// SendTrace posts a usage tracking event.
func (c *Client) SendTrace(ctx context.Context, event TraceEvent) error {
	if event.Properties == nil {
		event.Properties = map[string]any{}
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/v1/tracking/events", event)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}
