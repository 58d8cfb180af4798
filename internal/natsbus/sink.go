package natsbus

import (
	"log/slog"
	"time"
)

// Sink publishes lifecycle events to the bus. Publishing is
// fire-and-forget: a NATS publish buffers locally and never waits for
// subscribers, so emission cannot block scheduling progress.
type Sink struct {
	client *Client
}

func NewSink(client *Client) *Sink {
	return &Sink{client: client}
}

func (s *Sink) Emit(event string, fields map[string]any) {
	if s == nil || s.client == nil {
		return
	}

	payload := map[string]any{
		"type":      event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      fields,
	}
	if err := s.client.PublishJSON(TopicEvent(event), payload); err != nil {
		slog.Warn("event publish failed", "event", event, "error", err)
	}
}
