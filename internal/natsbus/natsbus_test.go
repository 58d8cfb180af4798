package natsbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mtzanidakis/apiary/internal/config"
	"github.com/nats-io/nats.go"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := New(config.NATSConfig{
		Port:    0, // Random port
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(bus.Close)
	return bus
}

func TestBusStartStop(t *testing.T) {
	bus := newTestBus(t)

	if bus.ClientURL() == "" {
		t.Fatal("expected non-empty client URL")
	}
}

func TestPubSub(t *testing.T) {
	bus := newTestBus(t)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	_, err = client.Subscribe("test.topic", func(msg *nats.Msg) {
		received <- string(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.Publish("test.topic", []byte("hello")); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if data != "hello" {
			t.Errorf("expected 'hello', got '%s'", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSinkEmit(t *testing.T) {
	bus := newTestBus(t)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan []byte, 1)
	_, err = client.Subscribe(TopicEventsAll, func(msg *nats.Msg) {
		received <- msg.Data
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	sink := NewSink(client)
	sink.Emit("swarm.initialized", map[string]any{"swarm_id": "sw1"})
	client.Flush()

	select {
	case data := <-received:
		var event struct {
			Type      string         `json:"type"`
			Timestamp string         `json:"timestamp"`
			Data      map[string]any `json:"data"`
		}
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != "swarm.initialized" {
			t.Errorf("expected swarm.initialized, got %s", event.Type)
		}
		if event.Data["swarm_id"] != "sw1" {
			t.Errorf("expected swarm_id sw1, got %v", event.Data["swarm_id"])
		}
		if event.Timestamp == "" {
			t.Error("expected a timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestSinkNilSafe(t *testing.T) {
	// A nil sink (or one without a client) is a silent no-op so callers
	// never guard their Emit calls.
	var sink *Sink
	sink.Emit("swarm.initialized", nil)

	NewSink(nil).Emit("swarm.initialized", nil)
}

func TestTopicNames(t *testing.T) {
	if got := TopicEvent("task.completed"); got != "events.task.completed" {
		t.Errorf("expected events.task.completed, got %s", got)
	}
	if TopicEventsAll != "events.>" {
		t.Errorf("unexpected wildcard topic %s", TopicEventsAll)
	}
	if TopicIPC != "apiary.ipc" {
		t.Errorf("unexpected ipc topic %s", TopicIPC)
	}
}
