package natsbus

// Topic scheme for NATS pub/sub communication.

// TopicEvent maps a lifecycle event name (e.g. "swarm.initialized") to
// its publish topic.
func TopicEvent(event string) string {
	return "events." + event
}

const (
	// TopicEventsAll subscribes to every lifecycle event.
	TopicEventsAll = "events.>"

	// TopicIPC carries command-surface request/reply traffic.
	TopicIPC = "apiary.ipc"
)
