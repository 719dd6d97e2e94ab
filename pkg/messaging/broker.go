package messaging

import (
	"context"
	"strings"
)

// Broker publishes integration events to an external bus.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	Close() error
}

// Topic joins prefix and an event type ("clinic.called") with sep. MQTT
// brokers use "/", Redis channels ".".
func Topic(prefix, eventType, sep string) string {
	name := eventType
	if sep != "." {
		name = strings.ReplaceAll(eventType, ".", sep)
	}
	if prefix == "" {
		return name
	}
	return prefix + sep + name
}
