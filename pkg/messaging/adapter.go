package messaging

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Fanout publishes every message to all of its brokers. A publish fails
// when any broker fails; the others still receive the message.
type Fanout struct {
	brokers []Broker
}

func NewFanout(brokers ...Broker) *Fanout {
	var live []Broker
	for _, b := range brokers {
		if b != nil {
			live = append(live, b)
		}
	}
	return &Fanout{brokers: live}
}

func (f *Fanout) Len() int { return len(f.brokers) }

func (f *Fanout) Publish(ctx context.Context, topic string, payload []byte) error {
	var errs []error
	for i, b := range f.brokers {
		if err := b.Publish(ctx, topic, payload); err != nil {
			errs = append(errs, fmt.Errorf("broker %d: %w", i, err))
		}
	}
	return stderrors.Join(errs...)
}

// Subscribe reads from the first broker only.
func (f *Fanout) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	if len(f.brokers) == 0 {
		return nil, fmt.Errorf("no broker configured")
	}
	return f.brokers[0].Subscribe(ctx, topic)
}

func (f *Fanout) Close() error {
	var errs []error
	for _, b := range f.brokers {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
